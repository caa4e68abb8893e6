// Package export cuts the segments of a video into separate files, one
// segment at a time, and reports progress while it does.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/metrics"
)

// Request is one batch: every segment of VideoPath, cut with Settings.
type Request struct {
	VideoPath string
	Segments  []clips.Segment
	Settings  Settings
}

// Orchestrator runs batch exports. Only one batch runs at a time.
type Orchestrator struct {
	transcoder media.Transcoder
	metrics    *metrics.Metrics
	logger     *slog.Logger
	running    atomic.Bool
}

func NewOrchestrator(transcoder media.Transcoder, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		transcoder: transcoder,
		metrics:    m,
		logger:     logging.WithComponent(logger, "export"),
	}
}

// Running reports whether a batch is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// ExportBatch validates the preconditions, then cuts each segment in order.
// A precondition failure returns an error before any progress is emitted.
// Per-segment failures are recorded in the result and never stop the batch.
// sink may be nil.
func (o *Orchestrator) ExportBatch(ctx context.Context, req Request, sink ProgressSink) (*BatchResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.BatchFinished(metrics.BatchRejected)
		return nil, ErrBatchInProgress
	}
	defer o.running.Store(false)

	if err := checkPreconditions(req); err != nil {
		o.metrics.BatchFinished(metrics.BatchPreconditionFailed)
		o.logger.Warn("export rejected", "error", err)
		return nil, err
	}

	o.metrics.SetExportActive(true)
	defer o.metrics.SetExportActive(false)

	batchID := uuid.NewString()
	logger := logging.WithBatchID(o.logger, batchID)
	started := time.Now()

	total := len(req.Segments)
	result := &BatchResult{
		BatchID: batchID,
		Total:   total,
		Results: make([]SegmentResult, 0, total),
	}

	logger.Info("export batch started",
		"source", logging.SanitizePath(req.VideoPath),
		"segments", total,
		"format", req.Settings.Format,
		"quality", req.Settings.Quality,
	)

	emit := func(p Progress) {
		if sink != nil {
			p.BatchID = batchID
			p.Total = total
			sink.OnProgress(p)
		}
	}

	for i, seg := range req.Segments {
		r := o.exportSegment(ctx, logger, req, i, seg, emit)
		if r.Success {
			result.Success++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, SegmentResult{
			SegmentID:   seg.ID,
			SegmentName: seg.Name,
			Result:      r,
		})
	}

	emit(Progress{Phase: PhaseBatchDone, CurrentIndex: total, Percentage: 100})
	o.metrics.BatchFinished(metrics.BatchCompleted)

	logger.Info("export batch finished",
		"success", result.Success,
		"failed", result.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return result, nil
}

func (o *Orchestrator) exportSegment(ctx context.Context, logger *slog.Logger, req Request, i int, seg clips.Segment, emit func(Progress)) Result {
	settings := req.Settings
	total := len(req.Segments)
	index := i + 1
	percentage := int(math.Round(float64(index) / float64(total) * 100))
	started := time.Now()

	fail := func(msg string) Result {
		o.metrics.SegmentExported(string(settings.Format), false, time.Since(started))
		logger.Warn("segment export failed", "index", index, "segment_id", seg.ID, "error", msg)
		return Result{Error: msg}
	}

	emit(Progress{
		Phase:              PhaseSegmentStarted,
		CurrentIndex:       index,
		CurrentSegmentName: seg.Name,
		Percentage:         percentage,
	})

	// Resolved per segment so files written earlier in this batch count as
	// collisions.
	outPath, err := resolveOutputPath(settings.OutputDir, baseName(seg.Name, i), string(settings.Format))
	if err != nil {
		return fail(err.Error())
	}

	duration := seg.EndTime - seg.StartTime
	if seg.StartTime < 0 || !(duration > 0) {
		return fail(fmt.Sprintf("invalid time range: start %.2f, end %.2f", seg.StartTime, seg.EndTime))
	}
	if err := ctx.Err(); err != nil {
		return fail("export cancelled: " + err.Error())
	}

	policy, ok := LookupPolicy(settings.Format, settings.Quality, filepath.Ext(req.VideoPath))
	if !ok {
		return fail(fmt.Sprintf("no codec policy for %s/%s", settings.Format, settings.Quality))
	}

	onProgress := func(pct float64) {
		emit(Progress{
			Phase:              PhaseSegmentProgress,
			CurrentIndex:       index,
			CurrentSegmentName: seg.Name,
			Percentage:         percentage,
			SegmentPercent:     pct,
		})
	}

	_, err = o.transcoder.Transcode(ctx, media.TranscodeRequest{
		Input:       req.VideoPath,
		Output:      outPath,
		Start:       seg.StartTime,
		Duration:    duration,
		VideoCodec:  policy.VideoCodec,
		AudioCodec:  policy.AudioCodec,
		BitrateKbps: policy.BitrateKbps,
	}, onProgress)
	if err != nil {
		os.Remove(outPath)
		return fail("export failed: " + err.Error())
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fail("export failed: output file was not created")
	}

	o.metrics.SegmentExported(string(settings.Format), true, time.Since(started))
	logger.Info("segment exported",
		"index", index,
		"segment_id", seg.ID,
		"output", logging.SanitizePath(outPath),
		"size", humanize.Bytes(uint64(info.Size())),
		"stream_copy", policy.StreamCopy(),
		"took", time.Since(started).Round(time.Millisecond).String(),
	)
	return Result{Success: true, OutputPath: outPath}
}

func checkPreconditions(req Request) error {
	st, err := os.Stat(req.VideoPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &PreconditionError{Field: "video_path", Reason: "source video does not exist", Err: media.ErrNotFound}
		}
		return &PreconditionError{Field: "video_path", Reason: "source video cannot be read", Err: err}
	}
	if st.IsDir() {
		return &PreconditionError{Field: "video_path", Reason: "source is a directory"}
	}
	if !media.IsSupportedFormat(req.VideoPath) {
		return &PreconditionError{Field: "video_path", Reason: "unsupported source format", Err: media.ErrUnsupportedFormat}
	}

	if err := ValidateOutputDir(req.Settings.OutputDir); err != nil {
		return err
	}
	if !req.Settings.Format.Valid() {
		return &PreconditionError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", req.Settings.Format)}
	}
	if !req.Settings.Quality.Valid() {
		return &PreconditionError{Field: "quality", Reason: fmt.Sprintf("unsupported export quality %q", req.Settings.Quality)}
	}
	return nil
}
