package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an export container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatAVI  Format = "avi"
	FormatMOV  Format = "mov"
	FormatMKV  Format = "mkv"
	FormatWebM Format = "webm"
)

// Formats lists the export targets in display order.
var Formats = []Format{FormatMP4, FormatAVI, FormatMOV, FormatMKV, FormatWebM}

func (f Format) Valid() bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}

// ParseFormat accepts a format name in any case, with or without a dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if !f.Valid() {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

// Quality selects the target video bitrate.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

var qualityKbps = map[Quality]int{
	QualityHigh:   5000,
	QualityMedium: 2500,
	QualityLow:    1000,
}

func (q Quality) Valid() bool {
	_, ok := qualityKbps[q]
	return ok
}

// BitrateKbps is the target video bitrate for q, or 0 if q is invalid.
func (q Quality) BitrateKbps() int {
	return qualityKbps[q]
}

func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", fmt.Errorf("unsupported export quality %q", s)
	}
	return q, nil
}

// Settings are chosen once per batch.
type Settings struct {
	OutputDir string  `json:"output_dir" yaml:"output_dir"`
	Format    Format  `json:"format" yaml:"format"`
	Quality   Quality `json:"quality" yaml:"quality"`
}

// Progress phases. A batch emits one PhaseSegmentStarted per segment, in
// order; PhaseSegmentProgress events may follow while it is being cut.
const (
	PhaseSegmentStarted  = "segment_started"
	PhaseSegmentProgress = "segment_progress"
	PhaseBatchDone       = "batch_done"
)

// Progress is pushed to subscribers while a batch runs.
type Progress struct {
	BatchID            string  `json:"batch_id"`
	Phase              string  `json:"phase"`
	CurrentIndex       int     `json:"current_index"` // 1-based
	Total              int     `json:"total"`
	CurrentSegmentName string  `json:"current_segment_name"`
	Percentage         int     `json:"percentage"`
	SegmentPercent     float64 `json:"segment_percent,omitempty"`
}

// ProgressSink receives progress events. Implementations must not block
// for long; the batch waits for them.
type ProgressSink interface {
	OnProgress(Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(Progress)

func (f ProgressFunc) OnProgress(p Progress) { f(p) }

// MultiSink forwards every event to each non-nil sink in order.
type MultiSink []ProgressSink

func (m MultiSink) OnProgress(p Progress) {
	for _, s := range m {
		if s != nil {
			s.OnProgress(p)
		}
	}
}

// Result is the outcome of one segment.
type Result struct {
	Success    bool   `json:"success"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SegmentResult ties a Result to its segment.
type SegmentResult struct {
	SegmentID   string `json:"segment_id"`
	SegmentName string `json:"segment_name"`
	Result      Result `json:"result"`
}

// BatchResult aggregates a whole batch. Results follow segment order.
type BatchResult struct {
	BatchID string          `json:"batch_id"`
	Total   int             `json:"total"`
	Success int             `json:"success"`
	Failed  int             `json:"failed"`
	Results []SegmentResult `json:"results"`
}

var (
	// ErrPrecondition is matched by every *PreconditionError.
	ErrPrecondition = errors.New("export precondition failed")

	// ErrBatchInProgress is returned when a batch is requested while another runs.
	ErrBatchInProgress = errors.New("an export batch is already running")
)

// PreconditionError aborts a batch before any segment is processed.
type PreconditionError struct {
	Field  string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
