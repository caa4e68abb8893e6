package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/timefmt"
)

// CodecCopy asks ffmpeg to remux a stream without re-encoding.
const CodecCopy = "copy"

// TranscodeRequest describes one cut of Input into Output.
type TranscodeRequest struct {
	Input       string
	Output      string
	Start       float64 // seconds
	Duration    float64 // seconds
	VideoCodec  string
	AudioCodec  string
	BitrateKbps int // target video bitrate; ignored for stream copy
}

// StreamCopy reports whether both streams are remuxed.
func (r TranscodeRequest) StreamCopy() bool {
	return r.VideoCodec == CodecCopy && r.AudioCodec == CodecCopy
}

// Args builds the ffmpeg argument list. Progress is written as key=value
// lines to stdout.
func (r TranscodeRequest) Args() []string {
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", timefmt.FFmpegTimestamp(r.Start),
		"-i", r.Input,
		"-t", timefmt.FFmpegTimestamp(r.Duration),
		"-c:v", r.VideoCodec,
		"-c:a", r.AudioCodec,
	}
	if r.VideoCodec != CodecCopy && r.BitrateKbps > 0 {
		args = append(args, "-b:v", strconv.Itoa(r.BitrateKbps)+"k")
	}
	args = append(args, "-progress", "pipe:1", "-nostats", r.Output)
	return args
}

// ProgressFunc receives the completed share of one transcode, 0 to 100.
type ProgressFunc func(percent float64)

// Transcoder cuts a time range of a source file into a new file.
type Transcoder interface {
	Transcode(ctx context.Context, req TranscodeRequest, onProgress ProgressFunc) (RunResult, error)
}

// FFmpegTranscoder runs ffmpeg as a subprocess.
type FFmpegTranscoder struct {
	cfg    Config
	ffmpeg string
	logger *slog.Logger
}

// NewTranscoder resolves the ffmpeg executable.
func NewTranscoder(cfg Config) (*FFmpegTranscoder, error) {
	ffmpeg, err := resolveTool(cfg.FFmpegPath, "ffmpeg")
	if err != nil {
		return nil, err
	}
	return &FFmpegTranscoder{
		cfg:    cfg,
		ffmpeg: ffmpeg,
		logger: logging.WithComponent(cfg.logger(), "transcoder"),
	}, nil
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, req TranscodeRequest, onProgress ProgressFunc) (RunResult, error) {
	if req.Start < 0 || req.Duration <= 0 {
		return RunResult{ExitCode: -1}, fmt.Errorf("invalid time range: start=%.2f duration=%.2f", req.Start, req.Duration)
	}

	if t.cfg.TranscodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.TranscodeTimeout)
		defer cancel()
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		streamProgress(pr, req.Duration, onProgress)
	}()

	args := req.Args()
	t.logger.Debug("executing ffmpeg", "args", args)

	res := run(ctx, t.ffmpeg, args, pw, maxStderrBytes, nil)
	pw.Close()
	<-done

	res.OutputPath = req.Output

	if !res.IsSuccess() {
		t.logger.Warn("ffmpeg failed",
			"exit_code", res.ExitCode,
			"duration_ms", res.Duration.Milliseconds(),
			"stderr_tail", truncate(res.StderrTail, 512),
		)
		return res, &ToolError{Tool: "ffmpeg", ExitCode: res.ExitCode, StderrTail: res.StderrTail, Err: res.Err}
	}

	t.logger.Info("ffmpeg succeeded",
		"duration_ms", res.Duration.Milliseconds(),
		"output", logging.SanitizePath(req.Output),
	)
	return res, nil
}

// streamProgress reads ffmpeg -progress output and reports percent of total.
func streamProgress(r io.Reader, total float64, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	last := -1.0
	for scanner.Scan() {
		pct, ok := parseProgressLine(scanner.Text(), total)
		if !ok || onProgress == nil || pct <= last {
			continue
		}
		last = pct
		onProgress(pct)
	}
	// Drain after a scanner error so ffmpeg never blocks on a full pipe.
	io.Copy(io.Discard, r)
}

// parseProgressLine converts an out_time_us/out_time_ms/out_time line into
// a percentage of total seconds. "progress=end" reports 100.
func parseProgressLine(line string, total float64) (float64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || total <= 0 {
		return 0, false
	}

	var seconds float64
	switch key {
	case "progress":
		if value == "end" {
			return 100, true
		}
		return 0, false
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		seconds = float64(us) / 1e6
	case "out_time":
		s, err := timefmt.ParseTime(value)
		if err != nil {
			return 0, false
		}
		seconds = s
	default:
		return 0, false
	}

	pct := seconds / total * 100
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
