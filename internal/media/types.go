// Package media wraps the ffmpeg and ffprobe executables: probing a file into
// a VideoInfo, cutting a time range into a new file, and reporting which
// tool versions are installed.
package media

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the input file does not exist.
	ErrNotFound = errors.New("video file not found")

	// ErrProbe is matched by every *ProbeError.
	ErrProbe = errors.New("probe failed")

	// ErrUnsupportedFormat is returned for files whose container is not handled.
	ErrUnsupportedFormat = errors.New("unsupported video format")

	// ErrToolMissing is returned when a required executable cannot be located.
	ErrToolMissing = errors.New("media tool not found")
)

// VideoInfo is the normalized metadata of one probed file. It is produced
// whole by a single probe and never updated field by field.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Format   string  `json:"format"`
	Bitrate  int64   `json:"bitrate"`
}

// ProbeError reports that metadata could not be determined for Path.
type ProbeError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func (e *ProbeError) Is(target error) bool { return target == ErrProbe }

// RunResult is the outcome of one tool invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ToolError is a failed transcode, carrying the tail of ffmpeg's stderr.
type ToolError struct {
	Tool       string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *ToolError) Error() string {
	msg := lastLine(e.StderrTail)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		return fmt.Sprintf("%s exited %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, msg)
}

func (e *ToolError) Unwrap() error { return e.Err }
