package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	maxProbeBytes  = 64 * 1024
)

// Config holds the executable locations and per-call limits.
type Config struct {
	FFmpegPath       string        // empty = look up "ffmpeg" on PATH
	FFprobePath      string        // empty = look up "ffprobe" on PATH; missing is tolerated
	ProbeTimeout     time.Duration // bound on a single probe
	TranscodeTimeout time.Duration // bound on a single segment cut
	Logger           *slog.Logger
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		ProbeTimeout:     30 * time.Second,
		TranscodeTimeout: 2 * time.Hour,
		Logger:           logger,
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// resolveTool finds an executable, preferring the configured path.
func resolveTool(preferred, name string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: configured %s %q", ErrToolMissing, name, preferred)
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: no %s binary on PATH", ErrToolMissing, name)
	}
	return p, nil
}

// run executes bin with args. stdout may be nil. At most stderrLimit bytes
// of stderr are kept, from the tail; stderrTee, when set, sees all of it.
func run(ctx context.Context, bin string, args []string, stdout io.Writer, stderrLimit int, stderrTee io.Writer) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: stderrLimit}
	if stderrTee != nil {
		cmd.Stderr = io.MultiWriter(cmd.Stderr, stderrTee)
	}
	if stdout != nil {
		cmd.Stdout = stdout
	} else {
		cmd.Stdout = io.Discard
	}

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	if ctx.Err() != nil && err != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}

	return RunResult{
		ExitCode:   exitCode,
		StderrTail: stderrBuf.String(),
		Duration:   elapsed,
		Err:        err,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
