// Package timefmt converts between seconds and the clock strings shown to
// users, and formats bitrates for display.
package timefmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidFormat is matched by every error returned from ParseTime.
var ErrInvalidFormat = errors.New("invalid time format")

// FormatError describes why a time string could not be parsed.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid time format %q: %s", e.Input, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrInvalidFormat
}

// FormatTime renders seconds as M:SS or H:MM:SS. With showMillis the
// hundredths are appended (truncated), and values under a minute drop the
// minute field entirely ("30.50").
func FormatTime(seconds float64, showMillis bool) string {
	seconds = clamp(seconds)

	// One centisecond count feeds every field. The epsilon keeps values like
	// 65.75 from truncating to .74.
	cs := int64(math.Floor(seconds*100 + 1e-6))
	whole := cs / 100
	hundredths := cs % 100
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60

	if !showMillis {
		if hours > 0 {
			return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
		}
		return fmt.Sprintf("%d:%02d", minutes, secs)
	}

	switch {
	case hours > 0:
		return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, hundredths)
	case whole < 60:
		return fmt.Sprintf("%d.%02d", secs, hundredths)
	default:
		return fmt.Sprintf("%d:%02d.%02d", minutes, secs, hundredths)
	}
}

// ParseTime accepts "S", "M:S" or "H:M:S". Components may be fractional.
func ParseTime(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, &FormatError{Input: s, Reason: "empty string"}
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) > 3 {
		return 0, &FormatError{Input: s, Reason: fmt.Sprintf("expected at most 3 fields, got %d", len(parts))}
	}

	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0, &FormatError{Input: s, Reason: fmt.Sprintf("non-numeric field %q", part)}
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatBitrate renders bits per second with a bps, kbps or Mbps unit.
func FormatBitrate(bps int64) string {
	switch {
	case bps <= 0:
		return "unknown"
	case bps < 1000:
		return fmt.Sprintf("%d bps", bps)
	case bps < 1_000_000:
		return fmt.Sprintf("%.2f kbps", float64(bps)/1000)
	default:
		return fmt.Sprintf("%.2f Mbps", float64(bps)/1_000_000)
	}
}

// FFmpegTimestamp renders seconds as HH:MM:SS.mmm for -ss and -t arguments.
func FFmpegTimestamp(seconds float64) string {
	seconds = clamp(seconds)
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func clamp(seconds float64) float64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0
	}
	return seconds
}
