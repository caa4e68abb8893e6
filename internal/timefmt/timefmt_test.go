package timefmt

import (
	"errors"
	"math"
	"testing"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name       string
		seconds    float64
		showMillis bool
		want       string
	}{
		{name: "zero", seconds: 0, want: "0:00"},
		{name: "minute and seconds", seconds: 65, want: "1:05"},
		{name: "hours", seconds: 3665, want: "1:01:05"},
		{name: "negative clamps", seconds: -5, want: "0:00"},
		{name: "nan clamps", seconds: math.NaN(), want: "0:00"},
		{name: "inf clamps", seconds: math.Inf(1), want: "0:00"},
		{name: "fraction dropped", seconds: 59.99, want: "0:59"},
		{name: "millis with minutes", seconds: 65.75, showMillis: true, want: "1:05.75"},
		{name: "millis under a minute", seconds: 30.5, showMillis: true, want: "30.50"},
		{name: "millis zero", seconds: 0, showMillis: true, want: "0.00"},
		{name: "millis hours", seconds: 3661.25, showMillis: true, want: "1:01:01.25"},
		{name: "millis truncates", seconds: 1.999, showMillis: true, want: "1.99"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatTime(tc.seconds, tc.showMillis)
			if got != tc.want {
				t.Fatalf("FormatTime(%v, %v) = %q, want %q", tc.seconds, tc.showMillis, got, tc.want)
			}
		})
	}
}

func TestFormatTime_NearWholeSeconds(t *testing.T) {
	// Summed at runtime so the float error survives; constant arithmetic is exact.
	tenth := 0.1
	sum := 0.7 + tenth + tenth + tenth

	tests := []struct {
		name       string
		seconds    float64
		showMillis bool
		want       string
	}{
		{name: "accumulated sum", seconds: sum, showMillis: true, want: "1.00"},
		{name: "just under a minute", seconds: 59.99999999999, showMillis: true, want: "1:00.00"},
		{name: "just under an hour", seconds: 3599.999999999, showMillis: true, want: "1:00:00.00"},
		{name: "just under a minute without millis", seconds: 59.99999999999, want: "1:00"},
		{name: "below the epsilon stays truncated", seconds: 59.995, showMillis: true, want: "59.99"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormatTime(tc.seconds, tc.showMillis)
			if got != tc.want {
				t.Fatalf("FormatTime(%.15f, %v) = %q, want %q", tc.seconds, tc.showMillis, got, tc.want)
			}
		})
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "45", want: 45},
		{in: "1:05", want: 65},
		{in: "1:01:05", want: 3665},
		{in: "2.5", want: 2.5},
		{in: "0:30.5", want: 30.5},
	}

	for _, tc := range tests {
		got, err := ParseTime(tc.in)
		if err != nil {
			t.Fatalf("ParseTime(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTime_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1:2:3:4", "1::2", "1:-2", "NaN"} {
		_, err := ParseTime(in)
		if err == nil {
			t.Errorf("ParseTime(%q) expected error", in)
			continue
		}
		if !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParseTime(%q) error = %v, want ErrInvalidFormat", in, err)
		}
		var fe *FormatError
		if !errors.As(err, &fe) || fe.Input != in {
			t.Errorf("ParseTime(%q) error not a FormatError carrying the input: %v", in, err)
		}
	}
}

func TestParseTime_RoundTripsWholeSeconds(t *testing.T) {
	for _, x := range []int{0, 1, 59, 60, 61, 599, 3599, 3600, 3665, 86399, 100000} {
		got, err := ParseTime(FormatTime(float64(x), false))
		if err != nil {
			t.Fatalf("round trip %d: %v", x, err)
		}
		if got != float64(x) {
			t.Errorf("round trip %d = %v", x, got)
		}
	}
}

func TestFormatBitrate(t *testing.T) {
	tests := []struct {
		bps  int64
		want string
	}{
		{0, "unknown"},
		{-1, "unknown"},
		{999, "999 bps"},
		{1000, "1.00 kbps"},
		{1500, "1.50 kbps"},
		{1000000, "1.00 Mbps"},
		{5500000, "5.50 Mbps"},
	}
	for _, tc := range tests {
		if got := FormatBitrate(tc.bps); got != tc.want {
			t.Errorf("FormatBitrate(%d) = %q, want %q", tc.bps, got, tc.want)
		}
	}
}

func TestFFmpegTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{3661.25, "01:01:01.250"},
		{-3, "00:00:00.000"},
	}
	for _, tc := range tests {
		if got := FFmpegTimestamp(tc.seconds); got != tc.want {
			t.Errorf("FFmpegTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
