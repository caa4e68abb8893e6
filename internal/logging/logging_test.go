package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithBatchID(WithComponent(New(&buf, "info"), "export"), "b-1")
	logger.Debug("hidden")
	logger.Info("segment exported", "index", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "segment exported" || entry["component"] != "export" || entry["batch_id"] != "b-1" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken = %q", got)
	}
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("cannot determine home dir")
	}
	got := SanitizePath(filepath.Join(home, "Videos", "a.mp4"))
	if got != "~"+string(filepath.Separator)+filepath.Join("Videos", "a.mp4") {
		t.Errorf("SanitizePath = %q", got)
	}
	if got := SanitizePath("/elsewhere/a.mp4"); got != "/elsewhere/a.mp4" && home != "/" {
		t.Errorf("SanitizePath changed an unrelated path: %q", got)
	}
}
