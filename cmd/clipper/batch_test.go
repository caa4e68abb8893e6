package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/media"
)

func writeBatch(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clips.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	return path
}

func TestReadBatchFile(t *testing.T) {
	path := writeBatch(t, `
output_dir: ./clips
format: WEBM
quality: medium
segments:
  - name: intro
    start: "0:00"
    end: "1:05.5"
  - name: outro
    start: 300
    end: 320.25
`)

	b, err := readBatchFile(path)
	if err != nil {
		t.Fatalf("readBatchFile: %v", err)
	}
	if b.OutputDir != "./clips" || b.Format != "WEBM" || b.Quality != "medium" {
		t.Errorf("header = %+v", b)
	}

	cands := b.candidates()
	if len(cands) != 2 {
		t.Fatalf("candidates = %d, want 2", len(cands))
	}
	if cands[0].Name != "intro" || cands[0].StartTime != 0 || cands[0].EndTime != 65.5 {
		t.Errorf("first = %+v", cands[0])
	}
	if cands[1].StartTime != 300 || cands[1].EndTime != 320.25 {
		t.Errorf("second = %+v", cands[1])
	}
}

func TestReadBatchFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"no segments", "format: mp4\n", "no segments"},
		{"bad time", "segments:\n  - name: a\n    start: abc\n    end: 5\n", "line 3"},
		{"negative time", "segments:\n  - name: a\n    start: -1\n    end: 5\n", "line 3"},
		{"time not scalar", "segments:\n  - name: a\n    start: [1, 2]\n    end: 5\n", "must be a scalar"},
		{"not yaml", "segments: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readBatchFile(writeBatch(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestReadBatchFileMissing(t *testing.T) {
	if _, err := readBatchFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBatchSettingsLayering(t *testing.T) {
	defaults := export.Settings{Format: export.FormatMP4, Quality: export.QualityHigh}

	b := &batchFile{}
	s, err := b.settings(defaults, "", "", "")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.OutputDir != "." || s.Format != export.FormatMP4 || s.Quality != export.QualityHigh {
		t.Errorf("defaults only = %+v", s)
	}

	b = &batchFile{OutputDir: "from-file", Format: "mkv", Quality: "low"}
	s, err = b.settings(defaults, "", "", "")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.OutputDir != "from-file" || s.Format != export.FormatMKV || s.Quality != export.QualityLow {
		t.Errorf("file values = %+v", s)
	}

	s, err = b.settings(defaults, "from-flag", ".webm", "Medium")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.OutputDir != "from-flag" || s.Format != export.FormatWebM || s.Quality != export.QualityMedium {
		t.Errorf("flag values = %+v", s)
	}
}

func TestBatchSettingsInvalid(t *testing.T) {
	defaults := export.Settings{Format: export.FormatMP4, Quality: export.QualityHigh}

	if _, err := (&batchFile{Format: "gif"}).settings(defaults, "", "", ""); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := (&batchFile{}).settings(defaults, "", "", "ultra"); err == nil {
		t.Error("expected error for unsupported quality")
	}
}

func TestPrintInfo(t *testing.T) {
	var buf bytes.Buffer
	printInfo(&buf, "talk.mp4", media.VideoInfo{Duration: 60, Width: 1920, Height: 1080, Format: "mp4", Bitrate: 4_000_000})

	out := buf.String()
	for _, want := range []string{"talk.mp4", "1920x1080", "4.00 Mbps", "Format:     mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintResult(t *testing.T) {
	dir := t.TempDir()
	okPath := filepath.Join(dir, "intro.mp4")
	if err := os.WriteFile(okPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	printResult(&buf, &export.BatchResult{
		Total:   2,
		Success: 1,
		Failed:  1,
		Results: []export.SegmentResult{
			{SegmentName: "intro", Result: export.Result{Success: true, OutputPath: okPath}},
			{SegmentName: "outro", Result: export.Result{Error: "ffmpeg exited with code 1"}},
		},
	})

	out := buf.String()
	for _, want := range []string{"1 exported, 1 failed", "OK    intro", "2.0 kB", "FAIL  outro", "exited with code 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	sink := progressPrinter(&buf)
	sink.OnProgress(export.Progress{Phase: export.PhaseSegmentStarted, CurrentIndex: 1, Total: 2, CurrentSegmentName: "intro"})
	sink.OnProgress(export.Progress{Phase: export.PhaseSegmentProgress, CurrentIndex: 1, Total: 2, Percentage: 25})
	sink.OnProgress(export.Progress{Phase: export.PhaseBatchDone, Total: 2, Percentage: 100})

	want := "[1/2] intro\ndone (100%)\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "Heimdex Clipper") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestExportCmdRequiresBatch(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"export", "talk.mp4"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --batch")
	}
}
