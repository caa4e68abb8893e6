package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/timefmt"
)

// batchFile is the YAML segment list read by `clipper export`:
//
//	output_dir: ./clips
//	format: webm
//	quality: medium
//	segments:
//	  - name: intro
//	    start: "0:00"
//	    end: "1:05.5"
//	  - name: outro
//	    start: 300
//	    end: 320
type batchFile struct {
	OutputDir string         `yaml:"output_dir"`
	Format    string         `yaml:"format"`
	Quality   string         `yaml:"quality"`
	Segments  []batchSegment `yaml:"segments"`
}

type batchSegment struct {
	Name  string    `yaml:"name"`
	Start clockTime `yaml:"start"`
	End   clockTime `yaml:"end"`
}

// clockTime accepts plain seconds or clock text.
type clockTime float64

func (c *clockTime) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: time must be a scalar", node.Line)
	}
	secs, err := timefmt.ParseTime(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*c = clockTime(secs)
	return nil
}

func readBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var b batchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(b.Segments) == 0 {
		return nil, fmt.Errorf("%s: no segments", path)
	}
	return &b, nil
}

func (b *batchFile) candidates() []clips.Candidate {
	out := make([]clips.Candidate, len(b.Segments))
	for i, s := range b.Segments {
		out[i] = clips.Candidate{Name: s.Name, StartTime: float64(s.Start), EndTime: float64(s.End)}
	}
	return out
}

// settings layers flag values over the file's values over defaults. Empty
// values do not override.
func (b *batchFile) settings(defaults export.Settings, outDir, format, quality string) (export.Settings, error) {
	s := defaults
	for _, dir := range []string{b.OutputDir, outDir} {
		if dir != "" {
			s.OutputDir = dir
		}
	}
	for _, f := range []string{b.Format, format} {
		if f == "" {
			continue
		}
		parsed, err := export.ParseFormat(f)
		if err != nil {
			return s, err
		}
		s.Format = parsed
	}
	for _, q := range []string{b.Quality, quality} {
		if q == "" {
			continue
		}
		parsed, err := export.ParseQuality(q)
		if err != nil {
			return s, err
		}
		s.Quality = parsed
	}
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	return s, nil
}
