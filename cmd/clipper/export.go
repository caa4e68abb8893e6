package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/session"
	"github.com/heimdex/heimdex-clipper/internal/timefmt"
)

type exportOptions struct {
	batch   string
	outDir  string
	format  string
	quality string
	edl     bool
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <video>",
		Short: "Cut the segments listed in a batch file",
		Example: "  clipper export talk.mp4 --batch clips.yaml --out ./clips --format webm\n" +
			"  clipper export talk.mp4 --batch clips.yaml --edl",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, eo, args[0])
		},
	}

	cmd.Flags().StringVar(&eo.batch, "batch", "", "YAML file listing the segments (required)")
	cmd.Flags().StringVar(&eo.outDir, "out", "", "output directory (default: the batch file's, else the current directory)")
	cmd.Flags().StringVar(&eo.format, "format", "", "mp4|avi|mov|mkv|webm")
	cmd.Flags().StringVar(&eo.quality, "quality", "", "high|medium|low")
	cmd.Flags().BoolVar(&eo.edl, "edl", false, "write an edit decision list instead of cutting files")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions, eo *exportOptions, video string) error {
	cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	batch, err := readBatchFile(eo.batch)
	if err != nil {
		return err
	}
	settings, err := batch.settings(cfg.DefaultSettings(""), eo.outDir, eo.format, eo.quality)
	if err != nil {
		return err
	}

	path, err := filepath.Abs(video)
	if err != nil {
		return err
	}
	if !media.IsSupportedFormat(path) {
		return fmt.Errorf("%s: %w", video, media.ErrUnsupportedFormat)
	}

	mcfg := mediaConfig(cfg, logger)
	prober, err := media.NewProber(mcfg)
	if err != nil {
		return err
	}
	info, err := prober.Probe(cmd.Context(), path)
	if err != nil {
		return err
	}

	// Segments go through the same store the API uses, so the same rules
	// apply.
	sess := session.New(logger)
	sess.Load(path, info)
	store := clips.NewStore(sess, logger)
	defer store.Close()

	var invalid []string
	for i, c := range batch.candidates() {
		if res := store.Add(c); !res.Valid {
			invalid = append(invalid, fmt.Sprintf("segment %d (%q): %s", i+1, c.Name, res.Error))
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid segments:\n  %s", strings.Join(invalid, "\n  "))
	}

	if eo.edl {
		edlPath, err := export.WriteEDL(settings.OutputDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path, store.Segments(), 0)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s (%d events)\n", edlPath, store.Len())
		return nil
	}

	transcoder, err := media.NewTranscoder(mcfg)
	if err != nil {
		return err
	}
	orchestrator := export.NewOrchestrator(transcoder, nil, logger)

	result, err := orchestrator.ExportBatch(cmd.Context(), export.Request{
		VideoPath: path,
		Segments:  store.Segments(),
		Settings:  settings,
	}, progressPrinter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	printResult(out, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d segments failed", result.Failed, result.Total)
	}
	return nil
}

func progressPrinter(w io.Writer) export.ProgressSink {
	return export.ProgressFunc(func(p export.Progress) {
		switch p.Phase {
		case export.PhaseSegmentStarted:
			fmt.Fprintf(w, "[%d/%d] %s\n", p.CurrentIndex, p.Total, p.CurrentSegmentName)
		case export.PhaseBatchDone:
			fmt.Fprintf(w, "done (%d%%)\n", p.Percentage)
		}
	})
}

func printResult(w io.Writer, res *export.BatchResult) {
	fmt.Fprintf(w, "%d exported, %d failed\n", res.Success, res.Failed)
	for _, r := range res.Results {
		if !r.Result.Success {
			fmt.Fprintf(w, "  FAIL  %-24s %s\n", r.SegmentName, r.Result.Error)
			continue
		}
		size := "?"
		if st, err := os.Stat(r.Result.OutputPath); err == nil {
			size = humanize.Bytes(uint64(st.Size()))
		}
		fmt.Fprintf(w, "  OK    %-24s %s (%s)\n", r.SegmentName, r.Result.OutputPath, size)
	}
}

func newProbeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video>",
		Short: "Print the metadata of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			prober, err := media.NewProber(mediaConfig(cfg, logger))
			if err != nil {
				return err
			}
			info, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), args[0], info)
			return nil
		},
	}
}

func printInfo(w io.Writer, path string, info media.VideoInfo) {
	fmt.Fprintf(w, "File:       %s\n", path)
	fmt.Fprintf(w, "Format:     %s\n", info.Format)
	fmt.Fprintf(w, "Duration:   %s\n", timefmt.FormatTime(info.Duration, true))
	fmt.Fprintf(w, "Resolution: %dx%d\n", info.Width, info.Height)
	fmt.Fprintf(w, "Bitrate:    %s\n", timefmt.FormatBitrate(info.Bitrate))
}
