package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-clipper/internal/config"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
)

type rootOptions struct {
	logLevel string
	envDir   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "clipper",
		Short:         "Heimdex Clipper, cut a video into named segments",
		Long:          "Heimdex Clipper serves the local API the clipper UI talks to, and can probe and export videos from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug|info|warn|error (overrides "+config.EnvLogLevel+")")
	root.PersistentFlags().StringVar(&opts.envDir, "env-dir", ".", "directory searched for .env files")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newProbeCmd(opts))
	root.AddCommand(newExportCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// loadConfig reads .env files from the env dir, then from the data dir the
// first pass points at, and builds the config from the environment. Logs go
// to logOut, or stdout when it is nil.
func loadConfig(opts *rootOptions, logOut io.Writer) (*config.EnvConfig, *slog.Logger, error) {
	newLogger := logging.NewLogger
	if logOut != nil {
		newLogger = func(level string) *slog.Logger { return logging.New(logOut, level) }
	}
	boot := newLogger(levelOr(opts.logLevel, os.Getenv(config.EnvLogLevel)))
	config.LoadEnv(boot, opts.envDir)

	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if loaded := config.LoadEnv(boot, cfg.DataDir()); len(loaded) > 0 {
		if cfg, err = config.New(); err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	return cfg, newLogger(levelOr(opts.logLevel, cfg.LogLevel())), nil
}

func levelOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func mediaConfig(cfg config.Config, logger *slog.Logger) media.Config {
	mc := media.DefaultConfig(logger)
	mc.FFmpegPath = cfg.FFmpegPath()
	mc.FFprobePath = cfg.FFprobePath()
	mc.ProbeTimeout = cfg.ProbeTimeout()
	mc.TranscodeTimeout = cfg.TranscodeTimeout()
	return mc
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Heimdex Clipper %s\n", config.Version)
			fmt.Fprintf(cmd.OutOrStdout(), " - built: %s\n", config.BuildTime)
			fmt.Fprintf(cmd.OutOrStdout(), " - git: %s\n", config.GitCommit)
			return nil
		},
	}
}
