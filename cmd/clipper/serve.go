package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-clipper/internal/api"
	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/config"
	"github.com/heimdex/heimdex-clipper/internal/db"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/fileurl"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/metrics"
	"github.com/heimdex/heimdex-clipper/internal/playback"
	"github.com/heimdex/heimdex-clipper/internal/registry"
	"github.com/heimdex/heimdex-clipper/internal/session"
	"github.com/heimdex/heimdex-clipper/internal/ui"
	"github.com/heimdex/heimdex-clipper/internal/watcher"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local API and system tray (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	startTime := time.Now()

	cfg, logger, err := loadConfig(opts, nil)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger.Info("starting heimdex clipper", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := registry.NewRepository(database.Conn())

	deviceID, err := registry.EnsureConfig(ctx, repo, registry.KeyDeviceID, registry.NewDeviceID)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := registry.EnsureConfig(ctx, repo, registry.KeyAuthToken, registry.NewAuthToken)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	printBanner(cfg.Port(), authToken, deviceID)

	m := metrics.New(config.Version)
	mcfg := mediaConfig(cfg, logger)

	doctor := media.NewCachedDoctor(media.NewToolChecker(mcfg), logger)
	initCtx, initCancel := context.WithTimeout(ctx, mcfg.ProbeTimeout)
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial tool check failed", "error", err)
	} else {
		logger.Info("media tools detected",
			"ffmpeg", caps.FFmpeg.Version,
			"ffprobe", caps.FFprobe.Version,
			"can_export", caps.CanExport(),
		)
	}
	initCancel()

	var prober media.Prober
	if p, err := media.NewProber(mcfg); err != nil {
		logger.Warn("prober unavailable, videos cannot be loaded", "error", err)
	} else {
		prober = p
	}

	var orchestrator *export.Orchestrator
	if tc, err := media.NewTranscoder(mcfg); err != nil {
		logger.Warn("transcoder unavailable, export disabled", "error", err)
	} else {
		orchestrator = export.NewOrchestrator(tc, m, logger)
	}

	sess := session.New(logger)
	store := clips.NewStore(sess, logger)
	defer store.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w, err := watcher.New(sess, logger); err != nil {
		logger.Warn("file watcher unavailable", "error", err)
	} else {
		defer w.Close()
		go w.Run(runCtx)
	}

	hub := api.NewProgressHub(m, logger)
	quitCh := make(chan struct{})

	var tray *ui.Tray
	var traySink export.ProgressSink
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Session: sess,
			Logger:  logger,
			OnOpenExports: func() error {
				dir, err := repo.GetConfig(context.Background(), registry.KeyLastOutputDir)
				if err != nil {
					return err
				}
				return ui.OpenFolder(dir)
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		traySink = tray
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		Session:        sess,
		Store:          store,
		Prober:         prober,
		Orchestrator:   orchestrator,
		Hub:            hub,
		ProgressSink:   traySink,
		Picker:         ui.NewCommandPicker(cfg.PickerCommand(), logger),
		PlaybackServer: playback.NewServer(logger),
		Repository:     repo,
		Doctor:         doctor,
		Metrics:        m,
		DefaultExport:  cfg.DefaultSettings,
		URLStyle:       fileurl.Native(),
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if tray != nil {
		go tray.Run()
	}

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case <-quitCh:
	case <-ctx.Done():
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if orchestrator != nil && orchestrator.Running() {
		logger.Warn("export still running at shutdown, partial outputs may remain")
	}

	logger.Info("shutdown complete")
	return nil
}

func printBanner(port int, authToken, deviceID string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-57s║\n", "HEIMDEX CLIPPER v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-28d║\n", port)
	fmt.Printf("║  Auth Token: %-45s║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s║\n", deviceID)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
}
