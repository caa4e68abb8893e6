// Package api is the loopback HTTP and WebSocket surface the clipper UI
// talks to.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/heimdex-clipper/internal/clips"
	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/fileurl"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/metrics"
	"github.com/heimdex/heimdex-clipper/internal/playback"
	"github.com/heimdex/heimdex-clipper/internal/registry"
	"github.com/heimdex/heimdex-clipper/internal/session"
)

// Picker shows native dialogs. An empty path with a nil error means the user
// dismissed the dialog.
type Picker interface {
	PickVideo(ctx context.Context) (string, error)
	PickDirectory(ctx context.Context, start string) (string, error)
}

type Server struct {
	httpServer *http.Server
	hub        *ProgressHub
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Session        *session.Session
	Store          *clips.Store
	Prober         media.Prober
	Orchestrator   *export.Orchestrator
	Hub            *ProgressHub
	ProgressSink   export.ProgressSink // extra sink next to Hub, may be nil
	Picker         Picker
	PlaybackServer playback.PlaybackService
	Repository     registry.Repository
	Doctor         *media.CachedDoctor
	Metrics        *metrics.Metrics
	DefaultExport  func(outputDir string) export.Settings
	URLStyle       fileurl.Style
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // exports and previews stream for minutes
			IdleTimeout:       60 * time.Second,
		},
		hub:    cfg.Hub,
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown disconnects progress subscribers, then drains HTTP requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
