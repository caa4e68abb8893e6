package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger, false))

		r.Get("/status", statusHandler(cfg))

		r.Get("/video", getVideoHandler(cfg))
		r.Delete("/video", unloadVideoHandler(cfg))
		r.Post("/video/load", loadVideoHandler(cfg))
		r.Post("/video/info", videoInfoHandler(cfg))

		r.Get("/segments", listSegmentsHandler(cfg))
		r.Post("/segments", addSegmentHandler(cfg))
		r.Delete("/segments", clearSegmentsHandler(cfg))
		r.Post("/segments/validate", validateSegmentHandler(cfg))
		r.Put("/segments/{id}", updateSegmentHandler(cfg))
		r.Delete("/segments/{id}", deleteSegmentHandler(cfg))

		r.Post("/export", exportHandler(cfg))
		r.Post("/export/select-dir", selectDirHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))

		r.Post("/log", logHandler(cfg))
		r.Post("/log/error", logErrorHandler(cfg))
		r.Get("/diagnostics", diagnosticsHandler(cfg))
	})

	// Media elements and WebSockets cannot send headers, so these accept
	// ?token= and are limited to local clients.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger, true))

		r.Get("/export/progress", progressHandler(cfg))
		r.Get("/playback", playbackHandler(cfg))
		r.Head("/playback", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

// statusHandler reports cached tool availability; ?refresh=1 re-checks.
func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{State: "idle"}

		if cfg.Orchestrator != nil && cfg.Orchestrator.Running() {
			resp.State = "exporting"
		}
		if cfg.Session != nil {
			if st := cfg.Session.Current(); st.Path != "" {
				video := stateToResponse(st, cfg.URLStyle.FromPath)
				resp.Video = &video
			}
		}
		if cfg.Store != nil {
			resp.SegmentsCount = cfg.Store.Len()
		}
		if cfg.Hub != nil {
			resp.ProgressClients = cfg.Hub.ClientCount()
		}

		if cfg.Doctor != nil {
			caps := cfg.Doctor.Peek()
			if r.URL.Query().Get("refresh") == "1" {
				if fresh, err := cfg.Doctor.Refresh(r.Context()); err == nil {
					caps = fresh
				}
			}
			if caps != nil {
				resp.Tools = toolsToResponse(caps)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func progressHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Hub == nil {
			WriteError(w, http.StatusServiceUnavailable, "progress stream unavailable", CodeUnavailable)
			return
		}
		if !isWebSocket(r) {
			WriteError(w, http.StatusBadRequest, "websocket upgrade required", CodeBadRequest)
			return
		}
		cfg.Hub.ServeWS(w, r)
	}
}
