package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/registry"
)

const (
	maxLogMessage  = 4096
	maxDiagnostics = 500
)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// logHandler forwards a UI log line into the clipper log. Warnings and errors
// are also kept as diagnostics.
func logHandler(cfg ServerConfig) http.HandlerFunc {
	logger := logging.WithComponent(cfg.Logger, "ui")

	return func(w http.ResponseWriter, r *http.Request) {
		var req LogRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}
		msg := truncate(strings.TrimSpace(req.Message), maxLogMessage)
		if msg == "" {
			WriteError(w, http.StatusBadRequest, "message is required", CodeBadRequest)
			return
		}

		level := logging.ParseLevel(req.Level)
		attrs := []any{}
		if req.Component != "" {
			attrs = append(attrs, "ui_component", req.Component)
		}
		logger.Log(r.Context(), level, msg, attrs...)

		if level >= slog.LevelWarn {
			storeDiagnostic(r, cfg, &registry.Diagnostic{
				Level:   strings.ToLower(level.String()),
				Message: msg,
				Source:  sourceOr(req.Component, "ui"),
			})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// logErrorHandler records an uncaught UI error with its stacks.
func logErrorHandler(cfg ServerConfig) http.HandlerFunc {
	logger := logging.WithComponent(cfg.Logger, "ui")

	return func(w http.ResponseWriter, r *http.Request) {
		var req LogErrorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}
		msg := truncate(strings.TrimSpace(req.Message), maxLogMessage)
		if msg == "" {
			WriteError(w, http.StatusBadRequest, "message is required", CodeBadRequest)
			return
		}

		logger.Error("ui error", "message", msg, "stack", req.Stack)

		detail := req.Stack
		if req.ComponentStack != "" {
			detail = strings.TrimSpace(detail + "\n\ncomponent stack:" + req.ComponentStack)
		}
		storeDiagnostic(r, cfg, &registry.Diagnostic{
			Level:   "error",
			Message: msg,
			Detail:  detail,
			Source:  "ui",
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func diagnosticsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Repository == nil {
			WriteJSON(w, http.StatusOK, DiagnosticsResponse{Diagnostics: []*registry.Diagnostic{}})
			return
		}

		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", CodeBadRequest)
				return
			}
			limit = min(n, maxDiagnostics)
		}

		list, err := cfg.Repository.ListDiagnostics(r.Context(), limit)
		if err != nil {
			cfg.Logger.Error("failed to list diagnostics", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to list diagnostics", CodeInternal)
			return
		}
		if list == nil {
			list = []*registry.Diagnostic{}
		}
		WriteJSON(w, http.StatusOK, DiagnosticsResponse{Diagnostics: list})
	}
}

func storeDiagnostic(r *http.Request, cfg ServerConfig, d *registry.Diagnostic) {
	if cfg.Repository == nil {
		return
	}
	if err := cfg.Repository.InsertDiagnostic(r.Context(), d); err != nil {
		cfg.Logger.Warn("failed to store diagnostic", "error", err)
	}
}

func sourceOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
