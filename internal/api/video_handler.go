package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/playback"
)

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, stateToResponse(cfg.Session.Current(), cfg.URLStyle.FromPath))
	}
}

func unloadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Session.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadVideoHandler resolves the video the user wants to open. It does not
// probe it; the UI follows up with /video/info.
func loadVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}

		path := req.Path
		if path == "" && req.URL != "" {
			p, err := cfg.URLStyle.ToPath(req.URL)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
				return
			}
			path = p
		}

		if path == "" {
			if cfg.Picker == nil {
				WriteError(w, http.StatusServiceUnavailable, "file picker unavailable, pass a path", CodePickerUnavailable)
				return
			}
			picked, err := cfg.Picker.PickVideo(r.Context())
			if err != nil {
				cfg.Logger.Error("file picker failed", "error", err)
				WriteError(w, http.StatusInternalServerError, "file picker failed", CodeInternal)
				return
			}
			if picked == "" {
				WriteJSON(w, http.StatusOK, LoadVideoResponse{Cancelled: true})
				return
			}
			path = picked
		}

		if !media.IsSupportedFormat(path) {
			WriteError(w, http.StatusUnprocessableEntity, "unsupported video format", CodePrecondition)
			return
		}

		u, err := cfg.URLStyle.FromPath(path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}
		WriteJSON(w, http.StatusOK, LoadVideoResponse{URL: u, Path: path})
	}
}

// videoInfoHandler probes the video and makes it the active one. On any
// failure the session records the error and nothing is loaded.
func videoInfoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VideoInfoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}
		if req.URL == "" {
			WriteError(w, http.StatusBadRequest, "url is required", CodeBadRequest)
			return
		}

		path, err := cfg.URLStyle.ToPath(req.URL)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
			return
		}

		if !media.IsSupportedFormat(path) {
			cfg.Session.Fail(path, fmt.Errorf("%w: %s", media.ErrUnsupportedFormat, path))
			WriteError(w, http.StatusUnprocessableEntity, "unsupported video format", CodePrecondition)
			return
		}

		if cfg.Prober == nil {
			WriteError(w, http.StatusServiceUnavailable, "ffmpeg is not available", CodeUnavailable)
			return
		}

		info, err := cfg.Prober.Probe(r.Context(), path)
		if err != nil {
			cfg.Metrics.Probe(false)
			cfg.Session.Fail(path, err)
			switch {
			case errors.Is(err, media.ErrNotFound):
				WriteError(w, http.StatusNotFound, "video file not found", CodeNotFound)
			case errors.Is(err, media.ErrProbe):
				WriteError(w, http.StatusUnprocessableEntity, "could not read video metadata", CodeProbeFailed)
			default:
				cfg.Logger.Error("probe failed", "path", logging.SanitizePath(path), "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to read video info", CodeInternal)
			}
			return
		}

		cfg.Metrics.Probe(true)
		cfg.Session.Load(path, info)
		WriteJSON(w, http.StatusOK, stateToResponse(cfg.Session.Current(), cfg.URLStyle.FromPath))
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Session.Current()
		if !st.Loaded {
			WriteError(w, http.StatusNotFound, "no video loaded", CodeNotFound)
			return
		}

		err := cfg.PlaybackServer.ServeFile(w, r, st.Path)
		if errors.Is(err, playback.ErrNotFound) {
			cfg.Session.ClearIf(st.Path)
			WriteError(w, http.StatusNotFound, "video file not found", CodeNotFound)
			return
		}
		if err != nil {
			cfg.Logger.Error("playback error", "error", err, "path", logging.SanitizePath(st.Path))
			WriteError(w, http.StatusInternalServerError, "playback failed", CodeInternal)
		}
	}
}
