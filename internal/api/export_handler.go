package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/registry"
)

// lastOutputDir is "" when nothing was stored or the lookup failed.
func lastOutputDir(ctx context.Context, cfg ServerConfig) string {
	if cfg.Repository == nil {
		return ""
	}
	dir, err := cfg.Repository.GetConfig(ctx, registry.KeyLastOutputDir)
	if err != nil {
		cfg.Logger.Warn("failed to read last output dir", "error", err)
		return ""
	}
	return dir
}

func rememberOutputDir(ctx context.Context, cfg ServerConfig, dir string) {
	if cfg.Repository == nil || dir == "" {
		return
	}
	if err := cfg.Repository.SetConfig(ctx, registry.KeyLastOutputDir, dir); err != nil {
		cfg.Logger.Warn("failed to store last output dir", "error", err)
	}
}

// exportSettings fills the fields the request left blank from the
// configured defaults and the last used output directory.
func exportSettings(ctx context.Context, cfg ServerConfig, req *export.Settings) export.Settings {
	last := lastOutputDir(ctx, cfg)
	s := export.Settings{OutputDir: last, Format: export.FormatMP4, Quality: export.QualityHigh}
	if cfg.DefaultExport != nil {
		s = cfg.DefaultExport(last)
	}
	if req == nil {
		return s
	}
	if req.OutputDir != "" {
		s.OutputDir = req.OutputDir
	}
	if req.Format != "" {
		s.Format = req.Format
	}
	if req.Quality != "" {
		s.Quality = req.Quality
	}
	return s
}

func progressSink(cfg ServerConfig) export.ProgressSink {
	var sinks export.MultiSink
	if cfg.Hub != nil {
		sinks = append(sinks, cfg.Hub)
	}
	if cfg.ProgressSink != nil {
		sinks = append(sinks, cfg.ProgressSink)
	}
	return sinks
}

// exportHandler runs a whole batch and answers with its result. The batch
// keeps running if the client goes away; progress is on /export/progress.
func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Orchestrator == nil {
			WriteError(w, http.StatusServiceUnavailable, "ffmpeg is not available", CodeUnavailable)
			return
		}

		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}

		videoPath := cfg.Session.Current().Path
		if req.URL != "" {
			p, err := cfg.URLStyle.ToPath(req.URL)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
				return
			}
			videoPath = p
		}
		if videoPath == "" {
			WriteError(w, http.StatusUnprocessableEntity, "no video loaded", CodePrecondition)
			return
		}

		segs := req.Segments
		if segs == nil {
			segs = cfg.Store.Segments()
		}

		settings := exportSettings(r.Context(), cfg, req.Settings)
		ctx := context.WithoutCancel(r.Context())

		result, err := cfg.Orchestrator.ExportBatch(ctx, export.Request{
			VideoPath: videoPath,
			Segments:  segs,
			Settings:  settings,
		}, progressSink(cfg))
		if err != nil {
			switch {
			case errors.Is(err, export.ErrBatchInProgress):
				WriteError(w, http.StatusConflict, err.Error(), CodeExportInProgress)
			case errors.Is(err, media.ErrNotFound):
				WriteError(w, http.StatusNotFound, "video file not found", CodeNotFound)
			case errors.Is(err, export.ErrPrecondition):
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), CodePrecondition)
			default:
				cfg.Logger.Error("export failed", "path", logging.SanitizePath(videoPath), "error", err)
				WriteError(w, http.StatusInternalServerError, "export failed", CodeInternal)
			}
			return
		}

		rememberOutputDir(ctx, cfg, settings.OutputDir)
		WriteJSON(w, http.StatusOK, result)
	}
}

func selectDirHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Picker == nil {
			WriteError(w, http.StatusServiceUnavailable, "directory picker unavailable", CodePickerUnavailable)
			return
		}

		dir, err := cfg.Picker.PickDirectory(r.Context(), lastOutputDir(r.Context(), cfg))
		if err != nil {
			cfg.Logger.Error("directory picker failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "directory picker failed", CodeInternal)
			return
		}
		if dir == "" {
			WriteJSON(w, http.StatusOK, SelectDirResponse{Cancelled: true})
			return
		}

		rememberOutputDir(r.Context(), cfg, dir)
		WriteJSON(w, http.StatusOK, SelectDirResponse{Path: dir})
	}
}

// exportEDLHandler writes an edit decision list of the stored segments
// instead of cutting files.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
			return
		}

		st := cfg.Session.Current()
		if !st.Loaded {
			WriteError(w, http.StatusUnprocessableEntity, "no video loaded", CodePrecondition)
			return
		}

		dir := req.OutputDir
		if dir == "" {
			dir = lastOutputDir(r.Context(), cfg)
		}
		segs := cfg.Store.Segments()
		path, err := export.WriteEDL(dir, req.Title, st.Path, segs, req.FrameRate)
		if err != nil {
			if errors.Is(err, export.ErrPrecondition) {
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), CodePrecondition)
				return
			}
			cfg.Logger.Error("edl export failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "edl export failed", CodeInternal)
			return
		}

		rememberOutputDir(r.Context(), cfg, dir)
		WriteJSON(w, http.StatusCreated, EDLResponse{OutputPath: path, EventCount: len(segs)})
	}
}
