package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-clipper/internal/clips"
)

func listSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segs := cfg.Store.Segments()
		resp := SegmentsResponse{Segments: make([]SegmentResponse, len(segs))}
		for i, s := range segs {
			resp.Segments[i] = segmentToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// decodeSegment reads a SegmentRequest. It writes the error response itself
// and reports false on failure.
func decodeSegment(w http.ResponseWriter, r *http.Request) (clips.Candidate, bool) {
	var req SegmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
		return clips.Candidate{}, false
	}
	c, err := req.candidate()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
		return clips.Candidate{}, false
	}
	return c, true
}

func requireVideo(cfg ServerConfig, w http.ResponseWriter) bool {
	if cfg.Session.VideoInfo() == nil {
		WriteError(w, http.StatusUnprocessableEntity, "no video loaded", CodePrecondition)
		return false
	}
	return true
}

func mutationResponse(cfg ServerConfig, res clips.ValidationResult) SegmentMutationResponse {
	resp := SegmentMutationResponse{ValidationResult: res}
	if res.Valid {
		if seg, ok := cfg.Store.Get(res.ID); ok {
			out := segmentToResponse(seg)
			resp.Segment = &out
		}
	}
	return resp
}

// addSegmentHandler answers 201 with the new segment, or 422 with the
// validation result naming the offending field.
func addSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireVideo(cfg, w) {
			return
		}
		c, ok := decodeSegment(w, r)
		if !ok {
			return
		}

		res := cfg.Store.Add(c)
		if !res.Valid {
			WriteJSON(w, http.StatusUnprocessableEntity, mutationResponse(cfg, res))
			return
		}
		WriteJSON(w, http.StatusCreated, mutationResponse(cfg, res))
	}
}

func updateSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireVideo(cfg, w) {
			return
		}
		c, ok := decodeSegment(w, r)
		if !ok {
			return
		}

		res := cfg.Store.Update(chi.URLParam(r, "id"), c)
		switch {
		case res.NotFound:
			WriteJSON(w, http.StatusNotFound, mutationResponse(cfg, res))
		case !res.Valid:
			WriteJSON(w, http.StatusUnprocessableEntity, mutationResponse(cfg, res))
		default:
			WriteJSON(w, http.StatusOK, mutationResponse(cfg, res))
		}
	}
}

// deleteSegmentHandler answers 204 whether or not the id existed.
func deleteSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !cfg.Store.Delete(id) {
			cfg.Logger.Debug("delete of unknown segment ignored", "id", id)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Store.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

// validateSegmentHandler checks a candidate against the loaded video without
// storing it. The result is always 200; Valid tells the outcome.
func validateSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := decodeSegment(w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, clips.Validate(c, cfg.Session.VideoInfo()))
	}
}
