package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/heimdex/heimdex-clipper/internal/media"
	"github.com/heimdex/heimdex-clipper/internal/playback"
)

func TestLoadVideo_ByPath(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/video/load", LoadVideoRequest{Path: "/videos/my clip.mp4"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body)
	}
	var resp LoadVideoResponse
	decodeInto(t, rr, &resp)
	if resp.URL != "file:///videos/my%20clip.mp4" {
		t.Errorf("url = %q", resp.URL)
	}
	if resp.Path != "/videos/my clip.mp4" {
		t.Errorf("path = %q", resp.Path)
	}
	if env.cfg.Session.Current().Path != "" {
		t.Error("load must not change the session before /video/info")
	}
}

func TestLoadVideo_ByURL(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/video/load", LoadVideoRequest{URL: "file:///videos/a.mkv"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp LoadVideoResponse
	decodeInto(t, rr, &resp)
	if resp.Path != "/videos/a.mkv" {
		t.Errorf("path = %q, want /videos/a.mkv", resp.Path)
	}

	rr = env.do(t, http.MethodPost, "/video/load", LoadVideoRequest{URL: "https://example.com/a.mp4"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("non-file url: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLoadVideo_Picker(t *testing.T) {
	env := newTestEnv(t)

	env.picker.video = "/videos/picked.mov"
	rr := env.do(t, http.MethodPost, "/video/load", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp LoadVideoResponse
	decodeInto(t, rr, &resp)
	if resp.Path != "/videos/picked.mov" || resp.Cancelled {
		t.Errorf("resp = %+v", resp)
	}

	env.picker.video = ""
	rr = env.do(t, http.MethodPost, "/video/load", LoadVideoRequest{})
	decodeInto(t, rr, &resp)
	if rr.Code != http.StatusOK || !resp.Cancelled {
		t.Errorf("cancelled picker: status = %d, resp = %+v", rr.Code, resp)
	}

	env.picker.err = errors.New("no display")
	rr = env.do(t, http.MethodPost, "/video/load", nil)
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("picker error: status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	env.cfg.Picker = nil
	env.rebuild()
	rr = env.do(t, http.MethodPost, "/video/load", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("no picker: status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestLoadVideo_UnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/video/load", LoadVideoRequest{Path: "/docs/notes.txt"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
	if code := decodeJSONBody(t, rr)["code"]; code != CodePrecondition {
		t.Errorf("code = %v, want %s", code, CodePrecondition)
	}
}

func TestVideoInfo_LoadsSession(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/video/info", VideoInfoRequest{URL: "file:///videos/a.mp4"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body)
	}
	var resp VideoResponse
	decodeInto(t, rr, &resp)
	if !resp.Loaded || resp.Info == nil || resp.Info.Duration != 60 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.DurationText != "1:00" {
		t.Errorf("duration_text = %q, want 1:00", resp.DurationText)
	}
	if resp.BitrateText != "4.00 Mbps" {
		t.Errorf("bitrate_text = %q, want 4.00 Mbps", resp.BitrateText)
	}

	st := env.cfg.Session.Current()
	if !st.Loaded || st.Path != "/videos/a.mp4" {
		t.Errorf("session = %+v", st)
	}

	rr = env.do(t, http.MethodGet, "/video", nil)
	decodeInto(t, rr, &resp)
	if resp.URL != "file:///videos/a.mp4" {
		t.Errorf("GET /video url = %q", resp.URL)
	}
}

func TestVideoInfo_Failures(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		probeErr error
		want     int
		code     string
	}{
		{"missing url", "", nil, http.StatusBadRequest, CodeBadRequest},
		{"unsupported", "file:///videos/a.txt", nil, http.StatusUnprocessableEntity, CodePrecondition},
		{"not found", "file:///videos/a.mp4", fmt.Errorf("stat: %w", media.ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"probe", "file:///videos/a.mp4", &media.ProbeError{Path: "/videos/a.mp4", Reason: "no video stream"}, http.StatusUnprocessableEntity, CodeProbeFailed},
		{"other", "file:///videos/a.mp4", errors.New("exec failed"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.prober.err = tc.probeErr

			rr := env.do(t, http.MethodPost, "/video/info", VideoInfoRequest{URL: tc.url})
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			if code := decodeJSONBody(t, rr)["code"]; code != tc.code {
				t.Errorf("code = %v, want %s", code, tc.code)
			}
			if env.cfg.Session.Current().Loaded {
				t.Error("session must not be loaded after a failure")
			}
		})
	}
}

func TestVideoInfo_FailureUnloadsPrevious(t *testing.T) {
	env := newTestEnv(t)
	env.loadVideo(t)

	env.prober.err = &media.ProbeError{Path: "/videos/b.mp4", Reason: "no video stream"}
	rr := env.do(t, http.MethodPost, "/video/info", VideoInfoRequest{URL: "file:///videos/b.mp4"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}

	st := env.cfg.Session.Current()
	if st.Loaded || st.Info != nil {
		t.Errorf("session = %+v, want nothing loaded", st)
	}
	if st.Error == "" {
		t.Error("session error should be recorded")
	}
}

func TestUnloadVideo(t *testing.T) {
	env := newTestEnv(t)
	env.loadVideo(t)

	rr := env.do(t, http.MethodDelete, "/video", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if env.cfg.Session.Current().Loaded {
		t.Error("video still loaded")
	}
}

func TestPlayback(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/playback", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("no video: status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	env.loadVideo(t)
	rr = env.do(t, http.MethodGet, "/playback", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = env.do(t, http.MethodHead, "/playback", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("HEAD status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestPlayback_QueryToken(t *testing.T) {
	env := newTestEnv(t)
	env.loadVideo(t)

	req, _ := http.NewRequest(http.MethodGet, "/playback?token="+testToken, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	req, _ = http.NewRequest(http.MethodGet, "/playback?token="+testToken, nil)
	req.RemoteAddr = "10.0.0.5:40000"
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote client: status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestPlayback_MissingFileClearsSession(t *testing.T) {
	env := newTestEnv(t)
	path := env.loadVideo(t)
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	env.playback.err = fmt.Errorf("%w: %s", playback.ErrNotFound, filepath.Base(path))

	rr := env.do(t, http.MethodGet, "/playback", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if env.cfg.Session.Current().Loaded {
		t.Error("session should be cleared when the file is gone")
	}
}
