package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestLogHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/log", LogRequest{Level: "info", Message: "player ready"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(env.repo.diags) != 0 {
		t.Errorf("info lines must not be stored, got %d", len(env.repo.diags))
	}

	rr = env.do(t, http.MethodPost, "/log", LogRequest{Level: "WARN", Message: "seek failed", Component: "timeline"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(env.repo.diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(env.repo.diags))
	}
	d := env.repo.diags[0]
	if d.Level != "warn" || d.Message != "seek failed" || d.Source != "timeline" {
		t.Errorf("diagnostic = %+v", d)
	}

	rr = env.do(t, http.MethodPost, "/log", LogRequest{Level: "error", Message: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestLogErrorHandler(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/log/error", LogErrorRequest{
		Message:        "TypeError: x is undefined",
		Stack:          "at render (app.js:10)",
		ComponentStack: "\n    in Timeline",
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if len(env.repo.diags) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(env.repo.diags))
	}
	d := env.repo.diags[0]
	if d.Level != "error" || d.Source != "ui" {
		t.Errorf("diagnostic = %+v", d)
	}
	if !strings.Contains(d.Detail, "app.js:10") || !strings.Contains(d.Detail, "in Timeline") {
		t.Errorf("detail = %q, want both stacks", d.Detail)
	}
}

func TestDiagnosticsHandler(t *testing.T) {
	env := newTestEnv(t)
	for _, msg := range []string{"one", "two", "three"} {
		env.do(t, http.MethodPost, "/log", LogRequest{Level: "error", Message: msg})
	}

	rr := env.do(t, http.MethodGet, "/diagnostics?limit=2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp DiagnosticsResponse
	decodeInto(t, rr, &resp)
	if len(resp.Diagnostics) != 2 || resp.Diagnostics[0].Message != "three" {
		t.Fatalf("diagnostics = %+v", resp.Diagnostics)
	}

	for _, bad := range []string{"abc", "0", "-3"} {
		rr = env.do(t, http.MethodGet, "/diagnostics?limit="+bad, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want %d", bad, rr.Code, http.StatusBadRequest)
		}
	}
}
