package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-clipper/internal/export"
)

func dialProgress(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/export/progress" + query
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *ProgressHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readProgress(t *testing.T, conn *websocket.Conn) export.Progress {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var p export.Progress
	if err := conn.ReadJSON(&p); err != nil {
		t.Fatalf("read: %v", err)
	}
	return p
}

func TestProgressHub_Broadcast(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	hub := env.cfg.Hub

	a := dialProgress(t, srv, "?token="+testToken)
	b := dialProgress(t, srv, "?token="+testToken)
	waitForClients(t, hub, 2)

	hub.OnProgress(export.Progress{BatchID: "b1", Phase: export.PhaseSegmentStarted, CurrentIndex: 1, Total: 2, CurrentSegmentName: "intro", Percentage: 50})

	for _, conn := range []*websocket.Conn{a, b} {
		p := readProgress(t, conn)
		if p.BatchID != "b1" || p.CurrentIndex != 1 || p.CurrentSegmentName != "intro" || p.Percentage != 50 {
			t.Errorf("progress = %+v", p)
		}
	}

	a.Close()
	waitForClients(t, hub, 1)
}

func TestProgressHub_LateJoinerGetsLastEvent(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	hub := env.cfg.Hub

	hub.OnProgress(export.Progress{BatchID: "b1", Phase: export.PhaseSegmentStarted, CurrentIndex: 2, Total: 3, Percentage: 67})

	conn := dialProgress(t, srv, "?token="+testToken)
	if p := readProgress(t, conn); p.CurrentIndex != 2 || p.Percentage != 67 {
		t.Errorf("replayed progress = %+v", p)
	}

	hub.OnProgress(export.Progress{BatchID: "b1", Phase: export.PhaseBatchDone, CurrentIndex: 3, Total: 3, Percentage: 100})
	if p := readProgress(t, conn); p.Phase != export.PhaseBatchDone {
		t.Errorf("progress = %+v, want batch_done", p)
	}

	// A finished batch is not replayed.
	hub.mu.Lock()
	last := hub.last
	hub.mu.Unlock()
	if last != nil {
		t.Errorf("last = %+v after batch_done, want nil", last)
	}
}

func TestProgressHub_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/export/progress?token=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatal("dial succeeded with a wrong token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("resp = %v, want 401", resp)
	}
}

func TestProgressHub_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/export/progress?token=" + testToken
	_, resp, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://evil.com"}})
	if err == nil {
		t.Fatal("dial succeeded from a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v, want 403", resp)
	}
}

func TestProgressHub_CloseDisconnects(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()
	hub := env.cfg.Hub

	conn := dialProgress(t, srv, "?token="+testToken)
	waitForClients(t, hub, 1)

	hub.Close()
	if n := hub.ClientCount(); n != 0 {
		t.Errorf("clients after close = %d", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected the connection to be closed")
	}
}

func TestProgressRoute_PlainHTTP(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/export/progress", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
