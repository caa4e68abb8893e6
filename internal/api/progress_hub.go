package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/heimdex/heimdex-clipper/internal/export"
	"github.com/heimdex/heimdex-clipper/internal/logging"
	"github.com/heimdex/heimdex-clipper/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// ProgressHub pushes export progress to every connected WebSocket client as
// JSON text frames. A client that cannot keep up is disconnected rather than
// slowing the export down.
type ProgressHub struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*progressClient]struct{}
	last    *export.Progress // latest event of the running batch
	closed  bool
}

type progressClient struct {
	hub  *ProgressHub
	conn *websocket.Conn
	send chan []byte
}

func NewProgressHub(m *metrics.Metrics, logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &ProgressHub{
		metrics: m,
		logger:  logging.WithComponent(logger, "progress_hub"),
		clients: make(map[*progressClient]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || isAllowedOrigin(origin)
		},
	}
	return h
}

// OnProgress implements export.ProgressSink.
func (h *ProgressHub) OnProgress(p export.Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		h.logger.Error("failed to marshal progress", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if p.Phase == export.PhaseBatchDone {
		h.last = nil
	} else {
		last := p
		h.last = &last
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("progress client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

// ServeWS upgrades the request and registers the client. A client joining
// mid-batch first receives the latest event.
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket connection", "error", err)
		return
	}

	c := &progressClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		if data, err := json.Marshal(*h.last); err == nil {
			c.send <- data
		}
	}
	n := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetProgressClients(n)
	h.logger.Debug("progress client connected", "clients", n)

	go c.writePump()
	go c.readPump()
}

// ClientCount is the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	h.metrics.SetProgressClients(0)
}

func (h *ProgressHub) remove(c *progressClient) {
	h.mu.Lock()
	h.removeLocked(c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetProgressClients(n)
}

// removeLocked closes c.send, which makes the write pump close the socket.
func (h *ProgressHub) removeLocked(c *progressClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// readPump only services control frames; clients have nothing to say.
func (c *progressClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("progress client read error", "error", err)
			}
			return
		}
	}
}

func (c *progressClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
