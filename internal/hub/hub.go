// Package hub fans session messages out to dashboard websockets and
// accepts session controls from them.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ivanzxc/go-realtime-vitals/internal/log"
)

// Envelope types.
const (
	TypeWelcome  = "welcome"
	TypeSnapshot = "snapshot"
	TypeAlert    = "alert"
	TypeSummary  = "summary"
	TypeControl  = "control"
	TypeError    = "error"
)

// Envelope wraps every websocket message.
type Envelope struct {
	Type      string          `json:"type"`
	Session   string          `json:"session,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"` // unix ms
}

// ControlFunc handles a control envelope received from a dashboard.
type ControlFunc func(session string, payload json.RawMessage) error

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 200 * time.Millisecond

// client serialises writes; gorilla allows one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub is an http.Handler that upgrades dashboard connections.
type Hub struct {
	mu    sync.Mutex
	conns map[*client]bool

	onControl ControlFunc
	sent      atomic.Int64
	logger    *slog.Logger
}

// New creates a hub. onControl may be nil when controls are not accepted.
func New(onControl ControlFunc) *Hub {
	return &Hub{
		conns:     make(map[*client]bool),
		onControl: onControl,
		logger:    log.With("component", "hub"),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Sent returns the number of envelopes broadcast so far.
func (h *Hub) Sent() int64 { return h.sent.Load() }

// Broadcast sends env to every client, dropping clients that fail.
func (h *Hub) Broadcast(env Envelope) {
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}
	b, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal envelope", "type", env.Type, "error", err)
		return
	}

	h.sent.Add(1)
	for _, c := range h.snapshot() {
		if err := c.write(b); err != nil {
			_ = c.conn.Close()
			h.remove(c)
		}
	}
}

// Publish wraps an already encoded JSON payload and broadcasts it.
func (h *Hub) Publish(kind, session string, payload []byte) {
	h.Broadcast(Envelope{Type: kind, Session: session, Payload: payload})
}

func (h *Hub) reply(c *client, env Envelope) {
	env.Timestamp = time.Now().UnixMilli()
	if b, err := json.Marshal(env); err == nil {
		_ = c.write(b)
	}
}

// ServeHTTP upgrades the request and reads control envelopes until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	c := &client{conn: conn}
	h.add(c)
	h.logger.Debug("client connected", "remote", r.RemoteAddr, "clients", h.Clients())
	defer func() {
		h.remove(c)
		conn.Close()
	}()

	h.reply(c, Envelope{Type: TypeWelcome})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.reply(c, errorEnvelope("", err))
			continue
		}
		if env.Type != TypeControl || h.onControl == nil {
			continue
		}
		if err := h.onControl(env.Session, env.Payload); err != nil {
			h.reply(c, errorEnvelope(env.Session, err))
		}
	}
}

func errorEnvelope(session string, err error) Envelope {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Envelope{Type: TypeError, Session: session, Payload: payload}
}
