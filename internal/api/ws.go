package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"citabot/internal/models"
)

const (
	wsWriteWait      = 10 * time.Second
	wsSendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Event stream is broadcast-only operational telemetry; any origin may
	// subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans domain events out to connected WebSocket subscribers. Slow
// subscribers are dropped rather than allowed to stall the broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]bool)}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends the event to every connected subscriber.
func (h *Hub) Broadcast(ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Hub.Broadcast: failed to marshal event", "error", err, "type", ev.Type)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("Hub.Broadcast: dropping slow subscriber")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// serveWs upgrades the connection and registers it with the hub.
func (h *Hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Hub.serveWs: upgrade failed", "error", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}
	h.add(c)
	slog.Debug("Hub.serveWs: subscriber connected", "remote", r.RemoteAddr)

	go c.writePump(h)
	go c.readPump(h)
}

// writePump forwards hub broadcasts to the connection until the send channel
// closes.
func (c *wsClient) writePump(h *Hub) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("wsClient.writePump: write failed, closing", "error", err)
			h.remove(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump drains inbound frames so pings and close frames are handled; the
// stream itself is one-way.
func (c *wsClient) readPump(h *Hub) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
