package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dinehub/printrouter/internal/core"
)

// Hub fans job lifecycle events out to connected dashboards. Broadcasts are
// best effort: a full channel drops the event instead of blocking dispatch.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	stopCh    chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	log       *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 256),
		stopCh:    make(chan struct{}),
		log:       log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			h.closeAll()
			return
		case msg := <-h.broadcast:
			h.writeAll(msg)
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	h.log.Debug("websocket client connected", "clients", h.ClientCount())
}

func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("websocket broadcast buffer full, event dropped")
	}
}

// JobEvent implements core.Notifier.
func (h *Hub) JobEvent(event string, job *core.Job) {
	payload, err := json.Marshal(map[string]any{
		"type":      event,
		"job":       job,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.log.Error("failed to encode job event", "event", event, "error", err)
		return
	}
	h.Broadcast(payload)
}

func (h *Hub) writeAll(msg []byte) {
	h.mu.RLock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range dead {
		h.RemoveClient(conn)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}
