package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dinehub/printrouter/internal/ws"
)

type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(hub *ws.Hub, log *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards and the POS front-end run on other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Handle upgrades the connection and registers it with the hub. The read loop
// only drains control frames; clients are broadcast-only consumers.
func (h *WSHandler) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.hub.AddClient(conn)

	go func() {
		defer h.hub.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
