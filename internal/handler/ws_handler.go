package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/deepak445566/cv/internal/ws"
)

// maxConnectionsPerUser bounds the open order update sockets of a single user.
const maxConnectionsPerUser = 5

// OrderUpdatesHandler streams order status events of the authenticated user over a websocket.
type OrderUpdatesHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewOrderUpdatesHandler accepts upgrades from the given origins only. An empty list
// falls back to the same-origin check of the upgrader.
func NewOrderUpdatesHandler(hub *ws.Hub, allowedOrigins []string) *OrderUpdatesHandler {
	upgrader := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, origin := range allowedOrigins {
			allowed[origin] = true
		}
		upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
	return &OrderUpdatesHandler{hub: hub, upgrader: upgrader}
}

// Serve handles GET /ws/orders.
func (h *OrderUpdatesHandler) Serve(c echo.Context) error {
	userID, ok, err := currentUser(c)
	if !ok {
		return err
	}
	if h.hub.Connections(userID.String()) >= maxConnectionsPerUser {
		return Error(c, http.StatusTooManyRequests, "too many open connections")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		return nil
	}
	h.hub.Serve(ws.NewClient(userID.String(), conn))
	return nil
}
