package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/deepak445566/cv/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Client is one live connection of a user.
type Client struct {
	UserID string
	Send   chan []byte
	Conn   *websocket.Conn
}

// NewClient wraps an upgraded connection.
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, sendBuffer), Conn: conn}
}

// Message is a payload addressed to every connection of a user.
type Message struct {
	UserID string
	Data   []byte
}

// Hub fans out messages to the connections of each user.
type Hub struct {
	Clients    map[string]map[*Client]bool // userID -> clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan Message
	mu         sync.RWMutex
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan Message, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			h.mu.Unlock()
			metrics.WebsocketConnections.Inc()
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.Clients[msg.UserID] {
				select {
				case client.Send <- msg.Data:
				default:
					h.logger.Warn("dropping slow websocket client", zap.String("user_id", client.UserID))
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for _, clients := range h.Clients {
				for client := range clients {
					h.dropLocked(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop terminates Run and closes every client.
func (h *Hub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// PublishToUser marshals payload and queues it for the user's connections.
// Messages are dropped when the hub is stopped or its queue is full.
func (h *Hub) PublishToUser(userID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal websocket payload", zap.Error(err))
		return
	}
	select {
	case h.Broadcast <- Message{UserID: userID, Data: data}:
	case <-h.done:
	default:
		h.logger.Warn("websocket broadcast queue full", zap.String("user_id", userID))
	}
}

// Connections reports the number of live connections of a user.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID])
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *Client) {
	clients, ok := h.Clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.Clients, client.UserID)
	}
	close(client.Send)
	metrics.WebsocketConnections.Dec()
}

// Serve registers the client and pumps messages until the connection closes.
// The read side only handles control frames.
func (h *Hub) Serve(client *Client) {
	select {
	case h.Register <- client:
	case <-h.done:
		client.Conn.Close()
		return
	}
	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.Unregister <- client:
		case <-h.done:
		}
		client.Conn.Close()
	}()
	client.Conn.SetReadLimit(512)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.String("user_id", client.UserID), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
