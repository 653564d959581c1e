package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stratopt-go/internal/perf"
)

// StreamMessage is pushed to websocket subscribers.
type StreamMessage struct {
	Type     string `json:"type"`
	Strategy string `json:"strategy,omitempty"`
	Data     any    `json:"data,omitempty"`
	Time     int64  `json:"time"`
}

const (
	msgTypeStatus     = "status"
	msgTypeSuggestion = "suggestion"

	writeWait = 5 * time.Second
)

// Hub fans suggestion updates out to websocket clients.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	broadcast  chan StreamMessage
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewHub creates a hub; call Run to start delivering messages.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan StreamMessage, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		log:        log.With().Str("component", "stream").Logger(),
	}
}

// Run delivers messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteJSON(msg); err != nil {
					h.log.Debug().Err(err).Msg("stream write failed")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues a suggestion update; it drops the message when the queue is full.
func (h *Hub) Publish(strategy string, set *perf.SuggestionSet) {
	msg := StreamMessage{Type: msgTypeSuggestion, Strategy: strategy, Data: set, Time: time.Now().Unix()}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("strategy", strategy).Msg("stream backlog full, update dropped")
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the connection registered until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	hello := StreamMessage{Type: msgTypeStatus, Data: map[string]string{"status": "connected"}, Time: time.Now().Unix()}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return
	}

	select {
	case h.register <- conn:
	case <-time.After(writeWait):
		conn.Close()
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- conn:
	case <-time.After(writeWait):
		conn.Close()
	}
}
