// Package websocket pushes conversion progress to connected browsers.
//
// The hub follows the register/unregister/broadcast loop pattern: one
// goroutine owns the client set, clients each get a buffered send
// queue, and a client too slow to drain its queue is dropped rather
// than allowed to stall the broadcast.
package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Event types pushed to clients
const (
	TypeConnection = "connection"
	TypeProgress   = "progress"
	TypeComplete   = "complete"
	TypeError      = "error"
)

// Event is one message pushed to every connected client.
type Event struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	logger *slog.Logger

	mu      sync.Mutex
	running bool
	quit    chan struct{}
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's main loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop shuts the hub down and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.logger.Info("Hub shut down")
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Info("Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("remote_addr", c.remoteAddr))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.logger.Info("Client unregistered",
					slog.Int("total_clients", len(h.clients)))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client, drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast pushes one event to every connected client. It never
// blocks; if the broadcast queue is full the event is dropped.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Broadcast queue full, event dropped",
			slog.String("type", ev.Type))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Progress is read-only telemetry; any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket and registers the
// client with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, 32),
		remoteAddr: r.RemoteAddr,
	}
	// The run loop is gone after Stop; refuse the client instead of
	// blocking the handler on a channel nothing drains.
	select {
	case h.register <- c:
	case <-h.quit:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()

	h.Broadcast(Event{Type: TypeConnection, Data: map[string]string{"status": "connected"}})
}
