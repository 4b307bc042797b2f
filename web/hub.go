// Package web is the operator control surface: a JSON API over the session
// manager and store, plus a websocket feed of live events for the dashboard.
package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AlexandroAurellino/live-shop-bot/logging"
	"github.com/AlexandroAurellino/live-shop-bot/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from the same box; origin checks add nothing
	// here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// feedMessage is the envelope pushed to dashboard clients.
type feedMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// logPayload is one human-readable event line.
type logPayload struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	User    string    `json:"user,omitempty"`
	Time    time.Time `json:"time"`
}

// Hub fans session events out to connected dashboard clients. It implements
// the session's event sink; Log and Stats never block, so a slow browser
// cannot stall the controller loop.
type Hub struct {
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Log pushes an event line to every connected client.
func (h *Hub) Log(kind, message, user string) {
	h.broadcast(feedMessage{
		Type: "log",
		Payload: logPayload{
			Kind:    kind,
			Message: message,
			User:    user,
			Time:    time.Now(),
		},
	})
}

// Stats pushes a state snapshot to every connected client.
func (h *Hub) Stats(st types.LiveStats) {
	h.broadcast(feedMessage{Type: "stats", Payload: st})
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg feedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("error marshaling feed message", "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// The client's buffer is full; it is too slow to keep up. Drop it
			// rather than block the loop.
			h.logger.Warn("dropping slow dashboard client")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeWS upgrades the request to a websocket and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err.Error())
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("dashboard client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// readPump drains and discards client messages; the feed is one-way. Its
// real job is noticing disconnects and answering pings.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
