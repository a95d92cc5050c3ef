package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/pointer"
)

const (
	writeWait    = 2 * time.Second
	clientBuffer = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local connections only, the server binds to loopback
	},
}

// intentMessage is the wire form of one injected intent.
type intentMessage struct {
	Kind pointer.Kind `json:"kind"`
	X    int          `json:"x"`
	Y    int          `json:"y"`
	Time int64        `json:"timestamp"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// IntentHub broadcasts injected pointer intents to websocket clients.
// Slow clients drop messages rather than stall the frame loop.
type IntentHub struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewIntentHub creates an empty hub.
func NewIntentHub(logger *slog.Logger) *IntentHub {
	return &IntentHub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// Publish sends in to every client. It never blocks.
func (h *IntentHub) Publish(in pointer.Intent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(intentMessage{
		Kind: in.Kind,
		X:    in.Position.X,
		Y:    in.Position.Y,
		Time: time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (h *IntentHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *IntentHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *IntentHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Close disconnects every client.
func (h *IntentHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
