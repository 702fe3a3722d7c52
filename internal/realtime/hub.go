// Package realtime pushes engine notifications to the user's open websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/metrics"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/middleware"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	eventBuffer  = 1024
	clientBuffer = 64
)

type delivery struct {
	uid     string
	payload []byte
}

// Hub tracks sockets per user. All maps are owned by the Run goroutine.
type Hub struct {
	clients    map[string]map[*Client]bool
	events     chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
}

type Client struct {
	hub  *Hub
	uid  string
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		events:     make(chan delivery, eventBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

// Run dispatches events until ctx is done, then closes every socket.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return

		case c := <-h.register:
			set, ok := h.clients[c.uid]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.uid] = set
			}
			set[c] = true
			logger.Debug("[realtime] %s connected (%d sockets)", c.uid, len(set))

		case c := <-h.unregister:
			h.drop(c)

		case d := <-h.events:
			for c := range h.clients[d.uid] {
				select {
				case c.send <- d.payload:
				default:
					// Slow reader; let it reconnect.
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.uid]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.uid)
	}
	logger.Debug("[realtime] %s disconnected", c.uid)
}

// Notify implements gamification.Notifier. It never blocks: when the queue
// is full the event is dropped and counted.
func (h *Hub) Notify(_ context.Context, n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Warn("[realtime] encode %s notification: %v", n.Type, err)
		return
	}
	select {
	case h.events <- delivery{uid: n.UID, payload: payload}:
	default:
		metrics.SecondaryFailures.WithLabelValues("notification").Inc()
		logger.Warn("[realtime] queue full, dropped %s for %s", n.Type, n.UID)
	}
}

// ServeWS upgrades an authenticated request and subscribes the socket to the
// acting user's notifications.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFromContext(r.Context())
	if !ok || uid == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("[realtime] upgrade failed: %v", err)
		return
	}

	c := &Client{hub: h, uid: uid, conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("[realtime] read error for %s: %v", c.uid, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("[realtime] write error for %s: %v", c.uid, err)
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
