// internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"kol-campaign-api-server/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait = 10 * time.Second
	// sendBuffer is how many events may queue for a slow connection before it is dropped.
	sendBuffer = 32
)

// Client is one websocket connection and the identity it authenticated with.
type Client struct {
	UserID   string
	Role     models.Role
	ClientID string

	conn *websocket.Conn
	// send is closed by the hub when the client is unregistered.
	send chan []byte
}

func NewClient(conn *websocket.Conn, userID string, role models.Role, clientID string) *Client {
	return &Client{UserID: userID, Role: role, ClientID: clientID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// WritePump is the connection's only writer. It delivers queued events and
// pings every pingPeriod, and closes the connection once the hub closes send
// or a write fails.
func (c *Client) WritePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// receives reports whether the event is visible to this connection.
func (c *Client) receives(ev models.Event) bool {
	if c.Role.IsStaff() {
		return true
	}
	return ev.ClientID != "" && ev.ClientID == c.ClientID
}

// Hub fans events out to every interested connection.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{clients: make(map[*Client]struct{}), log: log}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.log.Debug("websocket client registered", zap.String("user", c.UserID), zap.String("role", string(c.Role)))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove must be called with h.mu held.
func (h *Hub) remove(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.log.Debug("websocket client unregistered", zap.String("user", c.UserID))
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues ev for staff and for users of the owning client without
// blocking. Connections whose queue is full are dropped.
func (h *Hub) Broadcast(ev models.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode websocket event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.receives(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range slow {
		h.log.Warn("websocket client too slow, dropping", zap.String("user", c.UserID))
		h.remove(c)
	}
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}
