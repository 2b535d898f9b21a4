// internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/service"
	"kol-campaign-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Maximum time to wait for the next pong from the client.
	pongWait = 60 * time.Second
	// Must be shorter than pongWait.
	pingPeriod = pongWait * 9 / 10
	// Clients only send control frames.
	maxMessageSize = 512
)

type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.TokenManager
	Log    *zap.Logger
	// AllowedOrigins lists the browser origins that may connect. Empty or "*" allows any.
	AllowedOrigins []string
}

func (h *WebSocketHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(h.AllowedOrigins) == 0 {
				return true
			}
			for _, allowed := range h.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}
}

// ServeWs authenticates with ?token= (browsers cannot set headers on websocket
// requests) and then holds the connection open for hub broadcasts.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	claims, err := h.Tokens.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	actor, err := service.ActorFromClaims(claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := ""
	if actor.ClientID != nil {
		clientID = actor.ClientID.Hex()
	}
	client := socket.NewClient(conn, actor.UserID.Hex(), actor.Role, clientID)
	h.Hub.Register(client)
	go client.WritePump(pingPeriod)

	// unregistering stops the write pump, which closes the connection
	defer h.Hub.Unregister(client)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Log.Info("websocket closed unexpectedly", zap.String("user", client.UserID), zap.Error(err))
			}
			return
		}
	}
}
