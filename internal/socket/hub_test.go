package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kol-campaign-api-server/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// serve registers every incoming connection with the identity taken from the query string.
func serve(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		q := r.URL.Query()
		c := NewClient(conn, q.Get("user"), models.Role(q.Get("role")), q.Get("client"))
		hub.Register(c)
		go c.WritePump(time.Minute)
		defer func() {
			hub.Unregister(c)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastScopesByTenant(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := serve(t, hub)

	admin := dial(t, srv, "user=a&role=admin")
	acme := dial(t, srv, "user=b&role=client&client=acme")
	other := dial(t, srv, "user=c&role=client&client=other")
	waitForClients(t, hub, 3)

	hub.Broadcast(models.Event{Type: models.EventSurveyCompleted, ClientID: "acme", CampaignID: "c1"})

	for _, conn := range []*websocket.Conn{admin, acme} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev models.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, models.EventSurveyCompleted, ev.Type)
		assert.Equal(t, "c1", ev.CampaignID)
		assert.False(t, ev.At.IsZero())
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "a different tenant must not receive the event")
}

func TestUnregisterOnDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := serve(t, hub)

	conn := dial(t, srv, "user=a&role=superadmin")
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestReceives(t *testing.T) {
	ev := models.Event{ClientID: "acme"}
	assert.True(t, (&Client{Role: models.RoleSuperAdmin}).receives(ev))
	assert.True(t, (&Client{Role: models.RoleClient, ClientID: "acme"}).receives(ev))
	assert.False(t, (&Client{Role: models.RoleClient, ClientID: "globex"}).receives(ev))
	assert.False(t, (&Client{Role: models.RoleClient}).receives(models.Event{}))
}

func TestBroadcastDoesNotWaitForStalledClient(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := serve(t, hub)

	// never read from, so the server's writes back up once the socket buffers fill
	dial(t, srv, "user=a&role=admin")
	waitForClients(t, hub, 1)

	ev := models.Event{Type: models.EventSurveyCompleted, CampaignID: strings.Repeat("x", 64<<10)}
	var worst time.Duration
	for i := 0; i < 2000 && hub.Count() > 0; i++ {
		start := time.Now()
		hub.Broadcast(ev)
		if d := time.Since(start); d > worst {
			worst = d
		}
	}

	assert.Zero(t, hub.Count(), "the stalled client is dropped once its queue is full")
	assert.Less(t, worst, time.Second)
}

func TestCloseAllSendsCloseFrame(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := serve(t, hub)

	conn := dial(t, srv, "user=a&role=admin")
	waitForClients(t, hub, 1)

	hub.CloseAll()
	assert.Zero(t, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
