package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kol-campaign-api-server/config"
	"kol-campaign-api-server/internal/auth"
	"kol-campaign-api-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

func newTokens(t *testing.T) *auth.TokenManager {
	t.Helper()
	tm, err := auth.NewTokenManager(config.JWTConfig{Secret: "test-secret", Issuer: "kol-test", Expiration: "1h"})
	require.NoError(t, err)
	return tm
}

func TestAuthenticateAndAuthorize(t *testing.T) {
	tokens := newTokens(t)
	clientID := primitive.NewObjectID()
	user := &models.User{ID: primitive.NewObjectID(), Email: "viewer@acme.test", Role: models.RoleClient, ClientID: &clientID}
	token, _, err := tokens.Generate(user)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/any", Authenticate(tokens), func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user": actor.UserID.Hex(), "client": actor.ClientID.Hex()})
	})
	r.GET("/staff", Authenticate(tokens), Authorize(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"missing header", "/any", "", http.StatusUnauthorized, `{"error":"Authorization header is required"}`},
		{"wrong scheme", "/any", "Token " + token, http.StatusUnauthorized, `{"error":"Invalid token format"}`},
		{"bad token", "/any", "Bearer nope", http.StatusUnauthorized, `{"error":"Invalid or expired token"}`},
		{"valid", "/any", "Bearer " + token, http.StatusOK,
			`{"user":"` + user.ID.Hex() + `","client":"` + clientID.Hex() + `"}`},
		{"wrong role", "/staff", "Bearer " + token, http.StatusForbidden,
			`{"error":"You do not have permission to access this resource"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) {
		assert.NotEmpty(t, RequestID(c))
		c.Status(http.StatusOK)
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	id := w.Header().Get(RequestIDHeader)
	require.Len(t, id, 36)

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 65))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36, "oversized ids are replaced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])
	assert.Equal(t, "/ok", entries[0].ContextMap()["path"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusNotFound, entries[1].ContextMap()["status"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	log := zap.New(core)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), Recovery(log))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.FilterMessage("http request panicked").Len())
}
