package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/delivery"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

type wsServer struct {
	url           string
	authenticator *auth.Authenticator
}

func startServer(t *testing.T) *wsServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authenticator := auth.NewAuthenticator("secret")
	_, _, authz := newTestHub()
	coordinator := delivery.NewCoordinator(presence.NewRegistry(), presence.NewChannels())
	hub := NewHub(coordinator, authz, authz, authz)

	router := gin.New()
	router.GET("/ws", NewHandler(hub, authenticator).Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &wsServer{url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", authenticator: authenticator}
}

func (s *wsServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := s.authenticator.Sign(userID, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial(s.url+"?token="+token, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&raw))
	var data any
	if len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, &data))
	}
	return models.Event{Name: raw.Event, Data: data}
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	srv := startServer(t)
	_, resp, err := websocket.DefaultDialer.Dial(srv.url+"?token=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPresenceOverWebsocket(t *testing.T) {
	srv := startServer(t)

	alice := srv.dial(t, "u1")
	snapshot := readEvent(t, alice)
	assert.Equal(t, models.EventOnlineUsers, snapshot.Name)
	assert.Equal(t, []any{"u1"}, snapshot.Data)

	bob := srv.dial(t, "u2")
	assert.Equal(t, models.EventOnlineUsers, readEvent(t, bob).Name)

	online := readEvent(t, alice)
	assert.Equal(t, models.EventUserOnline, online.Name)
	assert.Equal(t, "u2", online.Data.(map[string]any)["user_id"])

	require.NoError(t, bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	offline := readEvent(t, alice)
	assert.Equal(t, models.EventUserOffline, offline.Name)
	assert.Equal(t, "u2", offline.Data.(map[string]any)["user_id"])
}

func TestTypingReachesJoinedPeerOnly(t *testing.T) {
	srv := startServer(t)

	alice := srv.dial(t, "u1")
	readEvent(t, alice)
	bob := srv.dial(t, "u2")
	readEvent(t, bob)
	readEvent(t, alice) // user_online for bob

	join := map[string]any{"event": models.ClientJoinConversation, "data": map[string]string{"conversation_id": "c1"}}
	require.NoError(t, bob.WriteJSON(join))
	require.NoError(t, alice.WriteJSON(join))

	// Give both joins time to land before typing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": models.ClientTyping,
		"data":  map[string]any{"conversation_id": "c1", "is_typing": true},
	}))

	typing := readEvent(t, bob)
	assert.Equal(t, models.EventTyping, typing.Name)
	assert.Equal(t, "u1", typing.Data.(map[string]any)["user_id"])
	assert.Equal(t, true, typing.Data.(map[string]any)["is_typing"])
}
