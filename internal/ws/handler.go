package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"messenger-service/internal/apperr"
	"messenger-service/internal/auth"
	"messenger-service/internal/observability"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Authenticate(token string) (string, error)
}

// Handler upgrades authenticated requests to websocket connections.
type Handler struct {
	hub      *Hub
	verifier TokenVerifier
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, verifier TokenVerifier) *Handler {
	return &Handler{hub: hub, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handle authenticates the caller, upgrades the connection and runs its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	userID, err := h.verifier.Authenticate(token)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err), "code": apperr.CodeOf(err)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	// The request context ends with this handler; the connection outlives it.
	connCtx := trace.ContextWithSpanContext(observability.WithRequestID(context.Background(), requestID), span.SpanContext())

	client := newClient(conn, info)
	observability.IncWSActive(wsKind)
	publishLifecycle(connCtx, info, "ws_connect", "")
	log.Info().Str("conn_id", info.ConnID).Str("user_id", userID).Msg("websocket connected")

	go client.writePump()
	h.hub.Connect(connCtx, client)

	go func() {
		err := client.readPump(func(in inbound) { h.hub.Dispatch(connCtx, client, in) })
		h.hub.Disconnect(connCtx, client)
		client.Close()
		observability.DecWSActive(wsKind)

		reason := err.Error()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishLifecycle(connCtx, info, "ws_error", reason)
		}
		publishLifecycle(connCtx, info, "ws_disconnect", reason)
		log.Info().Str("conn_id", info.ConnID).Str("user_id", userID).Str("reason", reason).Msg("websocket disconnected")
	}()
}
