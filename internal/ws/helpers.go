package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/observability"
)

const (
	wsKind       = "messenger"
	wsRoutingKey = "ws_events.connections"
)

func newConnID() string {
	return uuid.NewString()
}

// publishLifecycle mirrors a connection lifecycle event on the broker and counts it.
func publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(wsKind, event)
	duration := int64(0)
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"kind":        wsKind,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": info.identity(),
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
