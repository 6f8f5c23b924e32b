// Package delivery fans events out to live connections. Pushes are best effort: a failed or
// skipped push is logged and counted, never reported to the caller.
package delivery

import (
	"context"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
)

const (
	modeDirect  = "direct"
	modeChannel = "channel"
)

// Coordinator decides which connections receive each outbound event.
type Coordinator struct {
	registry presence.Registry
	channels *presence.Channels
}

// NewCoordinator wires a coordinator over the presence registry and channel table.
func NewCoordinator(registry presence.Registry, channels *presence.Channels) *Coordinator {
	return &Coordinator{registry: registry, channels: channels}
}

// NotifyUsers pushes event to every live connection of each user, whether or not they joined
// any channel. Duplicate ids are notified once.
func (c *Coordinator) NotifyUsers(ctx context.Context, userIDs []string, event models.Event) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := seen[userID]; ok || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		for _, conn := range c.registry.ConnectionsFor(userID) {
			c.push(modeDirect, conn, event)
		}
	}
	c.publish(ctx, event)
}

// Broadcast pushes event to the connections joined to channel, skipping exceptConnID.
func (c *Coordinator) Broadcast(ctx context.Context, channel string, event models.Event, exceptConnID string) {
	for _, conn := range c.channels.MembersOf(channel) {
		if conn.ID() == exceptConnID {
			continue
		}
		c.push(modeChannel, conn, event)
	}
	c.publish(ctx, event)
}

// CloseChannel unsubscribes everyone from a channel that no longer exists.
func (c *Coordinator) CloseChannel(channel string) {
	c.channels.Drop(channel)
}

// Join subscribes conn to channel.
func (c *Coordinator) Join(conn presence.Conn, channel string) {
	c.channels.Join(conn, channel)
}

// Leave unsubscribes a connection from channel.
func (c *Coordinator) Leave(connID, channel string) {
	c.channels.Leave(connID, channel)
}

// UserConnected registers conn. On a user's first connection everyone else hears user_online;
// the new connection always receives the online snapshot.
func (c *Coordinator) UserConnected(ctx context.Context, conn presence.Conn) {
	first := c.registry.Register(conn)
	online := c.registry.OnlineUsers()
	observability.SetOnlineUsers(len(online))

	if first {
		c.notifyOthers(ctx, conn.UserID(), models.NewEvent(models.EventUserOnline, models.PresenceChange{
			UserID: conn.UserID(),
			Status: "online",
		}))
	}
	c.push(modeDirect, conn, models.NewEvent(models.EventOnlineUsers, online))
}

// UserDisconnected drops the connection from presence and every channel. When it was the
// owner's last connection everyone else hears user_offline.
func (c *Coordinator) UserDisconnected(ctx context.Context, connID string) {
	c.channels.LeaveAll(connID)
	userID, last := c.registry.Unregister(connID)
	observability.SetOnlineUsers(len(c.registry.OnlineUsers()))
	if userID == "" || !last {
		return
	}
	c.notifyOthers(ctx, userID, models.NewEvent(models.EventUserOffline, models.PresenceChange{
		UserID: userID,
		Status: "offline",
	}))
}

// IsOnline reports whether the user holds a live connection.
func (c *Coordinator) IsOnline(userID string) bool {
	return c.registry.IsOnline(userID)
}

func (c *Coordinator) notifyOthers(ctx context.Context, userID string, event models.Event) {
	others := make([]string, 0)
	for _, id := range c.registry.OnlineUsers() {
		if id != userID {
			others = append(others, id)
		}
	}
	c.NotifyUsers(ctx, others, event)
}

func (c *Coordinator) push(mode string, conn presence.Conn, event models.Event) {
	if err := conn.Send(event); err != nil {
		observability.IncDelivery(mode, "failed")
		log.Warn().Err(err).
			Str("event", event.Name).
			Str("conn_id", conn.ID()).
			Str("user_id", conn.UserID()).
			Msg("push failed")
		return
	}
	observability.IncDelivery(mode, "ok")
}

// publish mirrors the event on the broker so other consumers see the same stream.
func (c *Coordinator) publish(ctx context.Context, event models.Event) {
	err := observability.PublishEvent(ctx, "chat_events."+event.Name, observability.EventEnvelope{
		EventType: "chat_events",
		EventName: event.Name,
		Payload:   event.Data,
	}, observability.HeadersFromContext(ctx))
	if err != nil {
		log.Warn().Err(err).Str("event", event.Name).Msg("event publish failed")
	}
}
