package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

// Coordinator is the delivery side the hub drives.
type Coordinator interface {
	UserConnected(ctx context.Context, conn presence.Conn)
	UserDisconnected(ctx context.Context, connID string)
	Join(conn presence.Conn, channel string)
	Leave(connID, channel string)
	Broadcast(ctx context.Context, channel string, event models.Event, exceptConnID string)
}

type ConversationAuthorizer interface {
	Authorize(ctx context.Context, conversationID, userID string) (models.Conversation, error)
}

type GroupAuthorizer interface {
	Get(ctx context.Context, groupID, userID string) (models.Group, error)
}

type ReadMarker interface {
	MarkConversationRead(ctx context.Context, conversationID, userID, originConnID string) (int64, error)
}

// inbound is a client-to-server frame.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type target struct {
	ConversationID string `json:"conversation_id"`
	GroupID        string `json:"group_id"`
	IsTyping       bool   `json:"is_typing"`
}

type errorPayload struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Hub routes inbound websocket events. Joining a channel requires membership in the
// conversation or group behind it.
type Hub struct {
	coordinator   Coordinator
	conversations ConversationAuthorizer
	groups        GroupAuthorizer
	reads         ReadMarker
}

// NewHub creates a hub over the delivery coordinator and the services that authorize joins.
func NewHub(coordinator Coordinator, conversations ConversationAuthorizer, groups GroupAuthorizer, reads ReadMarker) *Hub {
	return &Hub{coordinator: coordinator, conversations: conversations, groups: groups, reads: reads}
}

// Connect registers a freshly authenticated connection.
func (h *Hub) Connect(ctx context.Context, client *Client) {
	h.coordinator.UserConnected(ctx, client)
}

// Disconnect drops the connection from presence and all channels.
func (h *Hub) Disconnect(ctx context.Context, client *Client) {
	h.coordinator.UserDisconnected(ctx, client.ID())
}

// Dispatch handles one inbound event. Failures are reported to the sending connection only.
func (h *Hub) Dispatch(ctx context.Context, client *Client, in inbound) {
	var t target
	if len(in.Data) > 0 {
		if err := json.Unmarshal(in.Data, &t); err != nil {
			h.reject(client, in.Event, apperr.Validation("malformed event data"))
			return
		}
	}

	var err error
	switch in.Event {
	case models.ClientUserConnected:
		// Registration happens at handshake; a repeat announcement is idempotent.
		h.coordinator.UserConnected(ctx, client)
	case models.ClientJoinConversation:
		err = h.joinConversation(ctx, client, t.ConversationID)
	case models.ClientLeaveConversation:
		err = requireID(t.ConversationID, "conversation_id")
		if err == nil {
			h.coordinator.Leave(client.ID(), presence.ConversationChannel(t.ConversationID))
		}
	case models.ClientJoinGroup:
		err = h.joinGroup(ctx, client, t.GroupID)
	case models.ClientLeaveGroup:
		err = requireID(t.GroupID, "group_id")
		if err == nil {
			h.coordinator.Leave(client.ID(), presence.GroupChannel(t.GroupID))
		}
	case models.ClientTyping:
		err = h.typing(ctx, client, t)
	case models.ClientReadMessages:
		err = requireID(t.ConversationID, "conversation_id")
		if err == nil {
			_, err = h.reads.MarkConversationRead(ctx, t.ConversationID, client.UserID(), client.ID())
		}
	default:
		err = apperr.Validation("unknown event " + in.Event)
	}
	if err != nil {
		h.reject(client, in.Event, err)
	}
}

func (h *Hub) joinConversation(ctx context.Context, client *Client, conversationID string) error {
	if err := requireID(conversationID, "conversation_id"); err != nil {
		return err
	}
	if _, err := h.conversations.Authorize(ctx, conversationID, client.UserID()); err != nil {
		return err
	}
	h.coordinator.Join(client, presence.ConversationChannel(conversationID))
	return nil
}

func (h *Hub) joinGroup(ctx context.Context, client *Client, groupID string) error {
	if err := requireID(groupID, "group_id"); err != nil {
		return err
	}
	if _, err := h.groups.Get(ctx, groupID, client.UserID()); err != nil {
		return err
	}
	h.coordinator.Join(client, presence.GroupChannel(groupID))
	return nil
}

// typing relays to the conversation or group channel, never back to the typist's connection.
func (h *Hub) typing(ctx context.Context, client *Client, t target) error {
	var channel string
	switch {
	case t.GroupID != "":
		group, err := h.groups.Get(ctx, t.GroupID, client.UserID())
		if err != nil {
			return err
		}
		channel = presence.GroupChannel(group.ID)
		if t.ConversationID == "" {
			t.ConversationID = group.ConversationID
		}
	case t.ConversationID != "":
		if _, err := h.conversations.Authorize(ctx, t.ConversationID, client.UserID()); err != nil {
			return err
		}
		channel = presence.ConversationChannel(t.ConversationID)
	default:
		return apperr.Validation("conversation_id or group_id is required")
	}
	h.coordinator.Broadcast(ctx, channel, models.NewEvent(models.EventTyping, models.TypingNotice{
		ConversationID: t.ConversationID,
		UserID:         client.UserID(),
		IsTyping:       t.IsTyping,
	}), client.ID())
	return nil
}

func (h *Hub) reject(client *Client, event string, err error) {
	log.Debug().Err(err).Str("conn_id", client.ID()).Str("event", event).Msg("ws event rejected")
	_ = client.Send(models.NewEvent(models.EventError, errorPayload{
		Event: event,
		Error: apperr.PublicMessage(err),
		Code:  string(apperr.CodeOf(err)),
	}))
}

func requireID(id, field string) error {
	if id == "" {
		return apperr.Validation(field + " is required")
	}
	return nil
}
