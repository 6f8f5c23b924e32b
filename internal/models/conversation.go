package models

import (
	"time"

	"github.com/lib/pq"
)

type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
)

// Conversation owns an ordered message log. Direct conversations carry a DirectKey built from the
// sorted participant pair; the storage layer keeps it unique.
type Conversation struct {
	ID            string           `db:"id" json:"conversation_id"`
	Kind          ConversationKind `db:"kind" json:"kind"`
	Participants  pq.StringArray   `db:"participants" json:"participants"`
	DirectKey     *string          `db:"direct_key" json:"-"`
	LastMessageID *string          `db:"last_message_id" json:"last_message_id,omitempty"`
	LastMessageAt time.Time        `db:"last_message_at" json:"last_message_at"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// DirectKey returns the uniqueness key of the direct conversation between a and b.
func DirectKey(a, b string) string {
	first, second := CanonicalPair(a, b)
	return first + ":" + second
}

// HasParticipant reports whether userID takes part in the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant of a direct conversation, or "" for groups.
func (c Conversation) Peer(userID string) string {
	if c.Kind != ConversationDirect {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// ConversationSummary is a conversation list entry for one user.
type ConversationSummary struct {
	Conversation
	Peer        *User    `json:"participant,omitempty"`
	Group       *Group   `json:"group,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
