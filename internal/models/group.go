package models

import (
	"time"

	"github.com/lib/pq"
)

// Group is a named multi-user conversation with a single admin.
type Group struct {
	ID             string         `db:"id" json:"group_id"`
	Name           string         `db:"name" json:"name"`
	ConversationID string         `db:"conversation_id" json:"conversation_id"`
	AdminID        string         `db:"admin_id" json:"admin_id"`
	Members        pq.StringArray `db:"members" json:"members"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// IsMember reports whether userID belongs to the group.
func (g Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Without returns the member list minus userID, preserving order.
func (g Group) Without(userID string) []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	return out
}
