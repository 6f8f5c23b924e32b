package models

import (
	"sort"
	"time"
)

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// Valid reports whether s is one of the known request statuses.
func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestRejected:
		return true
	}
	return false
}

// FriendRequest is one invitation between two users.
type FriendRequest struct {
	ID         string              `db:"id" json:"request_id"`
	SenderID   string              `db:"sender_id" json:"sender_id"`
	ReceiverID string              `db:"receiver_id" json:"receiver_id"`
	Status     FriendRequestStatus `db:"status" json:"status"`
	Message    string              `db:"message" json:"message"`
	CreatedAt  time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at" json:"updated_at"`
}

// Friendship links two users. UserA < UserB always holds.
type Friendship struct {
	ID                string    `db:"id" json:"friendship_id"`
	UserA             string    `db:"user_a" json:"user_a"`
	UserB             string    `db:"user_b" json:"user_b"`
	LastInteractionAt time.Time `db:"last_interaction_at" json:"last_interaction_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Other returns the participant that is not userID.
func (f Friendship) Other(userID string) string {
	if f.UserA == userID {
		return f.UserB
	}
	return f.UserA
}

// CanonicalPair orders two user ids so that the smaller comes first.
func CanonicalPair(a, b string) (string, string) {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0], pair[1]
}

type FriendshipStatus string

const (
	StatusFriends         FriendshipStatus = "friends"
	StatusRequestSent     FriendshipStatus = "request_sent"
	StatusRequestReceived FriendshipStatus = "request_received"
	StatusNotFriends      FriendshipStatus = "not_friends"
)

// Friend is a friendship as seen by one of its participants.
type Friend struct {
	User
	FriendshipID      string    `json:"friendship_id"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}
