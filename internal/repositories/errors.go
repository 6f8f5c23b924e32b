package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrFriendshipNotFound    = errors.New("friendship not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrGroupNotFound         = errors.New("group not found")
	ErrMemberNotFound        = errors.New("group member not found")
	ErrNotGroupAdmin         = errors.New("not the group admin")
	ErrMemberIsAdmin         = errors.New("member is the group admin")

	// ErrConflict reports a uniqueness violation.
	ErrConflict = errors.New("conflicting record exists")
	// ErrAlreadyProcessed reports a conditional state transition that lost.
	ErrAlreadyProcessed = errors.New("already processed")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
