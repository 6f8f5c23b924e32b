package handlers

import (
	"context"
	"io"
	"time"

	"messenger-service/internal/models"
	"messenger-service/internal/services"
)

// The handlers depend on these narrow views of the services so they can be tested with mocks.

type FriendService interface {
	SendRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error)
	ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error)
	ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error)
	Respond(ctx context.Context, requestID, actorID, action string) (services.RespondResult, error)
	ListFriends(ctx context.Context, userID string) ([]models.Friend, error)
	RemoveFriend(ctx context.Context, userID, friendID string) error
	Status(ctx context.Context, userID, otherID string) (models.FriendshipStatus, error)
	RepairFriendship(ctx context.Context, userA, userB string) (models.Friendship, error)
}

type ConversationService interface {
	OpenDirect(ctx context.Context, userID, peerID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	Authorize(ctx context.Context, conversationID, userID string) (models.Conversation, error)
}

type MessageService interface {
	Send(ctx context.Context, conversationID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error)
	Forward(ctx context.Context, originalID, targetConversationID, senderID string) (models.Message, error)
	Delete(ctx context.Context, messageID, actorID string) (models.Message, error)
	Recall(ctx context.Context, messageID, actorID string) (models.Message, error)
	MarkRead(ctx context.Context, messageID, userID string) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID, originConnID string) (int64, error)
	UnreadCount(ctx context.Context, userID, conversationID string) (int, error)
	History(ctx context.Context, conversationID, userID string, before *time.Time, limit int) ([]models.Message, error)
}

type GroupService interface {
	Create(ctx context.Context, name, creatorID string, memberIDs []string) (models.Group, error)
	Get(ctx context.Context, groupID, userID string) (models.Group, error)
	List(ctx context.Context, userID string) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error)
	RemoveMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error)
	Leave(ctx context.Context, groupID, userID string) (services.LeaveResult, error)
	Rename(ctx context.Context, groupID, actorID, name string) (models.Group, error)
	Delete(ctx context.Context, groupID, actorID string) error
	SendMessage(ctx context.Context, groupID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error)
	History(ctx context.Context, groupID, userID string, before *time.Time, limit int) ([]models.Message, error)
}

type UserService interface {
	Search(ctx context.Context, callerID, pattern string) ([]models.User, error)
}

// MediaStore persists uploaded attachments.
type MediaStore interface {
	Enabled() bool
	Put(ctx context.Context, body io.Reader, name, mimeType, folder string, size int64) (models.Attachment, error)
}

// Auditor records audit events. *telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Emit(ctx context.Context, level, text, requestID string, userID *string)
}
