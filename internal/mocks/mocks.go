package mocks

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/services"
)

type FriendServiceMock struct {
	mock.Mock
}

func (m *FriendServiceMock) SendRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, receiverID, message)
	var fr models.FriendRequest
	if val := args.Get(0); val != nil {
		fr = val.(models.FriendRequest)
	}
	return fr, args.Error(1)
}

func (m *FriendServiceMock) ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID, status)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *FriendServiceMock) ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	args := m.Called(ctx, userID, status)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *FriendServiceMock) Respond(ctx context.Context, requestID, actorID, action string) (services.RespondResult, error) {
	args := m.Called(ctx, requestID, actorID, action)
	var res services.RespondResult
	if val := args.Get(0); val != nil {
		res = val.(services.RespondResult)
	}
	return res, args.Error(1)
}

func (m *FriendServiceMock) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	args := m.Called(ctx, userID)
	var list []models.Friend
	if val := args.Get(0); val != nil {
		list = val.([]models.Friend)
	}
	return list, args.Error(1)
}

func (m *FriendServiceMock) RemoveFriend(ctx context.Context, userID, friendID string) error {
	args := m.Called(ctx, userID, friendID)
	return args.Error(0)
}

func (m *FriendServiceMock) Status(ctx context.Context, userID, otherID string) (models.FriendshipStatus, error) {
	args := m.Called(ctx, userID, otherID)
	return models.FriendshipStatus(args.String(0)), args.Error(1)
}

func (m *FriendServiceMock) RepairFriendship(ctx context.Context, userA, userB string) (models.Friendship, error) {
	args := m.Called(ctx, userA, userB)
	var f models.Friendship
	if val := args.Get(0); val != nil {
		f = val.(models.Friendship)
	}
	return f, args.Error(1)
}

type ConversationServiceMock struct {
	mock.Mock
}

func (m *ConversationServiceMock) OpenDirect(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	args := m.Called(ctx, userID, peerID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationServiceMock) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationServiceMock) Authorize(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) message(args mock.Arguments) (models.Message, error) {
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) Send(ctx context.Context, conversationID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error) {
	return m.message(m.Called(ctx, conversationID, senderID, t, content, attachments))
}

func (m *MessageServiceMock) Forward(ctx context.Context, originalID, targetConversationID, senderID string) (models.Message, error) {
	return m.message(m.Called(ctx, originalID, targetConversationID, senderID))
}

func (m *MessageServiceMock) Delete(ctx context.Context, messageID, actorID string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, actorID))
}

func (m *MessageServiceMock) Recall(ctx context.Context, messageID, actorID string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, actorID))
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, messageID, userID string) (models.Message, error) {
	return m.message(m.Called(ctx, messageID, userID))
}

func (m *MessageServiceMock) MarkConversationRead(ctx context.Context, conversationID, userID, originConnID string) (int64, error) {
	args := m.Called(ctx, conversationID, userID, originConnID)
	return int64(args.Int(0)), args.Error(1)
}

func (m *MessageServiceMock) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Int(0), args.Error(1)
}

func (m *MessageServiceMock) History(ctx context.Context, conversationID, userID string, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID, before, limit)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type GroupServiceMock struct {
	mock.Mock
}

func (m *GroupServiceMock) group(args mock.Arguments) (models.Group, error) {
	var g models.Group
	if val := args.Get(0); val != nil {
		g = val.(models.Group)
	}
	return g, args.Error(1)
}

func (m *GroupServiceMock) Create(ctx context.Context, name, creatorID string, memberIDs []string) (models.Group, error) {
	return m.group(m.Called(ctx, name, creatorID, memberIDs))
}

func (m *GroupServiceMock) Get(ctx context.Context, groupID, userID string) (models.Group, error) {
	return m.group(m.Called(ctx, groupID, userID))
}

func (m *GroupServiceMock) List(ctx context.Context, userID string) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var list []models.Group
	if val := args.Get(0); val != nil {
		list = val.([]models.Group)
	}
	return list, args.Error(1)
}

func (m *GroupServiceMock) AddMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error) {
	return m.group(m.Called(ctx, groupID, actorID, memberID))
}

func (m *GroupServiceMock) RemoveMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error) {
	return m.group(m.Called(ctx, groupID, actorID, memberID))
}

func (m *GroupServiceMock) Leave(ctx context.Context, groupID, userID string) (services.LeaveResult, error) {
	args := m.Called(ctx, groupID, userID)
	var res services.LeaveResult
	if val := args.Get(0); val != nil {
		res = val.(services.LeaveResult)
	}
	return res, args.Error(1)
}

func (m *GroupServiceMock) Rename(ctx context.Context, groupID, actorID, name string) (models.Group, error) {
	return m.group(m.Called(ctx, groupID, actorID, name))
}

func (m *GroupServiceMock) Delete(ctx context.Context, groupID, actorID string) error {
	return m.Called(ctx, groupID, actorID).Error(0)
}

func (m *GroupServiceMock) SendMessage(ctx context.Context, groupID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error) {
	args := m.Called(ctx, groupID, senderID, t, content, attachments)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *GroupServiceMock) History(ctx context.Context, groupID, userID string, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, userID, before, limit)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

type UserServiceMock struct {
	mock.Mock
}

func (m *UserServiceMock) Search(ctx context.Context, callerID, pattern string) ([]models.User, error) {
	args := m.Called(ctx, callerID, pattern)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *MediaStoreMock) Put(ctx context.Context, body io.Reader, name, mimeType, folder string, size int64) (models.Attachment, error) {
	args := m.Called(ctx, body, name, mimeType, folder, size)
	var att models.Attachment
	if val := args.Get(0); val != nil {
		att = val.(models.Attachment)
	}
	return att, args.Error(1)
}

type AuditorMock struct {
	mock.Mock
}

func (m *AuditorMock) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	m.Called(ctx, level, text, requestID, userID)
}
