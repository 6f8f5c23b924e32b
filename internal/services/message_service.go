package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 50
)

// NewMessage is the input of Create.
type NewMessage struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Type           models.MessageType
	Content        string
	Attachments    models.Attachments
	ForwardedFrom  *string
}

// MessageService drives the message lifecycle: create, read, delete, recall and forward.
type MessageService struct {
	messages     repositories.MessageRepository
	convs        repositories.ConversationRepository
	friends      repositories.FriendRepository
	groups       repositories.GroupRepository
	notifier     Notifier
	recallWindow time.Duration
	now          Clock
}

func NewMessageService(
	messages repositories.MessageRepository,
	convs repositories.ConversationRepository,
	friends repositories.FriendRepository,
	groups repositories.GroupRepository,
	notifier Notifier,
	recallWindow time.Duration,
) *MessageService {
	return &MessageService{
		messages:     messages,
		convs:        convs,
		friends:      friends,
		groups:       groups,
		notifier:     notifier,
		recallWindow: recallWindow,
		now:          systemClock,
	}
}

func validateBody(t models.MessageType, content string, attachments models.Attachments) error {
	switch {
	case t == models.MessageTypeInvalid:
		return apperr.Validation("message type is required")
	case t.IsMedia() && len(attachments) == 0:
		return apperr.Validation(t.String() + " message requires at least one attachment")
	case !t.IsMedia() && strings.TrimSpace(content) == "":
		return apperr.Validation("message content is required")
	}
	return nil
}

// Create persists a message, then moves the conversation pointer, then records the interaction
// on the friendship of a direct conversation. System messages never touch the friendship.
// Create does not notify anyone.
func (s *MessageService) Create(ctx context.Context, in NewMessage) (models.Message, error) {
	if in.ConversationID == "" || in.SenderID == "" || in.ReceiverID == "" {
		return models.Message{}, apperr.Validation("conversation, sender and receiver are required")
	}
	if err := validateBody(in.Type, in.Content, in.Attachments); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ReceiverID:     in.ReceiverID,
		Type:           in.Type,
		Content:        in.Content,
		Attachments:    in.Attachments,
		ForwardedFrom:  in.ForwardedFrom,
		CreatedAt:      s.now(),
	})
	if err != nil {
		return models.Message{}, apperr.Internal("failed to store message", err)
	}
	observability.IncMessageCreated(msg.Type.String())

	if err := s.convs.UpdateLastMessage(ctx, msg.ConversationID, msg.ID, msg.CreatedAt); err != nil {
		return models.Message{}, translate(err, "conversation")
	}

	if !msg.IsSystem() && msg.ReceiverID != models.ReceiverAll {
		if err := s.friends.TouchFriendship(ctx, msg.SenderID, msg.ReceiverID, msg.CreatedAt); err != nil {
			return models.Message{}, apperr.Internal("failed to update friendship", err)
		}
	}
	return msg, nil
}

// Send stores a user message in a conversation the sender participates in and delivers it.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error) {
	if !t.UserSendable() {
		return models.Message{}, apperr.Validation("message type " + t.String() + " cannot be sent")
	}
	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.Create(ctx, NewMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverFor(conv, senderID),
		Type:           t,
		Content:        content,
		Attachments:    attachments,
	})
	if err != nil {
		return models.Message{}, err
	}
	s.Deliver(ctx, conv, msg)
	return msg, nil
}

// Forward copies an active message into another conversation. The actor must participate in
// both conversations.
func (s *MessageService) Forward(ctx context.Context, originalID, targetConversationID, senderID string) (models.Message, error) {
	original, err := s.messages.GetMessage(ctx, originalID)
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	if !original.Forwardable() {
		return models.Message{}, apperr.InvalidState("deleted or recalled messages cannot be forwarded")
	}
	if _, err := s.participantConversation(ctx, original.ConversationID, senderID); err != nil {
		return models.Message{}, err
	}
	target, err := s.participantConversation(ctx, targetConversationID, senderID)
	if err != nil {
		return models.Message{}, err
	}

	originalRef := original.ID
	msg, err := s.Create(ctx, NewMessage{
		ConversationID: target.ID,
		SenderID:       senderID,
		ReceiverID:     receiverFor(target, senderID),
		Type:           original.Type,
		Content:        original.Content,
		Attachments:    original.Attachments,
		ForwardedFrom:  &originalRef,
	})
	if err != nil {
		return models.Message{}, err
	}
	s.Deliver(ctx, target, msg)
	return msg, nil
}

// Delete blanks a message owned by actorID. Deleting an already deleted message returns it as is.
func (s *MessageService) Delete(ctx context.Context, messageID, actorID string) (models.Message, error) {
	msg, err := s.ownedMessage(ctx, messageID, actorID)
	if err != nil {
		return models.Message{}, err
	}
	switch {
	case msg.IsDeleted:
		return msg, nil
	case msg.IsRecalled:
		return models.Message{}, apperr.InvalidState("message was recalled")
	}

	updated, err := s.messages.MarkDeleted(ctx, messageID)
	if errors.Is(err, repositories.ErrAlreadyProcessed) {
		return s.Delete(ctx, messageID, actorID)
	}
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	s.notifyParticipants(ctx, updated, models.EventMessageDeleted)
	return updated, nil
}

// Recall retracts a message owned by actorID. It succeeds while now - createdAt <= window.
func (s *MessageService) Recall(ctx context.Context, messageID, actorID string) (models.Message, error) {
	msg, err := s.ownedMessage(ctx, messageID, actorID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.IsDeleted || msg.IsRecalled {
		return models.Message{}, apperr.InvalidState("message is no longer active")
	}
	if s.now().Sub(msg.CreatedAt) > s.recallWindow {
		return models.Message{}, apperr.RecallWindowExpired("messages can only be recalled within " + s.recallWindow.String())
	}

	updated, err := s.messages.MarkRecalled(ctx, messageID)
	if errors.Is(err, repositories.ErrAlreadyProcessed) {
		return models.Message{}, apperr.InvalidState("message is no longer active")
	}
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	s.notifyParticipants(ctx, updated, models.EventMessageRecalled)
	return updated, nil
}

// MarkRead sets readAt on a message addressed to userID. Re-marking keeps the first timestamp.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID string) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	if msg.ReceiverID == models.ReceiverAll {
		if _, err := s.participantConversation(ctx, msg.ConversationID, userID); err != nil {
			return models.Message{}, err
		}
		return models.Message{}, apperr.InvalidState("group messages have no per-member read receipts")
	}
	if msg.ReceiverID != userID {
		return models.Message{}, apperr.Forbidden("message is not addressed to you")
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	updated, err := s.messages.MarkRead(ctx, messageID, s.now())
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	s.notifier.NotifyUsers(ctx, []string{msg.SenderID}, models.NewEvent(models.EventReadMessages, models.ReadNotice{
		ConversationID: msg.ConversationID,
		UserID:         userID,
		Count:          1,
	}))
	return updated, nil
}

// MarkConversationRead marks every unread message addressed to userID in the conversation and
// returns how many changed. The read receipt goes to the conversation channel, skipping
// originConnID.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID, originConnID string) (int64, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	count, err := s.messages.MarkConversationRead(ctx, conversationID, userID, s.now())
	if err != nil {
		return 0, apperr.Internal("failed to mark conversation read", err)
	}
	if count > 0 {
		s.notifier.Broadcast(ctx, presence.ConversationChannel(conversationID), models.NewEvent(models.EventReadMessages, models.ReadNotice{
			ConversationID: conversationID,
			UserID:         userID,
			Count:          count,
		}), originConnID)
	}
	return count, nil
}

// UnreadCount counts live unread messages for userID, optionally within one conversation.
func (s *MessageService) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	count, err := s.messages.CountUnread(ctx, userID, conversationID)
	if err != nil {
		return 0, apperr.Internal("failed to count unread messages", err)
	}
	return count, nil
}

// History returns one page of the conversation, oldest first, and marks it read for userID.
func (s *MessageService) History(ctx context.Context, conversationID, userID string, before *time.Time, limit int) ([]models.Message, error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, conversationID, before, ClampPageSize(limit))
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}
	if _, err := s.MarkConversationRead(ctx, conversationID, userID, ""); err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("mark read after history failed")
	}
	return msgs, nil
}

// ClampPageSize applies the default page size and upper bound.
func ClampPageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}

// Deliver fans a freshly stored message out. Direct messages go to the receiver's connections
// with a conversation update; group messages go to the group channel and every member gets the
// conversation update. The sender's connections always get message_sent_success.
func (s *MessageService) Deliver(ctx context.Context, conv models.Conversation, msg models.Message) {
	update := models.NewEvent(models.EventUpdateConversation, models.ConversationUpdate{
		ConversationID: conv.ID,
		LastMessage:    &msg,
	})

	if conv.Kind == models.ConversationGroup {
		group, err := s.groups.GetGroupByConversation(ctx, conv.ID)
		if err != nil {
			log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("group lookup for delivery failed")
		} else {
			s.notifier.Broadcast(ctx, presence.GroupChannel(group.ID), models.NewEvent(models.EventReceiveMessage, msg), "")
		}
		s.notifier.NotifyUsers(ctx, conv.Participants, update)
	} else {
		receivers := []string{msg.ReceiverID}
		s.notifier.NotifyUsers(ctx, receivers, models.NewEvent(models.EventReceiveMessage, msg))
		s.notifier.NotifyUsers(ctx, receivers, update)
	}

	if !msg.IsSystem() {
		s.notifier.NotifyUsers(ctx, []string{msg.SenderID}, models.NewEvent(models.EventMessageSentSuccess, msg))
	}
}

func (s *MessageService) participantConversation(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	conv, err := s.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, translate(err, "conversation")
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, apperr.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

func (s *MessageService) ownedMessage(ctx context.Context, messageID, actorID string) (models.Message, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, translate(err, "message")
	}
	if msg.SenderID != actorID {
		return models.Message{}, apperr.Forbidden("only the sender can change this message")
	}
	return msg, nil
}

func (s *MessageService) notifyParticipants(ctx context.Context, msg models.Message, event string) {
	conv, err := s.convs.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.ID).Str("event", event).Msg("skipping notification")
		return
	}
	s.notifier.NotifyUsers(ctx, conv.Participants, models.NewEvent(event, msg))
}

func receiverFor(conv models.Conversation, senderID string) string {
	if conv.Kind == models.ConversationGroup {
		return models.ReceiverAll
	}
	return conv.Peer(senderID)
}
