package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// ConversationService resolves and lists conversations.
type ConversationService struct {
	convs    repositories.ConversationRepository
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	users    repositories.UserRepository
}

func NewConversationService(
	convs repositories.ConversationRepository,
	messages repositories.MessageRepository,
	groups repositories.GroupRepository,
	users repositories.UserRepository,
) *ConversationService {
	return &ConversationService{convs: convs, messages: messages, groups: groups, users: users}
}

// GetOrCreateDirect returns the single direct conversation between the pair, creating it when
// missing. The pair is unordered. created is false when another caller won the insert race.
func (s *ConversationService) GetOrCreateDirect(ctx context.Context, userA, userB string) (conv models.Conversation, created bool, err error) {
	if userA == "" || userB == "" {
		return models.Conversation{}, false, apperr.Validation("both participants are required")
	}
	if userA == userB {
		return models.Conversation{}, false, apperr.Validation("cannot open a conversation with yourself")
	}

	conv, err = s.convs.GetDirect(ctx, userA, userB)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, false, translate(err, "conversation")
	}

	conv, err = s.convs.CreateDirect(ctx, userA, userB)
	if errors.Is(err, repositories.ErrConflict) {
		conv, err = s.convs.GetDirect(ctx, userA, userB)
		return conv, false, translate(err, "conversation")
	}
	if err != nil {
		return models.Conversation{}, false, translate(err, "conversation")
	}
	return conv, true, nil
}

// OpenDirect is GetOrCreateDirect for a caller addressing another user by id. The peer must exist.
func (s *ConversationService) OpenDirect(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	if _, err := s.users.GetUser(ctx, peerID); err != nil {
		return models.Conversation{}, translate(err, "user")
	}
	conv, _, err := s.GetOrCreateDirect(ctx, userID, peerID)
	return conv, err
}

// RemoveDirect deletes the direct conversation between the pair. Messages stay in the log.
func (s *ConversationService) RemoveDirect(ctx context.Context, userA, userB string) error {
	return s.convs.DeleteDirect(ctx, userA, userB)
}

// FindByID returns a conversation.
func (s *ConversationService) FindByID(ctx context.Context, conversationID string) (models.Conversation, error) {
	conv, err := s.convs.GetConversation(ctx, conversationID)
	return conv, translate(err, "conversation")
}

// Authorize returns the conversation when userID participates in it.
func (s *ConversationService) Authorize(ctx context.Context, conversationID, userID string) (models.Conversation, error) {
	conv, err := s.FindByID(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return models.Conversation{}, apperr.Forbidden("not a participant of this conversation")
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recent activity first, each with the peer
// or group, the last message and the unread count.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list conversations", err)
	}

	peerIDs := make([]string, 0, len(convs))
	for _, conv := range convs {
		if peer := conv.Peer(userID); peer != "" {
			peerIDs = append(peerIDs, peer)
		}
	}
	peers, err := s.users.BulkUsers(ctx, peerIDs)
	if err != nil {
		return nil, apperr.Internal("failed to load participants", err)
	}
	peerByID := make(map[string]models.User, len(peers))
	for _, u := range peers {
		peerByID[u.ID] = u
	}

	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load groups", err)
	}
	groupByConv := make(map[string]models.Group, len(groups))
	for _, g := range groups {
		groupByConv[g.ConversationID] = g
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := models.ConversationSummary{Conversation: conv}
		if peer, ok := peerByID[conv.Peer(userID)]; ok {
			p := peer
			summary.Peer = &p
		}
		if g, ok := groupByConv[conv.ID]; ok {
			summary.Group = &g
		}
		if conv.LastMessageID != nil {
			msg, err := s.messages.GetMessage(ctx, *conv.LastMessageID)
			switch {
			case err == nil:
				summary.LastMessage = &msg
			case errors.Is(err, repositories.ErrMessageNotFound):
				log.Warn().Str("conversation_id", conv.ID).Str("message_id", *conv.LastMessageID).Msg("last message missing")
			default:
				return nil, apperr.Internal("failed to load last message", err)
			}
		}
		unread, err := s.messages.CountUnread(ctx, userID, conv.ID)
		if err != nil {
			return nil, apperr.Internal("failed to count unread messages", err)
		}
		summary.UnreadCount = unread
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
