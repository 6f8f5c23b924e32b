package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

const friendshipGreeting = "You are now friends. Say hello!"

// Respond actions.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// RespondResult is what Respond hands back to the caller.
type RespondResult struct {
	Request      models.FriendRequest `json:"friend_request"`
	Friendship   *models.Friendship   `json:"friendship,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// FriendService runs the friend request workflow.
type FriendService struct {
	friends       repositories.FriendRepository
	users         repositories.UserRepository
	conversations *ConversationService
	messages      *MessageService
	notifier      Notifier
}

func NewFriendService(
	friends repositories.FriendRepository,
	users repositories.UserRepository,
	conversations *ConversationService,
	messages *MessageService,
	notifier Notifier,
) *FriendService {
	return &FriendService{
		friends:       friends,
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
	}
}

// SendRequest replaces any earlier request or friendship between the pair with a fresh pending
// request and tells the receiver.
func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	if receiverID == "" {
		return models.FriendRequest{}, apperr.Validation("receiver_id is required")
	}
	if senderID == receiverID {
		return models.FriendRequest{}, apperr.Validation("cannot send a friend request to yourself")
	}
	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		return models.FriendRequest{}, translate(err, "user")
	}

	req, err := s.friends.ReplaceRequest(ctx, senderID, receiverID, message)
	if err != nil {
		return models.FriendRequest{}, translate(err, "friend request")
	}

	sender, err := s.users.GetUser(ctx, senderID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", senderID).Msg("sender profile unavailable for friend_request push")
		sender = models.User{ID: senderID}
	}
	s.notifier.NotifyUsers(ctx, []string{receiverID}, models.NewEvent(models.EventFriendRequest, models.FriendRequestNotice{
		RequestID: req.ID,
		Sender:    sender,
		Message:   req.Message,
	}))
	return req, nil
}

func (s *FriendService) ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	reqs, err := s.friends.ListReceived(ctx, userID, status)
	if err != nil {
		return nil, apperr.Internal("failed to list friend requests", err)
	}
	return nonNil(reqs), nil
}

func (s *FriendService) ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	status, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	reqs, err := s.friends.ListSent(ctx, userID, status)
	if err != nil {
		return nil, apperr.Internal("failed to list friend requests", err)
	}
	return nonNil(reqs), nil
}

func normalizeStatus(status models.FriendRequestStatus) (models.FriendRequestStatus, error) {
	if status == "" {
		return models.FriendRequestPending, nil
	}
	if !status.Valid() {
		return "", apperr.Validation("unknown request status " + string(status))
	}
	return status, nil
}

func nonNil(reqs []models.FriendRequest) []models.FriendRequest {
	if reqs == nil {
		return []models.FriendRequest{}
	}
	return reqs
}

// Respond accepts or rejects a pending request addressed to actorID. Only the status change and,
// for accept, the friendship record decide the outcome. The conversation, the greeting and the
// pushes are attempted independently and logged on failure.
func (s *FriendService) Respond(ctx context.Context, requestID, actorID, action string) (RespondResult, error) {
	var to models.FriendRequestStatus
	switch action {
	case ActionAccept:
		to = models.FriendRequestAccepted
	case ActionReject:
		to = models.FriendRequestRejected
	default:
		return RespondResult{}, apperr.Validation("action must be accept or reject")
	}

	req, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		return RespondResult{}, translate(err, "friend request")
	}
	if req.ReceiverID != actorID {
		return RespondResult{}, apperr.Forbidden("only the receiver can respond to this request")
	}
	if req.Status != models.FriendRequestPending {
		return RespondResult{}, apperr.AlreadyProcessed("friend request already " + string(req.Status))
	}

	if to == models.FriendRequestRejected {
		req, err = s.friends.TransitionRequest(ctx, requestID, to)
		if err != nil {
			return RespondResult{}, translate(err, "friend request")
		}
		return RespondResult{Request: req}, nil
	}

	req, friendship, err := s.friends.AcceptRequest(ctx, requestID)
	if errors.Is(err, repositories.ErrAlreadyProcessed) || errors.Is(err, repositories.ErrFriendRequestNotFound) {
		return RespondResult{}, translate(err, "friend request")
	}
	if err != nil {
		return RespondResult{}, apperr.Internal("failed to create friendship", err)
	}
	result := RespondResult{Request: req, Friendship: &friendship}

	conv, _, err := s.conversations.GetOrCreateDirect(ctx, req.SenderID, req.ReceiverID)
	if err != nil {
		log.Error().Err(err).Str("request_id", req.ID).Msg("conversation for new friendship failed")
	} else {
		result.Conversation = &conv
		s.greet(ctx, conv)
	}

	s.announceFriendship(ctx, req, result.Conversation)
	return result, nil
}

func (s *FriendService) greet(ctx context.Context, conv models.Conversation) {
	msg, err := s.messages.Create(ctx, NewMessage{
		ConversationID: conv.ID,
		SenderID:       models.SystemSenderID,
		ReceiverID:     models.ReceiverAll,
		Type:           models.MessageSystem,
		Content:        friendshipGreeting,
	})
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("friendship greeting failed")
		return
	}
	s.messages.Deliver(ctx, conv, msg)
}

func (s *FriendService) announceFriendship(ctx context.Context, req models.FriendRequest, conv *models.Conversation) {
	profiles := map[string]models.User{}
	users, err := s.users.BulkUsers(ctx, []string{req.SenderID, req.ReceiverID})
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("profiles unavailable for acceptance push")
	}
	for _, u := range users {
		profiles[u.ID] = u
	}
	profile := func(id string) models.User {
		if u, ok := profiles[id]; ok {
			return u
		}
		return models.User{ID: id}
	}

	for _, pair := range [][2]string{{req.SenderID, req.ReceiverID}, {req.ReceiverID, req.SenderID}} {
		userID, friendID := pair[0], pair[1]
		payload := models.FriendAccepted{
			RequestID:    req.ID,
			Status:       string(req.Status),
			Friend:       profile(friendID),
			Conversation: conv,
		}
		targets := []string{userID}
		s.notifier.NotifyUsers(ctx, targets, models.NewEvent(models.EventFriendRequestAccepted, payload))
		if conv != nil {
			s.notifier.NotifyUsers(ctx, targets, models.NewEvent(models.EventConversationCreated, payload))
		}
		s.notifier.NotifyUsers(ctx, targets, models.NewEvent(models.EventFriendListUpdated, nil))
	}
}

// ListFriends returns the user's friends, most recently active first.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	friendships, err := s.friends.ListFriendships(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list friends", err)
	}
	ids := make([]string, 0, len(friendships))
	for _, f := range friendships {
		ids = append(ids, f.Other(userID))
	}
	users, err := s.users.BulkUsers(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("failed to load friends", err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	friends := make([]models.Friend, 0, len(friendships))
	for _, f := range friendships {
		user, ok := byID[f.Other(userID)]
		if !ok {
			log.Warn().Str("friend_id", f.Other(userID)).Msg("friend missing from user directory")
			continue
		}
		friends = append(friends, models.Friend{
			User:              user,
			FriendshipID:      f.ID,
			LastInteractionAt: f.LastInteractionAt,
		})
	}
	return friends, nil
}

// RemoveFriend deletes the friendship, every request between the pair and their direct
// conversation.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if friendID == "" || friendID == userID {
		return apperr.Validation("invalid friend id")
	}
	if err := s.friends.DeleteFriendship(ctx, userID, friendID); err != nil {
		return translate(err, "friendship")
	}
	if err := s.conversations.RemoveDirect(ctx, userID, friendID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Str("friend_id", friendID).Msg("direct conversation cleanup failed")
	}

	s.notifier.NotifyUsers(ctx, []string{friendID}, models.NewEvent(models.EventFriendRemoved, models.PresenceChange{UserID: userID}))
	s.notifier.NotifyUsers(ctx, []string{friendID, userID}, models.NewEvent(models.EventFriendListUpdated, nil))
	return nil
}

// Status describes the relationship between userID and otherID from userID's side.
func (s *FriendService) Status(ctx context.Context, userID, otherID string) (models.FriendshipStatus, error) {
	_, err := s.friends.GetFriendship(ctx, userID, otherID)
	if err == nil {
		return models.StatusFriends, nil
	}
	if !errors.Is(err, repositories.ErrFriendshipNotFound) {
		return "", apperr.Internal("failed to check friendship", err)
	}

	req, err := s.friends.FindRequestBetween(ctx, userID, otherID, models.FriendRequestPending)
	switch {
	case errors.Is(err, repositories.ErrFriendRequestNotFound):
		return models.StatusNotFriends, nil
	case err != nil:
		return "", apperr.Internal("failed to check friend requests", err)
	case req.SenderID == userID:
		return models.StatusRequestSent, nil
	default:
		return models.StatusRequestReceived, nil
	}
}

// RepairFriendship creates the friendship for a pair that has none, synthesizing an accepted
// request when no request exists. A pending request blocks the repair. An existing friendship is
// returned unchanged.
func (s *FriendService) RepairFriendship(ctx context.Context, userA, userB string) (models.Friendship, error) {
	if userA == "" || userB == "" || userA == userB {
		return models.Friendship{}, apperr.Validation("two distinct users are required")
	}
	existing, err := s.friends.GetFriendship(ctx, userA, userB)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrFriendshipNotFound) {
		return models.Friendship{}, apperr.Internal("failed to check friendship", err)
	}

	_, err = s.friends.FindRequestBetween(ctx, userA, userB, models.FriendRequestAccepted)
	if errors.Is(err, repositories.ErrFriendRequestNotFound) {
		_, pendingErr := s.friends.FindRequestBetween(ctx, userA, userB, models.FriendRequestPending)
		switch {
		case pendingErr == nil:
			return models.Friendship{}, apperr.Conflict("a pending friend request exists between these users")
		case !errors.Is(pendingErr, repositories.ErrFriendRequestNotFound):
			return models.Friendship{}, apperr.Internal("failed to check friend requests", pendingErr)
		}
		if _, err := s.friends.CreateAcceptedRequest(ctx, userA, userB, "Automatic friend request"); err != nil {
			return models.Friendship{}, apperr.Internal("failed to create friend request", err)
		}
		log.Info().Str("user_a", userA).Str("user_b", userB).Msg("synthesized accepted friend request")
	} else if err != nil {
		return models.Friendship{}, apperr.Internal("failed to check friend requests", err)
	}

	friendship, err := s.friends.CreateFriendship(ctx, userA, userB)
	if err != nil {
		return models.Friendship{}, apperr.Internal("failed to create friendship", err)
	}
	return friendship, nil
}
