package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

// LeaveResult reports what happened to the group when a member left.
type LeaveResult struct {
	Group    *models.Group `json:"group,omitempty"`
	Deleted  bool          `json:"deleted"`
	NewAdmin string        `json:"new_admin_id,omitempty"`
}

// GroupService manages group membership and group fanout.
type GroupService struct {
	groups   repositories.GroupRepository
	users    repositories.UserRepository
	messages *MessageService
	notifier Notifier
}

func NewGroupService(
	groups repositories.GroupRepository,
	users repositories.UserRepository,
	messages *MessageService,
	notifier Notifier,
) *GroupService {
	return &GroupService{groups: groups, users: users, messages: messages, notifier: notifier}
}

// Create makes a group owned by creatorID. The creator is always a member; every other member
// must exist in the user directory.
func (s *GroupService) Create(ctx context.Context, name, creatorID string, memberIDs []string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.Validation("group name is required")
	}
	if len(memberIDs) == 0 {
		return models.Group{}, apperr.Validation("member_ids is required")
	}

	unique := []string{creatorID}
	for _, id := range memberIDs {
		if id != "" && !contains(unique, id) {
			unique = append(unique, id)
		}
	}
	users, err := s.users.BulkUsers(ctx, unique)
	if err != nil {
		return models.Group{}, apperr.Internal("failed to load members", err)
	}
	if len(users) != len(unique) {
		return models.Group{}, apperr.Validation("some members do not exist")
	}

	group, err := s.groups.CreateGroup(ctx, name, creatorID, unique[1:])
	if err != nil {
		return models.Group{}, apperr.Internal("failed to create group", err)
	}

	msg := s.announce(ctx, group, fmt.Sprintf("Group %q was created by %s", name, s.displayName(ctx, creatorID)))
	s.notifier.NotifyUsers(ctx, group.Members, models.NewEvent(models.EventGroupCreated, models.GroupNotice{
		Group:   group,
		ActorID: creatorID,
		Message: msg,
	}))
	return group, nil
}

// Get returns a group the caller belongs to.
func (s *GroupService) Get(ctx context.Context, groupID, userID string) (models.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, translate(err, "group")
	}
	if !group.IsMember(userID) {
		return models.Group{}, apperr.Forbidden("not a member of this group")
	}
	return group, nil
}

// List returns the caller's groups.
func (s *GroupService) List(ctx context.Context, userID string) ([]models.Group, error) {
	groups, err := s.groups.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list groups", err)
	}
	return groups, nil
}

// AddMember lets the admin add a user. The new member is notified directly since they have not
// joined the group channel yet.
func (s *GroupService) AddMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error) {
	if memberID == "" {
		return models.Group{}, apperr.Validation("user_id is required")
	}
	group, err := s.adminGroup(ctx, groupID, actorID)
	if err != nil {
		return models.Group{}, err
	}
	if group.IsMember(memberID) {
		return models.Group{}, apperr.Conflict("user is already a member")
	}
	if _, err := s.users.GetUser(ctx, memberID); err != nil {
		return models.Group{}, translate(err, "user")
	}

	group, err = s.groups.AddMember(ctx, groupID, memberID)
	if err != nil {
		return models.Group{}, translate(err, "group")
	}

	msg := s.announce(ctx, group, fmt.Sprintf("%s was added to the group by %s", s.displayName(ctx, memberID), s.displayName(ctx, actorID)))
	event := models.NewEvent(models.EventGroupMemberAdded, models.GroupNotice{
		Group:    group,
		ActorID:  actorID,
		MemberID: memberID,
		Message:  msg,
	})
	s.notifier.Broadcast(ctx, presence.GroupChannel(group.ID), event, "")
	s.notifier.NotifyUsers(ctx, []string{memberID}, event)
	return group, nil
}

// RemoveMember lets the admin remove anyone but themselves.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, actorID, memberID string) (models.Group, error) {
	group, err := s.adminGroup(ctx, groupID, actorID)
	if err != nil {
		return models.Group{}, err
	}
	if memberID == group.AdminID {
		return models.Group{}, apperr.Validation("the admin cannot be removed; leave the group instead")
	}
	if !group.IsMember(memberID) {
		return models.Group{}, apperr.NotFound("user is not a member of this group")
	}

	group, err = s.groups.RemoveMember(ctx, groupID, actorID, memberID)
	switch {
	case errors.Is(err, repositories.ErrNotGroupAdmin):
		return models.Group{}, apperr.Forbidden("only the group admin can do this")
	case errors.Is(err, repositories.ErrMemberIsAdmin):
		return models.Group{}, apperr.Validation("the admin cannot be removed; leave the group instead")
	case err != nil:
		return models.Group{}, translate(err, "group member")
	}

	msg := s.announce(ctx, group, fmt.Sprintf("%s was removed from the group by %s", s.displayName(ctx, memberID), s.displayName(ctx, actorID)))
	event := models.NewEvent(models.EventGroupMemberRemoved, models.GroupNotice{
		Group:    group,
		ActorID:  actorID,
		MemberID: memberID,
		Message:  msg,
	})
	s.notifier.Broadcast(ctx, presence.GroupChannel(group.ID), event, "")
	s.notifier.NotifyUsers(ctx, []string{memberID}, event)
	return group, nil
}

// Leave removes userID from the group. The last member leaving deletes the group; an admin
// leaving hands admin to the first remaining member. Both decisions are taken by the store
// against the current membership.
func (s *GroupService) Leave(ctx context.Context, groupID, userID string) (LeaveResult, error) {
	departure, err := s.groups.LeaveGroup(ctx, groupID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return LeaveResult{}, apperr.Forbidden("not a member of this group")
	}
	if err != nil {
		return LeaveResult{}, translate(err, "group")
	}

	group := departure.Group
	if departure.Deleted {
		s.notifier.CloseChannel(presence.GroupChannel(groupID))
		s.notifier.NotifyUsers(ctx, []string{userID}, models.NewEvent(models.EventLeftGroup, models.GroupNotice{
			Group:    group,
			MemberID: userID,
		}))
		return LeaveResult{Deleted: true}, nil
	}

	text := fmt.Sprintf("%s left the group", s.displayName(ctx, userID))
	if departure.NewAdmin != "" {
		text = fmt.Sprintf("%s and handed admin to %s", text, s.displayName(ctx, departure.NewAdmin))
	}

	msg := s.announce(ctx, group, text)
	notice := models.GroupNotice{Group: group, MemberID: userID, Message: msg}
	s.notifier.Broadcast(ctx, presence.GroupChannel(group.ID), models.NewEvent(models.EventGroupMemberLeft, notice), "")
	s.notifier.NotifyUsers(ctx, []string{userID}, models.NewEvent(models.EventLeftGroup, notice))
	return LeaveResult{Group: &group, NewAdmin: departure.NewAdmin}, nil
}

// Rename lets the admin change the group name.
func (s *GroupService) Rename(ctx context.Context, groupID, actorID, name string) (models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.Validation("group name is required")
	}
	group, err := s.adminGroup(ctx, groupID, actorID)
	if err != nil {
		return models.Group{}, err
	}
	oldName := group.Name

	group, err = s.groups.Rename(ctx, groupID, name)
	if err != nil {
		return models.Group{}, translate(err, "group")
	}

	msg := s.announce(ctx, group, fmt.Sprintf("Group renamed from %q to %q by %s", oldName, name, s.displayName(ctx, actorID)))
	s.notifier.Broadcast(ctx, presence.GroupChannel(group.ID), models.NewEvent(models.EventGroupRenamed, models.GroupNotice{
		Group:   group,
		ActorID: actorID,
		OldName: oldName,
		Message: msg,
	}), "")
	return group, nil
}

// Delete lets the admin disband the group. Former members are notified directly because the
// channel goes away with the group.
func (s *GroupService) Delete(ctx context.Context, groupID, actorID string) error {
	group, err := s.adminGroup(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, groupID); err != nil {
		return translate(err, "group")
	}
	s.notifier.CloseChannel(presence.GroupChannel(groupID))
	s.notifier.NotifyUsers(ctx, group.Members, models.NewEvent(models.EventGroupDeleted, models.GroupNotice{
		Group:   group,
		ActorID: actorID,
	}))
	return nil
}

// SendMessage posts a member's message to the group conversation.
func (s *GroupService) SendMessage(ctx context.Context, groupID, senderID string, t models.MessageType, content string, attachments models.Attachments) (models.Message, error) {
	group, err := s.Get(ctx, groupID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	return s.messages.Send(ctx, group.ConversationID, senderID, t, content, attachments)
}

// History returns a page of the group conversation.
func (s *GroupService) History(ctx context.Context, groupID, userID string, before *time.Time, limit int) ([]models.Message, error) {
	group, err := s.Get(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	return s.messages.History(ctx, group.ConversationID, userID, before, limit)
}

func (s *GroupService) adminGroup(ctx context.Context, groupID, actorID string) (models.Group, error) {
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, translate(err, "group")
	}
	if group.AdminID != actorID {
		return models.Group{}, apperr.Forbidden("only the group admin can do this")
	}
	return group, nil
}

// announce appends a system message and delivers it. Failures are logged and yield nil.
func (s *GroupService) announce(ctx context.Context, group models.Group, text string) *models.Message {
	msg, err := s.messages.Create(ctx, NewMessage{
		ConversationID: group.ConversationID,
		SenderID:       models.SystemSenderID,
		ReceiverID:     models.ReceiverAll,
		Type:           models.MessageSystem,
		Content:        text,
	})
	if err != nil {
		log.Warn().Err(err).Str("group_id", group.ID).Msg("group system message failed")
		return nil
	}
	s.messages.Deliver(ctx, groupConversation(group), msg)
	return &msg
}

func (s *GroupService) displayName(ctx context.Context, userID string) string {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return userID
	}
	return user.DisplayName()
}

func groupConversation(g models.Group) models.Conversation {
	return models.Conversation{
		ID:           g.ConversationID,
		Kind:         models.ConversationGroup,
		Participants: g.Members,
	}
}
