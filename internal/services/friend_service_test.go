package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/apperr"
	"messenger-service/internal/models"
)

func TestFriendRequestAcceptScenario(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()

	req, err := f.friends.SendRequest(ctx, "alice", "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventFriendRequest}, f.notifier.directTo("bob"))

	pending, err := f.friends.ListReceived(ctx, "bob", "")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].SenderID)
	assert.Equal(t, "hi", pending[0].Message)

	result, err := f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, result.Request.Status)
	require.NotNil(t, result.Friendship)
	require.NotNil(t, result.Conversation)
	assert.ElementsMatch(t, []string{"alice", "bob"}, []string(result.Conversation.Participants))

	_, err = f.store.GetFriendship(ctx, "bob", "alice")
	require.NoError(t, err)

	page, err := f.messages.History(ctx, result.Conversation.ID, "alice", nil, 0)
	require.NoError(t, err)
	require.NotEmpty(t, page)
	assert.Equal(t, models.MessageSystem, page[0].Type)
	assert.Equal(t, models.SystemSenderID, page[0].SenderID)

	for _, user := range []string{"alice", "bob"} {
		pushes := f.notifier.directTo(user)
		assert.Contains(t, pushes, models.EventFriendRequestAccepted, user)
		assert.Contains(t, pushes, models.EventConversationCreated, user)
		assert.Contains(t, pushes, models.EventFriendListUpdated, user)
	}

	status, err := f.friends.Status(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFriends, status)
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
		}(i)
	}
	wg.Wait()

	succeeded, processed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrAlreadyProcessed):
			processed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, processed)
	assert.Len(t, f.store.friendships, 1)
}

func TestRespondValidation(t *testing.T) {
	f := newFixture("alice", "bob", "carol")
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)

	_, err = f.friends.Respond(ctx, req.ID, "carol", ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.friends.Respond(ctx, "missing", "bob", ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.friends.Respond(ctx, req.ID, "bob", "maybe")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	result, err := f.friends.Respond(ctx, req.ID, "bob", ActionReject)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, result.Request.Status)
	assert.Nil(t, result.Friendship)
	assert.Empty(t, f.store.friendships)

	_, err = f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrAlreadyProcessed)
}

func TestAcceptSurvivesGreetingFailure(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)
	f.store.createMessageErr = errors.New("disk full")

	result, err := f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	require.NoError(t, err)
	require.NotNil(t, result.Friendship)
	require.NotNil(t, result.Conversation)
	assert.Contains(t, f.notifier.directTo("alice"), models.EventFriendRequestAccepted)
}

func TestAcceptRollsBackWhenFriendshipFails(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)

	f.store.createFriendshipErr = errors.New("db down")
	_, err = f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	assert.ErrorIs(t, err, apperr.ErrInternal)

	stored, err := f.store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, stored.Status)
	_, err = f.store.GetFriendship(ctx, "alice", "bob")
	assert.Error(t, err)
	assert.Empty(t, f.notifier.directTo("alice"))

	f.store.createFriendshipErr = nil
	result, err := f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, result.Request.Status)
	require.NotNil(t, result.Friendship)
	_, err = f.store.GetFriendship(ctx, "alice", "bob")
	assert.NoError(t, err)
}

func TestSendRequestValidation(t *testing.T) {
	f := newFixture("alice")
	ctx := context.Background()

	_, err := f.friends.SendRequest(ctx, "alice", "alice", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.friends.SendRequest(ctx, "alice", "", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.friends.SendRequest(ctx, "alice", "ghost", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSendRequestPurgesEarlierState(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()
	first, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)
	_, err = f.friends.Respond(ctx, first.ID, "bob", ActionAccept)
	require.NoError(t, err)

	second, err := f.friends.SendRequest(ctx, "bob", "alice", "again")
	require.NoError(t, err)

	assert.Len(t, f.store.requests, 1)
	assert.Empty(t, f.store.friendships)

	status, err := f.friends.Status(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequestSent, status)
	status, err = f.friends.Status(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequestReceived, status)

	sent, err := f.friends.ListSent(ctx, "bob", models.FriendRequestPending)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, second.ID, sent[0].ID)

	_, err = f.friends.ListSent(ctx, "bob", "bogus")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture("alice", "bob")
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, "alice", "bob", "")
	require.NoError(t, err)
	result, err := f.friends.Respond(ctx, req.ID, "bob", ActionAccept)
	require.NoError(t, err)

	friends, err := f.friends.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].ID)

	require.NoError(t, f.friends.RemoveFriend(ctx, "alice", "bob"))

	_, err = f.store.GetConversation(ctx, result.Conversation.ID)
	assert.Error(t, err)
	assert.Empty(t, f.store.requests)
	assert.Contains(t, f.notifier.directTo("bob"), models.EventFriendRemoved)
	assert.Contains(t, f.notifier.directTo("alice"), models.EventFriendListUpdated)

	status, err := f.friends.Status(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotFriends, status)

	err = f.friends.RemoveFriend(ctx, "alice", "bob")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepairFriendship(t *testing.T) {
	f := newFixture("alice", "bob", "carol")
	ctx := context.Background()

	repaired, err := f.friends.RepairFriendship(ctx, "alice", "bob")
	require.NoError(t, err)
	accepted, err := f.store.FindRequestBetween(ctx, "alice", "bob", models.FriendRequestAccepted)
	require.NoError(t, err)
	assert.Equal(t, "alice", accepted.SenderID)

	again, err := f.friends.RepairFriendship(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, repaired.ID, again.ID)

	_, err = f.friends.SendRequest(ctx, "alice", "carol", "")
	require.NoError(t, err)
	_, err = f.friends.RepairFriendship(ctx, "carol", "alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}
