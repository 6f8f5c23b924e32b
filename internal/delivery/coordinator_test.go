package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

type recordingConn struct {
	id, user string
	fail     bool

	mu     sync.Mutex
	events []models.Event
}

func (c *recordingConn) ID() string     { return c.id }
func (c *recordingConn) UserID() string { return c.user }

func (c *recordingConn) Send(event models.Event) error {
	if c.fail {
		return errors.New("write: broken pipe")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *recordingConn) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Name)
	}
	return out
}

func newCoordinator() *Coordinator {
	return NewCoordinator(presence.NewRegistry(), presence.NewChannels())
}

func TestUserConnectedAnnouncesAndSnapshots(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	alice := &recordingConn{id: "a1", user: "alice"}
	bob := &recordingConn{id: "b1", user: "bob"}

	c.UserConnected(ctx, alice)
	c.UserConnected(ctx, bob)

	assert.Equal(t, []string{models.EventOnlineUsers, models.EventUserOnline}, alice.names())
	require.Equal(t, []string{models.EventOnlineUsers}, bob.names())
	assert.Equal(t, []string{"alice", "bob"}, bob.events[0].Data)
	assert.True(t, c.IsOnline("bob"))
}

func TestSecondDeviceDoesNotReannounce(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	bob := &recordingConn{id: "b1", user: "bob"}
	c.UserConnected(ctx, bob)

	c.UserConnected(ctx, &recordingConn{id: "a1", user: "alice"})
	c.UserConnected(ctx, &recordingConn{id: "a2", user: "alice"})

	assert.Equal(t, []string{models.EventOnlineUsers, models.EventUserOnline}, bob.names())
}

func TestUserDisconnectedOnlyOnLastConnection(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	bob := &recordingConn{id: "b1", user: "bob"}
	c.UserConnected(ctx, bob)
	c.UserConnected(ctx, &recordingConn{id: "a1", user: "alice"})
	c.UserConnected(ctx, &recordingConn{id: "a2", user: "alice"})

	c.UserDisconnected(ctx, "a1")
	assert.NotContains(t, bob.names(), models.EventUserOffline)
	assert.True(t, c.IsOnline("alice"))

	c.UserDisconnected(ctx, "a2")
	assert.Contains(t, bob.names(), models.EventUserOffline)
	assert.False(t, c.IsOnline("alice"))

	c.UserDisconnected(ctx, "unknown")
}

func TestNotifyUsersReachesEveryDevice(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	phone := &recordingConn{id: "a1", user: "alice"}
	laptop := &recordingConn{id: "a2", user: "alice"}
	c.UserConnected(ctx, phone)
	c.UserConnected(ctx, laptop)

	c.NotifyUsers(ctx, []string{"alice", "alice", "offline-user"}, models.NewEvent(models.EventReceiveMessage, nil))

	assert.Contains(t, phone.names(), models.EventReceiveMessage)
	assert.Contains(t, laptop.names(), models.EventReceiveMessage)
	count := 0
	for _, name := range phone.names() {
		if name == models.EventReceiveMessage {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestBroadcastOnlyReachesJoinedConnections(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	viewer := &recordingConn{id: "a1", user: "alice"}
	other := &recordingConn{id: "a2", user: "alice"}
	typist := &recordingConn{id: "b1", user: "bob"}
	for _, conn := range []*recordingConn{viewer, other, typist} {
		c.UserConnected(ctx, conn)
	}
	channel := presence.ConversationChannel("conv-1")
	c.Join(viewer, channel)
	c.Join(typist, channel)

	c.Broadcast(ctx, channel, models.NewEvent(models.EventTyping, nil), typist.ID())

	assert.Contains(t, viewer.names(), models.EventTyping)
	assert.NotContains(t, other.names(), models.EventTyping)
	assert.NotContains(t, typist.names(), models.EventTyping)

	c.Leave(viewer.ID(), channel)
	c.Broadcast(ctx, channel, models.NewEvent(models.EventReadMessages, nil), "")
	assert.NotContains(t, viewer.names(), models.EventReadMessages)
	assert.Contains(t, typist.names(), models.EventReadMessages)
}

func TestPushFailureDoesNotStopFanout(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	broken := &recordingConn{id: "a1", user: "alice", fail: true}
	healthy := &recordingConn{id: "a2", user: "alice"}
	c.UserConnected(ctx, broken)
	c.UserConnected(ctx, healthy)

	assert.NotPanics(t, func() {
		c.NotifyUsers(ctx, []string{"alice"}, models.NewEvent(models.EventFriendListUpdated, nil))
	})
	assert.Contains(t, healthy.names(), models.EventFriendListUpdated)
}

func TestCloseChannelUnsubscribesEveryone(t *testing.T) {
	c := newCoordinator()
	ctx := context.Background()
	conn := &recordingConn{id: "a1", user: "alice"}
	c.UserConnected(ctx, conn)
	channel := presence.GroupChannel("g1")
	c.Join(conn, channel)

	c.CloseChannel(channel)
	c.Broadcast(ctx, channel, models.NewEvent(models.EventGroupRenamed, nil), "")

	assert.NotContains(t, conn.names(), models.EventGroupRenamed)
}
