package presence

import "sync"

// ConversationChannel names the broadcast channel of a conversation.
func ConversationChannel(conversationID string) string {
	return "conv:" + conversationID
}

// GroupChannel names the broadcast channel of a group.
func GroupChannel(groupID string) string {
	return "group:" + groupID
}

// Channels tracks which connections joined which channel. Joining is independent of the
// Registry: a connection only hears channel broadcasts after it joins explicitly.
type Channels struct {
	mu       sync.RWMutex
	members  map[string]map[string]Conn
	joinedBy map[string]map[string]struct{}
}

// NewChannels creates an empty membership table.
func NewChannels() *Channels {
	return &Channels{
		members:  make(map[string]map[string]Conn),
		joinedBy: make(map[string]map[string]struct{}),
	}
}

// Join subscribes conn to channel. Joining twice is a no-op.
func (c *Channels) Join(conn Conn, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.members[channel]; !ok {
		c.members[channel] = make(map[string]Conn)
	}
	c.members[channel][conn.ID()] = conn

	if _, ok := c.joinedBy[conn.ID()]; !ok {
		c.joinedBy[conn.ID()] = make(map[string]struct{})
	}
	c.joinedBy[conn.ID()][channel] = struct{}{}
}

// Leave unsubscribes the connection from channel.
func (c *Channels) Leave(connID, channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked(connID, channel)
}

// LeaveAll unsubscribes the connection from every channel it joined.
func (c *Channels) LeaveAll(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for channel := range c.joinedBy[connID] {
		c.leaveLocked(connID, channel)
	}
	delete(c.joinedBy, connID)
}

func (c *Channels) leaveLocked(connID, channel string) {
	if conns, ok := c.members[channel]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(c.members, channel)
		}
	}
	if joined, ok := c.joinedBy[connID]; ok {
		delete(joined, channel)
		if len(joined) == 0 {
			delete(c.joinedBy, connID)
		}
	}
}

// MembersOf returns the connections currently joined to channel.
func (c *Channels) MembersOf(channel string) []Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	conns := c.members[channel]
	out := make([]Conn, 0, len(conns))
	for _, conn := range conns {
		out = append(out, conn)
	}
	return out
}

// Drop removes channel and unsubscribes everyone from it.
func (c *Channels) Drop(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for connID := range c.members[channel] {
		if joined, ok := c.joinedBy[connID]; ok {
			delete(joined, channel)
			if len(joined) == 0 {
				delete(c.joinedBy, connID)
			}
		}
	}
	delete(c.members, channel)
}
