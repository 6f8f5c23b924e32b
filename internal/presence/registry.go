// Package presence tracks live connections per user and the channels each connection has joined.
// All state is process-local.
package presence

import (
	"sort"
	"sync"

	"messenger-service/internal/models"
)

// Conn is a live client connection that can receive pushed events.
type Conn interface {
	ID() string
	UserID() string
	Send(event models.Event) error
}

// Registry maps users to their live connections.
type Registry interface {
	// Register adds conn and reports whether it is the user's first live connection.
	Register(conn Conn) bool
	// Unregister removes the connection and reports its owner and whether it was their last one.
	// Unknown ids return an empty userID.
	Unregister(connID string) (userID string, last bool)
	ConnectionsFor(userID string) []Conn
	IsOnline(userID string) bool
	OnlineUsers() []string
}

// MemoryRegistry is the in-memory Registry.
type MemoryRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Conn
	byConn map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byUser: make(map[string]map[string]Conn),
		byConn: make(map[string]Conn),
	}
}

func (r *MemoryRegistry) Register(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[conn.UserID()]
	if !ok {
		conns = make(map[string]Conn)
		r.byUser[conn.UserID()] = conns
	}
	first := len(conns) == 0
	conns[conn.ID()] = conn
	r.byConn[conn.ID()] = conn
	return first
}

func (r *MemoryRegistry) Unregister(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)

	userID := conn.UserID()
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		return userID, true
	}
	return userID, false
}

func (r *MemoryRegistry) ConnectionsFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *MemoryRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUsers returns the ids of users holding at least one connection, sorted.
func (r *MemoryRegistry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
