package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// memStore implements every repository interface in memory.
type memStore struct {
	mu sync.Mutex
	// seq is a shared id counter.
	seq int

	users       map[string]models.User
	requests    map[string]models.FriendRequest
	friendships map[string]models.Friendship
	convs       map[string]models.Conversation
	messages    map[string]models.Message
	groups      map[string]models.Group

	// beforeCreateDirect runs before the unique check, outside the lock.
	beforeCreateDirect func()
	// createMessageErr makes CreateMessage fail.
	createMessageErr error
	// beforeLeave runs at the start of LeaveGroup, outside the lock.
	beforeLeave func()
	// createFriendshipErr makes the friendship insert fail.
	createFriendshipErr error
}

func newMemStore(users ...string) *memStore {
	s := &memStore{
		users:       map[string]models.User{},
		requests:    map[string]models.FriendRequest{},
		friendships: map[string]models.Friendship{},
		convs:       map[string]models.Conversation{},
		messages:    map[string]models.Message{},
		groups:      map[string]models.Group{},
	}
	for _, id := range users {
		s.users[id] = models.User{ID: id, Email: id + "@example.com", FullName: id}
	}
	return s
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

// users

func (s *memStore) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) BulkUsers(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *memStore) SearchByEmail(ctx context.Context, pattern string, limit int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.User{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Email), strings.ToLower(pattern)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// friends

func samePair(r models.FriendRequest, a, b string) bool {
	return (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a)
}

func (s *memStore) ReplaceRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if samePair(r, senderID, receiverID) {
			delete(s.requests, id)
		}
	}
	delete(s.friendships, models.DirectKey(senderID, receiverID))
	now := time.Now().UTC()
	req := models.FriendRequest{
		ID: s.nextID("r"), SenderID: senderID, ReceiverID: receiverID,
		Status: models.FriendRequestPending, Message: message, CreatedAt: now, UpdatedAt: now,
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *memStore) CreateAcceptedRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := models.FriendRequest{
		ID: s.nextID("r"), SenderID: senderID, ReceiverID: receiverID,
		Status: models.FriendRequestAccepted, Message: message, CreatedAt: time.Now().UTC(),
	}
	s.requests[req.ID] = req
	return req, nil
}

func (s *memStore) GetRequest(ctx context.Context, id string) (models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return models.FriendRequest{}, repositories.ErrFriendRequestNotFound
	}
	return r, nil
}

func (s *memStore) FindRequestBetween(ctx context.Context, a, b string, status models.FriendRequestStatus) (models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if samePair(r, a, b) && r.Status == status {
			return r, nil
		}
	}
	return models.FriendRequest{}, repositories.ErrFriendRequestNotFound
}

func (s *memStore) ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	return s.filterRequests(func(r models.FriendRequest) bool { return r.ReceiverID == userID && r.Status == status }), nil
}

func (s *memStore) ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	return s.filterRequests(func(r models.FriendRequest) bool { return r.SenderID == userID && r.Status == status }), nil
}

func (s *memStore) filterRequests(keep func(models.FriendRequest) bool) []models.FriendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FriendRequest
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) TransitionRequest(ctx context.Context, id string, to models.FriendRequestStatus) (models.FriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return models.FriendRequest{}, repositories.ErrFriendRequestNotFound
	}
	if r.Status != models.FriendRequestPending {
		return models.FriendRequest{}, repositories.ErrAlreadyProcessed
	}
	r.Status = to
	s.requests[id] = r
	return r, nil
}

func (s *memStore) AcceptRequest(ctx context.Context, id string) (models.FriendRequest, models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return models.FriendRequest{}, models.Friendship{}, repositories.ErrFriendRequestNotFound
	}
	if r.Status != models.FriendRequestPending {
		return models.FriendRequest{}, models.Friendship{}, repositories.ErrAlreadyProcessed
	}
	f, err := s.createFriendshipLocked(r.SenderID, r.ReceiverID)
	if err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}
	r.Status = models.FriendRequestAccepted
	s.requests[id] = r
	return r, f, nil
}

func (s *memStore) CreateFriendship(ctx context.Context, a, b string) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createFriendshipLocked(a, b)
}

func (s *memStore) createFriendshipLocked(a, b string) (models.Friendship, error) {
	if s.createFriendshipErr != nil {
		return models.Friendship{}, s.createFriendshipErr
	}
	key := models.DirectKey(a, b)
	if f, ok := s.friendships[key]; ok {
		return f, nil
	}
	first, second := models.CanonicalPair(a, b)
	f := models.Friendship{ID: s.nextID("f"), UserA: first, UserB: second, LastInteractionAt: time.Now().UTC()}
	s.friendships[key] = f
	return f, nil
}

func (s *memStore) GetFriendship(ctx context.Context, a, b string) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[models.DirectKey(a, b)]
	if !ok {
		return models.Friendship{}, repositories.ErrFriendshipNotFound
	}
	return f, nil
}

func (s *memStore) ListFriendships(ctx context.Context, userID string) ([]models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Friendship
	for _, f := range s.friendships {
		if f.UserA == userID || f.UserB == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastInteractionAt.After(out[j].LastInteractionAt) })
	return out, nil
}

func (s *memStore) TouchFriendship(ctx context.Context, a, b string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DirectKey(a, b)
	if f, ok := s.friendships[key]; ok {
		f.LastInteractionAt = at
		s.friendships[key] = f
	}
	return nil
}

func (s *memStore) DeleteFriendship(ctx context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.requests {
		if samePair(r, a, b) {
			delete(s.requests, id)
		}
	}
	key := models.DirectKey(a, b)
	if _, ok := s.friendships[key]; !ok {
		return repositories.ErrFriendshipNotFound
	}
	delete(s.friendships, key)
	return nil
}

// conversations

func (s *memStore) GetDirect(ctx context.Context, a, b string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DirectKey(a, b)
	for _, c := range s.convs {
		if c.DirectKey != nil && *c.DirectKey == key {
			return c, nil
		}
	}
	return models.Conversation{}, repositories.ErrConversationNotFound
}

func (s *memStore) CreateDirect(ctx context.Context, a, b string) (models.Conversation, error) {
	if s.beforeCreateDirect != nil {
		s.beforeCreateDirect()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DirectKey(a, b)
	for _, c := range s.convs {
		if c.DirectKey != nil && *c.DirectKey == key {
			return models.Conversation{}, repositories.ErrConflict
		}
	}
	first, second := models.CanonicalPair(a, b)
	c := models.Conversation{
		ID: s.nextID("c"), Kind: models.ConversationDirect, Participants: pq.StringArray{first, second},
		DirectKey: &key, LastMessageAt: time.Now().UTC(), CreatedAt: time.Now().UTC(),
	}
	s.convs[c.ID] = c
	return c, nil
}

func (s *memStore) CreateGroupConversation(ctx context.Context, participants []string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Conversation{ID: s.nextID("c"), Kind: models.ConversationGroup, Participants: participants}
	s.convs[c.ID] = c
	return c, nil
}

func (s *memStore) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return models.Conversation{}, repositories.ErrConversationNotFound
	}
	return c, nil
}

func (s *memStore) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (s *memStore) UpdateLastMessage(ctx context.Context, id, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return repositories.ErrConversationNotFound
	}
	c.LastMessageID = &messageID
	c.LastMessageAt = at
	s.convs[id] = c
	return nil
}

func (s *memStore) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

func (s *memStore) DeleteDirect(ctx context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.DirectKey(a, b)
	for id, c := range s.convs {
		if c.DirectKey != nil && *c.DirectKey == key {
			delete(s.convs, id)
		}
	}
	return nil
}

// messages

func (s *memStore) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createMessageErr != nil {
		return models.Message{}, s.createMessageErr
	}
	msg.ID = s.nextID("m")
	if msg.Attachments == nil {
		msg.Attachments = models.Attachments{}
	}
	s.messages[msg.ID] = msg
	return msg, nil
}

func (s *memStore) GetMessage(ctx context.Context, id string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return m, nil
}

func (s *memStore) ListMessages(ctx context.Context, convID string, before *time.Time, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var page []models.Message
	for _, m := range s.messages {
		if m.ConversationID == convID && (before == nil || m.CreatedAt.Before(*before)) {
			page = append(page, m)
		}
	}
	sort.Slice(page, func(i, j int) bool { return page[i].CreatedAt.After(page[j].CreatedAt) })
	if len(page) > limit {
		page = page[:limit]
	}
	sort.Slice(page, func(i, j int) bool { return page[i].CreatedAt.Before(page[j].CreatedAt) })
	return page, nil
}

func (s *memStore) MarkRead(ctx context.Context, id string, at time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if m.ReadAt == nil {
		m.ReadAt = &at
		s.messages[id] = m
	}
	return m, nil
}

func (s *memStore) MarkConversationRead(ctx context.Context, convID, userID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.messages {
		if m.ConversationID == convID && m.ReceiverID == userID && m.ReadAt == nil {
			readAt := at
			m.ReadAt = &readAt
			s.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkDeleted(ctx context.Context, id string) (models.Message, error) {
	return s.terminate(id, func(m *models.Message) { m.IsDeleted = true; m.Type = models.MessageDeleted })
}

func (s *memStore) MarkRecalled(ctx context.Context, id string) (models.Message, error) {
	return s.terminate(id, func(m *models.Message) { m.IsRecalled = true; m.Type = models.MessageRecalled })
}

func (s *memStore) terminate(id string, apply func(*models.Message)) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	if m.IsDeleted || m.IsRecalled {
		return models.Message{}, repositories.ErrAlreadyProcessed
	}
	apply(&m)
	m.Content = ""
	m.Attachments = models.Attachments{}
	s.messages[id] = m
	return m, nil
}

func (s *memStore) CountUnread(ctx context.Context, userID, convID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ReceiverID == userID && m.ReadAt == nil && !m.IsDeleted && !m.IsRecalled &&
			(convID == "" || m.ConversationID == convID) {
			n++
		}
	}
	return n, nil
}

// groups

func (s *memStore) CreateGroup(ctx context.Context, name, adminID string, members []string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := pq.StringArray{adminID}
	for _, m := range members {
		if !contains(ids, m) {
			ids = append(ids, m)
		}
	}
	conv := models.Conversation{ID: s.nextID("c"), Kind: models.ConversationGroup, Participants: append(pq.StringArray{}, ids...)}
	s.convs[conv.ID] = conv
	g := models.Group{ID: s.nextID("g"), Name: name, ConversationID: conv.ID, AdminID: adminID, Members: ids}
	s.groups[g.ID] = g
	return g, nil
}

func (s *memStore) GetGroup(ctx context.Context, id string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return models.Group{}, repositories.ErrGroupNotFound
	}
	return g, nil
}

func (s *memStore) GetGroupByConversation(ctx context.Context, convID string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ConversationID == convID {
			return g, nil
		}
	}
	return models.Group{}, repositories.ErrGroupNotFound
}

func (s *memStore) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Group{}
	for _, g := range s.groups {
		if g.IsMember(userID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *memStore) syncParticipants(g models.Group) {
	c := s.convs[g.ConversationID]
	c.Participants = append(pq.StringArray{}, g.Members...)
	s.convs[g.ConversationID] = c
}

func (s *memStore) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, repositories.ErrGroupNotFound
	}
	if !g.IsMember(userID) {
		g.Members = append(g.Members, userID)
		s.groups[groupID] = g
		s.syncParticipants(g)
	}
	return g, nil
}

func (s *memStore) RemoveMember(ctx context.Context, groupID, adminID, userID string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, repositories.ErrGroupNotFound
	}
	switch {
	case g.AdminID != adminID:
		return models.Group{}, repositories.ErrNotGroupAdmin
	case g.AdminID == userID:
		return models.Group{}, repositories.ErrMemberIsAdmin
	case !g.IsMember(userID):
		return models.Group{}, repositories.ErrMemberNotFound
	}
	g.Members = g.Without(userID)
	s.groups[groupID] = g
	s.syncParticipants(g)
	return g, nil
}

func (s *memStore) LeaveGroup(ctx context.Context, groupID, userID string) (repositories.GroupDeparture, error) {
	if s.beforeLeave != nil {
		s.beforeLeave()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return repositories.GroupDeparture{}, repositories.ErrGroupNotFound
	}
	if !g.IsMember(userID) {
		return repositories.GroupDeparture{}, repositories.ErrMemberNotFound
	}
	remaining := g.Without(userID)
	if len(remaining) == 0 {
		delete(s.groups, groupID)
		delete(s.convs, g.ConversationID)
		return repositories.GroupDeparture{Group: g, Deleted: true}, nil
	}
	departure := repositories.GroupDeparture{}
	if g.AdminID == userID {
		g.AdminID = remaining[0]
		departure.NewAdmin = g.AdminID
	}
	g.Members = remaining
	s.groups[groupID] = g
	s.syncParticipants(g)
	departure.Group = g
	return departure, nil
}

func (s *memStore) Rename(ctx context.Context, groupID, name string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return models.Group{}, repositories.ErrGroupNotFound
	}
	g.Name = name
	s.groups[groupID] = g
	return g, nil
}

func (s *memStore) DeleteGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return repositories.ErrGroupNotFound
	}
	delete(s.groups, groupID)
	delete(s.convs, g.ConversationID)
	return nil
}

// pushed is one notification captured by recordingNotifier.
type pushed struct {
	target string // user id or channel
	event  models.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	direct []pushed
	chans  []pushed
	closed []string
}

func (n *recordingNotifier) NotifyUsers(ctx context.Context, userIDs []string, event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range userIDs {
		n.direct = append(n.direct, pushed{target: id, event: event})
	}
}

func (n *recordingNotifier) Broadcast(ctx context.Context, channel string, event models.Event, exceptConnID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chans = append(n.chans, pushed{target: channel, event: event})
}

func (n *recordingNotifier) CloseChannel(channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, channel)
}

// directTo returns the event names pushed directly to userID, in order.
func (n *recordingNotifier) directTo(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var names []string
	for _, p := range n.direct {
		if p.target == userID {
			names = append(names, p.event.Name)
		}
	}
	return names
}

func (n *recordingNotifier) broadcastsOn(channel string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var names []string
	for _, p := range n.chans {
		if p.target == channel {
			names = append(names, p.event.Name)
		}
	}
	return names
}

// fixture wires every service over one memStore.
type fixture struct {
	store    *memStore
	notifier *recordingNotifier
	convs    *ConversationService
	messages *MessageService
	friends  *FriendService
	groups   *GroupService
	now      time.Time
}

func newFixture(users ...string) *fixture {
	store := newMemStore(users...)
	notifier := &recordingNotifier{}
	f := &fixture{store: store, notifier: notifier, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	f.convs = NewConversationService(store, store, store, store)
	f.messages = NewMessageService(store, store, store, store, notifier, time.Hour)
	f.messages.now = func() time.Time { return f.now }
	f.friends = NewFriendService(store, store, f.convs, f.messages, notifier)
	f.groups = NewGroupService(store, store, f.messages, notifier)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}
