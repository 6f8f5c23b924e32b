package models

// Server-to-client event names.
const (
	EventReceiveMessage        = "receive_message"
	EventUpdateConversation    = "update_conversation"
	EventMessageSentSuccess    = "message_sent_success"
	EventMessageDeleted        = "message_deleted"
	EventMessageRecalled       = "message_recalled"
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
	EventOnlineUsers           = "online_users"
	EventFriendRequest         = "friend_request"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventConversationCreated   = "conversation_created"
	EventFriendListUpdated     = "friend_list_updated"
	EventFriendRemoved         = "friend_removed"
	EventGroupCreated          = "group_created"
	EventGroupMemberAdded      = "group_member_added"
	EventGroupMemberRemoved    = "group_member_removed"
	EventGroupMemberLeft       = "group_member_left"
	EventLeftGroup             = "left_group"
	EventGroupRenamed          = "group_renamed"
	EventGroupDeleted          = "group_deleted"
	EventTyping                = "typing"
	EventReadMessages          = "read_messages"
	EventError                 = "error"
)

// Client-to-server event names.
const (
	ClientUserConnected     = "user_connected"
	ClientJoinConversation  = "join_conversation"
	ClientLeaveConversation = "leave_conversation"
	ClientJoinGroup         = "join_group"
	ClientLeaveGroup        = "leave_group"
	ClientTyping            = "typing"
	ClientReadMessages      = "read_messages"
)

// Event is the envelope pushed over websocket connections.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// NewEvent builds an Event.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// PresenceChange is the payload of user_online / user_offline.
type PresenceChange struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// ConversationUpdate tells a client to refresh one entry of its conversation list.
type ConversationUpdate struct {
	ConversationID string   `json:"conversation_id"`
	LastMessage    *Message `json:"last_message,omitempty"`
}

// FriendRequestNotice is the payload of friend_request.
type FriendRequestNotice struct {
	RequestID string `json:"request_id"`
	Sender    User   `json:"sender"`
	Message   string `json:"message"`
}

// FriendAccepted is the payload of friend_request_accepted and conversation_created.
type FriendAccepted struct {
	RequestID    string        `json:"request_id"`
	Status       string        `json:"status"`
	Friend       User          `json:"friend"`
	Conversation *Conversation `json:"conversation,omitempty"`
}

// GroupNotice is the payload of every group_* event.
type GroupNotice struct {
	Group    Group    `json:"group"`
	ActorID  string   `json:"actor_id,omitempty"`
	MemberID string   `json:"member_id,omitempty"`
	OldName  string   `json:"old_name,omitempty"`
	Message  *Message `json:"message,omitempty"`
}

// TypingNotice is relayed to a conversation channel.
type TypingNotice struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	IsTyping       bool   `json:"is_typing"`
}

// ReadNotice is relayed when a participant reads a conversation.
type ReadNotice struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Count          int64  `json:"count"`
}
