package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// SystemSenderID authors lifecycle announcements.
	SystemSenderID = "system"
	// ReceiverAll addresses every member of a group conversation.
	ReceiverAll = "all"
)

// MessageType is a closed set. The zero value is invalid so that a missing type never
// silently becomes text.
type MessageType uint8

const (
	MessageTypeInvalid MessageType = iota
	MessageText
	MessageImage
	MessageImageGroup
	MessageVideo
	MessageFile
	MessageEmoji
	MessageSystem
	MessageDeleted
	MessageRecalled
)

var ErrUnknownMessageType = errors.New("unknown message type")

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageImage:
		return "image"
	case MessageImageGroup:
		return "imageGroup"
	case MessageVideo:
		return "video"
	case MessageFile:
		return "file"
	case MessageEmoji:
		return "emoji"
	case MessageSystem:
		return "system"
	case MessageDeleted:
		return "deleted"
	case MessageRecalled:
		return "recalled"
	default:
		return "invalid"
	}
}

// ParseMessageType is the inverse of String.
func ParseMessageType(s string) (MessageType, error) {
	switch s {
	case "text":
		return MessageText, nil
	case "image":
		return MessageImage, nil
	case "imageGroup":
		return MessageImageGroup, nil
	case "video":
		return MessageVideo, nil
	case "file":
		return MessageFile, nil
	case "emoji":
		return MessageEmoji, nil
	case "system":
		return MessageSystem, nil
	case "deleted":
		return MessageDeleted, nil
	case "recalled":
		return MessageRecalled, nil
	default:
		return MessageTypeInvalid, fmt.Errorf("%w: %q", ErrUnknownMessageType, s)
	}
}

// UserSendable reports whether a client may create a message of this type directly.
func (t MessageType) UserSendable() bool {
	switch t {
	case MessageText, MessageImage, MessageImageGroup, MessageVideo, MessageFile, MessageEmoji:
		return true
	case MessageSystem, MessageDeleted, MessageRecalled:
		return false
	default:
		return false
	}
}

// IsMedia reports whether the type carries attachments instead of text.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageImage, MessageImageGroup, MessageVideo, MessageFile:
		return true
	default:
		return false
	}
}

func (t MessageType) MarshalJSON() ([]byte, error) {
	if t == MessageTypeInvalid || t > MessageRecalled {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(t))
	}
	return json.Marshal(t.String())
}

func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t MessageType) Value() (driver.Value, error) {
	if t == MessageTypeInvalid || t > MessageRecalled {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint8(t))
	}
	return t.String(), nil
}

func (t *MessageType) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("scan message type: unsupported %T", src)
	}
	parsed, err := ParseMessageType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Attachment references an uploaded object.
type Attachment struct {
	URL          string `json:"url"`
	Type         string `json:"type"`
	Name         string `json:"name,omitempty"`
	Size         int64  `json:"size,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attachments) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = Attachments{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan attachments: unsupported %T", src)
	}
	out := Attachments{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

// Message is immutable after creation except for the delete and recall transitions.
type Message struct {
	ID             string      `db:"id" json:"message_id"`
	ConversationID string      `db:"conversation_id" json:"conversation_id"`
	SenderID       string      `db:"sender_id" json:"sender_id"`
	ReceiverID     string      `db:"receiver_id" json:"receiver_id"`
	Type           MessageType `db:"type" json:"type"`
	Content        string      `db:"content" json:"content"`
	Attachments    Attachments `db:"attachments" json:"attachments"`
	IsDeleted      bool        `db:"is_deleted" json:"is_deleted"`
	IsRecalled     bool        `db:"is_recalled" json:"is_recalled"`
	ReadAt         *time.Time  `db:"read_at" json:"read_at"`
	ForwardedFrom  *string     `db:"forwarded_from" json:"forwarded_from"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// IsSystem reports whether the message was authored by the system sender.
func (m Message) IsSystem() bool {
	return m.SenderID == SystemSenderID
}

// Forwardable reports whether the message still has content to copy.
func (m Message) Forwardable() bool {
	return !m.IsDeleted && !m.IsRecalled
}
