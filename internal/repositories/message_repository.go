package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// MessageRepository defines interactions for messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string, at time.Time) (models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error)
	MarkDeleted(ctx context.Context, messageID string) (models.Message, error)
	MarkRecalled(ctx context.Context, messageID string) (models.Message, error)
	CountUnread(ctx context.Context, userID, conversationID string) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, type, content, attachments,
        is_deleted, is_recalled, read_at, forwarded_from, created_at`

// CreateMessage stores msg. ID and CreatedAt are assigned when empty.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Attachments == nil {
		msg.Attachments = models.Attachments{}
	}

	var stored models.Message
	err := r.db.GetContext(ctx, &stored, `INSERT INTO messages
        (id, conversation_id, sender_id, receiver_id, type, content, attachments, forwarded_from, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+messageColumns,
		msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Type, msg.Content, msg.Attachments, msg.ForwardedFrom, msg.CreatedAt)
	return stored, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns the newest limit messages created strictly before the cursor, oldest first.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT * FROM (
            SELECT `+messageColumns+` FROM messages
            WHERE conversation_id=$1 AND ($2::timestamptz IS NULL OR created_at < $2)
            ORDER BY created_at DESC LIMIT $3
        ) page ORDER BY created_at ASC`, conversationID, before, limit)
	return msgs, err
}

// MarkRead sets read_at unless it is already set.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string, at time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET read_at = COALESCE(read_at, $2)
        WHERE id=$1 RETURNING `+messageColumns, messageID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkConversationRead marks every unread message addressed to userID and returns how many changed.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET read_at=$3
        WHERE conversation_id=$1 AND receiver_id=$2 AND read_at IS NULL`, conversationID, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkDeleted clears the message body. Messages already in a terminal state are left alone and
// ErrAlreadyProcessed is returned.
func (r *MessageRepo) MarkDeleted(ctx context.Context, messageID string) (models.Message, error) {
	return r.terminate(ctx, messageID, `is_deleted=TRUE, type='deleted'`)
}

// MarkRecalled clears the message body and flags it recalled.
func (r *MessageRepo) MarkRecalled(ctx context.Context, messageID string) (models.Message, error) {
	return r.terminate(ctx, messageID, `is_recalled=TRUE, type='recalled'`)
}

func (r *MessageRepo) terminate(ctx context.Context, messageID, set string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET `+set+`, content='', attachments='[]'
        WHERE id=$1 AND is_deleted=FALSE AND is_recalled=FALSE RETURNING `+messageColumns, messageID)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, err
	}
	if _, err := r.GetMessage(ctx, messageID); err != nil {
		return models.Message{}, err
	}
	return models.Message{}, ErrAlreadyProcessed
}

// CountUnread counts live unread messages addressed to userID. An empty conversationID counts
// across all conversations.
func (r *MessageRepo) CountUnread(ctx context.Context, userID, conversationID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE receiver_id=$1 AND read_at IS NULL AND is_deleted=FALSE AND is_recalled=FALSE
        AND ($2 = '' OR conversation_id=$2)`, userID, conversationID)
	return count, err
}
