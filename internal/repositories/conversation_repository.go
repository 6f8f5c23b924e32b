package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	GetDirect(ctx context.Context, userA, userB string) (models.Conversation, error)
	CreateDirect(ctx context.Context, userA, userB string) (models.Conversation, error)
	CreateGroupConversation(ctx context.Context, participants []string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	UpdateLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
	DeleteConversation(ctx context.Context, conversationID string) error
	DeleteDirect(ctx context.Context, userA, userB string) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, kind, participants, direct_key, last_message_id, last_message_at, created_at`

// GetDirect looks up the direct conversation between two users.
func (r *ConversationRepo) GetDirect(ctx context.Context, userA, userB string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, models.DirectKey(userA, userB))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// CreateDirect inserts a direct conversation. When another writer created the same pair first
// the unique direct_key rejects the insert and ErrConflict is returned.
func (r *ConversationRepo) CreateDirect(ctx context.Context, userA, userB string) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, errors.New("cannot create conversation with self")
	}
	first, second := models.CanonicalPair(userA, userB)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (id, kind, participants, direct_key)
        VALUES ($1, 'direct', $2, $3) RETURNING `+conversationColumns,
		uuid.NewString(), pq.StringArray{first, second}, models.DirectKey(first, second))
	if isUniqueViolation(err) {
		return models.Conversation{}, ErrConflict
	}
	return conv, err
}

// CreateGroupConversation inserts a group conversation. Groups have no direct_key.
func (r *ConversationRepo) CreateGroupConversation(ctx context.Context, participants []string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `INSERT INTO conversations (id, kind, participants)
        VALUES ($1, 'group', $2) RETURNING `+conversationColumns, uuid.NewString(), pq.StringArray(participants))
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListForUser returns conversations the user takes part in, most recent activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations
        WHERE $1 = ANY(participants) ORDER BY last_message_at DESC`, userID)
	return convs, err
}

// UpdateLastMessage moves the conversation pointer to messageID.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2, last_message_at=$3 WHERE id=$1`, conversationID, messageID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// DeleteConversation removes a conversation. Its messages are kept.
func (r *ConversationRepo) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, conversationID)
	return err
}

// DeleteDirect removes the direct conversation between the pair, if any.
func (r *ConversationRepo) DeleteDirect(ctx context.Context, userA, userB string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE direct_key=$1`, models.DirectKey(userA, userB))
	return err
}
