package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// UserRepository is a read-only view of the user directory.
type UserRepository interface {
	GetUser(ctx context.Context, userID string) (models.User, error)
	BulkUsers(ctx context.Context, ids []string) ([]models.User, error)
	SearchByEmail(ctx context.Context, pattern string, limit int) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches one user.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT id, email, full_name, avatar_url FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkUsers fetches multiple users in one query. Unknown ids are skipped.
func (r *UserRepo) BulkUsers(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, email, full_name, avatar_url FROM users WHERE id = ANY($1)`, pq.Array(ids))
	return users, err
}

// SearchByEmail returns users whose email contains pattern, case-insensitively.
func (r *UserRepo) SearchByEmail(ctx context.Context, pattern string, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT id, email, full_name, avatar_url FROM users
        WHERE email ILIKE '%' || $1 || '%' ORDER BY email LIMIT $2`, pattern, limit)
	return users, err
}
