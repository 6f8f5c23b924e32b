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

// FriendRepository persists friend requests and friendships.
type FriendRepository interface {
	ReplaceRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error)
	CreateAcceptedRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	FindRequestBetween(ctx context.Context, userA, userB string, status models.FriendRequestStatus) (models.FriendRequest, error)
	ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error)
	ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error)
	TransitionRequest(ctx context.Context, requestID string, to models.FriendRequestStatus) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID string) (models.FriendRequest, models.Friendship, error)
	CreateFriendship(ctx context.Context, userA, userB string) (models.Friendship, error)
	GetFriendship(ctx context.Context, userA, userB string) (models.Friendship, error)
	ListFriendships(ctx context.Context, userID string) ([]models.Friendship, error)
	TouchFriendship(ctx context.Context, userA, userB string, at time.Time) error
	DeleteFriendship(ctx context.Context, userA, userB string) error
}

// FriendRepo is a sqlx implementation of FriendRepository.
type FriendRepo struct {
	db *sqlx.DB
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

const requestColumns = `id, sender_id, receiver_id, status, message, created_at, updated_at`
const friendshipColumns = `id, user_a, user_b, last_interaction_at, created_at`

const pairPredicate = `((sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1))`

// ReplaceRequest purges every earlier request and friendship between the pair, then stores a
// fresh pending request. A concurrent duplicate surfaces as ErrConflict.
func (r *FriendRepo) ReplaceRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FriendRequest{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM friend_requests WHERE `+pairPredicate, senderID, receiverID); err != nil {
		return models.FriendRequest{}, err
	}
	userA, userB := models.CanonicalPair(senderID, receiverID)
	if _, err = tx.ExecContext(ctx, `DELETE FROM friendships WHERE user_a=$1 AND user_b=$2`, userA, userB); err != nil {
		return models.FriendRequest{}, err
	}

	var req models.FriendRequest
	err = tx.GetContext(ctx, &req, `INSERT INTO friend_requests (id, sender_id, receiver_id, status, message)
        VALUES ($1, $2, $3, 'pending', $4) RETURNING `+requestColumns, uuid.NewString(), senderID, receiverID, message)
	if err != nil {
		if isUniqueViolation(err) {
			return models.FriendRequest{}, ErrConflict
		}
		return models.FriendRequest{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.FriendRequest{}, err
	}
	return req, nil
}

// CreateAcceptedRequest stores a request that is already accepted.
func (r *FriendRepo) CreateAcceptedRequest(ctx context.Context, senderID, receiverID, message string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `INSERT INTO friend_requests (id, sender_id, receiver_id, status, message)
        VALUES ($1, $2, $3, 'accepted', $4) RETURNING `+requestColumns, uuid.NewString(), senderID, receiverID, message)
	return req, err
}

// GetRequest fetches a request by id.
func (r *FriendRepo) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// FindRequestBetween returns the newest request with status between the pair, in either direction.
func (r *FriendRepo) FindRequestBetween(ctx context.Context, userA, userB string, status models.FriendRequestStatus) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM friend_requests
        WHERE `+pairPredicate+` AND status=$3 ORDER BY created_at DESC LIMIT 1`, userA, userB, status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// ListReceived returns requests addressed to userID, newest first.
func (r *FriendRepo) ListReceived(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.SelectContext(ctx, &reqs, `SELECT `+requestColumns+` FROM friend_requests
        WHERE receiver_id=$1 AND status=$2 ORDER BY created_at DESC`, userID, status)
	return reqs, err
}

// ListSent returns requests sent by userID, newest first.
func (r *FriendRepo) ListSent(ctx context.Context, userID string, status models.FriendRequestStatus) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := r.db.SelectContext(ctx, &reqs, `SELECT `+requestColumns+` FROM friend_requests
        WHERE sender_id=$1 AND status=$2 ORDER BY created_at DESC`, userID, status)
	return reqs, err
}

// TransitionRequest moves a pending request to a terminal status. Exactly one concurrent caller
// wins; the rest get ErrAlreadyProcessed.
func (r *FriendRepo) TransitionRequest(ctx context.Context, requestID string, to models.FriendRequestStatus) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := r.db.GetContext(ctx, &req, `UPDATE friend_requests SET status=$2, updated_at=NOW()
        WHERE id=$1 AND status='pending' RETURNING `+requestColumns, requestID, to)
	if err == nil {
		return req, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, err
	}
	if _, err := r.GetRequest(ctx, requestID); err != nil {
		return models.FriendRequest{}, err
	}
	return models.FriendRequest{}, ErrAlreadyProcessed
}

// AcceptRequest moves a pending request to accepted and stores the friendship in one
// transaction. If the friendship cannot be written the request stays pending.
func (r *FriendRepo) AcceptRequest(ctx context.Context, requestID string) (models.FriendRequest, models.Friendship, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var req models.FriendRequest
	err = tx.GetContext(ctx, &req, `UPDATE friend_requests SET status='accepted', updated_at=NOW()
        WHERE id=$1 AND status='pending' RETURNING `+requestColumns, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrAlreadyProcessed
		var exists bool
		if qerr := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM friend_requests WHERE id=$1)`, requestID); qerr != nil {
			err = qerr
		} else if !exists {
			err = ErrFriendRequestNotFound
		}
		return models.FriendRequest{}, models.Friendship{}, err
	}
	if err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}

	first, second := models.CanonicalPair(req.SenderID, req.ReceiverID)
	if _, err = tx.ExecContext(ctx, `INSERT INTO friendships (id, user_a, user_b) VALUES ($1, $2, $3)
        ON CONFLICT (user_a, user_b) DO NOTHING`, uuid.NewString(), first, second); err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}
	var friendship models.Friendship
	if err = tx.GetContext(ctx, &friendship, `SELECT `+friendshipColumns+` FROM friendships
        WHERE user_a=$1 AND user_b=$2`, first, second); err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.FriendRequest{}, models.Friendship{}, err
	}
	return req, friendship, nil
}

// CreateFriendship inserts the friendship unless it already exists and returns the stored row.
func (r *FriendRepo) CreateFriendship(ctx context.Context, userA, userB string) (models.Friendship, error) {
	first, second := models.CanonicalPair(userA, userB)
	if _, err := r.db.ExecContext(ctx, `INSERT INTO friendships (id, user_a, user_b) VALUES ($1, $2, $3)
        ON CONFLICT (user_a, user_b) DO NOTHING`, uuid.NewString(), first, second); err != nil {
		return models.Friendship{}, err
	}
	return r.GetFriendship(ctx, first, second)
}

// GetFriendship fetches the friendship between the pair.
func (r *FriendRepo) GetFriendship(ctx context.Context, userA, userB string) (models.Friendship, error) {
	first, second := models.CanonicalPair(userA, userB)
	var f models.Friendship
	err := r.db.GetContext(ctx, &f, `SELECT `+friendshipColumns+` FROM friendships WHERE user_a=$1 AND user_b=$2`, first, second)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Friendship{}, ErrFriendshipNotFound
	}
	return f, err
}

// ListFriendships returns the user's friendships, most recently active first.
func (r *FriendRepo) ListFriendships(ctx context.Context, userID string) ([]models.Friendship, error) {
	var fs []models.Friendship
	err := r.db.SelectContext(ctx, &fs, `SELECT `+friendshipColumns+` FROM friendships
        WHERE user_a=$1 OR user_b=$1 ORDER BY last_interaction_at DESC`, userID)
	return fs, err
}

// TouchFriendship records an interaction. A missing friendship is not an error.
func (r *FriendRepo) TouchFriendship(ctx context.Context, userA, userB string, at time.Time) error {
	first, second := models.CanonicalPair(userA, userB)
	_, err := r.db.ExecContext(ctx, `UPDATE friendships SET last_interaction_at=$3 WHERE user_a=$1 AND user_b=$2`, first, second, at)
	return err
}

// DeleteFriendship removes the friendship and every request between the pair.
func (r *FriendRepo) DeleteFriendship(ctx context.Context, userA, userB string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM friend_requests WHERE `+pairPredicate, userA, userB); err != nil {
		return err
	}
	first, second := models.CanonicalPair(userA, userB)
	res, err := tx.ExecContext(ctx, `DELETE FROM friendships WHERE user_a=$1 AND user_b=$2`, first, second)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		err = ErrFriendshipNotFound
		return err
	}
	return tx.Commit()
}
