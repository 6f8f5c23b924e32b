package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, name, adminID string, members []string) (models.Group, error)
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
	GetGroupByConversation(ctx context.Context, conversationID string) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID string) (models.Group, error)
	RemoveMember(ctx context.Context, groupID, adminID, userID string) (models.Group, error)
	LeaveGroup(ctx context.Context, groupID, userID string) (GroupDeparture, error)
	Rename(ctx context.Context, groupID, name string) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID string) error
}

// GroupDeparture describes the group after a member left. When Deleted is set Group holds the
// last state before deletion.
type GroupDeparture struct {
	Group    models.Group
	Deleted  bool
	NewAdmin string
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

const groupColumns = `id, name, conversation_id, admin_id, members, created_at`

// CreateGroup creates a group together with its conversation atomically. The admin is always
// the first member and duplicates are dropped.
func (r *GroupRepo) CreateGroup(ctx context.Context, name, adminID string, members []string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	seen := map[string]struct{}{adminID: {}}
	ids := pq.StringArray{adminID}
	for _, id := range members {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	convID := uuid.NewString()
	if _, err = tx.ExecContext(ctx, `INSERT INTO conversations (id, kind, participants) VALUES ($1, 'group', $2)`, convID, ids); err != nil {
		return models.Group{}, err
	}

	var group models.Group
	if err = tx.GetContext(ctx, &group, `INSERT INTO groups (id, name, conversation_id, admin_id, members)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns, uuid.NewString(), name, convID, adminID, ids); err != nil {
		return models.Group{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// GetGroup fetches a group by id.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	return r.getBy(ctx, r.db, `id`, groupID)
}

// GetGroupByConversation fetches the group that owns conversationID.
func (r *GroupRepo) GetGroupByConversation(ctx context.Context, conversationID string) (models.Group, error) {
	return r.getBy(ctx, r.db, `conversation_id`, conversationID)
}

func (r *GroupRepo) getBy(ctx context.Context, q sqlx.QueryerContext, column, value string) (models.Group, error) {
	var group models.Group
	err := sqlx.GetContext(ctx, q, &group, `SELECT `+groupColumns+` FROM groups WHERE `+column+`=$1`, value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroupsForUser returns groups that include the user, newest first.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, `SELECT `+groupColumns+` FROM groups
        WHERE $1 = ANY(members) ORDER BY created_at DESC`, userID)
	return groups, err
}

// AddMember appends userID to the group and its conversation. Adding an existing member is a no-op.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `UPDATE groups SET members = array_append(members, $2)
        WHERE id=$1 AND NOT ($2 = ANY(members)) RETURNING `+groupColumns, groupID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		group, err = r.getBy(ctx, tx, `id`, groupID)
		if err != nil {
			return models.Group{}, err
		}
		if err = tx.Commit(); err != nil {
			return models.Group{}, err
		}
		return group, nil
	}
	if err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversations SET participants=$2 WHERE id=$1`, group.ConversationID, group.Members); err != nil {
		return models.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// RemoveMember drops userID from the group and its conversation on behalf of adminID. The
// update only applies while adminID is still the admin and userID is not.
func (r *GroupRepo) RemoveMember(ctx context.Context, groupID, adminID, userID string) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `UPDATE groups SET members = array_remove(members, $3)
        WHERE id=$1 AND admin_id=$2 AND admin_id<>$3 AND $3 = ANY(members) RETURNING `+groupColumns, groupID, adminID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		var current models.Group
		if current, err = r.getBy(ctx, tx, `id`, groupID); err != nil {
			return models.Group{}, err
		}
		switch {
		case current.AdminID != adminID:
			err = ErrNotGroupAdmin
		case current.AdminID == userID:
			err = ErrMemberIsAdmin
		default:
			err = ErrMemberNotFound
		}
		return models.Group{}, err
	}
	if err != nil {
		return models.Group{}, err
	}

	if err = r.syncParticipants(ctx, tx, group); err != nil {
		return models.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// LeaveGroup removes userID under a row lock so that the last-member and admin handover
// decisions see every concurrent departure. The last member leaving deletes the group and its
// conversation; an admin leaving hands admin to the first remaining member.
func (r *GroupRepo) LeaveGroup(ctx context.Context, groupID, userID string) (GroupDeparture, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return GroupDeparture{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	err = tx.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1 FOR UPDATE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return GroupDeparture{}, err
	}
	if err != nil {
		return GroupDeparture{}, err
	}
	if !group.IsMember(userID) {
		err = ErrMemberNotFound
		return GroupDeparture{}, err
	}

	remaining := group.Without(userID)
	if len(remaining) == 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID); err != nil {
			return GroupDeparture{}, err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, group.ConversationID); err != nil {
			return GroupDeparture{}, err
		}
		if err = tx.Commit(); err != nil {
			return GroupDeparture{}, err
		}
		return GroupDeparture{Group: group, Deleted: true}, nil
	}

	departure := GroupDeparture{}
	adminID := group.AdminID
	if adminID == userID {
		adminID = remaining[0]
		departure.NewAdmin = adminID
	}
	err = tx.GetContext(ctx, &departure.Group, `UPDATE groups SET members=$2, admin_id=$3 WHERE id=$1
        RETURNING `+groupColumns, groupID, pq.StringArray(remaining), adminID)
	if err != nil {
		return GroupDeparture{}, err
	}
	if err = r.syncParticipants(ctx, tx, departure.Group); err != nil {
		return GroupDeparture{}, err
	}
	if err = tx.Commit(); err != nil {
		return GroupDeparture{}, err
	}
	return departure, nil
}

func (r *GroupRepo) syncParticipants(ctx context.Context, tx *sqlx.Tx, group models.Group) error {
	_, err := tx.ExecContext(ctx, `UPDATE conversations SET participants=$2 WHERE id=$1`, group.ConversationID, group.Members)
	return err
}

// Rename changes the group's display name.
func (r *GroupRepo) Rename(ctx context.Context, groupID, name string) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `UPDATE groups SET name=$2 WHERE id=$1 RETURNING `+groupColumns, groupID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// DeleteGroup removes the group and its conversation.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var convID string
	err = tx.GetContext(ctx, &convID, `DELETE FROM groups WHERE id=$1 RETURNING conversation_id`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrGroupNotFound
		return err
	}
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1`, convID); err != nil {
		return err
	}
	return tx.Commit()
}
