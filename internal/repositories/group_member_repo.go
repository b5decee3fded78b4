package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/storage"
)

// GroupMemberRepository 群组成员仓储，(user_id, group_id) 唯一
type GroupMemberRepository struct {
	base[models.GroupMember]

	users  *UserRepository
	groups *GroupRepository
}

// FindByUserGroup looks a membership up by its composite unique key.
// Absence is (nil, nil).
func (r *GroupMemberRepository) FindByUserGroup(ctx context.Context, userID, groupID string) (*models.GroupMember, error) {
	var m models.GroupMember
	err := r.session(ctx).Where("user_id = ? AND group_id = ?", userID, groupID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Translate(err)
	}
	return &m, nil
}

// GetByUserGroup is the throwing form of FindByUserGroup.
func (r *GroupMemberRepository) GetByUserGroup(ctx context.Context, userID, groupID string) (*models.GroupMember, error) {
	m, err := r.FindByUserGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: member of group %q for user %q", storage.ErrNotFound, groupID, userID)
	}
	return m, nil
}

// UpsertByUserGroup updates the membership for the pair, or inserts
// create when the user is not a member yet.
func (r *GroupMemberRepository) UpsertByUserGroup(ctx context.Context, userID, groupID string, create models.GroupMember, patch map[string]any) (*models.GroupMember, error) {
	return r.upsert(ctx, "user_id = ? AND group_id = ?", []any{userID, groupID}, create, patch)
}

// DeleteByUserGroup removes the membership for the pair and returns its
// prior state. ErrNotFound when the user was not a member.
func (r *GroupMemberRepository) DeleteByUserGroup(ctx context.Context, userID, groupID string) (*models.GroupMember, error) {
	m, err := r.GetByUserGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	return r.DeleteByPK(ctx, m.ID)
}

// User loads the member's user row.
func (r *GroupMemberRepository) User(ctx context.Context, m *models.GroupMember) (*models.User, error) {
	return r.users.GetUnique(ctx, m.UserID)
}

// Group loads the member's group row.
func (r *GroupMemberRepository) Group(ctx context.Context, m *models.GroupMember) (*models.Group, error) {
	return r.groups.GetUnique(ctx, m.GroupID)
}
