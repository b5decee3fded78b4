package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/storage"
)

// ServerMemberRepository 服务器成员仓储，(user_id, server_id) 唯一
type ServerMemberRepository struct {
	base[models.ServerMember]

	users   *UserRepository
	servers *ServerRepository
}

// FindByUserServer looks a membership up by its composite unique key.
// Absence is (nil, nil).
func (r *ServerMemberRepository) FindByUserServer(ctx context.Context, userID, serverID string) (*models.ServerMember, error) {
	var m models.ServerMember
	err := r.session(ctx).Where("user_id = ? AND server_id = ?", userID, serverID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Translate(err)
	}
	return &m, nil
}

// GetByUserServer is the throwing form of FindByUserServer.
func (r *ServerMemberRepository) GetByUserServer(ctx context.Context, userID, serverID string) (*models.ServerMember, error) {
	m, err := r.FindByUserServer(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: member of server %q for user %q", storage.ErrNotFound, serverID, userID)
	}
	return m, nil
}

// UpsertByUserServer updates the membership for the pair, or inserts
// create when the user is not a member yet.
func (r *ServerMemberRepository) UpsertByUserServer(ctx context.Context, userID, serverID string, create models.ServerMember, patch map[string]any) (*models.ServerMember, error) {
	return r.upsert(ctx, "user_id = ? AND server_id = ?", []any{userID, serverID}, create, patch)
}

// DeleteByUserServer removes the membership for the pair and returns its
// prior state. ErrNotFound when the user was not a member.
func (r *ServerMemberRepository) DeleteByUserServer(ctx context.Context, userID, serverID string) (*models.ServerMember, error) {
	m, err := r.GetByUserServer(ctx, userID, serverID)
	if err != nil {
		return nil, err
	}
	return r.DeleteByPK(ctx, m.ID)
}

// User loads the member's user row.
func (r *ServerMemberRepository) User(ctx context.Context, m *models.ServerMember) (*models.User, error) {
	return r.users.GetUnique(ctx, m.UserID)
}

// Server loads the member's server row.
func (r *ServerMemberRepository) Server(ctx context.Context, m *models.ServerMember) (*models.Server, error) {
	return r.servers.GetUnique(ctx, m.ServerID)
}
