package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
	"github.com/concord-im/concord/internal/storage"
)

// UserRepository 用户仓储
type UserRepository struct {
	base[models.User]

	servers      *ServerRepository
	members      *ServerMemberRepository
	groupMembers *GroupMemberRepository
	messages     *MessageRepository
	dms          *DirectMessageRepository
}

// FindByEmail looks a user up by the unique email. Absence is (nil, nil).
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.session(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Translate(err)
	}
	return &user, nil
}

// GetByEmail is the throwing form of FindByEmail.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user with email %q", storage.ErrNotFound, email)
	}
	return user, nil
}

// UpsertByEmail updates the user holding the email, or inserts create when
// none does.
func (r *UserRepository) UpsertByEmail(ctx context.Context, email string, create models.User, patch map[string]any) (*models.User, error) {
	return r.upsert(ctx, "email = ?", []any{email}, create, patch)
}

// OwnedServers lists the servers the user owns.
func (r *UserRepository) OwnedServers(ctx context.Context, userID string, q Query) ([]models.Server, error) {
	q.Filter = query.And(query.Eq("owner_id", userID), q.Filter)
	return r.servers.FindMany(ctx, q)
}

// Memberships lists the user's server memberships.
func (r *UserRepository) Memberships(ctx context.Context, userID string, q Query) ([]models.ServerMember, error) {
	q.Filter = query.And(query.Eq("user_id", userID), q.Filter)
	return r.members.FindMany(ctx, q)
}

// GroupMemberships lists the user's group memberships.
func (r *UserRepository) GroupMemberships(ctx context.Context, userID string, q Query) ([]models.GroupMember, error) {
	q.Filter = query.And(query.Eq("user_id", userID), q.Filter)
	return r.groupMembers.FindMany(ctx, q)
}

// Messages lists the channel messages the user authored.
func (r *UserRepository) Messages(ctx context.Context, userID string, q Query) ([]models.Message, error) {
	q.Filter = query.And(query.Eq("user_id", userID), q.Filter)
	return r.messages.FindMany(ctx, q)
}

// SentMessages lists the direct messages the user sent.
func (r *UserRepository) SentMessages(ctx context.Context, userID string, q Query) ([]models.DirectMessage, error) {
	q.Filter = query.And(query.Eq("sender_id", userID), q.Filter)
	return r.dms.FindMany(ctx, q)
}

// ReceivedMessages lists the direct messages the user received.
func (r *UserRepository) ReceivedMessages(ctx context.Context, userID string, q Query) ([]models.DirectMessage, error) {
	q.Filter = query.And(query.Eq("receiver_id", userID), q.Filter)
	return r.dms.FindMany(ctx, q)
}
