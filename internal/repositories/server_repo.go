package repositories

import (
	"context"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
)

// ServerRepository 服务器仓储
type ServerRepository struct {
	base[models.Server]

	users   *UserRepository
	members *ServerMemberRepository
	groups  *GroupRepository
}

// Owner loads the owning user.
func (r *ServerRepository) Owner(ctx context.Context, server *models.Server) (*models.User, error) {
	return r.users.GetUnique(ctx, server.OwnerID)
}

// Members lists the server's membership rows.
func (r *ServerRepository) Members(ctx context.Context, serverID string, q Query) ([]models.ServerMember, error) {
	q.Filter = query.And(query.Eq("server_id", serverID), q.Filter)
	return r.members.FindMany(ctx, q)
}

// Groups lists the server's groups.
func (r *ServerRepository) Groups(ctx context.Context, serverID string, q Query) ([]models.Group, error) {
	q.Filter = query.And(query.Eq("server_id", serverID), q.Filter)
	return r.groups.FindMany(ctx, q)
}
