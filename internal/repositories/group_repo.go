package repositories

import (
	"context"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
)

// GroupRepository 群组仓储
type GroupRepository struct {
	base[models.Group]

	servers  *ServerRepository
	members  *GroupMemberRepository
	channels *ChannelRepository
}

// Server loads the containing server.
func (r *GroupRepository) Server(ctx context.Context, group *models.Group) (*models.Server, error) {
	return r.servers.GetUnique(ctx, group.ServerID)
}

// Members lists the group's membership rows.
func (r *GroupRepository) Members(ctx context.Context, groupID string, q Query) ([]models.GroupMember, error) {
	q.Filter = query.And(query.Eq("group_id", groupID), q.Filter)
	return r.members.FindMany(ctx, q)
}

// Channels lists the group's channels.
func (r *GroupRepository) Channels(ctx context.Context, groupID string, q Query) ([]models.Channel, error) {
	q.Filter = query.And(query.Eq("group_id", groupID), q.Filter)
	return r.channels.FindMany(ctx, q)
}
