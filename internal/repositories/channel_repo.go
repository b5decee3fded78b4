package repositories

import (
	"context"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
)

// ChannelRepository 频道仓储
type ChannelRepository struct {
	base[models.Channel]

	groups   *GroupRepository
	messages *MessageRepository
}

// Group loads the containing group.
func (r *ChannelRepository) Group(ctx context.Context, channel *models.Channel) (*models.Group, error) {
	return r.groups.GetUnique(ctx, channel.GroupID)
}

// Messages lists the channel's messages.
func (r *ChannelRepository) Messages(ctx context.Context, channelID string, q Query) ([]models.Message, error) {
	q.Filter = query.And(query.Eq("channel_id", channelID), q.Filter)
	return r.messages.FindMany(ctx, q)
}
