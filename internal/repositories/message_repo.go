package repositories

import (
	"context"

	"go.uber.org/zap"

	"github.com/concord-im/concord/internal/cache"
	"github.com/concord-im/concord/internal/models"
)

// MessageRepository 频道消息仓储
type MessageRepository struct {
	base[models.Message]

	seq      *cache.Cache // sequence source, nil when redis is disabled
	users    *UserRepository
	channels *ChannelRepository
}

// Create inserts a message, assigning the next per-channel sequence number
// when a sequence source is configured. A sequence failure does not block
// the write; the message keeps sequence 0.
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	if r.seq != nil && msg.SequenceID == 0 {
		seq, err := r.seq.NextSequence(ctx, msg.ChannelID)
		if err != nil {
			r.log.WarnContext(ctx, "sequence assignment failed",
				zap.String("channel_id", msg.ChannelID), zap.Error(err))
		} else {
			msg.SequenceID = seq
		}
	}
	return r.base.Create(ctx, msg)
}

// Author loads the message's author.
func (r *MessageRepository) Author(ctx context.Context, msg *models.Message) (*models.User, error) {
	return r.users.GetUnique(ctx, msg.UserID)
}

// Channel loads the message's channel.
func (r *MessageRepository) Channel(ctx context.Context, msg *models.Message) (*models.Channel, error) {
	return r.channels.GetUnique(ctx, msg.ChannelID)
}
