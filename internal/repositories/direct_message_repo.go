package repositories

import (
	"context"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
)

// DirectMessageRepository 私聊消息仓储
type DirectMessageRepository struct {
	base[models.DirectMessage]

	users *UserRepository
}

// Sender loads the sending user.
func (r *DirectMessageRepository) Sender(ctx context.Context, dm *models.DirectMessage) (*models.User, error) {
	return r.users.GetUnique(ctx, dm.SenderID)
}

// Receiver loads the receiving user.
func (r *DirectMessageRepository) Receiver(ctx context.Context, dm *models.DirectMessage) (*models.User, error) {
	return r.users.GetUnique(ctx, dm.ReceiverID)
}

// Conversation lists the messages exchanged between two users, in either
// direction.
func (r *DirectMessageRepository) Conversation(ctx context.Context, userA, userB string, q Query) ([]models.DirectMessage, error) {
	between := query.Or(
		query.And(query.Eq("sender_id", userA), query.Eq("receiver_id", userB)),
		query.And(query.Eq("sender_id", userB), query.Eq("receiver_id", userA)),
	)
	q.Filter = query.And(between, q.Filter)
	return r.FindMany(ctx, q)
}
