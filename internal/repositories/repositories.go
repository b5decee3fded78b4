// Package repositories exposes the typed data-access surface: one
// repository per model with find/create/update/upsert/delete/count/
// aggregate/groupBy operations, relation loaders, a transaction wrapper
// and a raw-SQL escape hatch.
package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/concord-im/concord/config"
	"github.com/concord-im/concord/internal/cache"
	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
	"github.com/concord-im/concord/internal/storage"
	logger "github.com/concord-im/concord/middleware/log"
)

// modelSchemas maps the config model names onto their schemas, for
// validating the configured global column omissions.
var modelSchemas = map[string]*query.Schema{
	"user":           models.UserSchema,
	"server":         models.ServerSchema,
	"server_member":  models.ServerMemberSchema,
	"group":          models.GroupSchema,
	"group_member":   models.GroupMemberSchema,
	"channel":        models.ChannelSchema,
	"message":        models.MessageSchema,
	"direct_message": models.DirectMessageSchema,
}

// Repositories 聚合全部实体仓储，并提供事务与原生 SQL 逃生口
type Repositories struct {
	db    *gorm.DB
	log   *logger.Logger
	cache *cache.Cache
	txCfg config.TransactionConfig
	omits map[string]query.Projection

	Users          *UserRepository
	Servers        *ServerRepository
	ServerMembers  *ServerMemberRepository
	Groups         *GroupRepository
	GroupMembers   *GroupMemberRepository
	Channels       *ChannelRepository
	Messages       *MessageRepository
	DirectMessages *DirectMessageRepository
}

// New wires every repository over one gorm handle. c may be nil to run
// without a cache.
func New(db *gorm.DB, log *logger.Logger, c *cache.Cache, cfg *config.Config) (*Repositories, error) {
	omits, err := omitProjections(cfg)
	if err != nil {
		return nil, err
	}
	r := &Repositories{
		log:   log,
		cache: c,
		txCfg: cfg.Transaction,
		omits: omits,
	}
	r.bindTo(r, db, nil)
	return r, nil
}

// bind returns a bundle running every repository on the given handle,
// typically a transaction. The journal absorbs cache invalidations until
// commit; while it is attached the shared cache is not consulted, so
// uncommitted rows never become visible outside the transaction.
func (r *Repositories) bind(db *gorm.DB, j *txJournal) *Repositories {
	scoped := &Repositories{
		log:   r.log,
		cache: r.cache,
		txCfg: r.txCfg,
		omits: r.omits,
	}
	r.bindTo(scoped, db, j)
	return scoped
}

func (r *Repositories) bindTo(dst *Repositories, db *gorm.DB, j *txJournal) {
	dst.db = db

	dst.Users = &UserRepository{base: newBase[models.User](db, r.log, models.UserSchema, r.cache, r.omits["user"], j)}
	dst.Servers = &ServerRepository{base: newBase[models.Server](db, r.log, models.ServerSchema, r.cache, r.omits["server"], j)}
	dst.ServerMembers = &ServerMemberRepository{base: newBase[models.ServerMember](db, r.log, models.ServerMemberSchema, r.cache, r.omits["server_member"], j)}
	dst.Groups = &GroupRepository{base: newBase[models.Group](db, r.log, models.GroupSchema, r.cache, r.omits["group"], j)}
	dst.GroupMembers = &GroupMemberRepository{base: newBase[models.GroupMember](db, r.log, models.GroupMemberSchema, r.cache, r.omits["group_member"], j)}
	dst.Channels = &ChannelRepository{base: newBase[models.Channel](db, r.log, models.ChannelSchema, r.cache, r.omits["channel"], j)}
	dst.Messages = &MessageRepository{base: newBase[models.Message](db, r.log, models.MessageSchema, r.cache, r.omits["message"], j), seq: r.cache}
	dst.DirectMessages = &DirectMessageRepository{base: newBase[models.DirectMessage](db, r.log, models.DirectMessageSchema, r.cache, r.omits["direct_message"], j)}

	// Relation loaders reach across repositories.
	dst.Users.servers = dst.Servers
	dst.Users.members = dst.ServerMembers
	dst.Users.groupMembers = dst.GroupMembers
	dst.Users.messages = dst.Messages
	dst.Users.dms = dst.DirectMessages
	dst.Servers.users = dst.Users
	dst.Servers.members = dst.ServerMembers
	dst.Servers.groups = dst.Groups
	dst.ServerMembers.users = dst.Users
	dst.ServerMembers.servers = dst.Servers
	dst.Groups.servers = dst.Servers
	dst.Groups.members = dst.GroupMembers
	dst.Groups.channels = dst.Channels
	dst.GroupMembers.users = dst.Users
	dst.GroupMembers.groups = dst.Groups
	dst.Channels.groups = dst.Groups
	dst.Channels.messages = dst.Messages
	dst.Messages.users = dst.Users
	dst.Messages.channels = dst.Channels
	dst.DirectMessages.users = dst.Users
}

func omitProjections(cfg *config.Config) (map[string]query.Projection, error) {
	out := make(map[string]query.Projection, len(cfg.Omit))
	for model, cols := range cfg.Omit {
		schema, ok := modelSchemas[model]
		if !ok {
			return nil, &query.ValidationError{Field: model, Reason: "unknown model in omit configuration"}
		}
		if len(cols) == 0 {
			continue
		}
		p, err := schema.Omit(cols...)
		if err != nil {
			return nil, err
		}
		out[model] = p
	}
	return out, nil
}

// TxOptions overrides the configured transaction bounds for one call.
// Zero fields keep the configured values.
type TxOptions struct {
	Timeout time.Duration
	MaxWait time.Duration
}

// Tx runs fn inside one transaction with the configured timeout and lock
// wait. The scoped bundle passed to fn shares the transaction; any error
// or panic rolls everything back.
func (r *Repositories) Tx(ctx context.Context, fn func(*Repositories) error) error {
	return r.TxWithOptions(ctx, TxOptions{}, fn)
}

// TxWithOptions is Tx with per-call timeout and lock-wait bounds.
func (r *Repositories) TxWithOptions(ctx context.Context, opts TxOptions, fn func(*Repositories) error) error {
	timeout := r.txCfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	maxWait := r.txCfg.MaxWait
	if opts.MaxWait > 0 {
		maxWait = opts.MaxWait
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	journal := newTxJournal()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if maxWait > 0 {
			wait := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", maxWait.Milliseconds())
			if err := tx.Exec(wait).Error; err != nil {
				return err
			}
		}
		return fn(r.bind(tx, journal))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrTxAborted, storage.Translate(err))
	}
	r.flushJournal(ctx, journal)
	return nil
}

// flushJournal applies the invalidations collected during a committed
// transaction.
func (r *Repositories) flushJournal(ctx context.Context, j *txJournal) {
	if r.cache == nil {
		return
	}
	for table := range j.tables {
		r.cache.BumpTable(ctx, table)
	}
	for _, e := range j.entities {
		r.cache.DelEntity(ctx, e.table, e.id)
	}
}

// TxOp is one step of a batch transaction.
type TxOp func(*Repositories) error

// TxBatch runs the operations in order inside one transaction,
// all-or-nothing.
func (r *Repositories) TxBatch(ctx context.Context, ops ...TxOp) error {
	return r.Tx(ctx, func(scoped *Repositories) error {
		for _, op := range ops {
			if err := op(scoped); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunRaw executes a caller-written query and returns generic rows,
// bypassing the typed layer entirely.
func (r *Repositories) RunRaw(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	var rows []map[string]any
	if err := r.db.WithContext(ctx).Raw(sql, args...).Find(&rows).Error; err != nil {
		return nil, storage.Translate(err)
	}
	return rows, nil
}

// ExecRaw executes a caller-written statement and returns the affected
// row count.
func (r *Repositories) ExecRaw(ctx context.Context, sql string, args ...any) (int64, error) {
	res := r.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return 0, storage.Translate(res.Error)
	}
	return res.RowsAffected, nil
}
