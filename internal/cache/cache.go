// Package cache is a redis-backed read-through cache for the repositories:
// single entities by primary key, list-query results keyed by a hash of the
// compiled SQL, and per-channel message sequence numbers.
//
// Cache failures never fail the calling operation; they are logged and the
// caller falls through to the database.
package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	logger "github.com/concord-im/concord/middleware/log"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func New(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// EntityKey addresses one row of one table.
func EntityKey(table, id string) string {
	return fmt.Sprintf("concord:%s:%s", table, id)
}

// Cached payloads are gob-encoded. The models' JSON tags hide sensitive
// columns from API output, so a JSON round trip would drop them and a
// cache hit would return a different row than a cache miss. gob covers
// every exported field; hiding columns from readers stays the job of the
// omit projection.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, dest any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(dest)
}

// GetEntity loads a cached row into dest. The first return reports a hit.
func (c *Cache) GetEntity(ctx context.Context, table, id string, dest any) bool {
	data, err := c.rdb.Get(ctx, EntityKey(table, id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "cache get failed", zap.String("table", table), zap.Error(err))
		}
		return false
	}
	if err := decode(data, dest); err != nil {
		c.log.WarnContext(ctx, "cache entry corrupt", zap.String("table", table), zap.Error(err))
		return false
	}
	return true
}

// SetEntity stores one row under its primary key.
func (c *Cache) SetEntity(ctx context.Context, table, id string, v any) {
	data, err := encode(v)
	if err != nil {
		c.log.WarnContext(ctx, "cache encode failed", zap.String("table", table), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, EntityKey(table, id), data, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache set failed", zap.String("table", table), zap.Error(err))
	}
}

// DelEntity drops one row from the cache, typically after a write.
func (c *Cache) DelEntity(ctx context.Context, table, id string) {
	if err := c.rdb.Del(ctx, EntityKey(table, id)).Err(); err != nil {
		c.log.WarnContext(ctx, "cache del failed", zap.String("table", table), zap.Error(err))
	}
}

// TableVersion returns the current write-generation of a table. List-query
// keys embed it, so bumping the version invalidates every cached list for
// the table at once without scanning keys.
func (c *Cache) TableVersion(ctx context.Context, table string) int64 {
	v, err := c.rdb.Get(ctx, versionKey(table)).Int64()
	if err != nil && err != redis.Nil {
		c.log.WarnContext(ctx, "cache version read failed", zap.String("table", table), zap.Error(err))
	}
	return v
}

// BumpTable advances the write-generation of a table.
func (c *Cache) BumpTable(ctx context.Context, table string) {
	if err := c.rdb.Incr(ctx, versionKey(table)).Err(); err != nil {
		c.log.WarnContext(ctx, "cache version bump failed", zap.String("table", table), zap.Error(err))
	}
}

func versionKey(table string) string {
	return "concord:ver:" + table
}

// QueryKey derives a stable key for a compiled list query from the SQL
// text, its arguments and the table version current at build time.
func QueryKey(table string, version int64, sql string, args []any) string {
	h := murmur3.New64()
	_, _ = h.Write([]byte(sql))
	for _, a := range args {
		fmt.Fprintf(h, "|%v", a)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(version))
	_, _ = h.Write(buf[:])
	return fmt.Sprintf("concord:q:%s:%x", table, h.Sum64())
}

// GetQuery loads a cached list result into dest. The first return reports
// a hit.
func (c *Cache) GetQuery(ctx context.Context, key string, dest any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "cache query get failed", zap.Error(err))
		}
		return false
	}
	return decode(data, dest) == nil
}

// SetQuery stores a list result.
func (c *Cache) SetQuery(ctx context.Context, key string, v any) {
	data, err := encode(v)
	if err != nil {
		c.log.WarnContext(ctx, "cache encode failed", zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "cache query set failed", zap.Error(err))
	}
}

// NextSequence assigns the next per-channel message sequence number.
func (c *Cache) NextSequence(ctx context.Context, channelID string) (int64, error) {
	key := fmt.Sprintf("concord:channel:%s:seq_id", channelID)
	seq, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to generate seq id for channel %s: %w", channelID, err)
	}
	return seq, nil
}
