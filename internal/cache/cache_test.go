package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-im/concord/internal/models"
	logger "github.com/concord-im/concord/middleware/log"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, time.Minute, logger.NewNopLogger()), mr
}

type cachedRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestEntityRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	var got cachedRow
	assert.False(t, c.GetEntity(ctx, "servers", "s1", &got))

	c.SetEntity(ctx, "servers", "s1", cachedRow{ID: "s1", Name: "general"})

	require.True(t, c.GetEntity(ctx, "servers", "s1", &got))
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "general", got.Name)
}

func TestEntityKeysAreTableScoped(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	c.SetEntity(ctx, "servers", "x", cachedRow{ID: "x", Name: "server"})
	c.SetEntity(ctx, "groups", "x", cachedRow{ID: "x", Name: "group"})

	var got cachedRow
	require.True(t, c.GetEntity(ctx, "groups", "x", &got))
	assert.Equal(t, "group", got.Name)
}

func TestDelEntity(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	c.SetEntity(ctx, "servers", "s1", cachedRow{ID: "s1"})
	c.DelEntity(ctx, "servers", "s1")

	var got cachedRow
	assert.False(t, c.GetEntity(ctx, "servers", "s1", &got))
}

func TestCorruptEntityIsAMiss(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(EntityKey("servers", "s1"), "not a cache payload"))

	var got cachedRow
	assert.False(t, c.GetEntity(ctx, "servers", "s1", &got))
}

// Columns hidden from API output by their JSON tags must still survive the
// cache round trip; a hit has to return the same row as a miss.
func TestEntityRoundTripKeepsHiddenColumns(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	key := "key-123"
	s := models.Server{ID: "s1", Name: "gophers", Category: "tech", AccessKey: &key}
	c.SetEntity(ctx, "servers", s.ID, s)

	var gotServer models.Server
	require.True(t, c.GetEntity(ctx, "servers", s.ID, &gotServer))
	require.NotNil(t, gotServer.AccessKey)
	assert.Equal(t, "key-123", *gotServer.AccessKey)

	u := models.User{ID: "u1"}
	require.NoError(t, u.SetPassword("s3cret"))
	c.SetEntity(ctx, "users", u.ID, u)

	var gotUser models.User
	require.True(t, c.GetEntity(ctx, "users", u.ID, &gotUser))
	require.NotNil(t, gotUser.PasswordHash)
	assert.True(t, gotUser.CheckPassword("s3cret"))
}

func TestEntityExpiry(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	c.SetEntity(ctx, "servers", "s1", cachedRow{ID: "s1"})
	mr.FastForward(2 * time.Minute)

	var got cachedRow
	assert.False(t, c.GetEntity(ctx, "servers", "s1", &got))
}

func TestTableVersionBumpChangesQueryKeys(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	sql := "SELECT * FROM servers WHERE category = ?"
	args := []any{"gaming"}

	before := QueryKey("servers", c.TableVersion(ctx, "servers"), sql, args)
	c.BumpTable(ctx, "servers")
	after := QueryKey("servers", c.TableVersion(ctx, "servers"), sql, args)

	assert.NotEqual(t, before, after)
}

func TestQueryKeyIsStable(t *testing.T) {
	sql := "SELECT * FROM servers WHERE name = ?"

	k1 := QueryKey("servers", 3, sql, []any{"general"})
	k2 := QueryKey("servers", 3, sql, []any{"general"})
	k3 := QueryKey("servers", 3, sql, []any{"random"})

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestQueryRoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	key := QueryKey("servers", 0, "SELECT 1", nil)

	var got []cachedRow
	assert.False(t, c.GetQuery(ctx, key, &got))

	c.SetQuery(ctx, key, []cachedRow{{ID: "a"}, {ID: "b"}})

	require.True(t, c.GetQuery(ctx, key, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
}

func TestNextSequence(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	first, err := c.NextSequence(ctx, "ch-1")
	require.NoError(t, err)
	second, err := c.NextSequence(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	// Channels count independently.
	other, err := c.NextSequence(ctx, "ch-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)
}

func TestNextSequenceFailsWhenRedisIsDown(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	mr.Close()

	_, err := c.NextSequence(ctx, "ch-1")
	assert.Error(t, err)
}
