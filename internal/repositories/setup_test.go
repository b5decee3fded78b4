package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/concord-im/concord/config"
	"github.com/concord-im/concord/internal/cache"
	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/storage"
	logger "github.com/concord-im/concord/middleware/log"
)

// testConfig points at a local test database. Override the host through
// CONCORD_TEST_PG_HOST when it runs elsewhere.
func testConfig() *config.Config {
	host := os.Getenv("CONCORD_TEST_PG_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	return &config.Config{
		Postgres: config.PostgresConfig{
			Host:         host,
			Port:         "5432",
			User:         "postgres",
			Password:     "postgres",
			DBName:       "concord_test",
			MaxIdleConns: 2,
			MaxOpenConns: 5,
		},
		Transaction: config.TransactionConfig{
			MaxWait: 2 * time.Second,
			Timeout: 5 * time.Second,
		},
		Omit: map[string][]string{
			"user": {"password_hash"},
		},
	}
}

// setupTestRepos connects to the test database, migrates and truncates all
// tables. Tests skip when Postgres is not reachable.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()

	cfg := testConfig()
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		t.Skipf("Skipping test: Postgres not available: %v", err)
	}

	err = db.Exec(`TRUNCATE TABLE direct_messages, messages, channels,
		group_members, "groups", server_members, servers, users CASCADE`).Error
	require.NoError(t, err)

	repos, err := New(db, logger.NewNopLogger(), nil, cfg)
	require.NoError(t, err)
	return repos
}

// setupTestReposWithCache is setupTestRepos plus an in-process redis, for
// tests exercising the cache paths.
func setupTestReposWithCache(t *testing.T) (*Repositories, *miniredis.Miniredis) {
	t.Helper()

	cfg := testConfig()
	db, err := storage.InitPostgres(&cfg.Postgres)
	if err != nil {
		t.Skipf("Skipping test: Postgres not available: %v", err)
	}

	err = db.Exec(`TRUNCATE TABLE direct_messages, messages, channels,
		group_members, "groups", server_members, servers, users CASCADE`).Error
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.New(rdb, time.Minute, logger.NewNopLogger())

	repos, err := New(db, logger.NewNopLogger(), c, cfg)
	require.NoError(t, err)
	return repos, mr
}

// ---- fixture helpers ----

func strPtr(s string) *string { return &s }

func mustUser(t *testing.T, repos *Repositories, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: strPtr(name), Email: strPtr(email)}
	require.NoError(t, u.SetPassword("test-password"))
	require.NoError(t, repos.Users.Create(context.Background(), u))
	return u
}

func mustServer(t *testing.T, repos *Repositories, ownerID, name, category string) *models.Server {
	t.Helper()
	s := &models.Server{Name: name, Category: category, OwnerID: ownerID}
	require.NoError(t, repos.Servers.Create(context.Background(), s))
	return s
}

func mustMember(t *testing.T, repos *Repositories, userID, serverID string, role models.MemberRole) *models.ServerMember {
	t.Helper()
	m := &models.ServerMember{UserID: userID, ServerID: serverID, Role: role}
	require.NoError(t, repos.ServerMembers.Create(context.Background(), m))
	return m
}

func mustGroup(t *testing.T, repos *Repositories, serverID, name string) *models.Group {
	t.Helper()
	g := &models.Group{Name: name, ServerID: serverID}
	require.NoError(t, repos.Groups.Create(context.Background(), g))
	return g
}

func mustChannel(t *testing.T, repos *Repositories, groupID, name string) *models.Channel {
	t.Helper()
	c := &models.Channel{Name: name, Type: models.ChannelTypeText, GroupID: groupID}
	require.NoError(t, repos.Channels.Create(context.Background(), c))
	return c
}

func mustMessage(t *testing.T, repos *Repositories, userID, channelID, content string) *models.Message {
	t.Helper()
	m := &models.Message{Content: content, UserID: userID, ChannelID: channelID}
	require.NoError(t, repos.Messages.Create(context.Background(), m))
	return m
}

func mustDM(t *testing.T, repos *Repositories, senderID, receiverID, content string) *models.DirectMessage {
	t.Helper()
	dm := &models.DirectMessage{Content: content, SenderID: senderID, ReceiverID: receiverID}
	require.NoError(t, repos.DirectMessages.Create(context.Background(), dm))
	return dm
}
