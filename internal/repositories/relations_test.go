package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-im/concord/internal/models"
	"github.com/concord-im/concord/internal/query"
	"github.com/concord-im/concord/internal/storage"
)

func TestServerMembershipScenario(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	member := mustUser(t, repos, "bob", "bob@example.com")
	s := mustServer(t, repos, owner.ID, "gophers", "tech")

	m := mustMember(t, repos, member.ID, s.ID, models.RoleMember)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.False(t, m.JoinedAt.IsZero())

	// Joining the same server twice violates the composite key.
	dup := &models.ServerMember{UserID: member.ID, ServerID: s.ID}
	err := repos.ServerMembers.Create(ctx, dup)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// The pair lookup finds the membership; a promotion sticks.
	found, err := repos.ServerMembers.GetByUserServer(ctx, member.ID, s.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)

	promoted, err := repos.ServerMembers.UpsertByUserServer(ctx, member.ID, s.ID,
		models.ServerMember{UserID: member.ID, ServerID: s.ID},
		map[string]any{"role": "ADMIN"})
	require.NoError(t, err)
	assert.Equal(t, m.ID, promoted.ID)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	// Relation loaders resolve both ends.
	loadedUser, err := repos.ServerMembers.User(ctx, promoted)
	require.NoError(t, err)
	assert.Equal(t, member.ID, loadedUser.ID)

	loadedServer, err := repos.ServerMembers.Server(ctx, promoted)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loadedServer.ID)

	members, err := repos.Servers.Members(ctx, s.ID, Query{})
	require.NoError(t, err)
	assert.Len(t, members, 1)

	// Leaving removes the row; leaving again is ErrNotFound.
	_, err = repos.ServerMembers.DeleteByUserServer(ctx, member.ID, s.ID)
	require.NoError(t, err)
	_, err = repos.ServerMembers.DeleteByUserServer(ctx, member.ID, s.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInvalidRolePatchIsRejected(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	member := mustUser(t, repos, "bob", "bob@example.com")
	s := mustServer(t, repos, owner.ID, "gophers", "tech")
	m := mustMember(t, repos, member.ID, s.ID, models.RoleMember)

	_, err := repos.ServerMembers.UpdateByPK(ctx, m.ID, map[string]any{"role": "SUPREME_LEADER"})
	var verr *query.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestDirectMessageScenario(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	alice := mustUser(t, repos, "alice", "alice@example.com")
	bob := mustUser(t, repos, "bob", "bob@example.com")
	carol := mustUser(t, repos, "carol", "carol@example.com")

	mustDM(t, repos, alice.ID, bob.ID, "hi bob")
	mustDM(t, repos, bob.ID, alice.ID, "hi alice")
	mustDM(t, repos, alice.ID, carol.ID, "hi carol")

	sent, err := repos.Users.SentMessages(ctx, alice.ID, Query{})
	require.NoError(t, err)
	assert.Len(t, sent, 2)

	// Received holds only what came to alice, not what she sent.
	received, err := repos.Users.ReceivedMessages(ctx, alice.ID, Query{})
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "hi alice", received[0].Content)

	// A conversation covers both directions but not third parties.
	conv, err := repos.DirectMessages.Conversation(ctx, alice.ID, bob.ID, Query{
		Order: []query.Order{query.Asc("created_at")},
	})
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "hi bob", conv[0].Content)

	sender, err := repos.DirectMessages.Sender(ctx, &conv[0])
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sender.ID)
	receiver, err := repos.DirectMessages.Receiver(ctx, &conv[0])
	require.NoError(t, err)
	assert.Equal(t, bob.ID, receiver.ID)
}

func TestMembershipGroupByServer(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	u1 := mustUser(t, repos, "bob", "bob@example.com")
	u2 := mustUser(t, repos, "carol", "carol@example.com")
	s1 := mustServer(t, repos, owner.ID, "one", "tech")
	s2 := mustServer(t, repos, owner.ID, "two", "tech")

	mustMember(t, repos, owner.ID, s1.ID, models.RoleAdmin)
	mustMember(t, repos, u1.ID, s1.ID, models.RoleMember)
	mustMember(t, repos, u2.ID, s1.ID, models.RoleMember)
	mustMember(t, repos, u1.ID, s2.ID, models.RoleMember)

	rows, err := repos.ServerMembers.GroupBy(ctx, GroupBySpec{
		By:  []string{"server_id"},
		Agg: AggregateSpec{Count: true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	counts := map[string]int64{}
	for _, row := range rows {
		counts[fmt.Sprintf("%v", row["server_id"])] = asInt64(t, row["count"])
	}
	assert.EqualValues(t, 3, counts[s1.ID])
	assert.EqualValues(t, 1, counts[s2.ID])
}

func TestDeletingServerOwnerIsRestricted(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	mustServer(t, repos, owner.ID, "gophers", "tech")

	_, err := repos.Users.DeleteByPK(ctx, owner.ID)
	assert.ErrorIs(t, err, storage.ErrForeignKey)

	// The owner is still there.
	got, err := repos.Users.FindUnique(ctx, owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestDeletingServerCascades(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	member := mustUser(t, repos, "bob", "bob@example.com")
	s := mustServer(t, repos, owner.ID, "gophers", "tech")
	mustMember(t, repos, member.ID, s.ID, models.RoleMember)
	g := mustGroup(t, repos, s.ID, "general")
	c := mustChannel(t, repos, g.ID, "chat")
	mustMessage(t, repos, member.ID, c.ID, "hello")

	_, err := repos.Servers.DeleteByPK(ctx, s.ID)
	require.NoError(t, err)

	for name, count := range map[string]func() (int64, error){
		"memberships": func() (int64, error) { return repos.ServerMembers.Count(ctx, query.Filter{}) },
		"groups":      func() (int64, error) { return repos.Groups.Count(ctx, query.Filter{}) },
		"channels":    func() (int64, error) { return repos.Channels.Count(ctx, query.Filter{}) },
		"messages":    func() (int64, error) { return repos.Messages.Count(ctx, query.Filter{}) },
	} {
		n, err := count()
		require.NoError(t, err, name)
		assert.Zero(t, n, name)
	}

	// The users survive the cascade.
	users, err := repos.Users.Count(ctx, query.Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, users)
}

func TestServerGroupChannelMessageChain(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	owner := mustUser(t, repos, "alice", "alice@example.com")
	s := mustServer(t, repos, owner.ID, "gophers", "tech")
	g := mustGroup(t, repos, s.ID, "general")
	c := mustChannel(t, repos, g.ID, "chat")
	msg := mustMessage(t, repos, owner.ID, c.ID, "first post")

	groups, err := repos.Servers.Groups(ctx, s.ID, Query{})
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	channels, err := repos.Groups.Channels(ctx, g.ID, Query{})
	require.NoError(t, err)
	assert.Len(t, channels, 1)

	messages, err := repos.Channels.Messages(ctx, c.ID, Query{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "first post", messages[0].Content)

	author, err := repos.Messages.Author(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, author.ID)

	channel, err := repos.Messages.Channel(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, c.ID, channel.ID)

	parent, err := repos.Groups.Server(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, s.ID, parent.ID)

	owned, err := repos.Users.OwnedServers(ctx, owner.ID, Query{})
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestMessageWithUnknownChannelIsForeignKey(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	u := mustUser(t, repos, "alice", "alice@example.com")

	msg := &models.Message{Content: "void", UserID: u.ID, ChannelID: "00000000-0000-0000-0000-000000000000"}
	err := repos.Messages.Create(ctx, msg)
	assert.ErrorIs(t, err, storage.ErrForeignKey)
}
