package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/core/domain"
)

func TestMemorySessionStoreExpiry(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := &domain.Session{Token: "tok-1", IdentityID: "user-1", Role: domain.RoleUser}
	require.NoError(t, store.PutSession(ctx, session, 50*time.Millisecond))

	got, err := store.GetSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.IdentityID)

	time.Sleep(80 * time.Millisecond)

	// Expiry is enforced on read even before any sweep runs.
	_, err = store.GetSession(ctx, "tok-1")
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestMemorySessionStoreTouchExtendsWindow(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := &domain.Session{Token: "tok-1", IdentityID: "user-1"}
	require.NoError(t, store.PutSession(ctx, session, 60*time.Millisecond))

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, store.TouchSession(ctx, "tok-1", time.Now(), 60*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	// Without the touch the session would have expired by now.
	_, err := store.GetSession(ctx, "tok-1")
	assert.NoError(t, err)
}

func TestMemorySessionStoreDelete(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, &domain.Session{Token: "tok-1"}, time.Minute))

	deleted, err := store.DeleteSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, deleted, "deleting an unknown token reports false, not an error")
}

func TestMemorySessionStoreSweep(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	require.NoError(t, store.PutSession(ctx, &domain.Session{Token: "short"}, 10*time.Millisecond))
	require.NoError(t, store.PutSession(ctx, &domain.Session{Token: "long"}, time.Minute))

	time.Sleep(30 * time.Millisecond)

	swept, err := store.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = store.GetSession(ctx, "long")
	assert.NoError(t, err)
}

func TestMemoryPresenceLastWriterWins(t *testing.T) {
	cache := NewMemoryPresenceCache()
	ctx := context.Background()

	require.NoError(t, cache.SetOnline(ctx, "user-1", "chan-a", domain.RoleUser))
	require.NoError(t, cache.SetOnline(ctx, "user-1", "chan-b", domain.RoleUser))

	channel, err := cache.Channel(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-b", channel, "a later bind supersedes the earlier channel")

	require.NoError(t, cache.SetOffline(ctx, "user-1"))
	channel, err = cache.Channel(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, channel)
}

func TestMemoryPresenceListOnlineByRole(t *testing.T) {
	cache := NewMemoryPresenceCache()
	ctx := context.Background()

	require.NoError(t, cache.SetOnline(ctx, "user-1", "c1", domain.RoleUser))
	require.NoError(t, cache.SetOnline(ctx, "agent-1", "c2", domain.RoleAgent))

	all, err := cache.ListOnline(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	agents, err := cache.ListOnline(ctx, domain.RoleAgent)
	require.NoError(t, err)
	assert.Equal(t, []string{"agent-1"}, agents)
}

func TestMemoryPresenceAgentLoad(t *testing.T) {
	cache := NewMemoryPresenceCache()
	ctx := context.Background()

	err := cache.AdjustAgentLoad(ctx, "agent-1", 1)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	require.NoError(t, cache.SetAgentStatus(ctx, &domain.AgentPresence{
		AgentID:  "agent-1",
		Status:   domain.StatusOnline,
		MaxChats: 5,
	}))

	require.NoError(t, cache.AdjustAgentLoad(ctx, "agent-1", 1))
	require.NoError(t, cache.AdjustAgentLoad(ctx, "agent-1", 1))
	require.NoError(t, cache.AdjustAgentLoad(ctx, "agent-1", -1))

	agent, err := cache.AgentStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.CurrentChats)

	// Double-decrement clamps at zero instead of going negative.
	require.NoError(t, cache.AdjustAgentLoad(ctx, "agent-1", -2))
	agent, err = cache.AgentStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 0, agent.CurrentChats)
}

func TestMemoryPresenceStatusUpdateKeepsLoad(t *testing.T) {
	cache := NewMemoryPresenceCache()
	ctx := context.Background()

	require.NoError(t, cache.SetAgentStatus(ctx, &domain.AgentPresence{
		AgentID: "agent-1", Status: domain.StatusOnline, MaxChats: 5,
	}))
	require.NoError(t, cache.AdjustAgentLoad(ctx, "agent-1", 2))

	// A plain status update must not reset the chats the agent carries.
	require.NoError(t, cache.SetAgentStatus(ctx, &domain.AgentPresence{
		AgentID: "agent-1", Status: domain.StatusAway, MaxChats: 5,
	}))

	agent, err := cache.AgentStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 2, agent.CurrentChats)
	assert.Equal(t, domain.StatusAway, agent.Status)
}

func TestMemoryPresenceSetOfflineMarksAgent(t *testing.T) {
	cache := NewMemoryPresenceCache()
	ctx := context.Background()

	require.NoError(t, cache.SetAgentStatus(ctx, &domain.AgentPresence{
		AgentID: "agent-1", Status: domain.StatusOnline, MaxChats: 5,
	}))
	require.NoError(t, cache.SetOnline(ctx, "agent-1", "c1", domain.RoleAgent))
	require.NoError(t, cache.SetOffline(ctx, "agent-1"))

	agent, err := cache.AgentStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOffline, agent.Status)
	assert.False(t, agent.Available())
}
