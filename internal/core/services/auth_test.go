package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"support-chat/internal/adapters/repository"
	"support-chat/internal/core/domain"
)

func newTestAuthService() (*AuthService, *fakeStore) {
	store := newFakeStore()
	auth := NewAuthService(store, repository.NewMemorySessionStore(), repository.NewMemoryPresenceCache(), nil, time.Hour)
	return auth, store
}

func registerTestUser(t *testing.T, auth *AuthService, username string, role domain.Role) *domain.Identity {
	t.Helper()
	identity, err := auth.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
		Role:     role,
	})
	require.NoError(t, err)
	return identity
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuthService()
	ctx := context.Background()

	_, err := auth.Register(ctx, RegisterInput{Email: "a@b.c", Password: "longenough"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = auth.Register(ctx, RegisterInput{Username: "alice", Email: "a@b.c", Password: "short"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = auth.Register(ctx, RegisterInput{Username: "alice", Email: "a@b.c", Password: "longenough", Role: "superuser"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestRegisterHashesPassword(t *testing.T) {
	auth, store := newTestAuthService()

	identity := registerTestUser(t, auth, "alice", domain.RoleUser)

	stored, err := store.IdentityByID(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "alice", domain.RoleUser)

	_, err := auth.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "longenough",
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestRegisterAgentDefaultsCapacity(t *testing.T) {
	auth, _ := newTestAuthService()

	identity, err := auth.Register(context.Background(), RegisterInput{
		Username:   "agent-1",
		Email:      "agent1@example.com",
		Password:   "longenough",
		Role:       domain.RoleAgent,
		Department: "billing",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, identity.MaxChats)
	assert.Equal(t, "billing", identity.Department)
}

func TestLoginIssuesSession(t *testing.T) {
	auth, _ := newTestAuthService()
	identity := registerTestUser(t, auth, "alice", domain.RoleUser)

	result, err := auth.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Session.Token)
	assert.Equal(t, identity.ID, result.Session.IdentityID)
	assert.Equal(t, domain.RoleUser, result.Session.Role)
}

func TestLoginUniformFailureMessage(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "alice", domain.RoleUser)

	_, errUnknown := auth.Login(context.Background(), "nobody", "whatever-pass")
	_, errWrongPass := auth.Login(context.Background(), "alice", "wrong-password")

	// An attacker must not be able to tell a bad username from a bad password.
	require.Error(t, errUnknown)
	require.Error(t, errWrongPass)
	assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
	assert.True(t, domain.IsKind(errUnknown, domain.KindAuthRequired))
	assert.True(t, domain.IsKind(errWrongPass, domain.KindAuthRequired))
}

func TestValidateSessionRoundTrip(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "alice", domain.RoleUser)

	result, err := auth.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	session, err := auth.ValidateSession(context.Background(), result.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Session.IdentityID, session.IdentityID)

	_, err = auth.ValidateSession(context.Background(), "bogus-token")
	assert.True(t, domain.IsKind(err, domain.KindAuthRequired))
}

func TestLogout(t *testing.T) {
	auth, _ := newTestAuthService()
	registerTestUser(t, auth, "alice", domain.RoleUser)

	result, err := auth.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)

	revoked, err := auth.Logout(context.Background(), result.Session.Token)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = auth.ValidateSession(context.Background(), result.Session.Token)
	assert.True(t, domain.IsKind(err, domain.KindAuthRequired))

	// Revoking an already revoked token is a visible no-op, not an error.
	revoked, err = auth.Logout(context.Background(), result.Session.Token)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestHasPermissionOrdering(t *testing.T) {
	auth, _ := newTestAuthService()

	assert.True(t, auth.HasPermission(domain.RoleAdmin, domain.RoleUser))
	assert.True(t, auth.HasPermission(domain.RoleAdmin, domain.RoleAgent))
	assert.True(t, auth.HasPermission(domain.RoleAgent, domain.RoleUser))
	assert.False(t, auth.HasPermission(domain.RoleAgent, domain.RoleAdmin))
	assert.False(t, auth.HasPermission(domain.RoleUser, domain.RoleAgent))
	assert.True(t, auth.HasPermission(domain.RoleUser, domain.RoleUser))
}

func TestUpdateStatusAgent(t *testing.T) {
	auth, _ := newTestAuthService()
	agent := registerTestUser(t, auth, "agent-1", domain.RoleAgent)

	presence, err := auth.UpdateStatus(context.Background(), agent.ID, domain.StatusOnline, 3)
	require.NoError(t, err)
	require.NotNil(t, presence)
	assert.Equal(t, domain.StatusOnline, presence.Status)
	assert.Equal(t, 3, presence.MaxChats)
	assert.True(t, presence.Available())

	online, err := auth.OnlineAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, agent.ID, online[0].AgentID)
}
