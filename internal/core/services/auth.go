package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/events"
	"support-chat/internal/core/ports"
)

// DefaultSessionTTL is the inactivity window after which a session expires.
const DefaultSessionTTL = 24 * time.Hour

// defaultAgentCapacity applies when an agent registers without an explicit
// concurrent chat limit.
const defaultAgentCapacity = 5

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Role        domain.Role
	Department  string
	MaxChats    int
}

// LoginResult is what a successful login returns to the controller: the
// session token plus an identity summary.
type LoginResult struct {
	Session  *domain.Session  `json:"session"`
	Identity *domain.Identity `json:"identity"`
}

// AuthService issues, validates and revokes sessions and enforces role
// checks. Identities live in the durable store; sessions live in the
// session store; liveness lives in the presence cache.
type AuthService struct {
	identities ports.IdentityRepository
	sessions   ports.SessionStore
	presence   ports.PresenceCache
	bus        *events.Bus
	sessionTTL time.Duration
}

// NewAuthService creates an auth service with dependencies injected.
func NewAuthService(
	identities ports.IdentityRepository,
	sessions ports.SessionStore,
	presence ports.PresenceCache,
	bus *events.Bus,
	sessionTTL time.Duration,
) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		presence:   presence,
		bus:        bus,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new identity. Fails with a Conflict error when the
// username or email is already taken.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.Identity, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if in.Username == "" || in.Email == "" {
		return nil, domain.E(domain.KindValidation, "username and email are required")
	}
	if len(in.Password) < 8 {
		return nil, domain.E(domain.KindValidation, "password must be at least 8 characters")
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !in.Role.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Wrap(domain.KindFatal, "hash password", err)
	}

	now := time.Now()
	identity := &domain.Identity{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
		Role:         in.Role,
		Status:       domain.StatusOffline,
		CreatedAt:    now,
		LastActivity: now,
	}
	if in.Role == domain.RoleAgent {
		identity.Department = in.Department
		identity.MaxChats = in.MaxChats
		if identity.MaxChats <= 0 {
			identity.MaxChats = defaultAgentCapacity
		}
	}

	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	slog.Info("identity registered",
		"identity_id", identity.ID,
		"username", identity.Username,
		"role", identity.Role,
	)
	return identity, nil
}

// Login verifies credentials, creates a session and marks the identity
// online in the presence cache.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	identity, err := s.identities.IdentityByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			// Same answer as a wrong password: never reveal which part failed.
			return nil, domain.E(domain.KindAuthRequired, "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, domain.E(domain.KindAuthRequired, "invalid credentials")
	}

	now := time.Now()
	session := &domain.Session{
		Token:        uuid.New().String(),
		IdentityID:   identity.ID,
		Role:         identity.Role,
		CreatedAt:    now,
		LastActivity: now,
	}
	if err := s.sessions.PutSession(ctx, session, s.sessionTTL); err != nil {
		return nil, err
	}

	s.markOnline(ctx, identity, now)

	slog.Info("login",
		"identity_id", identity.ID,
		"role", identity.Role,
	)
	return &LoginResult{Session: session, Identity: identity}, nil
}

// ValidateSession returns the session behind token, refreshing its activity
// window. Returns an AuthenticationRequired error when the token is unknown
// or expired. Safe to call concurrently for the same token: the read is
// idempotent and the refresh is a single bounded write.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.E(domain.KindAuthRequired, "missing session token")
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.E(domain.KindAuthRequired, "session expired or unknown")
		}
		return nil, err
	}

	now := time.Now()
	if err := s.sessions.TouchSession(ctx, token, now, s.sessionTTL); err != nil {
		// The session itself is valid; a failed refresh only shortens the
		// window. Log and continue.
		slog.Warn("failed to refresh session activity", "error", err)
	}
	session.LastActivity = now
	return session, nil
}

// Logout revokes the session and marks the identity offline. Returns false
// when the token was unknown: an observable no-op, not an error.
func (s *AuthService) Logout(ctx context.Context, token string) (bool, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return false, nil
		}
		return false, err
	}

	revoked, err := s.sessions.DeleteSession(ctx, token)
	if err != nil {
		return false, err
	}

	now := time.Now()
	if err := s.presence.SetOffline(ctx, session.IdentityID); err != nil {
		slog.Warn("failed to mark identity offline", "error", err, "identity_id", session.IdentityID)
	}
	if err := s.identities.TouchIdentity(ctx, session.IdentityID, domain.StatusOffline, now); err != nil {
		slog.Warn("failed to persist offline status", "error", err, "identity_id", session.IdentityID)
	}
	s.publishStatus(session.IdentityID, domain.StatusOffline)

	slog.Info("logout", "identity_id", session.IdentityID)
	return revoked, nil
}

// HasPermission reports whether role satisfies required under the total
// order USER < AGENT < ADMIN.
func (s *AuthService) HasPermission(role, required domain.Role) bool {
	return role.AtLeast(required)
}

// Profile returns the identity behind a validated session.
func (s *AuthService) Profile(ctx context.Context, identityID string) (*domain.Identity, error) {
	return s.identities.IdentityByID(ctx, identityID)
}

// UpdateStatus changes an identity's presence status (and, for agents, the
// concurrent chat limit). Returns the updated agent presence when the caller
// is an agent so the chat service can retry pending assignments.
func (s *AuthService) UpdateStatus(ctx context.Context, identityID string, status domain.PresenceStatus, maxChats int) (*domain.AgentPresence, error) {
	if !status.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown presence status")
	}

	identity, err := s.identities.IdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.identities.TouchIdentity(ctx, identityID, status, now); err != nil {
		return nil, err
	}

	var agent *domain.AgentPresence
	if identity.Role.AtLeast(domain.RoleAgent) {
		agent = s.agentPresenceFor(ctx, identity)
		agent.Status = status
		agent.LastActivity = now
		if maxChats > 0 {
			agent.MaxChats = maxChats
		}
		if err := s.presence.SetAgentStatus(ctx, agent); err != nil {
			return nil, err
		}
	}

	s.publishStatus(identityID, status)
	return agent, nil
}

// OnlineAgents returns the availability records of all currently online agents.
func (s *AuthService) OnlineAgents(ctx context.Context) ([]*domain.AgentPresence, error) {
	all, err := s.presence.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	online := make([]*domain.AgentPresence, 0, len(all))
	for _, a := range all {
		if a.Status != domain.StatusOffline {
			online = append(online, a)
		}
	}
	return online, nil
}

// AllAgents returns every registered agent from the durable store.
func (s *AuthService) AllAgents(ctx context.Context) ([]*domain.Identity, error) {
	return s.identities.ListAgents(ctx)
}

// markOnline registers presence after a successful login. The gateway will
// later supersede the empty channel binding with a real one.
func (s *AuthService) markOnline(ctx context.Context, identity *domain.Identity, now time.Time) {
	if err := s.presence.SetOnline(ctx, identity.ID, "", identity.Role); err != nil {
		slog.Warn("failed to mark identity online", "error", err, "identity_id", identity.ID)
	}
	if err := s.identities.TouchIdentity(ctx, identity.ID, domain.StatusOnline, now); err != nil {
		slog.Warn("failed to persist online status", "error", err, "identity_id", identity.ID)
	}
	if identity.Role.AtLeast(domain.RoleAgent) {
		agent := s.agentPresenceFor(ctx, identity)
		agent.Status = domain.StatusOnline
		agent.LastActivity = now
		if err := s.presence.SetAgentStatus(ctx, agent); err != nil {
			slog.Warn("failed to seed agent presence", "error", err, "agent_id", identity.ID)
		}
	}
	s.publishStatus(identity.ID, domain.StatusOnline)
}

// agentPresenceFor loads the cached agent record, falling back to a fresh
// one seeded from the identity row.
func (s *AuthService) agentPresenceFor(ctx context.Context, identity *domain.Identity) *domain.AgentPresence {
	agent, err := s.presence.AgentStatus(ctx, identity.ID)
	if err == nil {
		return agent
	}
	return &domain.AgentPresence{
		AgentID:    identity.ID,
		Status:     identity.Status,
		Department: identity.Department,
		MaxChats:   identity.MaxChats,
	}
}

func (s *AuthService) publishStatus(identityID string, status domain.PresenceStatus) {
	if s.bus == nil {
		return
	}
	ev := domain.NewEvent(domain.EventStatusChanged)
	ev.IdentityID = identityID
	ev.Payload["status"] = string(status)
	s.bus.Publish(ev)
}
