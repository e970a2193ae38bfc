// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"sync"
	"time"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/ports"
)

// Ensure the in-memory adapters implement the cache ports.
var (
	_ ports.SessionStore  = (*MemorySessionStore)(nil)
	_ ports.PresenceCache = (*MemoryPresenceCache)(nil)
)

type sessionEntry struct {
	session   domain.Session
	expiresAt time.Time
}

// MemorySessionStore is the single-node session store. Expiry is enforced on
// every read, so a session is never validated past its TTL even if the
// periodic sweep lags behind.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*sessionEntry)}
}

// PutSession stores a session with the given time-to-live.
func (s *MemorySessionStore) PutSession(_ context.Context, session *domain.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = &sessionEntry{
		session:   *session,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// GetSession returns the session for token, or NotFound if absent or expired.
func (s *MemorySessionStore) GetSession(_ context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.E(domain.KindNotFound, "session not found")
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, domain.E(domain.KindNotFound, "session expired")
	}

	session := entry.session
	return &session, nil
}

// TouchSession refreshes last activity and extends the TTL window.
func (s *MemorySessionStore) TouchSession(_ context.Context, token string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return domain.E(domain.KindNotFound, "session not found")
	}
	entry.session.LastActivity = at
	entry.expiresAt = at.Add(ttl)
	return nil
}

// DeleteSession revokes a token. Returns false if the token was unknown.
func (s *MemorySessionStore) DeleteSession(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false, nil
	}
	delete(s.sessions, token)
	return true, nil
}

// SweepExpired drops every expired session and returns the count.
func (s *MemorySessionStore) SweepExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	swept := 0
	for token, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, token)
			swept++
		}
	}
	return swept, nil
}

type presenceEntry struct {
	channelID string
	role      domain.Role
}

// MemoryPresenceCache is the single-node presence cache. Per-identity state
// is last-writer-wins: a later SetOnline supersedes the prior channel
// binding. All operations are short critical sections; nothing blocks.
type MemoryPresenceCache struct {
	mu     sync.RWMutex
	online map[string]*presenceEntry
	agents map[string]*domain.AgentPresence
}

// NewMemoryPresenceCache creates an empty in-memory presence cache.
func NewMemoryPresenceCache() *MemoryPresenceCache {
	return &MemoryPresenceCache{
		online: make(map[string]*presenceEntry),
		agents: make(map[string]*domain.AgentPresence),
	}
}

// SetOnline binds the identity to a channel, superseding any prior binding.
func (c *MemoryPresenceCache) SetOnline(_ context.Context, identityID, channelID string, role domain.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online[identityID] = &presenceEntry{channelID: channelID, role: role}
	return nil
}

// SetOffline clears the identity's binding. A disconnected agent also stops
// being eligible for assignment.
func (c *MemoryPresenceCache) SetOffline(_ context.Context, identityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.online, identityID)
	if agent, ok := c.agents[identityID]; ok {
		agent.Status = domain.StatusOffline
	}
	return nil
}

// Channel returns the identity's current channel id, or "" when offline.
func (c *MemoryPresenceCache) Channel(_ context.Context, identityID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if entry, ok := c.online[identityID]; ok {
		return entry.channelID, nil
	}
	return "", nil
}

// ListOnline returns the ids of online identities filtered by role.
func (c *MemoryPresenceCache) ListOnline(_ context.Context, role domain.Role) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.online))
	for id, entry := range c.online {
		if role != "" && entry.role != role {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetAgentStatus updates an agent's availability record.
func (c *MemoryPresenceCache) SetAgentStatus(_ context.Context, agent *domain.AgentPresence) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *agent
	if existing, ok := c.agents[agent.AgentID]; ok && copied.CurrentChats == 0 {
		// Status updates never reset the load an agent already carries.
		copied.CurrentChats = existing.CurrentChats
	}
	c.agents[agent.AgentID] = &copied
	return nil
}

// AgentStatus returns a copy of the agent's availability record.
func (c *MemoryPresenceCache) AgentStatus(_ context.Context, agentID string) (*domain.AgentPresence, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agent, ok := c.agents[agentID]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "agent not known to presence cache")
	}
	copied := *agent
	return &copied, nil
}

// ListAgents returns copies of all known agent records.
func (c *MemoryPresenceCache) ListAgents(_ context.Context) ([]*domain.AgentPresence, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agents := make([]*domain.AgentPresence, 0, len(c.agents))
	for _, agent := range c.agents {
		copied := *agent
		agents = append(agents, &copied)
	}
	return agents, nil
}

// AdjustAgentLoad atomically adds delta to the agent's chat count.
func (c *MemoryPresenceCache) AdjustAgentLoad(_ context.Context, agentID string, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	agent, ok := c.agents[agentID]
	if !ok {
		return domain.E(domain.KindNotFound, "agent not known to presence cache")
	}
	agent.CurrentChats += delta
	if agent.CurrentChats < 0 {
		agent.CurrentChats = 0
	}
	agent.LastActivity = time.Now()
	return nil
}
