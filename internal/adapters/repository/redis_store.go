package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/ports"
)

// Ensure the Redis adapters implement the cache ports.
var (
	_ ports.SessionStore  = (*RedisSessionStore)(nil)
	_ ports.PresenceCache = (*RedisPresenceCache)(nil)
)

const (
	sessionKeyPrefix = "session:"
	onlineHashKey    = "presence:online"
	agentKeyPrefix   = "presence:agent:"
	agentSetKey      = "presence:agents"
)

// RedisSessionStore keeps sessions in Redis with native TTL expiry: the
// keyspace itself guarantees no session outlives its inactivity window, so
// SweepExpired has nothing to do.
type RedisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

// PutSession stores the session JSON under the token key with TTL.
func (s *RedisSessionStore) PutSession(ctx context.Context, session *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return domain.Wrap(domain.KindFatal, "marshal session", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.Token), data, ttl).Err(); err != nil {
		return domain.Wrap(domain.KindTransient, "store session", err)
	}
	return nil
}

// GetSession returns the session for token, NotFound when absent or expired.
func (s *RedisSessionStore) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err == redis.Nil {
		return nil, domain.E(domain.KindNotFound, "session not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "load session", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, domain.Wrap(domain.KindFatal, "unmarshal session", err)
	}
	return &session, nil
}

// TouchSession rewrites the session with refreshed activity and a fresh TTL.
func (s *RedisSessionStore) TouchSession(ctx context.Context, token string, at time.Time, ttl time.Duration) error {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return err
	}
	session.LastActivity = at
	return s.PutSession(ctx, session, ttl)
}

// DeleteSession revokes a token. Returns false if the token was unknown.
func (s *RedisSessionStore) DeleteSession(ctx context.Context, token string) (bool, error) {
	deleted, err := s.client.Del(ctx, sessionKey(token)).Result()
	if err != nil {
		return false, domain.Wrap(domain.KindTransient, "delete session", err)
	}
	return deleted > 0, nil
}

// SweepExpired is a no-op: Redis TTL expiry already enforces the window.
func (s *RedisSessionStore) SweepExpired(_ context.Context) (int, error) {
	return 0, nil
}

type onlineRecord struct {
	ChannelID string      `json:"channel_id"`
	Role      domain.Role `json:"role"`
}

// RedisPresenceCache keeps channel bindings in one hash and each agent's
// availability in a per-agent hash so the chat counter can be incremented
// atomically with HINCRBY.
type RedisPresenceCache struct {
	client *redis.Client
}

// NewRedisPresenceCache creates a Redis-backed presence cache.
func NewRedisPresenceCache(client *redis.Client) *RedisPresenceCache {
	return &RedisPresenceCache{client: client}
}

func agentKey(agentID string) string {
	return agentKeyPrefix + agentID
}

// SetOnline binds the identity to a channel. HSET overwrites the previous
// field value, which is exactly the last-writer-wins the contract wants.
func (c *RedisPresenceCache) SetOnline(ctx context.Context, identityID, channelID string, role domain.Role) error {
	data, err := json.Marshal(onlineRecord{ChannelID: channelID, Role: role})
	if err != nil {
		return domain.Wrap(domain.KindFatal, "marshal presence record", err)
	}
	if err := c.client.HSet(ctx, onlineHashKey, identityID, data).Err(); err != nil {
		return domain.Wrap(domain.KindTransient, "set online", err)
	}
	return nil
}

// SetOffline clears the identity's binding and marks any agent record offline.
func (c *RedisPresenceCache) SetOffline(ctx context.Context, identityID string) error {
	if err := c.client.HDel(ctx, onlineHashKey, identityID).Err(); err != nil {
		return domain.Wrap(domain.KindTransient, "set offline", err)
	}
	exists, err := c.client.Exists(ctx, agentKey(identityID)).Result()
	if err == nil && exists > 0 {
		if err := c.client.HSet(ctx, agentKey(identityID), "status", string(domain.StatusOffline)).Err(); err != nil {
			slog.Warn("failed to mark agent offline", "error", err, "agent_id", identityID)
		}
	}
	return nil
}

// Channel returns the identity's current channel id, or "" when offline.
func (c *RedisPresenceCache) Channel(ctx context.Context, identityID string) (string, error) {
	data, err := c.client.HGet(ctx, onlineHashKey, identityID).Bytes()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", domain.Wrap(domain.KindTransient, "get channel", err)
	}

	var record onlineRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return "", domain.Wrap(domain.KindFatal, "unmarshal presence record", err)
	}
	return record.ChannelID, nil
}

// ListOnline returns the ids of online identities filtered by role.
func (c *RedisPresenceCache) ListOnline(ctx context.Context, role domain.Role) ([]string, error) {
	all, err := c.client.HGetAll(ctx, onlineHashKey).Result()
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "list online", err)
	}

	ids := make([]string, 0, len(all))
	for id, raw := range all {
		if role == "" {
			ids = append(ids, id)
			continue
		}
		var record onlineRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			slog.Warn("skipping malformed presence record", "identity_id", id)
			continue
		}
		if record.Role == role {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// SetAgentStatus writes the agent's availability hash. The current chat
// count is only seeded when the hash is new; live load survives status
// updates.
func (c *RedisPresenceCache) SetAgentStatus(ctx context.Context, agent *domain.AgentPresence) error {
	key := agentKey(agent.AgentID)
	fields := map[string]interface{}{
		"status":        string(agent.Status),
		"department":    agent.Department,
		"max_chats":     agent.MaxChats,
		"last_activity": agent.LastActivity.UnixMilli(),
	}

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return domain.Wrap(domain.KindTransient, "check agent record", err)
	}
	if exists == 0 {
		fields["current_chats"] = agent.CurrentChats
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, agentSetKey, agent.AgentID)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Wrap(domain.KindTransient, "set agent status", err)
	}
	return nil
}

// AgentStatus reads the agent's availability hash.
func (c *RedisPresenceCache) AgentStatus(ctx context.Context, agentID string) (*domain.AgentPresence, error) {
	values, err := c.client.HGetAll(ctx, agentKey(agentID)).Result()
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "get agent status", err)
	}
	if len(values) == 0 {
		return nil, domain.E(domain.KindNotFound, "agent not known to presence cache")
	}
	return parseAgentHash(agentID, values), nil
}

// ListAgents reads every registered agent hash.
func (c *RedisPresenceCache) ListAgents(ctx context.Context) ([]*domain.AgentPresence, error) {
	ids, err := c.client.SMembers(ctx, agentSetKey).Result()
	if err != nil {
		return nil, domain.Wrap(domain.KindTransient, "list agents", err)
	}

	agents := make([]*domain.AgentPresence, 0, len(ids))
	for _, id := range ids {
		agent, err := c.AgentStatus(ctx, id)
		if err != nil {
			continue
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// AdjustAgentLoad adds delta to the chat counter atomically.
func (c *RedisPresenceCache) AdjustAgentLoad(ctx context.Context, agentID string, delta int) error {
	key := agentKey(agentID)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return domain.Wrap(domain.KindTransient, "check agent record", err)
	}
	if exists == 0 {
		return domain.E(domain.KindNotFound, "agent not known to presence cache")
	}

	count, err := c.client.HIncrBy(ctx, key, "current_chats", int64(delta)).Result()
	if err != nil {
		return domain.Wrap(domain.KindTransient, "adjust agent load", err)
	}
	if count < 0 {
		// Clamp: double-decrements must not drive the counter negative.
		if err := c.client.HSet(ctx, key, "current_chats", 0).Err(); err != nil {
			return domain.Wrap(domain.KindTransient, "clamp agent load", err)
		}
	}
	if err := c.client.HSet(ctx, key, "last_activity", time.Now().UnixMilli()).Err(); err != nil {
		slog.Warn("failed to bump agent activity", "error", err, "agent_id", agentID)
	}
	return nil
}

func parseAgentHash(agentID string, values map[string]string) *domain.AgentPresence {
	agent := &domain.AgentPresence{
		AgentID:    agentID,
		Status:     domain.PresenceStatus(values["status"]),
		Department: values["department"],
	}
	agent.MaxChats, _ = strconv.Atoi(values["max_chats"])
	agent.CurrentChats, _ = strconv.Atoi(values["current_chats"])
	if millis, err := strconv.ParseInt(values["last_activity"], 10, 64); err == nil {
		agent.LastActivity = time.UnixMilli(millis)
	}
	return agent
}
