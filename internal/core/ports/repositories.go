// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"support-chat/internal/core/domain"
)

// IdentityRepository persists registered identities in the durable store.
type IdentityRepository interface {
	// CreateIdentity inserts a new identity. Returns a Conflict-classified
	// error when the username or email is already taken.
	CreateIdentity(ctx context.Context, identity *domain.Identity) error

	// IdentityByID retrieves an identity, NotFound when absent.
	IdentityByID(ctx context.Context, id string) (*domain.Identity, error)

	// IdentityByUsername retrieves an identity by login name, NotFound when absent.
	IdentityByUsername(ctx context.Context, username string) (*domain.Identity, error)

	// ListAgents returns all identities with the agent role.
	ListAgents(ctx context.Context) ([]*domain.Identity, error)

	// TouchIdentity updates status and last activity.
	TouchIdentity(ctx context.Context, id string, status domain.PresenceStatus, at time.Time) error
}

// RoomFilter narrows ChatRoomRepository queries. Zero values are wildcards.
type RoomFilter struct {
	Participant   string
	AssignedAgent string
	Status        domain.RoomStatus
	Type          domain.RoomType
	Department    string
}

// ChatRoomRepository persists chat rooms in the durable store. The room
// mutation methods are plain writes: mutual exclusion per room is owned by
// the ChatRoomService, not the store.
type ChatRoomRepository interface {
	// CreateRoom inserts a new room.
	CreateRoom(ctx context.Context, room *domain.ChatRoom) error

	// RoomByID retrieves a room, NotFound when absent.
	RoomByID(ctx context.Context, id string) (*domain.ChatRoom, error)

	// UpdateRoom overwrites the mutable room fields (status, assigned agent,
	// participants, transfer history, activity, close markers).
	UpdateRoom(ctx context.Context, room *domain.ChatRoom) error

	// FindRooms returns rooms matching the filter, most recently active first.
	FindRooms(ctx context.Context, filter RoomFilter) ([]*domain.ChatRoom, error)

	// CountRooms counts rooms matching the filter.
	CountRooms(ctx context.Context, filter RoomFilter) (int, error)
}

// MessageRepository persists messages and their receipts.
type MessageRepository interface {
	// CreateMessage inserts a new message with its initial status.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// MessageByID retrieves a message with its receipts, NotFound when absent.
	MessageByID(ctx context.Context, id string) (*domain.Message, error)

	// UpdateMessage overwrites mutable message fields (content, status,
	// edit/delete markers).
	UpdateMessage(ctx context.Context, msg *domain.Message) error

	// AddReceipt records a delivery or read receipt. Idempotent: recording
	// the same (message, identity, kind) twice is a no-op.
	AddReceipt(ctx context.Context, messageID, identityID string, kind domain.ReceiptKind, at time.Time) error

	// MessagesByRoom returns up to limit messages of a room ordered oldest
	// first, optionally only those created before the given time.
	MessagesByRoom(ctx context.Context, roomID string, limit int, before *time.Time) ([]*domain.Message, error)

	// SearchMessages returns up to limit non-deleted messages of a room whose
	// content matches term case-insensitively, most recent first.
	SearchMessages(ctx context.Context, roomID, term string, limit int) ([]*domain.Message, error)

	// CountUnread counts messages in the room not sent by and not yet read
	// by the identity.
	CountUnread(ctx context.Context, identityID, roomID string) (int, error)

	// CountUnreadByRoom returns unread counts for every room the identity
	// participates in.
	CountUnreadByRoom(ctx context.Context, identityID string) (map[string]int, error)
}

// SessionStore maps opaque tokens to authenticated sessions with TTL.
// Implementations must guarantee no session is ever returned after its TTL
// elapsed, whether or not a sweep ran.
type SessionStore interface {
	// PutSession stores a session with the given time-to-live.
	PutSession(ctx context.Context, session *domain.Session, ttl time.Duration) error

	// GetSession returns the session for token, or NotFound if absent or
	// expired. It does not refresh activity.
	GetSession(ctx context.Context, token string) (*domain.Session, error)

	// TouchSession refreshes last activity and extends the TTL window.
	TouchSession(ctx context.Context, token string, at time.Time, ttl time.Duration) error

	// DeleteSession revokes a token. Returns false if the token was unknown.
	DeleteSession(ctx context.Context, token string) (bool, error)

	// SweepExpired removes expired sessions and returns how many were
	// dropped. Stores with native TTL expiry may return 0 unconditionally.
	SweepExpired(ctx context.Context) (int, error)
}

// PresenceCache tracks connected identities and agent capacity. All methods
// must be safe under concurrent access from many gateway connections and
// must not block for unbounded time.
type PresenceCache interface {
	// SetOnline binds the identity to a channel. Last writer wins: a later
	// bind for the same identity supersedes the previous channel.
	SetOnline(ctx context.Context, identityID, channelID string, role domain.Role) error

	// SetOffline clears the identity's channel binding.
	SetOffline(ctx context.Context, identityID string) error

	// Channel returns the identity's current channel id, or "" when offline.
	Channel(ctx context.Context, identityID string) (string, error)

	// ListOnline returns the ids of online identities, optionally filtered
	// by role ("" means all roles).
	ListOnline(ctx context.Context, role domain.Role) ([]string, error)

	// SetAgentStatus updates an agent's availability record.
	SetAgentStatus(ctx context.Context, agent *domain.AgentPresence) error

	// AgentStatus returns an agent's availability record, NotFound when the
	// agent was never registered.
	AgentStatus(ctx context.Context, agentID string) (*domain.AgentPresence, error)

	// ListAgents returns availability records for all known agents.
	ListAgents(ctx context.Context) ([]*domain.AgentPresence, error)

	// AdjustAgentLoad atomically adds delta to the agent's current chat
	// count, clamped at zero.
	AdjustAgentLoad(ctx context.Context, agentID string, delta int) error
}
