// Package domain contains core business entities
// Following Hexagonal Architecture: These models are infrastructure-agnostic
package domain

import (
	"time"
)

// Role identifies what a participant is allowed to do.
// Roles form a total order: USER < AGENT < ADMIN.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// roleRank maps each role to its position in the permission order.
var roleRank = map[Role]int{
	RoleUser:  0,
	RoleAgent: 1,
	RoleAdmin: 2,
}

// AtLeast reports whether r grants every permission of required.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// PresenceStatus is the live availability state of an identity.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusBusy    PresenceStatus = "busy"
	StatusOffline PresenceStatus = "offline"
)

// Valid reports whether s is a known presence status.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Identity represents an authenticated participant: end-user, agent or admin.
// Department and MaxChats are meaningful for agents only.
type Identity struct {
	ID           string         `json:"id" db:"id"`
	Username     string         `json:"username" db:"username"`
	Email        string         `json:"email" db:"email"`
	DisplayName  string         `json:"display_name" db:"display_name"`
	PasswordHash string         `json:"-" db:"password_hash"` // Never expose in JSON
	Role         Role           `json:"role" db:"role"`
	Status       PresenceStatus `json:"status" db:"status"`
	Department   string         `json:"department,omitempty" db:"department"`
	MaxChats     int            `json:"max_concurrent_chats,omitempty" db:"max_concurrent_chats"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	LastActivity time.Time      `json:"last_activity" db:"last_activity"`
}

// Session binds an opaque token to an authenticated identity.
// Owned exclusively by the session store; refreshed on every validation.
type Session struct {
	Token        string    `json:"token"`
	IdentityID   string    `json:"identity_id"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// RoomType classifies a chat room.
type RoomType string

const (
	RoomDirect  RoomType = "direct"
	RoomSupport RoomType = "support"
	RoomGroup   RoomType = "group"
)

// Valid reports whether t is a known room type.
func (t RoomType) Valid() bool {
	switch t {
	case RoomDirect, RoomSupport, RoomGroup:
		return true
	}
	return false
}

// RoomStatus is the persisted lifecycle state of a chat room.
// "transferred" is deliberately NOT a stored status: it is surfaced as a
// domain event only, so readers never observe a transient resting state.
type RoomStatus string

const (
	RoomPending RoomStatus = "pending"
	RoomActive  RoomStatus = "active"
	RoomClosed  RoomStatus = "closed"
)

// TransferRecord is one entry in a room's ordered transfer history.
type TransferRecord struct {
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// ChatRoom is a support/direct/group conversation. The room exclusively owns
// its participant set and transfer history. Rooms are never physically
// deleted: closing is a terminal soft state.
type ChatRoom struct {
	ID              string            `json:"id" db:"id"`
	Type            RoomType          `json:"type" db:"type"`
	Status          RoomStatus        `json:"status" db:"status"`
	CreatedBy       string            `json:"created_by" db:"created_by"`
	Participants    []string          `json:"participants" db:"participants"`
	AssignedAgent   string            `json:"assigned_agent,omitempty" db:"assigned_agent"`
	TransferHistory []TransferRecord  `json:"transfer_history" db:"transfer_history"`
	Department      string            `json:"department,omitempty" db:"department"`
	Metadata        map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	LastActivity    time.Time         `json:"last_activity" db:"last_activity"`
	ClosedBy        string            `json:"closed_by,omitempty" db:"closed_by"`
	ClosedAt        *time.Time        `json:"closed_at,omitempty" db:"closed_at"`
}

// HasParticipant reports whether identityID is a member of the room.
func (r *ChatRoom) HasParticipant(identityID string) bool {
	for _, p := range r.Participants {
		if p == identityID {
			return true
		}
	}
	return false
}

// AddParticipant adds identityID to the participant set if absent.
func (r *ChatRoom) AddParticipant(identityID string) {
	if !r.HasParticipant(identityID) {
		r.Participants = append(r.Participants, identityID)
	}
}

// IsClosed reports whether the room reached its terminal state.
func (r *ChatRoom) IsClosed() bool {
	return r.Status == RoomClosed
}

// MessageType classifies message content.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageSystem:
		return true
	}
	return false
}

// MessageStatus is the aggregate delivery state of a message.
// Monotonic: sent -> delivered -> read. "failed" marks a send that never
// reached the store.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

// ReceiptKind distinguishes delivery receipts from read receipts.
type ReceiptKind string

const (
	ReceiptDelivered ReceiptKind = "delivered"
	ReceiptRead      ReceiptKind = "read"
)

// Receipt records a delivery or read acknowledgment for one recipient.
type Receipt struct {
	IdentityID string    `json:"identity_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// Message is owned by its chat room. Receipts are unique per identity;
// deletion is a soft tombstone so room history ordering is preserved.
type Message struct {
	ID          string        `json:"id" db:"id"`
	ChatRoomID  string        `json:"chat_room_id" db:"chat_room_id"`
	SenderID    string        `json:"sender_id" db:"sender_id"`
	Content     string        `json:"content" db:"content"`
	Type        MessageType   `json:"type" db:"type"`
	Status      MessageStatus `json:"status" db:"status"`
	DeliveredTo []Receipt     `json:"delivered_to" db:"delivered_to"`
	ReadBy      []Receipt     `json:"read_by" db:"read_by"`
	ReplyTo     string        `json:"reply_to,omitempty" db:"reply_to"`
	IsEdited    bool          `json:"is_edited" db:"is_edited"`
	EditedAt    *time.Time    `json:"edited_at,omitempty" db:"edited_at"`
	IsDeleted   bool          `json:"is_deleted" db:"is_deleted"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// IsDeliveredTo reports whether identityID already has a delivery receipt.
func (m *Message) IsDeliveredTo(identityID string) bool {
	return hasReceipt(m.DeliveredTo, identityID)
}

// IsReadBy reports whether identityID already has a read receipt.
func (m *Message) IsReadBy(identityID string) bool {
	return hasReceipt(m.ReadBy, identityID)
}

func hasReceipt(receipts []Receipt, identityID string) bool {
	for _, r := range receipts {
		if r.IdentityID == identityID {
			return true
		}
	}
	return false
}

// AgentPresence is the cache-resident availability record for one agent.
type AgentPresence struct {
	AgentID      string         `json:"agent_id"`
	Status       PresenceStatus `json:"status"`
	Department   string         `json:"department,omitempty"`
	MaxChats     int            `json:"max_concurrent_chats"`
	CurrentChats int            `json:"current_chat_count"`
	LastActivity time.Time      `json:"last_activity"`
}

// Available reports whether the agent can accept one more chat.
func (a *AgentPresence) Available() bool {
	return a.Status == StatusOnline && a.CurrentChats < a.MaxChats
}

// AgentWorkload is one row of the admin workload dashboard.
type AgentWorkload struct {
	AgentID      string `json:"agent_id"`
	DisplayName  string `json:"display_name"`
	Department   string `json:"department,omitempty"`
	CurrentChats int    `json:"current_chat_count"`
	MaxChats     int    `json:"max_concurrent_chats"`
}
