package domain

import "time"

// EventType names every domain event emitted by the core services.
type EventType string

const (
	// Room lifecycle. EventRoomTransferred is the transient "transferred"
	// marker: observers see it on the bus while the persisted status moves
	// straight back to active.
	EventRoomCreated      EventType = "room.created"
	EventRoomPending      EventType = "room.pending"
	EventRoomAssigned     EventType = "room.assigned"
	EventRoomTransferred  EventType = "room.transferred"
	EventRoomAgentRemoved EventType = "room.agent_removed"
	EventRoomClosed       EventType = "room.closed"

	// Messages and receipts.
	EventMessageCreated EventType = "message.created"
	EventMessageStatus  EventType = "message.status_updated"

	// Presence.
	EventStatusChanged EventType = "presence.status_changed"
)

// Event is the envelope published on the in-process bus and streamed to the
// event broker. RoomID scopes fan-out: the gateway delivers room events to
// the room's participants only.
type Event struct {
	Type       EventType      `json:"type"`
	RoomID     string         `json:"room_id,omitempty"`
	IdentityID string         `json:"identity_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(t EventType) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: map[string]any{}}
}
