package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/events"
	"support-chat/internal/core/ports"
)

const defaultSearchLimit = 50

// CreateMessageInput carries the fields of a send-message request.
type CreateMessageInput struct {
	ChatRoomID string
	SenderID   string
	Content    string
	Type       domain.MessageType
	ReplyTo    string
}

// MessageService creates messages and tracks per-recipient delivery and read
// receipts. Receipt mutations are commutative and idempotent, guarded by a
// per-message mutex.
type MessageService struct {
	messages ports.MessageRepository
	rooms    ports.ChatRoomRepository
	bus      *events.Bus
	locks    *keyedMutex
}

// NewMessageService creates a message service with dependencies injected.
func NewMessageService(messages ports.MessageRepository, rooms ports.ChatRoomRepository, bus *events.Bus) *MessageService {
	return &MessageService{
		messages: messages,
		rooms:    rooms,
		bus:      bus,
		locks:    newKeyedMutex(),
	}
}

// Create persists a new message with status "sent". It does not wait for any
// receipt propagation.
func (s *MessageService) Create(ctx context.Context, in CreateMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, domain.E(domain.KindValidation, "message content is empty")
	}
	if in.Type == "" {
		in.Type = domain.MessageText
	}
	if !in.Type.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown message type")
	}

	room, err := s.rooms.RoomByID(ctx, in.ChatRoomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed() {
		return nil, domain.E(domain.KindConflict, "room is closed")
	}
	if !room.HasParticipant(in.SenderID) {
		return nil, domain.E(domain.KindForbidden, "sender is not a room participant")
	}
	if in.ReplyTo != "" {
		parent, err := s.messages.MessageByID(ctx, in.ReplyTo)
		if err != nil {
			return nil, err
		}
		// replyTo never crosses room boundaries.
		if parent.ChatRoomID != room.ID {
			return nil, domain.E(domain.KindValidation, "reply target belongs to another room")
		}
	}

	msg := &domain.Message{
		ID:         uuid.New().String(),
		ChatRoomID: room.ID,
		SenderID:   in.SenderID,
		Content:    in.Content,
		Type:       in.Type,
		Status:     domain.MessageSent,
		ReplyTo:    in.ReplyTo,
		CreatedAt:  time.Now(),
	}
	if err := s.messages.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	// A new message is room activity: the balancer's oldest-idle ordering
	// and the room listing both read this timestamp.
	room.LastActivity = msg.CreatedAt
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		slog.Warn("failed to bump room activity", "error", err, "room_id", room.ID)
	}

	s.publishCreated(msg)
	slog.Debug("message created",
		"message_id", msg.ID,
		"room_id", msg.ChatRoomID,
		"sender_id", msg.SenderID,
	)
	return msg, nil
}

// MarkDelivered records a delivery receipt for identityID. Idempotent:
// repeated calls for the same pair are no-ops returning true.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, identityID string) (bool, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()
	return s.addReceipt(ctx, messageID, identityID, domain.ReceiptDelivered)
}

// MarkRead records a read receipt for identityID. Read implies delivered:
// a missing delivery receipt is added alongside. Idempotent.
func (s *MessageService) MarkRead(ctx context.Context, messageID, identityID string) (bool, error) {
	unlock := s.locks.Lock(messageID)
	defer unlock()
	return s.addReceipt(ctx, messageID, identityID, domain.ReceiptRead)
}

// addReceipt performs the shared receipt bookkeeping. Caller holds the
// per-message lock.
func (s *MessageService) addReceipt(ctx context.Context, messageID, identityID string, kind domain.ReceiptKind) (bool, error) {
	msg, err := s.messages.MessageByID(ctx, messageID)
	if err != nil {
		return false, err
	}
	if msg.SenderID == identityID {
		// A sender acknowledging its own message is a harmless no-op.
		return true, nil
	}

	room, err := s.rooms.RoomByID(ctx, msg.ChatRoomID)
	if err != nil {
		return false, err
	}
	if !room.HasParticipant(identityID) {
		return false, domain.E(domain.KindForbidden, "identity is not a room participant")
	}

	now := time.Now()
	changed := false

	if !msg.IsDeliveredTo(identityID) {
		if err := s.messages.AddReceipt(ctx, messageID, identityID, domain.ReceiptDelivered, now); err != nil {
			return false, err
		}
		msg.DeliveredTo = append(msg.DeliveredTo, domain.Receipt{IdentityID: identityID, Timestamp: now})
		changed = true
	}
	if kind == domain.ReceiptRead && !msg.IsReadBy(identityID) {
		if err := s.messages.AddReceipt(ctx, messageID, identityID, domain.ReceiptRead, now); err != nil {
			return false, err
		}
		msg.ReadBy = append(msg.ReadBy, domain.Receipt{IdentityID: identityID, Timestamp: now})
		changed = true
	}

	if next := aggregateStatus(msg); next != msg.Status && changed {
		msg.Status = next
		if err := s.messages.UpdateMessage(ctx, msg); err != nil {
			return false, err
		}
		s.publishStatus(msg)
	}
	return true, nil
}

// aggregateStatus derives the message-level status from its receipts.
// Monotonic: once one non-sender participant read it, it is "read".
func aggregateStatus(msg *domain.Message) domain.MessageStatus {
	switch {
	case len(msg.ReadBy) > 0:
		return domain.MessageRead
	case len(msg.DeliveredTo) > 0:
		return domain.MessageDelivered
	default:
		return msg.Status
	}
}

// UnreadCount counts messages in the room not sent by and not yet read by
// the identity.
func (s *MessageService) UnreadCount(ctx context.Context, identityID, roomID string) (int, error) {
	if _, err := s.rooms.RoomByID(ctx, roomID); err != nil {
		return 0, err
	}
	return s.messages.CountUnread(ctx, identityID, roomID)
}

// UnreadCounts returns per-room unread counts for the identity.
func (s *MessageService) UnreadCounts(ctx context.Context, identityID string) (map[string]int, error) {
	return s.messages.CountUnreadByRoom(ctx, identityID)
}

// Edit replaces a message's content. Only the sender may edit.
func (s *MessageService) Edit(ctx context.Context, messageID, newContent, requesterID string) (*domain.Message, error) {
	if strings.TrimSpace(newContent) == "" {
		return nil, domain.E(domain.KindValidation, "message content is empty")
	}

	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.messages.MessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, domain.E(domain.KindForbidden, "only the sender may edit a message")
	}
	if msg.IsDeleted {
		return nil, domain.E(domain.KindConflict, "message was deleted")
	}

	now := time.Now()
	msg.Content = newContent
	msg.IsEdited = true
	msg.EditedAt = &now
	if err := s.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.publishStatus(msg)
	return msg, nil
}

// Delete tombstones a message. The record stays in place so room history
// ordering is preserved. Only the sender may delete.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID string) error {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	msg, err := s.messages.MessageByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return domain.E(domain.KindForbidden, "only the sender may delete a message")
	}
	if msg.IsDeleted {
		return nil
	}

	now := time.Now()
	msg.IsDeleted = true
	msg.DeletedAt = &now
	msg.Content = ""
	if err := s.messages.UpdateMessage(ctx, msg); err != nil {
		return err
	}
	s.publishStatus(msg)
	return nil
}

// Search returns up to limit messages of the room whose content matches term
// case-insensitively, most recent first.
func (s *MessageService) Search(ctx context.Context, roomID, term string, limit int) ([]*domain.Message, error) {
	if _, err := s.rooms.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.messages.SearchMessages(ctx, roomID, term, limit)
}

// RoomMessages returns room history, oldest first, bounded by limit.
func (s *MessageService) RoomMessages(ctx context.Context, roomID string, limit int, before *time.Time) ([]*domain.Message, error) {
	if _, err := s.rooms.RoomByID(ctx, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.messages.MessagesByRoom(ctx, roomID, limit, before)
}

func (s *MessageService) publishCreated(msg *domain.Message) {
	if s.bus == nil {
		return
	}
	ev := domain.NewEvent(domain.EventMessageCreated)
	ev.RoomID = msg.ChatRoomID
	ev.IdentityID = msg.SenderID
	ev.Payload["message"] = msg
	s.bus.Publish(ev)
}

func (s *MessageService) publishStatus(msg *domain.Message) {
	if s.bus == nil {
		return
	}
	ev := domain.NewEvent(domain.EventMessageStatus)
	ev.RoomID = msg.ChatRoomID
	ev.Payload["message_id"] = msg.ID
	ev.Payload["status"] = string(msg.Status)
	ev.Payload["is_edited"] = msg.IsEdited
	ev.Payload["is_deleted"] = msg.IsDeleted
	s.bus.Publish(ev)
}
