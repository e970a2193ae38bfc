package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/core/domain"
)

func newTestMessageService(t *testing.T) (*MessageService, *fakeStore, *domain.ChatRoom) {
	t.Helper()
	store := newFakeStore()
	svc := NewMessageService(store, store, nil)

	room := &domain.ChatRoom{
		ID:           "room-1",
		Type:         domain.RoomSupport,
		Status:       domain.RoomActive,
		CreatedBy:    "user-1",
		Participants: []string{"user-1", "agent-1"},
		CreatedAt:    time.Now(),
		LastActivity: time.Now(),
	}
	require.NoError(t, store.CreateRoom(context.Background(), room))
	return svc, store, room
}

func sendTestMessage(t *testing.T, svc *MessageService, roomID, sender, content string) *domain.Message {
	t.Helper()
	msg, err := svc.Create(context.Background(), CreateMessageInput{
		ChatRoomID: roomID,
		SenderID:   sender,
		Content:    content,
	})
	require.NoError(t, err)
	return msg
}

func TestCreateMessage(t *testing.T) {
	svc, _, room := newTestMessageService(t)

	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")
	assert.Equal(t, domain.MessageSent, msg.Status)
	assert.Equal(t, domain.MessageText, msg.Type)
	assert.NotEmpty(t, msg.ID)
}

func TestCreateMessageBumpsRoomActivity(t *testing.T) {
	svc, store, room := newTestMessageService(t)

	stale := time.Now().Add(-time.Hour)
	room.LastActivity = stale
	require.NoError(t, store.UpdateRoom(context.Background(), room))

	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	reloaded, err := store.RoomByID(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.CreatedAt, reloaded.LastActivity,
		"sending a message must bump the room's lastActivity")
}

func TestCreateMessageValidation(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateMessageInput{ChatRoomID: room.ID, SenderID: "user-1", Content: "   "})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = svc.Create(ctx, CreateMessageInput{ChatRoomID: room.ID, SenderID: "stranger", Content: "hi"})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = svc.Create(ctx, CreateMessageInput{ChatRoomID: "no-such-room", SenderID: "user-1", Content: "hi"})
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestCreateMessageInClosedRoom(t *testing.T) {
	svc, store, room := newTestMessageService(t)

	now := time.Now()
	room.Status = domain.RoomClosed
	room.ClosedAt = &now
	require.NoError(t, store.UpdateRoom(context.Background(), room))

	_, err := svc.Create(context.Background(), CreateMessageInput{
		ChatRoomID: room.ID, SenderID: "user-1", Content: "too late",
	})
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestReplyToMustStayInRoom(t *testing.T) {
	svc, store, room := newTestMessageService(t)

	other := &domain.ChatRoom{
		ID:           "room-2",
		Type:         domain.RoomDirect,
		Status:       domain.RoomActive,
		CreatedBy:    "user-1",
		Participants: []string{"user-1", "user-2"},
	}
	require.NoError(t, store.CreateRoom(context.Background(), other))

	parent := sendTestMessage(t, svc, other.ID, "user-1", "in the other room")

	_, err := svc.Create(context.Background(), CreateMessageInput{
		ChatRoomID: room.ID,
		SenderID:   "user-1",
		Content:    "cross-room reply",
		ReplyTo:    parent.ID,
	})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	// Replying inside the same room works.
	reply, err := svc.Create(context.Background(), CreateMessageInput{
		ChatRoomID: other.ID,
		SenderID:   "user-2",
		Content:    "same-room reply",
		ReplyTo:    parent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, reply.ReplyTo)
}

func TestMarkDeliveredAndRead(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	ok, err := svc.MarkDelivered(context.Background(), msg.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageDelivered, reloaded.Status)
	assert.True(t, reloaded.IsDeliveredTo("agent-1"))

	ok, err = svc.MarkRead(context.Background(), msg.ID, "agent-1")
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err = svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageRead, reloaded.Status)
	assert.True(t, reloaded.IsReadBy("agent-1"))
}

func TestMarkReadImpliesDelivered(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	_, err := svc.MarkRead(context.Background(), msg.ID, "agent-1")
	require.NoError(t, err)

	reloaded, err := svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDeliveredTo("agent-1"), "a read receipt carries a delivery receipt")
	assert.True(t, reloaded.IsReadBy("agent-1"))
}

func TestReceiptsAreIdempotent(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	for i := 0; i < 3; i++ {
		ok, err := svc.MarkRead(context.Background(), msg.ID, "agent-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	reloaded, err := svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.ReadBy, 1)
	assert.Len(t, reloaded.DeliveredTo, 1)
}

func TestSenderSelfAckIsNoOp(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	ok, err := svc.MarkRead(context.Background(), msg.ID, "user-1")
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.ReadBy)
	assert.Equal(t, domain.MessageSent, reloaded.Status)
}

func TestReceiptFromNonParticipant(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "hello")

	_, err := svc.MarkDelivered(context.Background(), msg.ID, "stranger")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestUnreadCount(t *testing.T) {
	svc, _, room := newTestMessageService(t)

	first := sendTestMessage(t, svc, room.ID, "user-1", "one")
	sendTestMessage(t, svc, room.ID, "user-1", "two")
	sendTestMessage(t, svc, room.ID, "agent-1", "agent reply")

	// The agent has two unread; its own message does not count.
	count, err := svc.UnreadCount(context.Background(), "agent-1", room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = svc.MarkRead(context.Background(), first.ID, "agent-1")
	require.NoError(t, err)

	count, err = svc.UnreadCount(context.Background(), "agent-1", room.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	counts, err := svc.UnreadCounts(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{room.ID: 1}, counts)
}

func TestEditMessage(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "helo")

	_, err := svc.Edit(context.Background(), msg.ID, "fixed", "agent-1")
	assert.True(t, domain.IsKind(err, domain.KindForbidden), "only the sender may edit")

	edited, err := svc.Edit(context.Background(), msg.ID, "hello", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	assert.True(t, edited.IsEdited)
	require.NotNil(t, edited.EditedAt)
}

func TestDeleteMessageTombstones(t *testing.T) {
	svc, _, room := newTestMessageService(t)
	msg := sendTestMessage(t, svc, room.ID, "user-1", "oops")

	err := svc.Delete(context.Background(), msg.ID, "agent-1")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	require.NoError(t, svc.Delete(context.Background(), msg.ID, "user-1"))

	reloaded, err := svc.messages.MessageByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDeleted)
	assert.Empty(t, reloaded.Content, "tombstone clears the content")

	// Deleting again is a no-op; editing a tombstone is a conflict.
	require.NoError(t, svc.Delete(context.Background(), msg.ID, "user-1"))
	_, err = svc.Edit(context.Background(), msg.ID, "resurrect", "user-1")
	assert.True(t, domain.IsKind(err, domain.KindConflict))
}

func TestSearchMessages(t *testing.T) {
	svc, _, room := newTestMessageService(t)

	sendTestMessage(t, svc, room.ID, "user-1", "my invoice is wrong")
	deleted := sendTestMessage(t, svc, room.ID, "user-1", "invoice number 42")
	sendTestMessage(t, svc, room.ID, "agent-1", "checking your INVOICE now")
	sendTestMessage(t, svc, room.ID, "agent-1", "unrelated")

	require.NoError(t, svc.Delete(context.Background(), deleted.ID, "user-1"))

	results, err := svc.Search(context.Background(), room.ID, "invoice", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2, "matching is case-insensitive and skips tombstones")
}

func TestRoomMessagesPagination(t *testing.T) {
	svc, store, room := newTestMessageService(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		msg := &domain.Message{
			ID:         string(rune('a' + i)),
			ChatRoomID: room.ID,
			SenderID:   "user-1",
			Content:    "m",
			Type:       domain.MessageText,
			Status:     domain.MessageSent,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.CreateMessage(context.Background(), msg))
	}

	page, err := svc.RoomMessages(context.Background(), room.ID, 3, nil)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "a", page[0].ID, "history is oldest first")

	cutoff := base.Add(2 * time.Minute)
	page, err = svc.RoomMessages(context.Background(), room.ID, 10, &cutoff)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}
