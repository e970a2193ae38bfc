package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/ports"
)

// fakeStore is an in-memory durable store covering the identity, room and
// message ports for service tests.
type fakeStore struct {
	mu         sync.Mutex
	identities map[string]*domain.Identity
	rooms      map[string]*domain.ChatRoom
	messages   map[string]*domain.Message

	// failUpdateRoom, when set, fails UpdateRoom for the given room id once.
	failUpdateRoom string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		identities: make(map[string]*domain.Identity),
		rooms:      make(map[string]*domain.ChatRoom),
		messages:   make(map[string]*domain.Message),
	}
}

var (
	_ ports.IdentityRepository = (*fakeStore)(nil)
	_ ports.ChatRoomRepository = (*fakeStore)(nil)
	_ ports.MessageRepository  = (*fakeStore)(nil)
)

func copyRoom(room *domain.ChatRoom) *domain.ChatRoom {
	copied := *room
	copied.Participants = append([]string(nil), room.Participants...)
	copied.TransferHistory = append([]domain.TransferRecord(nil), room.TransferHistory...)
	return &copied
}

func copyMessage(msg *domain.Message) *domain.Message {
	copied := *msg
	copied.DeliveredTo = append([]domain.Receipt(nil), msg.DeliveredTo...)
	copied.ReadBy = append([]domain.Receipt(nil), msg.ReadBy...)
	return &copied
}

func (f *fakeStore) CreateIdentity(_ context.Context, identity *domain.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.identities {
		if existing.Username == identity.Username || existing.Email == identity.Email {
			return domain.E(domain.KindConflict, "username or email already registered")
		}
	}
	copied := *identity
	f.identities[identity.ID] = &copied
	return nil
}

func (f *fakeStore) IdentityByID(_ context.Context, id string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "identity not found")
	}
	copied := *identity
	return &copied, nil
}

func (f *fakeStore) IdentityByUsername(_ context.Context, username string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, identity := range f.identities {
		if identity.Username == username {
			copied := *identity
			return &copied, nil
		}
	}
	return nil, domain.E(domain.KindNotFound, "identity not found")
}

func (f *fakeStore) ListAgents(_ context.Context) ([]*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var agents []*domain.Identity
	for _, identity := range f.identities {
		if identity.Role == domain.RoleAgent {
			copied := *identity
			agents = append(agents, &copied)
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Username < agents[j].Username })
	return agents, nil
}

func (f *fakeStore) TouchIdentity(_ context.Context, id string, status domain.PresenceStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.identities[id]
	if !ok {
		return domain.E(domain.KindNotFound, "identity not found")
	}
	identity.Status = status
	identity.LastActivity = at
	return nil
}

func (f *fakeStore) CreateRoom(_ context.Context, room *domain.ChatRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = copyRoom(room)
	return nil
}

func (f *fakeStore) RoomByID(_ context.Context, id string) (*domain.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "room not found")
	}
	return copyRoom(room), nil
}

func (f *fakeStore) UpdateRoom(_ context.Context, room *domain.ChatRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateRoom == room.ID {
		f.failUpdateRoom = ""
		return domain.E(domain.KindTransient, "simulated store failure")
	}
	if _, ok := f.rooms[room.ID]; !ok {
		return domain.E(domain.KindNotFound, "room not found")
	}
	f.rooms[room.ID] = copyRoom(room)
	return nil
}

func (f *fakeStore) FindRooms(_ context.Context, filter ports.RoomFilter) ([]*domain.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.ChatRoom
	for _, room := range f.rooms {
		if matchesFilter(room, filter) {
			result = append(result, copyRoom(room))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LastActivity.After(result[j].LastActivity) })
	return result, nil
}

func (f *fakeStore) CountRooms(ctx context.Context, filter ports.RoomFilter) (int, error) {
	rooms, err := f.FindRooms(ctx, filter)
	return len(rooms), err
}

func matchesFilter(room *domain.ChatRoom, filter ports.RoomFilter) bool {
	if filter.Participant != "" && !room.HasParticipant(filter.Participant) {
		return false
	}
	if filter.AssignedAgent != "" && room.AssignedAgent != filter.AssignedAgent {
		return false
	}
	if filter.Status != "" && room.Status != filter.Status {
		return false
	}
	if filter.Type != "" && room.Type != filter.Type {
		return false
	}
	if filter.Department != "" && room.Department != filter.Department {
		return false
	}
	return true
}

func (f *fakeStore) CreateMessage(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.ID] = copyMessage(msg)
	return nil
}

func (f *fakeStore) MessageByID(_ context.Context, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[id]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "message not found")
	}
	return copyMessage(msg), nil
}

func (f *fakeStore) UpdateMessage(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.messages[msg.ID]
	if !ok {
		return domain.E(domain.KindNotFound, "message not found")
	}
	copied := copyMessage(msg)
	// Receipts are owned by AddReceipt.
	copied.DeliveredTo = stored.DeliveredTo
	copied.ReadBy = stored.ReadBy
	f.messages[msg.ID] = copied
	return nil
}

func (f *fakeStore) AddReceipt(_ context.Context, messageID, identityID string, kind domain.ReceiptKind, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageID]
	if !ok {
		return domain.E(domain.KindNotFound, "message not found")
	}
	receipt := domain.Receipt{IdentityID: identityID, Timestamp: at}
	switch kind {
	case domain.ReceiptDelivered:
		if !msg.IsDeliveredTo(identityID) {
			msg.DeliveredTo = append(msg.DeliveredTo, receipt)
		}
	case domain.ReceiptRead:
		if !msg.IsReadBy(identityID) {
			msg.ReadBy = append(msg.ReadBy, receipt)
		}
	}
	return nil
}

func (f *fakeStore) MessagesByRoom(_ context.Context, roomID string, limit int, before *time.Time) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*domain.Message
	for _, msg := range f.messages {
		if msg.ChatRoomID != roomID {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		result = append(result, copyMessage(msg))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeStore) SearchMessages(_ context.Context, roomID, term string, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(term)
	var result []*domain.Message
	for _, msg := range f.messages {
		if msg.ChatRoomID != roomID || msg.IsDeleted {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Content), needle) {
			result = append(result, copyMessage(msg))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeStore) CountUnread(_ context.Context, identityID, roomID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.messages {
		if msg.ChatRoomID == roomID && msg.SenderID != identityID && !msg.IsDeleted && !msg.IsReadBy(identityID) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountUnreadByRoom(ctx context.Context, identityID string) (map[string]int, error) {
	f.mu.Lock()
	roomIDs := make(map[string]struct{})
	for _, room := range f.rooms {
		if room.HasParticipant(identityID) {
			roomIDs[room.ID] = struct{}{}
		}
	}
	f.mu.Unlock()

	counts := make(map[string]int)
	for roomID := range roomIDs {
		n, err := f.CountUnread(ctx, identityID, roomID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[roomID] = n
		}
	}
	return counts, nil
}
