package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/events"
	"support-chat/internal/core/ports"
)

// CreateRoomInput carries the fields of a room-creation request.
type CreateRoomInput struct {
	Type         domain.RoomType
	CreatedBy    string
	Participants []string
	Department   string
	AgentID      string // optional preassigned agent
	Metadata     map[string]string
}

// ChatRoomService owns the room lifecycle state machine and the agent
// workload balancing policy. Every room mutation runs inside a per-room
// critical section; the cross-room transfer locks both rooms in
// lexicographic id order so two admins can never deadlock each other.
type ChatRoomService struct {
	rooms      ports.ChatRoomRepository
	identities ports.IdentityRepository
	presence   ports.PresenceCache
	bus        *events.Bus
	locks      *keyedMutex
	agentLocks *keyedMutex
}

// NewChatRoomService creates a chat room service with dependencies injected.
func NewChatRoomService(
	rooms ports.ChatRoomRepository,
	identities ports.IdentityRepository,
	presence ports.PresenceCache,
	bus *events.Bus,
) *ChatRoomService {
	return &ChatRoomService{
		rooms:      rooms,
		identities: identities,
		presence:   presence,
		bus:        bus,
		locks:      newKeyedMutex(),
		agentLocks: newKeyedMutex(),
	}
}

// acquireAgentSlot atomically claims one chat slot on the agent. The
// per-agent lock makes the capacity check and the increment a single
// critical section, so concurrent assignments on different rooms cannot
// both slip past the capacity check.
func (s *ChatRoomService) acquireAgentSlot(ctx context.Context, agentID string) error {
	unlock := s.agentLocks.Lock(agentID)
	defer unlock()

	agent, err := s.presence.AgentStatus(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.CurrentChats >= agent.MaxChats {
		return domain.E(domain.KindCapacity, "agent is at capacity")
	}
	return s.presence.AdjustAgentLoad(ctx, agentID, 1)
}

// releaseAgentSlot returns a previously claimed slot.
func (s *ChatRoomService) releaseAgentSlot(ctx context.Context, agentID string) {
	unlock := s.agentLocks.Lock(agentID)
	defer unlock()

	if err := s.presence.AdjustAgentLoad(ctx, agentID, -1); err != nil {
		slog.Warn("failed to drop agent load", "error", err, "agent_id", agentID)
	}
}

// CreateRoom creates a chat room. Support rooms without a preassigned agent
// get the least-loaded available agent of the matching department; when no
// agent is available the room stays pending and a room.pending event is the
// caller-visible escalation signal.
func (s *ChatRoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*domain.ChatRoom, error) {
	if !in.Type.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown room type")
	}
	if in.CreatedBy == "" {
		return nil, domain.E(domain.KindValidation, "created_by is required")
	}

	now := time.Now()
	room := &domain.ChatRoom{
		ID:           uuid.New().String(),
		Type:         in.Type,
		Status:       domain.RoomPending,
		CreatedBy:    in.CreatedBy,
		Department:   in.Department,
		Metadata:     in.Metadata,
		CreatedAt:    now,
		LastActivity: now,
	}
	room.AddParticipant(in.CreatedBy)
	for _, p := range in.Participants {
		room.AddParticipant(p)
	}

	agentID := in.AgentID
	if agentID == "" && in.Type == domain.RoomSupport {
		if agent := s.availableAgent(ctx, in.Department); agent != nil {
			agentID = agent.AgentID
		}
	}

	if agentID != "" {
		if err := s.acquireAgentSlot(ctx, agentID); err != nil {
			return nil, err
		}
		room.Status = domain.RoomActive
		room.AssignedAgent = agentID
		room.AddParticipant(agentID)
	} else if in.Type != domain.RoomSupport {
		// Direct and group rooms have no agent queue to wait for.
		room.Status = domain.RoomActive
	}

	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		if room.AssignedAgent != "" {
			s.releaseAgentSlot(ctx, room.AssignedAgent)
		}
		return nil, err
	}

	if room.AssignedAgent != "" {
		s.publishRoom(domain.EventRoomAssigned, room, map[string]any{"agent_id": room.AssignedAgent})
	} else if room.Status == domain.RoomPending {
		s.publishRoom(domain.EventRoomPending, room, nil)
	}
	s.publishRoom(domain.EventRoomCreated, room, nil)

	slog.Info("room created",
		"room_id", room.ID,
		"type", room.Type,
		"status", room.Status,
		"assigned_agent", room.AssignedAgent,
	)
	return room, nil
}

// availableAgent applies the balancing policy: online agents below capacity,
// department match, lowest current load first, then oldest idle, then id for
// a deterministic total order.
func (s *ChatRoomService) availableAgent(ctx context.Context, department string) *domain.AgentPresence {
	agents, err := s.presence.ListAgents(ctx)
	if err != nil {
		slog.Warn("failed to list agents for assignment", "error", err)
		return nil
	}

	candidates := make([]*domain.AgentPresence, 0, len(agents))
	for _, a := range agents {
		if !a.Available() {
			continue
		}
		if department != "" && a.Department != department {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CurrentChats != candidates[j].CurrentChats {
			return candidates[i].CurrentChats < candidates[j].CurrentChats
		}
		if !candidates[i].LastActivity.Equal(candidates[j].LastActivity) {
			return candidates[i].LastActivity.Before(candidates[j].LastActivity)
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
	return candidates[0]
}

// AssignAgent puts an agent on a room. The first assignment is not a
// transfer: no history entry is appended. Fails on closed rooms and on
// agents at capacity; a failed assignment leaves the room untouched.
func (s *ChatRoomService) AssignAgent(ctx context.Context, roomID, agentID, reason string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsClosed() {
		return domain.E(domain.KindConflict, "room is closed")
	}
	if room.AssignedAgent == agentID {
		return nil
	}
	if room.AssignedAgent != "" {
		return domain.E(domain.KindConflict, "room already has an assigned agent")
	}

	if err := s.acquireAgentSlot(ctx, agentID); err != nil {
		return err
	}

	room.AssignedAgent = agentID
	room.AddParticipant(agentID)
	room.Status = domain.RoomActive
	room.LastActivity = time.Now()
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		s.releaseAgentSlot(ctx, agentID)
		return err
	}

	s.publishRoom(domain.EventRoomAssigned, room, map[string]any{
		"agent_id": agentID,
		"reason":   reason,
	})
	slog.Info("agent assigned", "room_id", roomID, "agent_id", agentID)
	return nil
}

// TransferChat reassigns the room from one agent to another. The stale
// transfer guard rejects callers who lost the race: fromAgentID must still
// be the assigned agent. "transferred" is surfaced as an event only; the
// persisted status goes straight back to active.
func (s *ChatRoomService) TransferChat(ctx context.Context, roomID, fromAgentID, toAgentID, reason string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsClosed() {
		return domain.E(domain.KindConflict, "room is closed")
	}
	if room.AssignedAgent != fromAgentID {
		return domain.E(domain.KindConflict, "transfer source is no longer the assigned agent")
	}
	if fromAgentID == toAgentID {
		return domain.E(domain.KindValidation, "cannot transfer a chat to the same agent")
	}

	if err := s.acquireAgentSlot(ctx, toAgentID); err != nil {
		return err
	}

	room.TransferHistory = append(room.TransferHistory, domain.TransferRecord{
		FromAgent: fromAgentID,
		ToAgent:   toAgentID,
		Timestamp: time.Now(),
		Reason:    reason,
	})
	room.AssignedAgent = toAgentID
	room.AddParticipant(toAgentID)
	room.Status = domain.RoomActive
	room.LastActivity = time.Now()
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		s.releaseAgentSlot(ctx, toAgentID)
		return err
	}

	s.releaseAgentSlot(ctx, fromAgentID)
	s.publishRoom(domain.EventRoomTransferred, room, map[string]any{
		"from_agent": fromAgentID,
		"to_agent":   toAgentID,
		"reason":     reason,
	})
	slog.Info("chat transferred",
		"room_id", roomID,
		"from_agent", fromAgentID,
		"to_agent", toAgentID,
	)
	return nil
}

// TransferAgentBetweenChats moves an agent from one room to another in one
// admin-guarded operation. Both rooms are locked in lexicographic id order;
// if the second persist fails the first room is restored, so no partial
// state is left externally visible.
func (s *ChatRoomService) TransferAgentBetweenChats(ctx context.Context, fromChatID, toChatID, agentID string, requesterRole domain.Role, reason string) error {
	if !requesterRole.AtLeast(domain.RoleAdmin) {
		return domain.E(domain.KindForbidden, "moving agents between chats requires admin")
	}
	if fromChatID == toChatID {
		return domain.E(domain.KindValidation, "source and target room are the same")
	}

	unlock := s.locks.LockPair(fromChatID, toChatID)
	defer unlock()

	fromRoom, err := s.rooms.RoomByID(ctx, fromChatID)
	if err != nil {
		return err
	}
	toRoom, err := s.rooms.RoomByID(ctx, toChatID)
	if err != nil {
		return err
	}
	if fromRoom.IsClosed() || toRoom.IsClosed() {
		return domain.E(domain.KindConflict, "room is closed")
	}
	if fromRoom.AssignedAgent != agentID {
		return domain.E(domain.KindConflict, "agent is not assigned to the source room")
	}

	previousTarget := toRoom.AssignedAgent
	if previousTarget == agentID {
		return domain.E(domain.KindValidation, "agent already assigned to the target room")
	}

	// Release the source room.
	fromBefore := *fromRoom
	fromRoom.AssignedAgent = ""
	fromRoom.Status = domain.RoomPending
	fromRoom.LastActivity = time.Now()

	// Occupy the target room. When the target had an agent this is a real
	// transfer and lands in its history; a fresh assignment does not.
	if previousTarget != "" {
		toRoom.TransferHistory = append(toRoom.TransferHistory, domain.TransferRecord{
			FromAgent: previousTarget,
			ToAgent:   agentID,
			Timestamp: time.Now(),
			Reason:    reason,
		})
	}
	toRoom.AssignedAgent = agentID
	toRoom.AddParticipant(agentID)
	toRoom.Status = domain.RoomActive
	toRoom.LastActivity = time.Now()

	if err := s.rooms.UpdateRoom(ctx, fromRoom); err != nil {
		return err
	}
	if err := s.rooms.UpdateRoom(ctx, toRoom); err != nil {
		// Restore the source room so the pair mutates atomically.
		if restoreErr := s.rooms.UpdateRoom(ctx, &fromBefore); restoreErr != nil {
			slog.Error("failed to restore source room after aborted move",
				"error", restoreErr,
				"room_id", fromChatID,
			)
		}
		return err
	}

	// Net load for the moved agent is zero; only a displaced target agent
	// sheds a chat.
	if previousTarget != "" {
		s.releaseAgentSlot(ctx, previousTarget)
	}

	s.publishRoom(domain.EventRoomAgentRemoved, fromRoom, map[string]any{
		"agent_id": agentID,
		"reason":   reason,
	})
	s.publishRoom(domain.EventRoomTransferred, toRoom, map[string]any{
		"from_agent": previousTarget,
		"to_agent":   agentID,
		"reason":     reason,
	})
	slog.Info("agent moved between chats",
		"agent_id", agentID,
		"from_room", fromChatID,
		"to_room", toChatID,
	)
	return nil
}

// RemoveAgent clears the room's assigned agent. An open room returns to
// pending and waits for the next assignment.
func (s *ChatRoomService) RemoveAgent(ctx context.Context, roomID string, requesterRole domain.Role, reason string) error {
	if !requesterRole.AtLeast(domain.RoleAdmin) {
		return domain.E(domain.KindForbidden, "removing an agent requires admin")
	}

	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.AssignedAgent == "" {
		return domain.E(domain.KindConflict, "room has no assigned agent")
	}

	removed := room.AssignedAgent
	room.AssignedAgent = ""
	if !room.IsClosed() {
		room.Status = domain.RoomPending
	}
	room.LastActivity = time.Now()
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return err
	}

	s.releaseAgentSlot(ctx, removed)
	s.publishRoom(domain.EventRoomAgentRemoved, room, map[string]any{
		"agent_id": removed,
		"reason":   reason,
	})
	slog.Info("agent removed from room", "room_id", roomID, "agent_id", removed)
	return nil
}

// Close moves the room to its terminal state. Idempotent transition: the
// first call returns true, any further call returns false without touching
// the room.
func (s *ChatRoomService) Close(ctx context.Context, roomID, closedBy string) (bool, error) {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return false, err
	}
	if room.IsClosed() {
		return false, nil
	}

	now := time.Now()
	agent := room.AssignedAgent
	room.Status = domain.RoomClosed
	room.ClosedBy = closedBy
	room.ClosedAt = &now
	room.LastActivity = now
	if err := s.rooms.UpdateRoom(ctx, room); err != nil {
		return false, err
	}

	if agent != "" {
		s.releaseAgentSlot(ctx, agent)
	}
	s.publishRoom(domain.EventRoomClosed, room, map[string]any{"closed_by": closedBy})
	slog.Info("room closed", "room_id", roomID, "closed_by", closedBy)
	return true, nil
}

// AssignPendingRooms gives an agent that just became available the oldest
// pending rooms of its department, up to capacity. This is the retry path
// for rooms created while no agent was free. Returns the assigned room ids.
func (s *ChatRoomService) AssignPendingRooms(ctx context.Context, agentID string) ([]string, error) {
	agent, err := s.presence.AgentStatus(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.Available() {
		return nil, nil
	}

	pending, err := s.rooms.FindRooms(ctx, ports.RoomFilter{
		Status: domain.RoomPending,
		Type:   domain.RoomSupport,
	})
	if err != nil {
		return nil, err
	}
	// Oldest first: rooms that waited longest get the agent.
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	capacity := agent.MaxChats - agent.CurrentChats
	var assigned []string
	for _, room := range pending {
		if capacity <= 0 {
			break
		}
		if room.Department != "" && room.Department != agent.Department {
			continue
		}
		if err := s.AssignAgent(ctx, room.ID, agentID, "agent became available"); err != nil {
			// Lost the race to another agent or the room closed meanwhile.
			if domain.IsKind(err, domain.KindConflict) || domain.IsKind(err, domain.KindCapacity) {
				continue
			}
			return assigned, err
		}
		assigned = append(assigned, room.ID)
		capacity--
	}
	return assigned, nil
}

// TouchActivity bumps the room's last activity timestamp, e.g. on every new
// message.
func (s *ChatRoomService) TouchActivity(ctx context.Context, roomID string) error {
	unlock := s.locks.Lock(roomID)
	defer unlock()

	room, err := s.rooms.RoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	room.LastActivity = time.Now()
	return s.rooms.UpdateRoom(ctx, room)
}

// Room returns a room by id.
func (s *ChatRoomService) Room(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	return s.rooms.RoomByID(ctx, roomID)
}

// RoomsForIdentity lists the rooms an identity participates in.
func (s *ChatRoomService) RoomsForIdentity(ctx context.Context, identityID string) ([]*domain.ChatRoom, error) {
	return s.rooms.FindRooms(ctx, ports.RoomFilter{Participant: identityID})
}

// RoomsForAgent lists the rooms currently assigned to an agent.
func (s *ChatRoomService) RoomsForAgent(ctx context.Context, agentID string) ([]*domain.ChatRoom, error) {
	return s.rooms.FindRooms(ctx, ports.RoomFilter{AssignedAgent: agentID})
}

// PendingRoomCount reports the depth of the unassigned support queue.
func (s *ChatRoomService) PendingRoomCount(ctx context.Context) (int, error) {
	return s.rooms.CountRooms(ctx, ports.RoomFilter{
		Status: domain.RoomPending,
		Type:   domain.RoomSupport,
	})
}

// WorkloadStats builds the per-agent workload rows for the admin dashboard.
func (s *ChatRoomService) WorkloadStats(ctx context.Context) ([]*domain.AgentWorkload, error) {
	agents, err := s.identities.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]*domain.AgentWorkload, 0, len(agents))
	for _, identity := range agents {
		row := &domain.AgentWorkload{
			AgentID:     identity.ID,
			DisplayName: identity.DisplayName,
			Department:  identity.Department,
			MaxChats:    identity.MaxChats,
		}
		if presence, err := s.presence.AgentStatus(ctx, identity.ID); err == nil {
			row.CurrentChats = presence.CurrentChats
			row.MaxChats = presence.MaxChats
			if row.Department == "" {
				row.Department = presence.Department
			}
		}
		stats = append(stats, row)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].AgentID < stats[j].AgentID })
	return stats, nil
}

func (s *ChatRoomService) publishRoom(t domain.EventType, room *domain.ChatRoom, payload map[string]any) {
	if s.bus == nil {
		return
	}
	ev := domain.NewEvent(t)
	ev.RoomID = room.ID
	ev.Payload["status"] = string(room.Status)
	for k, v := range payload {
		ev.Payload[k] = v
	}
	s.bus.Publish(ev)
}
