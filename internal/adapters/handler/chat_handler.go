package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"support-chat/internal/adapters/dto"
	"support-chat/internal/core/domain"
	"support-chat/internal/core/services"
)

// ChatHandler exposes the room lifecycle and message history over REST.
type ChatHandler struct {
	rooms    *services.ChatRoomService
	messages *services.MessageService
}

// NewChatHandler creates the chat controller.
func NewChatHandler(rooms *services.ChatRoomService, messages *services.MessageService) *ChatHandler {
	return &ChatHandler{rooms: rooms, messages: messages}
}

// roomForMember loads the room and enforces that the caller participates in
// it. Admins see every room.
func (h *ChatHandler) roomForMember(r *http.Request, roomID string) (*domain.ChatRoom, error) {
	session, _ := SessionFromContext(r.Context())
	room, err := h.rooms.Room(r.Context(), roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(session.IdentityID) && !session.Role.AtLeast(domain.RoleAdmin) {
		return nil, domain.E(domain.KindForbidden, "not a participant of this room")
	}
	return room, nil
}

// CreateRoom handles POST /api/chat/rooms.
func (h *ChatHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	room, err := h.rooms.CreateRoom(r.Context(), services.CreateRoomInput{
		Type:         domain.RoomType(req.Type),
		CreatedBy:    session.IdentityID,
		Participants: req.Participants,
		Department:   req.Department,
		AgentID:      req.AgentID,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "room created", room)
}

// MyRooms handles GET /api/chat/rooms.
func (h *ChatHandler) MyRooms(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	rooms, err := h.rooms.RoomsForIdentity(r.Context(), session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "rooms", rooms)
}

// AgentRooms handles GET /api/chat/rooms/assigned: rooms currently assigned
// to the calling agent.
func (h *ChatHandler) AgentRooms(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	rooms, err := h.rooms.RoomsForAgent(r.Context(), session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "assigned rooms", rooms)
}

// Room handles GET /api/chat/rooms/{roomID}.
func (h *ChatHandler) Room(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomForMember(r, chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "room", room)
}

// CloseRoom handles POST /api/chat/rooms/{roomID}/close. Closing twice is
// reported, not rejected.
func (h *ChatHandler) CloseRoom(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	roomID := chi.URLParam(r, "roomID")

	if _, err := h.roomForMember(r, roomID); err != nil {
		writeError(w, err)
		return
	}

	closed, err := h.rooms.Close(r.Context(), roomID, session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	message := "room closed"
	if !closed {
		message = "room was already closed"
	}
	writeSuccess(w, http.StatusOK, message, map[string]bool{"closed": closed})
}

// AssignAgent handles POST /api/chat/rooms/{roomID}/assign. An agent claims
// the room for themselves; an admin may assign any agent.
func (h *ChatHandler) AssignAgent(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.AssignAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		roomID = req.ChatRoomID
	}
	if roomID == "" {
		writeBadRequest(w, "chat_room_id is required")
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = session.IdentityID
	}
	if agentID != session.IdentityID && !session.Role.AtLeast(domain.RoleAdmin) {
		writeError(w, domain.E(domain.KindForbidden, "only admins assign other agents"))
		return
	}

	if err := h.rooms.AssignAgent(r.Context(), roomID, agentID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "agent assigned", map[string]string{"agent_id": agentID})
}

// TransferChat handles POST /api/chat/rooms/{roomID}/transfer. The caller
// must be the currently assigned agent.
func (h *ChatHandler) TransferChat(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.TransferChatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ToAgentID == "" {
		writeBadRequest(w, "to_agent_id is required")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	if roomID == "" {
		roomID = req.ChatRoomID
	}
	if roomID == "" {
		writeBadRequest(w, "chat_room_id is required")
		return
	}

	err := h.rooms.TransferChat(r.Context(), roomID, session.IdentityID, req.ToAgentID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "chat transferred", map[string]string{"to_agent_id": req.ToAgentID})
}

// TransferAgent handles POST /api/chat/admin/transfer-agent: move an agent
// from one chat to another atomically.
func (h *ChatHandler) TransferAgent(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.TransferAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.FromChatID == "" || req.ToChatID == "" || req.AgentID == "" {
		writeBadRequest(w, "from_chat_id, to_chat_id and agent_id are required")
		return
	}

	err := h.rooms.TransferAgentBetweenChats(r.Context(), req.FromChatID, req.ToChatID, req.AgentID, session.Role, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "agent transferred", map[string]string{
		"agent_id":     req.AgentID,
		"from_chat_id": req.FromChatID,
		"to_chat_id":   req.ToChatID,
	})
}

// RemoveAgent handles POST /api/chat/admin/rooms/{roomID}/remove-agent.
func (h *ChatHandler) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.RemoveAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.rooms.RemoveAgent(r.Context(), chi.URLParam(r, "roomID"), session.Role, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "agent removed", nil)
}

// Workload handles GET /api/chat/admin/workload. Alongside the per-agent
// rows it reports the depth of the pending support queue.
func (h *ChatHandler) Workload(w http.ResponseWriter, r *http.Request) {
	stats, err := h.rooms.WorkloadStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	pending, err := h.rooms.PendingRoomCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "agent workload", map[string]any{
		"agents":        stats,
		"pending_rooms": pending,
	})
}

// SendMessage handles POST /api/chat/rooms/{roomID}/messages.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.SendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.messages.Create(r.Context(), services.CreateMessageInput{
		ChatRoomID: chi.URLParam(r, "roomID"),
		SenderID:   session.IdentityID,
		Content:    req.Content,
		Type:       domain.MessageType(req.Type),
		ReplyTo:    req.ReplyTo,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "message sent", msg)
}

// Messages handles GET /api/chat/rooms/{roomID}/messages with optional
// limit and before=RFC3339 pagination parameters.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := h.roomForMember(r, roomID); err != nil {
		writeError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "before must be an RFC3339 timestamp")
			return
		}
		before = &parsed
	}

	msgs, err := h.messages.RoomMessages(r.Context(), roomID, limit, before)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "messages", msgs)
}

// SearchMessages handles GET /api/chat/rooms/{roomID}/messages/search?q=term.
func (h *ChatHandler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if _, err := h.roomForMember(r, roomID); err != nil {
		writeError(w, err)
		return
	}

	term := r.URL.Query().Get("q")
	if term == "" {
		writeBadRequest(w, "q is required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	msgs, err := h.messages.Search(r.Context(), roomID, term, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "search results", msgs)
}

// EditMessage handles PUT /api/chat/messages/{messageID}.
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.EditMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := h.messages.Edit(r.Context(), chi.URLParam(r, "messageID"), req.Content, session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "message edited", msg)
}

// DeleteMessage handles DELETE /api/chat/messages/{messageID}.
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	if err := h.messages.Delete(r.Context(), chi.URLParam(r, "messageID"), session.IdentityID); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "message deleted", nil)
}

// MarkDelivered handles POST /api/chat/messages/{messageID}/delivered.
func (h *ChatHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.markReceipt(w, r, h.messages.MarkDelivered)
}

// MarkRead handles POST /api/chat/messages/{messageID}/read.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.markReceipt(w, r, h.messages.MarkRead)
}

func (h *ChatHandler) markReceipt(w http.ResponseWriter, r *http.Request, mark func(ctx context.Context, messageID, identityID string) (bool, error)) {
	session, _ := SessionFromContext(r.Context())

	changed, err := mark(r.Context(), chi.URLParam(r, "messageID"), session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "receipt recorded", map[string]bool{"changed": changed})
}

// UnreadCounts handles GET /api/chat/unread. With ?room_id= it narrows to a
// single room's count.
func (h *ChatHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	if roomID := r.URL.Query().Get("room_id"); roomID != "" {
		if _, err := h.roomForMember(r, roomID); err != nil {
			writeError(w, err)
			return
		}
		count, err := h.messages.UnreadCount(r.Context(), session.IdentityID, roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, "unread count", map[string]int{"unread": count})
		return
	}

	counts, err := h.messages.UnreadCounts(r.Context(), session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "unread counts", counts)
}

// UnreadCount handles GET /api/chat/rooms/{roomID}/unread.
func (h *ChatHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	roomID := chi.URLParam(r, "roomID")

	if _, err := h.roomForMember(r, roomID); err != nil {
		writeError(w, err)
		return
	}

	count, err := h.messages.UnreadCount(r.Context(), session.IdentityID, roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "unread count", map[string]int{"unread": count})
}
