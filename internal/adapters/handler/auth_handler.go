package handler

import (
	"net/http"

	"support-chat/internal/adapters/dto"
	"support-chat/internal/core/domain"
	"support-chat/internal/core/services"
)

// AuthHandler exposes registration, login and presence over REST.
type AuthHandler struct {
	auth  *services.AuthService
	rooms *services.ChatRoomService
}

// NewAuthHandler creates the auth controller.
func NewAuthHandler(auth *services.AuthService, rooms *services.ChatRoomService) *AuthHandler {
	return &AuthHandler{auth: auth, rooms: rooms}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	identity, err := h.auth.Register(r.Context(), services.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        domain.Role(req.Role),
		Department:  req.Department,
		MaxChats:    req.MaxChats,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, "registered", identity)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "logged in", result)
}

// Logout handles POST /api/auth/logout. Revoking an unknown token still
// answers 200: the desired end state holds either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, domain.E(domain.KindAuthRequired, "missing session token"))
		return
	}

	revoked, err := h.auth.Logout(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "logged out", map[string]bool{"revoked": revoked})
}

// ValidateSession handles GET /api/auth/session. The middleware already
// validated and refreshed the token.
func (h *AuthHandler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	writeSuccess(w, http.StatusOK, "session valid", session)
}

// Profile handles GET /api/auth/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	identity, err := h.auth.Profile(r.Context(), session.IdentityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "profile", identity)
}

// UpdateStatus handles PUT /api/auth/status. When an agent comes online the
// queued pending rooms are drained onto them immediately.
func (h *AuthHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	var req dto.UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	presence, err := h.auth.UpdateStatus(r.Context(), session.IdentityID, domain.PresenceStatus(req.Status), req.MaxChats)
	if err != nil {
		writeError(w, err)
		return
	}

	data := map[string]interface{}{"status": req.Status}
	if presence != nil {
		data["presence"] = presence
		if presence.Available() {
			assigned, err := h.rooms.AssignPendingRooms(r.Context(), session.IdentityID)
			if err == nil && len(assigned) > 0 {
				data["assigned_rooms"] = assigned
			}
		}
	}
	writeSuccess(w, http.StatusOK, "status updated", data)
}

// OnlineAgents handles GET /api/auth/agents/online.
func (h *AuthHandler) OnlineAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.auth.OnlineAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "online agents", agents)
}

// AllAgents handles GET /api/auth/agents.
func (h *AuthHandler) AllAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.auth.AllAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "agents", agents)
}
