// Package dto defines the REST request payloads.
package dto

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Department  string `json:"department,omitempty"`
	MaxChats    int    `json:"max_concurrent_chats,omitempty"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateStatusRequest is the payload for PUT /api/auth/status.
type UpdateStatusRequest struct {
	Status   string `json:"status"`
	MaxChats int    `json:"max_concurrent_chats,omitempty"`
}

// CreateRoomRequest is the payload for POST /api/chat/rooms.
type CreateRoomRequest struct {
	Type         string            `json:"type"`
	Participants []string          `json:"participants,omitempty"`
	Department   string            `json:"department,omitempty"`
	AgentID      string            `json:"agent_id,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SendMessageRequest is the payload for POST /api/chat/rooms/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// EditMessageRequest is the payload for PUT /api/chat/messages/{id}.
type EditMessageRequest struct {
	Content string `json:"content"`
}

// AssignAgentRequest is the payload for POST /api/chat/rooms/{id}/assign.
// ChatRoomID is only needed on the flat /api/chat/assign-agent route where
// the room is not part of the path.
type AssignAgentRequest struct {
	ChatRoomID string `json:"chat_room_id,omitempty"`
	AgentID    string `json:"agent_id"`
	Reason     string `json:"reason,omitempty"`
}

// TransferChatRequest is the payload for POST /api/chat/rooms/{id}/transfer.
// ChatRoomID is only needed on the flat /api/chat/transfer route.
type TransferChatRequest struct {
	ChatRoomID string `json:"chat_room_id,omitempty"`
	ToAgentID  string `json:"to_agent_id"`
	Reason     string `json:"reason,omitempty"`
}

// TransferAgentRequest is the payload for the admin endpoint moving an agent
// from one chat to another.
type TransferAgentRequest struct {
	FromChatID string `json:"from_chat_id"`
	ToChatID   string `json:"to_chat_id"`
	AgentID    string `json:"agent_id"`
	Reason     string `json:"reason,omitempty"`
}

// RemoveAgentRequest is the payload for the admin endpoint detaching an
// agent from a chat.
type RemoveAgentRequest struct {
	Reason string `json:"reason,omitempty"`
}
