package websocket

// Inbound frame types accepted from clients.
const (
	frameJoinRoom      = "join-room"
	frameLeaveRoom     = "leave-room"
	frameSendMessage   = "send-message"
	frameTyping        = "typing"
	frameSetActiveChat = "set-active-chat"
	frameDeliveredAck  = "message-delivered-ack"
	frameReadAck       = "message-read-ack"
)

// Outbound frame types pushed to clients.
const (
	frameNewMessage      = "new-message"
	frameMessageStatus   = "message-status-updated"
	frameUserTyping      = "user-typing"
	frameUserJoined      = "user-joined-room"
	frameUserLeft        = "user-left-room"
	frameOnlineUsers     = "online-users"
	frameOnlineAgents    = "online-agents"
	frameStatusChanged   = "user-status-changed"
	frameRoomAssigned    = "room-assigned"
	frameRoomPending     = "room-pending"
	frameRoomTransferred = "room-transferred"
	frameRoomClosed      = "room-closed"
	frameError           = "error"
)

// InboundFrame is the JSON envelope clients send over the socket.
type InboundFrame struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
	Content     string `json:"content,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	ReplyTo     string `json:"reply_to,omitempty"`
}

// OutboundFrame is the JSON envelope pushed to clients.
type OutboundFrame struct {
	Type       string         `json:"type"`
	RoomID     string         `json:"room_id,omitempty"`
	IdentityID string         `json:"identity_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
}
