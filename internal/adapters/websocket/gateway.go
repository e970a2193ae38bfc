// Package websocket implements the realtime gateway: authenticated socket
// sessions, room fan-out and receipt acknowledgements.
package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/events"
	"support-chat/internal/core/ports"
	"support-chat/internal/core/services"
)

const (
	frameTimeout     = 10 * time.Second
	revalidatePeriod = 5 * time.Minute
)

// Gateway owns every live socket. One client per identity: a new connection
// for an identity supersedes the previous one (last writer wins), mirroring
// the channel binding kept in the presence cache.
type Gateway struct {
	auth     *services.AuthService
	rooms    *services.ChatRoomService
	messages *services.MessageService
	presence ports.PresenceCache

	mu         sync.RWMutex
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	events     <-chan domain.Event

	upgrader websocket.Upgrader
}

// NewGateway creates the gateway and subscribes it to the event bus.
func NewGateway(
	auth *services.AuthService,
	rooms *services.ChatRoomService,
	messages *services.MessageService,
	presence ports.PresenceCache,
	bus *events.Bus,
) *Gateway {
	return &Gateway{
		auth:       auth,
		rooms:      rooms,
		messages:   messages,
		presence:   presence,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     bus.Subscribe(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run is the gateway's single event loop. All client map mutations happen
// here. Call as a goroutine; blocks until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	slog.Info("websocket gateway started")

	revalidate := time.NewTicker(revalidatePeriod)
	defer revalidate.Stop()

	for {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			for _, client := range g.clients {
				close(client.send)
			}
			g.clients = make(map[string]*Client)
			g.mu.Unlock()
			slog.Info("websocket gateway stopped")
			return

		case client := <-g.register:
			g.handleRegister(ctx, client)

		case client := <-g.unregister:
			g.handleUnregister(ctx, client)

		case ev, ok := <-g.events:
			if !ok {
				slog.Info("event bus closed, websocket gateway stopped")
				return
			}
			g.dispatchEvent(ctx, ev)

		case <-revalidate.C:
			g.revalidateSessions(ctx)
		}
	}
}

// revalidateSessions drops connections whose session expired or was revoked
// since the handshake.
func (g *Gateway) revalidateSessions(ctx context.Context) {
	g.mu.RLock()
	clients := make([]*Client, 0, len(g.clients))
	for _, client := range g.clients {
		clients = append(clients, client)
	}
	g.mu.RUnlock()

	for _, client := range clients {
		opCtx, cancel := context.WithTimeout(ctx, frameTimeout)
		_, err := g.auth.ValidateSession(opCtx, client.token)
		cancel()
		if domain.IsKind(err, domain.KindAuthRequired) {
			slog.Info("closing socket with expired session", "identity_id", client.identityID)
			client.conn.Close()
		}
	}
}

// ServeWS upgrades an authenticated request to a socket session. The session
// token comes from the query string since browsers cannot set headers on the
// websocket handshake.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	session, err := g.auth.ValidateSession(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		gateway:    g,
		conn:       conn,
		identityID: session.IdentityID,
		channelID:  uuid.New().String(),
		role:       string(session.Role),
		token:      token,
		send:       make(chan []byte, clientBufferSize),
		rooms:      make(map[string]struct{}),
	}

	g.register <- client
	go client.writePump()
	go client.readPump()
}

func (g *Gateway) handleRegister(ctx context.Context, client *Client) {
	g.mu.Lock()
	if previous, ok := g.clients[client.identityID]; ok {
		// A second connection for the same identity supersedes the first.
		close(previous.send)
		previous.conn.Close()
	}
	g.clients[client.identityID] = client
	connections := len(g.clients)
	g.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()
	if err := g.presence.SetOnline(opCtx, client.identityID, client.channelID, domain.Role(client.role)); err != nil {
		slog.Warn("failed to bind channel", "error", err, "identity_id", client.identityID)
	}

	g.pushPresenceSnapshot(opCtx, client)
	g.replayMemberships(opCtx, client)
	g.broadcast(OutboundFrame{
		Type:       frameStatusChanged,
		IdentityID: client.identityID,
		Data:       map[string]any{"status": string(domain.StatusOnline)},
	})

	slog.Info("websocket connected",
		"identity_id", client.identityID,
		"channel_id", client.channelID,
		"connections", connections,
	)
}

func (g *Gateway) handleUnregister(ctx context.Context, client *Client) {
	g.mu.Lock()
	current, ok := g.clients[client.identityID]
	if !ok || current.channelID != client.channelID {
		// A superseded connection going away must not knock the live one
		// offline.
		g.mu.Unlock()
		return
	}
	delete(g.clients, client.identityID)
	connections := len(g.clients)
	g.mu.Unlock()
	close(client.send)

	opCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()
	if err := g.presence.SetOffline(opCtx, client.identityID); err != nil {
		slog.Warn("failed to clear channel binding", "error", err, "identity_id", client.identityID)
	}

	g.broadcast(OutboundFrame{
		Type:       frameStatusChanged,
		IdentityID: client.identityID,
		Data:       map[string]any{"status": string(domain.StatusOffline)},
	})

	slog.Info("websocket disconnected",
		"identity_id", client.identityID,
		"connections", connections,
	)
}

// pushPresenceSnapshot sends the current online users and agents to a newly
// connected client.
func (g *Gateway) pushPresenceSnapshot(ctx context.Context, client *Client) {
	if users, err := g.presence.ListOnline(ctx, ""); err == nil {
		client.push(OutboundFrame{Type: frameOnlineUsers, Data: map[string]any{"identity_ids": users}})
	}
	if agents, err := g.auth.OnlineAgents(ctx); err == nil {
		client.push(OutboundFrame{Type: frameOnlineAgents, Data: map[string]any{"agents": agents}})
	}
}

// replayMemberships seeds a reconnecting client with its open rooms so it
// keeps receiving room traffic without re-sending join-room for each one.
func (g *Gateway) replayMemberships(ctx context.Context, client *Client) {
	rooms, err := g.rooms.RoomsForIdentity(ctx, client.identityID)
	if err != nil {
		slog.Warn("failed to replay room memberships", "error", err, "identity_id", client.identityID)
		return
	}
	for _, room := range rooms {
		if !room.IsClosed() {
			client.joinRoom(room.ID)
		}
	}
}

// broadcast pushes a frame to every connected client.
func (g *Gateway) broadcast(frame OutboundFrame) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, client := range g.clients {
		client.push(frame)
	}
}

// pushToRoom delivers a frame to every connected participant of the room,
// optionally excluding one identity.
func (g *Gateway) pushToRoom(ctx context.Context, roomID string, frame OutboundFrame, exclude string) {
	room, err := g.rooms.Room(ctx, roomID)
	if err != nil {
		slog.Warn("failed to load room for fan-out", "error", err, "room_id", roomID)
		return
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, participant := range room.Participants {
		if participant == exclude {
			continue
		}
		if client, ok := g.clients[participant]; ok {
			client.push(frame)
		}
	}
}

// dispatchEvent translates a domain event into outbound frames.
func (g *Gateway) dispatchEvent(ctx context.Context, ev domain.Event) {
	opCtx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	switch ev.Type {
	case domain.EventMessageCreated:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:       frameNewMessage,
			RoomID:     ev.RoomID,
			IdentityID: ev.IdentityID,
			Data:       ev.Payload,
		}, "")

	case domain.EventMessageStatus:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:   frameMessageStatus,
			RoomID: ev.RoomID,
			Data:   ev.Payload,
		}, "")

	case domain.EventRoomAssigned:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:   frameRoomAssigned,
			RoomID: ev.RoomID,
			Data:   ev.Payload,
		}, "")

	case domain.EventRoomPending, domain.EventRoomAgentRemoved:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:   frameRoomPending,
			RoomID: ev.RoomID,
			Data:   ev.Payload,
		}, "")

	case domain.EventRoomTransferred:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:   frameRoomTransferred,
			RoomID: ev.RoomID,
			Data:   ev.Payload,
		}, "")

	case domain.EventRoomClosed:
		g.pushToRoom(opCtx, ev.RoomID, OutboundFrame{
			Type:   frameRoomClosed,
			RoomID: ev.RoomID,
			Data:   ev.Payload,
		}, "")

	case domain.EventStatusChanged:
		g.broadcast(OutboundFrame{
			Type:       frameStatusChanged,
			IdentityID: ev.IdentityID,
			Data:       ev.Payload,
		})
	}
}

// handleFrame processes one inbound client frame. Called from the client's
// read pump; every service call is bounded by frameTimeout.
func (g *Gateway) handleFrame(client *Client, frame InboundFrame) {
	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Type {
	case frameJoinRoom:
		g.handleJoin(ctx, client, frame.RoomID)

	case frameLeaveRoom:
		client.leaveRoom(frame.RoomID)
		g.pushToRoom(ctx, frame.RoomID, OutboundFrame{
			Type:       frameUserLeft,
			RoomID:     frame.RoomID,
			IdentityID: client.identityID,
		}, client.identityID)

	case frameSendMessage:
		g.handleSendMessage(ctx, client, frame)

	case frameTyping:
		if client.joinedRoom(frame.RoomID) {
			g.pushToRoom(ctx, frame.RoomID, OutboundFrame{
				Type:       frameUserTyping,
				RoomID:     frame.RoomID,
				IdentityID: client.identityID,
			}, client.identityID)
		}

	case frameSetActiveChat:
		client.setActiveRoom(frame.RoomID)
		if frame.RoomID != "" {
			if err := g.rooms.TouchActivity(ctx, frame.RoomID); err != nil {
				slog.Warn("failed to touch room activity", "error", err, "room_id", frame.RoomID)
			}
		}

	case frameDeliveredAck:
		if _, err := g.messages.MarkDelivered(ctx, frame.MessageID, client.identityID); err != nil {
			client.push(OutboundFrame{Type: frameError, Error: err.Error()})
		}

	case frameReadAck:
		if _, err := g.messages.MarkRead(ctx, frame.MessageID, client.identityID); err != nil {
			client.push(OutboundFrame{Type: frameError, Error: err.Error()})
		}

	default:
		client.push(OutboundFrame{Type: frameError, Error: "unknown frame type"})
	}
}

func (g *Gateway) handleJoin(ctx context.Context, client *Client, roomID string) {
	room, err := g.rooms.Room(ctx, roomID)
	if err != nil {
		client.push(OutboundFrame{Type: frameError, Error: err.Error()})
		return
	}
	if !room.HasParticipant(client.identityID) {
		client.push(OutboundFrame{Type: frameError, Error: "not a participant of this room"})
		return
	}

	client.joinRoom(roomID)
	g.pushToRoom(ctx, roomID, OutboundFrame{
		Type:       frameUserJoined,
		RoomID:     roomID,
		IdentityID: client.identityID,
	}, client.identityID)
}

func (g *Gateway) handleSendMessage(ctx context.Context, client *Client, frame InboundFrame) {
	_, err := g.messages.Create(ctx, services.CreateMessageInput{
		ChatRoomID: frame.RoomID,
		SenderID:   client.identityID,
		Content:    frame.Content,
		Type:       domain.MessageType(frame.MessageType),
		ReplyTo:    frame.ReplyTo,
	})
	if err != nil {
		client.push(OutboundFrame{Type: frameError, RoomID: frame.RoomID, Error: err.Error()})
	}
	// Delivery of the created message rides the bus: dispatchEvent fans the
	// new-message frame out to every participant, sender included.
}
