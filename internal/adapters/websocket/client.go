package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	clientBufferSize = 64

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client is one live socket bound to an authenticated identity. ChannelID is
// unique per connection: a later connection for the same identity supersedes
// this one.
type Client struct {
	gateway *Gateway
	conn    *websocket.Conn

	identityID string
	channelID  string
	role       string
	token      string

	send chan []byte

	mu         sync.RWMutex
	rooms      map[string]struct{}
	activeRoom string
}

func (c *Client) joinedRoom(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (c *Client) joinRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[roomID] = struct{}{}
}

func (c *Client) leaveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
	if c.activeRoom == roomID {
		c.activeRoom = ""
	}
}

func (c *Client) setActiveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeRoom = roomID
}

// push queues a frame for delivery. A slow client misses frames rather than
// blocking the gateway.
func (c *Client) push(frame OutboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to marshal outbound frame", "error", err, "frame_type", frame.Type)
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping frame",
			"identity_id", c.identityID,
			"frame_type", frame.Type,
		)
	}
}

// readPump reads inbound frames until the socket dies, then unregisters.
func (c *Client) readPump() {
	defer func() {
		c.gateway.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "error", err, "identity_id", c.identityID)
			}
			return
		}

		var frame InboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.push(OutboundFrame{Type: frameError, Error: "malformed frame"})
			continue
		}
		c.gateway.handleFrame(c, frame)
	}
}

// writePump drains the send buffer onto the socket and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
