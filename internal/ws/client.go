package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 4096
)

// Options tunes a connection
type Options struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Client represents a single WebSocket connection
type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	send           chan []byte
	maxMessageSize int64
	UserID         uuid.UUID
	Username       string

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

// NewClient creates a new WebSocket client. conn may be nil for a client that
// only receives through its send channel.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, username string, opts Options) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	return &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, opts.SendBuffer),
		maxMessageSize: opts.MaxMessageSize,
		UserID:         userID,
		Username:       username,
		rooms:          make(map[string]struct{}),
	}
}

// Rooms returns the room keys the client has joined
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.rooms))
	for k := range c.rooms {
		keys = append(keys, k)
	}
	return keys
}

// InRoom reports whether the client has joined ref
func (c *Client) InRoom(ref model.ConversationRef) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[ref.RoomKey()]
	return ok
}

// markClosed flags the client closed and returns its rooms. first is false
// when the client was already closed.
func (c *Client) markClosed() (keys []string, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	for k := range c.rooms {
		keys = append(keys, k)
	}
	c.rooms = map[string]struct{}{}
	return keys, true
}

// Emit queues an event for this connection only
func (c *Client) Emit(event model.WSEvent) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	c.mu.Lock()
	delivered := c.closed || trySend(c, data)
	c.mu.Unlock()
	if !delivered {
		c.hub.dropSlow([]*Client{c})
	}
}

// MessageHandler is a callback for processing incoming WebSocket messages
type MessageHandler func(client *Client, event model.WSEvent)

// inboundEvent keeps the payload raw so handlers decode it into their own type
type inboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ReadPump pumps messages from the WebSocket connection to the handler
// Runs in a per-client goroutine
func (c *Client) ReadPump(handler MessageHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warnf("WebSocket error: %v", err)
			}
			break
		}

		var in inboundEvent
		if err := json.Unmarshal(message, &in); err != nil {
			logger.Debugf("Error parsing WebSocket message: %v", err)
			c.Emit(model.WSEvent{Type: model.WSEventError, Payload: "malformed event"})
			continue
		}

		if handler != nil {
			handler(c, model.WSEvent{Type: in.Type, Payload: in.Payload})
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
// Runs in a per-client goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one event per frame so clients can JSON.parse each message
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
