package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/redis/go-redis/v9"
)

const defaultChannel = "talkhub:events"

// Hub tracks live connections per user and per conversation room and fans
// events out to them. With a Redis client every event goes through Pub/Sub so
// all instances deliver it; without one delivery is local only.
type Hub struct {
	// userID -> connections (one user can have multiple tabs/devices)
	users map[uuid.UUID]map[*Client]struct{}
	mu    sync.RWMutex

	// room key -> *room; each room carries its own lock
	rooms sync.Map

	rdb     *redis.Client
	channel string

	// called on a user's first connection and after their last one closes
	onStatusChange func(userID uuid.UUID, online bool)
	// userID -> done channel of the latest queued status callback; guarded by mu
	statusTail map[uuid.UUID]chan struct{}
}

type room struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// set once the room is emptied and removed from the map
	dead bool
}

// NewHub creates a hub. rdb may be nil.
func NewHub(rdb *redis.Client, channel string, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	if channel == "" {
		channel = defaultChannel
	}
	return &Hub{
		users:          make(map[uuid.UUID]map[*Client]struct{}),
		rdb:            rdb,
		channel:        channel,
		onStatusChange: onStatusChange,
		statusTail:     make(map[uuid.UUID]chan struct{}),
	}
}

// Run consumes the Redis channel until ctx is cancelled, then disconnects
// every local client.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}
	<-ctx.Done()
	h.shutdown()
}

func (h *Hub) shutdown() {
	h.mu.RLock()
	all := []*Client{}
	for _, clients := range h.users {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
	logger.Infof("Hub stopped, %d connections closed", len(all))
}

// ========== Connections ==========

// Register adds a connection. A user's first connection marks them online.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	clients, ok := h.users[client.UserID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.users[client.UserID] = clients
	}
	clients[client] = struct{}{}
	count := len(clients)
	var turn statusTurn
	if !ok {
		turn = h.queueStatus(client.UserID)
	}
	h.mu.Unlock()

	logger.Debugf("Client connected: %s (connections: %d)", client.UserID, count)
	if !ok {
		h.presenceChanged(client.UserID, true, turn)
	}
}

// Unregister removes a connection from every room it joined and closes its
// send channel. Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	keys, first := client.markClosed()
	if !first {
		return
	}

	for _, key := range keys {
		h.removeFromRoom(key, client)
	}

	h.mu.Lock()
	last := false
	var turn statusTurn
	if clients, ok := h.users[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.users, client.UserID)
			last = true
			turn = h.queueStatus(client.UserID)
		}
	}
	h.mu.Unlock()

	close(client.send)
	logger.Debugf("Client disconnected: %s", client.UserID)
	if last {
		h.presenceChanged(client.UserID, false, turn)
	}
}

// statusTurn orders one user's status callbacks: a callback waits for prev
// and closes done when it returns.
type statusTurn struct {
	prev, done chan struct{}
}

// queueStatus appends a turn for userID. Callers hold h.mu, so turns follow
// the order in which the connection set changed.
func (h *Hub) queueStatus(userID uuid.UUID) statusTurn {
	turn := statusTurn{prev: h.statusTail[userID], done: make(chan struct{})}
	h.statusTail[userID] = turn.done
	return turn
}

func (h *Hub) presenceChanged(userID uuid.UUID, online bool, turn statusTurn) {
	go func() {
		if turn.prev != nil {
			<-turn.prev
		}
		if h.onStatusChange != nil {
			h.onStatusChange(userID, online)
		}
		close(turn.done)

		h.mu.Lock()
		if h.statusTail[userID] == turn.done {
			delete(h.statusTail, userID)
		}
		h.mu.Unlock()
	}()
	h.BroadcastPresence(userID, online)
}

// IsUserOnline reports whether the user has a connection on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}

// OnlineUserIDs returns the users connected to this instance
func (h *Hub) OnlineUserIDs() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userIDs := make([]uuid.UUID, 0, len(h.users))
	for userID := range h.users {
		userIDs = append(userIDs, userID)
	}
	return userIDs
}

// ========== Rooms ==========

// Join subscribes the connection to ref's room and sends it a resync event so
// the client refetches anything it missed. Returns false for a closed client.
func (h *Hub) Join(client *Client, ref model.ConversationRef) bool {
	key := ref.RoomKey()

	client.mu.Lock()
	if client.closed {
		client.mu.Unlock()
		return false
	}
	for {
		v, _ := h.rooms.LoadOrStore(key, &room{clients: make(map[*Client]struct{})})
		r := v.(*room)
		r.mu.Lock()
		if r.dead {
			r.mu.Unlock()
			continue
		}
		r.clients[client] = struct{}{}
		r.mu.Unlock()
		break
	}
	client.rooms[key] = struct{}{}

	// still under client.mu, so Unregister cannot close send underneath us
	delivered := true
	if data, ok := marshalEvent(model.NewResyncEvent(ref)); ok {
		delivered = trySend(client, data)
	}
	client.mu.Unlock()

	if !delivered {
		h.dropSlow([]*Client{client})
	}
	return true
}

// Leave unsubscribes the connection from ref's room
func (h *Hub) Leave(client *Client, ref model.ConversationRef) {
	key := ref.RoomKey()
	client.mu.Lock()
	delete(client.rooms, key)
	client.mu.Unlock()
	h.removeFromRoom(key, client)
}

func (h *Hub) removeFromRoom(key string, client *Client) {
	v, ok := h.rooms.Load(key)
	if !ok {
		return
	}
	r := v.(*room)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, client)
	if len(r.clients) == 0 && !r.dead {
		r.dead = true
		h.rooms.CompareAndDelete(key, r)
	}
}

// RoomSize returns the number of local connections joined to ref
func (h *Hub) RoomSize(ref model.ConversationRef) int {
	v, ok := h.rooms.Load(ref.RoomKey())
	if !ok {
		return 0
	}
	r := v.(*room)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ========== Broadcasting ==========

// envelope is what travels over Redis. Exactly one target applies: Room,
// User, or neither for a global event. Evict asks every instance to drop
// User's connections from Room.
type envelope struct {
	Room    string          `json:"room,omitempty"`
	User    uuid.UUID       `json:"user"`
	Exclude uuid.UUID       `json:"exclude"`
	Evict   bool            `json:"evict,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

// BroadcastToConversation sends event to every connection in ref's room,
// skipping connections that belong to exclude.
func (h *Hub) BroadcastToConversation(ref model.ConversationRef, event model.WSEvent, exclude uuid.UUID) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.dispatch(envelope{Room: ref.RoomKey(), Exclude: exclude, Event: data})
}

// SendToUser sends event to all of a user's connections
func (h *Hub) SendToUser(userID uuid.UUID, event model.WSEvent) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.dispatch(envelope{User: userID, Event: data})
}

// BroadcastAll sends event to every connection
func (h *Hub) BroadcastAll(event model.WSEvent) {
	data, ok := marshalEvent(event)
	if !ok {
		return
	}
	h.dispatch(envelope{Event: data})
}

// EvictUser removes all of a user's connections from ref's room
func (h *Hub) EvictUser(ref model.ConversationRef, userID uuid.UUID) {
	h.dispatch(envelope{Room: ref.RoomKey(), User: userID, Evict: true})
}

func marshalEvent(event model.WSEvent) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Errorf("marshal %s event: %v", event.Type, err)
		return nil, false
	}
	return data, true
}

func (h *Hub) dispatch(env envelope) {
	if h.rdb != nil {
		data, err := json.Marshal(env)
		if err == nil {
			err = h.rdb.Publish(context.Background(), h.channel, data).Err()
		}
		if err == nil {
			return
		}
		logger.Warnf("Redis publish failed, delivering locally: %v", err)
	}
	h.deliver(env)
}

func (h *Hub) deliver(env envelope) {
	switch {
	case env.Evict:
		h.evictLocal(env.Room, env.User)
	case env.Room != "":
		h.deliverRoom(env.Room, env.Event, env.Exclude)
	case env.User != uuid.Nil:
		h.deliverUser(env.User, env.Event)
	default:
		h.deliverAll(env.Event)
	}
}

func (h *Hub) deliverRoom(key string, data []byte, exclude uuid.UUID) {
	v, ok := h.rooms.Load(key)
	if !ok {
		return
	}
	r := v.(*room)

	var slow []*Client
	r.mu.RLock()
	for c := range r.clients {
		if exclude != uuid.Nil && c.UserID == exclude {
			continue
		}
		if !trySend(c, data) {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()
	h.dropSlow(slow)
}

func (h *Hub) deliverUser(userID uuid.UUID, data []byte) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.users[userID] {
		if !trySend(c, data) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

func (h *Hub) deliverAll(data []byte) {
	var slow []*Client
	h.mu.RLock()
	for _, clients := range h.users {
		for c := range clients {
			if !trySend(c, data) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()
	h.dropSlow(slow)
}

func (h *Hub) evictLocal(key string, userID uuid.UUID) {
	v, ok := h.rooms.Load(key)
	if !ok {
		return
	}
	r := v.(*room)

	var evicted []*Client
	r.mu.RLock()
	for c := range r.clients {
		if c.UserID == userID {
			evicted = append(evicted, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range evicted {
		c.mu.Lock()
		delete(c.rooms, key)
		c.mu.Unlock()
		h.removeFromRoom(key, c)
	}
}

// trySend must be called while c is still registered in the map being
// iterated; Unregister removes it from every map before closing send.
func trySend(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// dropSlow disconnects clients whose send buffer is full
func (h *Hub) dropSlow(clients []*Client) {
	for _, c := range clients {
		logger.Warnf("Dropping slow client %s", c.UserID)
		go h.Unregister(c)
	}
}

// ========== Redis Pub/Sub ==========

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	logger.Infof("Redis Pub/Sub subscriber started on %s", h.channel)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warnf("Error unmarshaling Redis message: %v", err)
				continue
			}
			h.deliver(env)
		}
	}
}
