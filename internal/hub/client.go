package hub

import (
	"sync"

	"github.com/google/uuid"
	"messagerie/internal/domain"
)

// Client is one connection's session: the identity resolved at connect time
// and the set of rooms the connection has joined. It is transport-agnostic;
// the websocket handler drains Events() into the actual connection.
type Client struct {
	ID       uuid.UUID
	identity *domain.Identity

	mu     sync.Mutex
	rooms  map[string]struct{}
	send   chan Event
	closed bool
}

// NewClient creates a session. identity is nil when token resolution failed;
// such a session may hold the connection open but every room operation is
// rejected as unauthenticated.
func NewClient(identity *domain.Identity, buffer int) *Client {
	return &Client{
		ID:       uuid.New(),
		identity: identity,
		rooms:    make(map[string]struct{}),
		send:     make(chan Event, buffer),
	}
}

// Identity returns the resolved identity, or false when the session never
// authenticated.
func (c *Client) Identity() (domain.Identity, bool) {
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// Events is the outbound stream the transport write loop consumes. It is
// closed when the session ends.
func (c *Client) Events() <-chan Event {
	return c.send
}

// Deliver enqueues an event without blocking. It reports false when the
// session is closed or its buffer is full (slow consumer).
func (c *Client) Deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) trackJoin(roomCode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.rooms[roomCode]; ok {
		return false
	}
	c.rooms[roomCode] = struct{}{}
	return true
}

func (c *Client) trackLeave(roomCode string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomCode]; !ok {
		return false
	}
	delete(c.rooms, roomCode)
	return true
}

// Rooms snapshots the joined-room set.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.rooms))
	for code := range c.rooms {
		rooms = append(rooms, code)
	}
	return rooms
}

// close ends the session exactly once and stops the outbound stream.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
