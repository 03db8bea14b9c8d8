package hub

import (
	"context"
	"strings"
	"sync"
	"time"

	"messagerie/internal/config"
	"messagerie/internal/domain"
	"messagerie/internal/repository"
	"messagerie/pkg/errors"
	"messagerie/pkg/logger"
)

// Hub is the room messaging engine: the registry of live rooms, join/leave
// handling with history replay, and broadcast with asynchronous persistence.
// One Hub is created at service start and torn down at service stop.
type Hub struct {
	cfg      config.HubConfig
	store    repository.MessageRepository
	presence repository.PresenceRepository
	log      logger.Logger

	mu      sync.RWMutex
	rooms   map[string]*room
	stopped bool

	persist   chan *domain.Message
	presenceQ chan presenceOp
	closed    chan struct{}

	wg         sync.WaitGroup
	persistWg  sync.WaitGroup
	presenceWg sync.WaitGroup
	closeOnce  sync.Once
}

// presenceOp mirrors a membership change into the presence store, off the
// caller's goroutine so no room operation ever waits on Redis.
type presenceOp struct {
	roomCode string
	user     domain.OnlineUser
	join     bool
}

const persistTimeout = 5 * time.Second

func New(cfg config.HubConfig, store repository.MessageRepository, presence repository.PresenceRepository, log logger.Logger) *Hub {
	h := &Hub{
		cfg:      cfg,
		store:    store,
		presence: presence,
		log:      log,
		rooms:    make(map[string]*room),
		persist:  make(chan *domain.Message, cfg.StoreBuffer),
		closed:   make(chan struct{}),
	}
	h.presenceQ = make(chan presenceOp, cfg.StoreBuffer)

	h.persistWg.Add(1)
	go h.persistLoop()
	h.presenceWg.Add(1)
	go h.presenceLoop()

	return h
}

// NewClient creates a connection session bound to this hub's buffer sizing.
func (h *Hub) NewClient(identity *domain.Identity) *Client {
	return NewClient(identity, h.cfg.ClientBuffer)
}

// getOrCreate lazily materializes a room entry. Room entries live until hub
// shutdown; existence of a room is implicit in someone joining or posting.
// Once Close has begun no new room loop may start, so creation is refused
// after the stopped flag is set under the same lock Close takes.
func (h *Hub) getOrCreate(code string) (*room, error) {
	h.mu.RLock()
	r, ok := h.rooms[code]
	h.mu.RUnlock()
	if ok {
		return r, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[code]; ok {
		return r, nil
	}
	if h.stopped {
		return nil, errors.ErrInternalServer
	}
	r = newRoom(code, h)
	h.rooms[code] = r
	h.wg.Add(1)
	go r.run()
	return r, nil
}

func (h *Hub) lookup(code string) (*room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[code]
	return r, ok
}

// Join registers the client as a member of the room and returns the room's
// message history for replay to the joining client only. Re-joining an
// already-joined room is a no-op. History is best-effort: a store failure
// logs and yields an empty replay, the join itself still succeeds.
func (h *Hub) Join(ctx context.Context, c *Client, roomCode string) ([]domain.DisplayMessage, error) {
	identity, ok := c.Identity()
	if !ok {
		return nil, errors.ErrUnauthenticated
	}
	roomCode = strings.TrimSpace(roomCode)
	if roomCode == "" {
		return nil, errors.ErrInvalidRoom
	}

	r, err := h.getOrCreate(roomCode)
	if err != nil {
		return nil, err
	}
	if c.trackJoin(roomCode) {
		if r.add(c) {
			h.notifyPresence(r, c, identity, true)
		}
	}

	return h.replay(ctx, roomCode), nil
}

// replay fetches and formats the room history, oldest first.
func (h *Hub) replay(ctx context.Context, roomCode string) []domain.DisplayMessage {
	history := make([]domain.DisplayMessage, 0)
	messages, err := h.store.ListByRoom(ctx, roomCode)
	if err != nil {
		h.log.Error("Error fetching room history", "room", roomCode, "error", err)
		return history
	}
	for _, message := range messages {
		history = append(history, message.Display())
	}
	return history
}

// Leave removes the client from the room. No-op when the client is not a
// member.
func (h *Hub) Leave(c *Client, roomCode string) {
	if !c.trackLeave(roomCode) {
		return
	}
	r, ok := h.lookup(roomCode)
	if !ok {
		return
	}
	if r.remove(c) {
		if identity, ok := c.Identity(); ok {
			h.notifyPresence(r, c, identity, false)
		}
	}
}

// Disconnect tears the session down: membership is removed from every joined
// room synchronously, then the outbound stream is closed so no further
// delivery can reach the connection. Safe to call more than once.
func (h *Hub) Disconnect(c *Client) {
	for _, roomCode := range c.Rooms() {
		h.Leave(c, roomCode)
	}
	c.close()
}

// Submit validates and broadcasts a message, then schedules its persistence.
// Fan-out goes to every current member of the room, sender included; the
// sender is deliberately not required to be a member (matching the historic
// behavior of the service, see DESIGN.md).
func (h *Hub) Submit(c *Client, roomCode, content string) error {
	identity, ok := c.Identity()
	if !ok {
		return errors.ErrUnauthenticated
	}
	if strings.TrimSpace(roomCode) == "" || strings.TrimSpace(content) == "" {
		return errors.ErrInvalidMessage
	}

	message := &domain.Message{
		RoomCode:    roomCode,
		SenderID:    identity.UserID,
		SenderEmail: identity.Email,
		Content:     content,
		CreatedAt:   time.Now(),
	}

	r, err := h.getOrCreate(roomCode)
	if err != nil {
		return err
	}
	select {
	case r.broadcast <- outbound{ev: messageEvent(message.Display()), msg: message}:
		return nil
	case <-h.closed:
		return errors.ErrInternalServer
	}
}

// MembersOf reflects the room's membership at the instant of the call.
func (h *Hub) MembersOf(roomCode string) []*Client {
	r, ok := h.lookup(roomCode)
	if !ok {
		return nil
	}
	return r.snapshot()
}

// notifyPresence announces a join/leave to the remaining members and mirrors
// it into the presence store. Both are best-effort.
func (h *Hub) notifyPresence(r *room, c *Client, identity domain.Identity, joined bool) {
	name := EventUserLeft
	if joined {
		name = EventUserJoined
	}
	// non-blocking: this can run on the room's own loop during slow-consumer
	// eviction, and a presence notice is never worth stalling broadcasts for
	notice := Event{Event: name, Data: PresenceNotice{User: identity.Email, Room: r.code}}
	select {
	case r.broadcast <- outbound{ev: notice, exclude: c}:
	default:
		h.log.Warn("Presence notice dropped", "room", r.code, "user", identity.Email)
	}

	if !joined && h.userStillInRoom(r, identity) {
		// another connection of the same user is still a member
		return
	}
	h.enqueuePresence(presenceOp{
		roomCode: r.code,
		user:     domain.OnlineUser{UserID: identity.UserID, Email: identity.Email},
		join:     joined,
	})
}

// userStillInRoom reports whether another connection of the same user remains
// a member, so presence survives multi-tab usage.
func (h *Hub) userStillInRoom(r *room, identity domain.Identity) bool {
	for _, member := range r.snapshot() {
		if other, ok := member.Identity(); ok && other.UserID == identity.UserID {
			return true
		}
	}
	return false
}

// enqueuePersist hands a broadcast message to the persistence worker. The
// queue is drained by a single goroutine so appends within a room are
// attempted in broadcast order. A full queue is a logged durability gap,
// never a delivery failure.
func (h *Hub) enqueuePersist(message *domain.Message) {
	select {
	case h.persist <- message:
	default:
		h.log.Error("Persistence queue full, message not saved",
			"room", message.RoomCode, "sender", message.SenderEmail)
	}
}

// enqueuePresence hands a presence mutation to its worker. The send happens
// under the read lock so it cannot race the channel close in Close; the queue
// is drained by a single goroutine so joins and leaves of the same user hit
// the store in order.
func (h *Hub) enqueuePresence(op presenceOp) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}
	select {
	case h.presenceQ <- op:
	default:
		h.log.Warn("Presence queue full, update dropped", "room", op.roomCode, "user", op.user.Email)
	}
}

func (h *Hub) presenceLoop() {
	defer h.presenceWg.Done()
	for op := range h.presenceQ {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		var err error
		if op.join {
			err = h.presence.AddOnline(ctx, op.roomCode, op.user)
		} else {
			err = h.presence.RemoveOnline(ctx, op.roomCode, op.user.UserID.String())
		}
		if err != nil {
			h.log.Error("Error updating presence", "room", op.roomCode, "error", err)
		}
		cancel()
	}
}

func (h *Hub) persistLoop() {
	defer h.persistWg.Done()
	for message := range h.persist {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := h.store.Append(ctx, message); err != nil {
			// already broadcast; the loss is operational, not user-visible
			h.log.Error("Error saving message", "room", message.RoomCode, "error", err)
		}
		cancel()
	}
}

// Close stops every room loop, then drains the persistence and presence
// queues. The stopped flag is set under the registry lock so that no room
// loop starts after the wait below began.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)

		h.mu.Lock()
		h.stopped = true
		for _, r := range h.rooms {
			close(r.quit)
		}
		h.mu.Unlock()
		h.wg.Wait()

		close(h.persist)
		h.persistWg.Wait()
		close(h.presenceQ)
		h.presenceWg.Wait()
	})
}
