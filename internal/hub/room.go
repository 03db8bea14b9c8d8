package hub

import (
	"sync"

	"messagerie/internal/domain"
)

// outbound is a unit of work for a room's broadcast loop. When msg is set the
// message is persisted after fan-out, in fan-out order.
type outbound struct {
	ev      Event
	msg     *domain.Message
	exclude *Client
}

// room holds the live membership of one room code and serializes every
// broadcast through a single goroutine, which gives all members the same
// total message order.
type room struct {
	code string
	hub  *Hub

	mu      sync.RWMutex
	members map[*Client]struct{}

	broadcast chan outbound
	quit      chan struct{}
}

func newRoom(code string, hub *Hub) *room {
	return &room{
		code:      code,
		hub:       hub,
		members:   make(map[*Client]struct{}),
		broadcast: make(chan outbound, 256),
		quit:      make(chan struct{}),
	}
}

// add registers a member. Reports false when already registered.
func (r *room) add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c]; ok {
		return false
	}
	r.members[c] = struct{}{}
	return true
}

// remove drops a member. Reports false when it was not registered.
func (r *room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[c]; !ok {
		return false
	}
	delete(r.members, c)
	return true
}

// snapshot returns the membership at the instant of the call.
func (r *room) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]*Client, 0, len(r.members))
	for c := range r.members {
		members = append(members, c)
	}
	return members
}

// run is the room's broadcast loop. Fan-out happens before the persistence
// enqueue so live delivery never waits on the store.
func (r *room) run() {
	defer r.hub.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		case out := <-r.broadcast:
			var stalled []*Client
			for _, member := range r.snapshot() {
				if member == out.exclude {
					continue
				}
				if !member.Deliver(out.ev) {
					stalled = append(stalled, member)
				}
			}
			if out.msg != nil {
				r.hub.enqueuePersist(out.msg)
			}
			for _, member := range stalled {
				r.hub.log.Warn("Dropping slow consumer", "room", r.code, "client", member.ID)
				r.hub.Disconnect(member)
			}
		}
	}
}
