// internal/lobby/hub.go
package lobby

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Member is a live connection that can receive lobby events. Deliver must not
// block.
type Member interface {
	ConnID() uuid.UUID
	Deliver(ev *Event)
}

// Hub is the broadcast domain for every lobby served by this process. Join
// and Leave are idempotent. Broadcast reaches every member joined to the
// event's lobby at the moment of delivery, on every process sharing the hub's
// backend.
type Hub interface {
	Join(lobbyID uuid.UUID, m Member)
	Leave(lobbyID uuid.UUID, m Member)
	Broadcast(ctx context.Context, ev *Event) error
}

// group is the set of local connections for one lobby.
type group struct {
	mu      sync.RWMutex
	members map[uuid.UUID]Member
}

// LocalHub fans events out to connections in this process only. The Redis and
// NATS hubs use it for the last hop.
type LocalHub struct {
	mu     sync.Mutex
	groups map[uuid.UUID]*group
}

func NewLocalHub() *LocalHub {
	return &LocalHub{groups: make(map[uuid.UUID]*group)}
}

func (h *LocalHub) Join(lobbyID uuid.UUID, m Member) {
	h.mu.Lock()
	g, ok := h.groups[lobbyID]
	if !ok {
		g = &group{members: make(map[uuid.UUID]Member)}
		h.groups[lobbyID] = g
	}
	// Taking g.mu under h.mu keeps Leave from dropping g between the lookup and
	// the insert.
	g.mu.Lock()
	h.mu.Unlock()
	g.members[m.ConnID()] = m
	g.mu.Unlock()
}

func (h *LocalHub) Leave(lobbyID uuid.UUID, m Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[lobbyID]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, m.ConnID())
	empty := len(g.members) == 0
	g.mu.Unlock()
	if empty {
		delete(h.groups, lobbyID)
	}
}

// Broadcast delivers ev to a snapshot of the lobby's members. Delivery happens
// outside the lock so a slow member cannot hold up Join or Leave.
func (h *LocalHub) Broadcast(_ context.Context, ev *Event) error {
	for _, m := range h.snapshot(ev.LobbyID) {
		m.Deliver(ev)
	}
	return nil
}

func (h *LocalHub) snapshot(lobbyID uuid.UUID) []Member {
	h.mu.Lock()
	g, ok := h.groups[lobbyID]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Member, 0, len(g.members))
	for _, m := range g.members {
		out = append(out, m)
	}
	return out
}

// Count returns how many local connections are joined to the lobby.
func (h *LocalHub) Count(lobbyID uuid.UUID) int {
	return len(h.snapshot(lobbyID))
}

// Lobbies returns how many lobbies have at least one local connection.
func (h *LocalHub) Lobbies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups)
}
