// internal/presence/memory.go
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	sessions int
	expires  time.Time
}

type lobbySet struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entry
}

// MemoryStore keeps presence in process. Each lobby has its own lock, so
// operations on different lobbies never contend.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	lobbies map[uuid.UUID]*lobbySet
}

// NewMemoryStore returns a store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		lobbies: make(map[uuid.UUID]*lobbySet),
	}
}

// WithClock replaces the time source. Used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// set returns the lobby's set, creating it when create is true. The returned
// set is locked; callers must call release.
func (m *MemoryStore) set(lobbyID uuid.UUID, create bool) *lobbySet {
	m.mu.Lock()
	ls, ok := m.lobbies[lobbyID]
	if !ok {
		if !create {
			m.mu.Unlock()
			return nil
		}
		ls = &lobbySet{users: make(map[uuid.UUID]*entry)}
		m.lobbies[lobbyID] = ls
	}
	ls.mu.Lock()
	m.mu.Unlock()
	return ls
}

// release unlocks ls and evicts it when it has become empty.
func (m *MemoryStore) release(lobbyID uuid.UUID, ls *lobbySet) {
	empty := len(ls.users) == 0
	ls.mu.Unlock()
	if !empty {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ls.mu.Lock()
	if len(ls.users) == 0 && m.lobbies[lobbyID] == ls {
		delete(m.lobbies, lobbyID)
	}
	ls.mu.Unlock()
}

// expire drops entries past their deadline. ls must be locked.
func (ls *lobbySet) expire(now time.Time) {
	for id, e := range ls.users {
		if !now.Before(e.expires) {
			delete(ls.users, id)
		}
	}
}

func (m *MemoryStore) Add(_ context.Context, lobbyID, userID uuid.UUID) error {
	ls := m.set(lobbyID, true)
	defer m.release(lobbyID, ls)

	now := m.now()
	ls.expire(now)
	e, ok := ls.users[userID]
	if !ok {
		e = &entry{}
		ls.users[userID] = e
	}
	e.sessions++
	e.expires = now.Add(m.ttl)
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, lobbyID, userID uuid.UUID) error {
	ls := m.set(lobbyID, false)
	if ls == nil {
		return nil
	}
	defer m.release(lobbyID, ls)

	if e, ok := ls.users[userID]; ok {
		e.sessions--
		if e.sessions <= 0 {
			delete(ls.users, userID)
		}
	}
	ls.expire(m.now())
	return nil
}

func (m *MemoryStore) List(_ context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	ls := m.set(lobbyID, false)
	if ls == nil {
		return []uuid.UUID{}, nil
	}
	defer m.release(lobbyID, ls)

	ls.expire(m.now())
	ids := make([]uuid.UUID, 0, len(ls.users))
	for id := range ls.users {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) Touch(_ context.Context, lobbyID, userID uuid.UUID) error {
	ls := m.set(lobbyID, false)
	if ls == nil {
		return nil
	}
	defer m.release(lobbyID, ls)

	if e, ok := ls.users[userID]; ok {
		e.expires = m.now().Add(m.ttl)
	}
	return nil
}

// Len reports how many lobbies currently hold entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lobbies)
}
