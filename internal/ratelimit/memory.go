// internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type window struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// MemoryLimiter is the single-process limiter. Each key has its own lock.
type MemoryLimiter struct {
	opts Options

	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
}

func NewMemoryLimiter(opts Options) *MemoryLimiter {
	opts = opts.withDefaults()
	return &MemoryLimiter{
		opts:      opts,
		windows:   make(map[string]*window),
		lastSweep: opts.Now(),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, userID, lobbyID uuid.UUID) (bool, error) {
	now := l.opts.Now()
	w := l.window(rateKey(userID, lobbyID), now)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = now

	cutoff := now.Add(-l.opts.Window)
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep

	if len(w.stamps) >= l.opts.Limit {
		return false, nil
	}
	w.stamps = append(w.stamps, now)
	return true, nil
}

// window looks up or creates the key's window and evicts idle keys at most
// once per KeyTTL.
func (l *MemoryLimiter) window(key string, now time.Time) *window {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.opts.KeyTTL {
		for k, w := range l.windows {
			w.mu.Lock()
			idle := now.Sub(w.lastSeen) >= l.opts.KeyTTL
			w.mu.Unlock()
			if idle {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	// Stamped under l.mu so a sweep cannot evict a window between this
	// lookup and the caller locking it.
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
	return w
}

// Keys reports how many keys are tracked.
func (l *MemoryLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
