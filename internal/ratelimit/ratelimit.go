// internal/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Defaults for the chat message throttle.
const (
	DefaultLimit  = 3
	DefaultWindow = 2 * time.Second
	DefaultKeyTTL = 10 * time.Second
)

// Limiter admits at most Limit calls per rolling Window for each (user, lobby)
// pair. Rejected calls do not consume budget.
type Limiter interface {
	Allow(ctx context.Context, userID, lobbyID uuid.UUID) (bool, error)
}

// Options configures either backend. Zero values fall back to the defaults.
type Options struct {
	Limit  int
	Window time.Duration
	KeyTTL time.Duration
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.KeyTTL <= 0 {
		o.KeyTTL = DefaultKeyTTL
	}
	if o.KeyTTL < o.Window {
		o.KeyTTL = o.Window
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func rateKey(userID, lobbyID uuid.UUID) string {
	return fmt.Sprintf("rate_limit:user:%s:lobby:%s", userID, lobbyID)
}
