// internal/presence/presence.go
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long a presence entry survives without a refresh.
const DefaultTTL = 5 * time.Minute

// Store tracks which users hold live connections to which lobby.
//
// Entries are reference counted per (lobby, user): every Add must be paired
// with exactly one Remove, and a user stays listed while at least one of their
// sessions is registered. Expiry only cleans up after sessions that never ran
// their teardown.
type Store interface {
	// Add registers one live session for userID and refreshes its expiry.
	Add(ctx context.Context, lobbyID, userID uuid.UUID) error
	// Remove releases one session. The user leaves the set when the last one is
	// released, and an empty lobby leaves no key behind.
	Remove(ctx context.Context, lobbyID, userID uuid.UUID) error
	// List returns a snapshot of the users present in the lobby.
	List(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error)
	// Touch refreshes the expiry of an existing entry without counting a new session.
	Touch(ctx context.Context, lobbyID, userID uuid.UUID) error
}
