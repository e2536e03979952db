// internal/moderation/recorder.go
package moderation

import (
	"context"

	"github.com/jason-s-yu/lobbychat/internal/models"
)

// EventRecorder appends an audit record. cache.EventQueue satisfies it for the
// queued mode.
type EventRecorder interface {
	Record(ctx context.Context, ev *models.LobbyEvent) error
}

type eventInserter interface {
	InsertLobbyEvent(ctx context.Context, ev *models.LobbyEvent) error
}

// StoreRecorder writes audit records straight to the durable store.
type StoreRecorder struct {
	store eventInserter
}

func NewStoreRecorder(store eventInserter) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, ev *models.LobbyEvent) error {
	return r.store.InsertLobbyEvent(ctx, ev)
}
