package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit record.
type EventType string

const (
	EventKick         EventType = "kick"
	EventBan          EventType = "ban"
	EventUnban        EventType = "unban"
	EventTransfer     EventType = "transfer"
	EventModAdd       EventType = "mod_add"
	EventModRemove    EventType = "mod_remove"
	EventStatusChange EventType = "status_change"
)

// LobbyEvent is an append-only audit record. TargetID is uuid.Nil when the
// action has no target user.
type LobbyEvent struct {
	LobbyID     uuid.UUID              `json:"lobby_id"`
	EventType   EventType              `json:"event_type"`
	ActorID     uuid.UUID              `json:"actor_id"`
	TargetID    uuid.UUID              `json:"target_id"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}
