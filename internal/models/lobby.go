// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LobbyStatus is the lifecycle state of a lobby.
type LobbyStatus string

const (
	LobbyOpen   LobbyStatus = "open"
	LobbyInGame LobbyStatus = "in_game"
	LobbyClosed LobbyStatus = "closed"
)

// Lobby represents a row in the lobbies table. The participant count is derived
// from lobby_memberships and never stored here.
type Lobby struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	IsPublic        bool        `json:"is_public"`
	Status          LobbyStatus `json:"status"`
	MaxParticipants int         `json:"max_participants"`
	CreatedAt       time.Time   `json:"created_at"`
}
