package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's standing within a single lobby.
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleOwner     Role = "owner"
)

// Membership is unique per (user, lobby).
type Membership struct {
	UserID   uuid.UUID `json:"user_id"`
	LobbyID  uuid.UUID `json:"lobby_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Ban is unique per (lobby, user) and blocks joining regardless of membership.
type Ban struct {
	LobbyID   uuid.UUID `json:"lobby_id"`
	UserID    uuid.UUID `json:"user_id"`
	Reason    string    `json:"reason"`
	BannedBy  uuid.UUID `json:"banned_by"`
	CreatedAt time.Time `json:"created_at"`
}
