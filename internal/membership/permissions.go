// internal/membership/permissions.go
package membership

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/models"
)

// IsOwner reports whether userID owns the lobby.
func IsOwner(lobby *models.Lobby, userID uuid.UUID) bool {
	return lobby.OwnerID == userID
}

// CanManage reports whether userID may change the lobby itself (status,
// ownership). Only the owner can.
func CanManage(lobby *models.Lobby, userID uuid.UUID) bool {
	return IsOwner(lobby, userID)
}

// CanModerate reports whether the actor may kick, ban or change moderators.
// actor is nil when the user holds no membership.
func CanModerate(lobby *models.Lobby, actor *models.Membership) bool {
	if actor == nil {
		return false
	}
	if IsOwner(lobby, actor.UserID) {
		return true
	}
	return actor.Role == models.RoleOwner || actor.Role == models.RoleModerator
}

// CanBeModerated reports whether targetID may be the subject of a moderation
// action. The owner never can.
func CanBeModerated(lobby *models.Lobby, targetID uuid.UUID) bool {
	return !IsOwner(lobby, targetID)
}
