// internal/membership/authority.go
package membership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
)

// Denial reasons reported to clients.
const (
	ReasonNotOpen     = "lobby is not open"
	ReasonFull        = "lobby is full"
	ReasonBanned      = "user is banned"
	ReasonMember      = "already a member"
	ReasonUnavailable = "service unavailable"
	ReasonNotFound    = "lobby not found"
)

// Store is the slice of the durable store the authority reads.
type Store interface {
	GetLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error)
	CountMembers(ctx context.Context, lobbyID uuid.UUID) (int, error)
	IsMember(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error)
	IsBanned(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error)
	CreateMembership(ctx context.Context, m *models.Membership) (bool, error)
}

// Authority answers join and membership questions against the durable store.
// Store failures always resolve to a denial.
type Authority struct {
	store  Store
	logger *logrus.Logger
}

func NewAuthority(store Store, logger *logrus.Logger) *Authority {
	return &Authority{store: store, logger: logger}
}

// Evaluate applies the join rules to already-fetched facts. The first failing
// rule wins: status, capacity, ban, existing membership.
func Evaluate(lobby *models.Lobby, members int, banned, member bool) (bool, string) {
	switch {
	case lobby.Status != models.LobbyOpen:
		return false, ReasonNotOpen
	case members >= lobby.MaxParticipants:
		return false, ReasonFull
	case banned:
		return false, ReasonBanned
	case member:
		return false, ReasonMember
	}
	return true, ""
}

// CanJoin reports whether userID may join lobby as a new member.
func (a *Authority) CanJoin(ctx context.Context, lobby *models.Lobby, userID uuid.UUID) (bool, string) {
	if lobby.Status != models.LobbyOpen {
		return false, ReasonNotOpen
	}
	count, err := a.store.CountMembers(ctx, lobby.ID)
	if err != nil {
		return a.unavailable(lobby.ID, userID, "count members", err)
	}
	banned, err := a.store.IsBanned(ctx, lobby.ID, userID)
	if err != nil {
		return a.unavailable(lobby.ID, userID, "ban lookup", err)
	}
	member, err := a.store.IsMember(ctx, lobby.ID, userID)
	if err != nil {
		return a.unavailable(lobby.ID, userID, "membership lookup", err)
	}
	return Evaluate(lobby, count, banned, member)
}

// IsMember is the send-time membership check. Errors count as "not a member".
func (a *Authority) IsMember(ctx context.Context, lobbyID, userID uuid.UUID) bool {
	ok, err := a.store.IsMember(ctx, lobbyID, userID)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"lobby_id": lobbyID,
			"user_id":  userID,
		}).WithError(err).Error("membership check failed")
		return false
	}
	return ok
}

// Admit decides whether a new connection from userID may enter the lobby.
// Existing members reconnect freely unless the lobby is closed. Anyone else
// must pass CanJoin and is enrolled as a member on success; losing the insert
// race to a concurrent join of the same user still admits them.
func (a *Authority) Admit(ctx context.Context, lobby *models.Lobby, userID uuid.UUID) (bool, string) {
	if lobby.Status == models.LobbyClosed {
		return false, ReasonNotOpen
	}
	banned, err := a.store.IsBanned(ctx, lobby.ID, userID)
	if err != nil {
		return a.unavailable(lobby.ID, userID, "ban lookup", err)
	}
	if banned {
		return false, ReasonBanned
	}
	member, err := a.store.IsMember(ctx, lobby.ID, userID)
	if err != nil {
		return a.unavailable(lobby.ID, userID, "membership lookup", err)
	}
	if member {
		return true, ""
	}

	if ok, reason := a.CanJoin(ctx, lobby, userID); !ok {
		if reason == ReasonMember {
			return true, ""
		}
		return false, reason
	}
	created, err := a.store.CreateMembership(ctx, &models.Membership{
		LobbyID: lobby.ID,
		UserID:  userID,
		Role:    models.RoleMember,
	})
	if err != nil && !errors.Is(err, database.ErrAlreadyExists) {
		return a.unavailable(lobby.ID, userID, "create membership", err)
	}
	if !created {
		a.logger.WithFields(logrus.Fields{
			"lobby_id": lobby.ID,
			"user_id":  userID,
		}).Debug("concurrent join already enrolled user")
	}
	return true, ""
}

func (a *Authority) unavailable(lobbyID, userID uuid.UUID, op string, err error) (bool, string) {
	a.logger.WithFields(logrus.Fields{
		"lobby_id": lobbyID,
		"user_id":  userID,
		"op":       op,
	}).WithError(err).Error("membership authority: store unavailable")
	return false, ReasonUnavailable
}
