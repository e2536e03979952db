// internal/moderation/service.go
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/membership"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
)

// Store is the durable state the moderation actions mutate.
type Store interface {
	GetLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Lobby, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetMembership(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Membership, error)
	CreateMembership(ctx context.Context, m *models.Membership) (bool, error)
	DeleteMembership(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error)
	SetMemberRole(ctx context.Context, lobbyID, userID uuid.UUID, role models.Role) error
	SetLobbyStatus(ctx context.Context, lobbyID uuid.UUID, status models.LobbyStatus) error
	TransferOwnership(ctx context.Context, lobbyID, from, to uuid.UUID) error
	BanUser(ctx context.Context, ban *models.Ban) (bool, error)
	DeleteBan(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error)
}

// Joiner evaluates join admission.
type Joiner interface {
	CanJoin(ctx context.Context, lobby *models.Lobby, userID uuid.UUID) (bool, string)
}

// Service performs lobby administration. Every successful action is recorded
// as a LobbyEvent and, where connected clients need to know, propagated live.
type Service struct {
	store      Store
	joiner     Joiner
	recorder   EventRecorder
	propagator *Propagator
	logger     *logrus.Logger
}

func NewService(store Store, joiner Joiner, recorder EventRecorder, propagator *Propagator, logger *logrus.Logger) *Service {
	return &Service{
		store:      store,
		joiner:     joiner,
		recorder:   recorder,
		propagator: propagator,
		logger:     logger,
	}
}

// loadActor fetches the lobby and the actor's membership, which is nil when
// the actor holds none.
func (s *Service) loadActor(ctx context.Context, lobbyID, actorID uuid.UUID) (*models.Lobby, *models.Membership, error) {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.store.GetMembership(ctx, lobbyID, actorID)
	if errors.Is(err, database.ErrNotFound) {
		return l, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return l, m, nil
}

func (s *Service) loadModerator(ctx context.Context, lobbyID, actorID uuid.UUID) (*models.Lobby, error) {
	l, actor, err := s.loadActor(ctx, lobbyID, actorID)
	if err != nil {
		return nil, err
	}
	if !membership.CanModerate(l, actor) {
		return nil, ErrForbidden
	}
	return l, nil
}

func (s *Service) loadOwner(ctx context.Context, lobbyID, actorID uuid.UUID) (*models.Lobby, error) {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if !membership.CanManage(l, actorID) {
		return nil, ErrForbidden
	}
	return l, nil
}

// targetMembership returns the target's membership or ErrNotMember.
func (s *Service) targetMembership(ctx context.Context, lobbyID, targetID uuid.UUID) (*models.Membership, error) {
	m, err := s.store.GetMembership(ctx, lobbyID, targetID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotMember
	}
	return m, err
}

// record appends the audit entry. A failure is logged but does not undo the
// action, which is already durable.
func (s *Service) record(ctx context.Context, ev *models.LobbyEvent) {
	if err := s.recorder.Record(ctx, ev); err != nil {
		s.logger.WithFields(logrus.Fields{
			"lobby_id":   ev.LobbyID,
			"event_type": ev.EventType,
		}).WithError(err).Error("failed to record lobby event")
	}
}

func (s *Service) propagate(ctx context.Context, lobbyID uuid.UUID, kind lobby.EventKind, target *models.User, p Payload) {
	// Propagator logs its own failures; the action itself has succeeded.
	_ = s.propagator.Propagate(ctx, lobbyID, kind, target, p)
}

func (s *Service) user(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

// Join enrolls actorID as a member.
func (s *Service) Join(ctx context.Context, lobbyID, actorID uuid.UUID) error {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if ok, reason := s.joiner.CanJoin(ctx, l, actorID); !ok {
		return fmt.Errorf("%w: %s", ErrJoinDenied, reason)
	}
	created, err := s.store.CreateMembership(ctx, &models.Membership{LobbyID: lobbyID, UserID: actorID, Role: models.RoleMember})
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrJoinDenied, membership.ReasonMember)
	}
	actor, err := s.user(ctx, actorID)
	if err != nil {
		return err
	}
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventStatusChange,
		ActorID:     actorID,
		Description: fmt.Sprintf("%s joined the lobby", actor.Username),
	})
	return nil
}

// Leave removes actorID's membership. Owners must transfer ownership first.
func (s *Service) Leave(ctx context.Context, lobbyID, actorID uuid.UUID) error {
	l, err := s.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	m, err := s.targetMembership(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner || membership.IsOwner(l, actorID) {
		return ErrOwnerCannotLeave
	}
	deleted, err := s.store.DeleteMembership(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotMember
	}
	actor, err := s.user(ctx, actorID)
	if err != nil {
		return err
	}
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventStatusChange,
		ActorID:     actorID,
		Description: fmt.Sprintf("%s left the lobby", actor.Username),
	})
	return nil
}

// Start moves the lobby to in_game.
func (s *Service) Start(ctx context.Context, lobbyID, actorID uuid.UUID) error {
	return s.setStatus(ctx, lobbyID, actorID, models.LobbyInGame, "Game started")
}

// Close moves the lobby to closed.
func (s *Service) Close(ctx context.Context, lobbyID, actorID uuid.UUID) error {
	return s.setStatus(ctx, lobbyID, actorID, models.LobbyClosed, "Lobby closed")
}

func (s *Service) setStatus(ctx context.Context, lobbyID, actorID uuid.UUID, status models.LobbyStatus, text string) error {
	if _, err := s.loadOwner(ctx, lobbyID, actorID); err != nil {
		return err
	}
	if err := s.store.SetLobbyStatus(ctx, lobbyID, status); err != nil {
		return err
	}
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventStatusChange,
		ActorID:     actorID,
		Description: text,
		Metadata:    map[string]interface{}{"status": string(status)},
	})
	s.propagate(ctx, lobbyID, lobby.KindSystemStatus, nil, Payload{Status: string(status), Text: text})
	return nil
}

// Kick removes a member. Their live sessions close on receipt of the event.
func (s *Service) Kick(ctx context.Context, lobbyID, actorID, targetID uuid.UUID, reason string) error {
	l, err := s.loadModerator(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	m, err := s.targetMembership(ctx, lobbyID, targetID)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner || !membership.CanBeModerated(l, targetID) {
		return ErrTargetIsOwner
	}
	deleted, err := s.store.DeleteMembership(ctx, lobbyID, targetID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotMember
	}

	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventKick,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: fmt.Sprintf("%s kicked from lobby. Reason: %s", target.Username, reason),
		Metadata:    map[string]interface{}{"reason": reason},
	})
	s.propagate(ctx, lobbyID, lobby.KindModerationKick, target, Payload{Reason: reason})
	return nil
}

// Ban removes any membership and records a ban. The target need not be a
// member.
func (s *Service) Ban(ctx context.Context, lobbyID, actorID, targetID uuid.UUID, reason string) error {
	l, err := s.loadModerator(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	if !membership.CanBeModerated(l, targetID) {
		return ErrTargetIsOwner
	}
	created, err := s.store.BanUser(ctx, &models.Ban{
		LobbyID:  lobbyID,
		UserID:   targetID,
		Reason:   reason,
		BannedBy: actorID,
	})
	if err != nil {
		return err
	}
	if !created {
		return ErrAlreadyBanned
	}

	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventBan,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: fmt.Sprintf("%s banned from lobby. Reason: %s", target.Username, reason),
		Metadata:    map[string]interface{}{"reason": reason},
	})
	s.propagate(ctx, lobbyID, lobby.KindModerationBan, target, Payload{Reason: reason})
	return nil
}

// Unban lifts a ban. Nothing is broadcast; the user simply may join again.
func (s *Service) Unban(ctx context.Context, lobbyID, actorID, targetID uuid.UUID) error {
	if _, err := s.loadModerator(ctx, lobbyID, actorID); err != nil {
		return err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteBan(ctx, lobbyID, targetID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotBanned
	}
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventUnban,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: fmt.Sprintf("%s unbanned from lobby", target.Username),
	})
	return nil
}

// AddModerator promotes a member.
func (s *Service) AddModerator(ctx context.Context, lobbyID, actorID, targetID uuid.UUID) error {
	l, err := s.loadModerator(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	m, err := s.targetMembership(ctx, lobbyID, targetID)
	if err != nil {
		return err
	}
	if m.Role == models.RoleOwner || membership.IsOwner(l, targetID) {
		return ErrAlreadyOwner
	}
	if err := s.store.SetMemberRole(ctx, lobbyID, targetID, models.RoleModerator); err != nil {
		return err
	}

	text := fmt.Sprintf("%s promoted to moderator", target.Username)
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventModAdd,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: text,
	})
	s.propagate(ctx, lobbyID, lobby.KindSystemStatus, nil, Payload{Status: string(l.Status), Text: text})
	return nil
}

// RemoveModerator demotes a moderator back to member.
func (s *Service) RemoveModerator(ctx context.Context, lobbyID, actorID, targetID uuid.UUID) error {
	l, err := s.loadModerator(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	m, err := s.targetMembership(ctx, lobbyID, targetID)
	if err != nil {
		return err
	}
	if m.Role != models.RoleModerator {
		return ErrNotModerator
	}
	if err := s.store.SetMemberRole(ctx, lobbyID, targetID, models.RoleMember); err != nil {
		return err
	}

	text := fmt.Sprintf("%s demoted from moderator", target.Username)
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventModRemove,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: text,
	})
	s.propagate(ctx, lobbyID, lobby.KindSystemStatus, nil, Payload{Status: string(l.Status), Text: text})
	return nil
}

// TransferOwnership hands the lobby to another member; the old owner becomes
// a plain member.
func (s *Service) TransferOwnership(ctx context.Context, lobbyID, actorID, targetID uuid.UUID) error {
	l, err := s.loadOwner(ctx, lobbyID, actorID)
	if err != nil {
		return err
	}
	if membership.IsOwner(l, targetID) {
		return ErrAlreadyOwner
	}
	target, err := s.user(ctx, targetID)
	if err != nil {
		return err
	}
	if _, err := s.targetMembership(ctx, lobbyID, targetID); err != nil {
		return err
	}
	if err := s.store.TransferOwnership(ctx, lobbyID, actorID, targetID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotMember
		}
		return err
	}

	text := fmt.Sprintf("Ownership transferred to %s", target.Username)
	s.record(ctx, &models.LobbyEvent{
		LobbyID:     lobbyID,
		EventType:   models.EventTransfer,
		ActorID:     actorID,
		TargetID:    targetID,
		Description: text,
	})
	s.propagate(ctx, lobbyID, lobby.KindSystemStatus, nil, Payload{Status: string(l.Status), Text: text})
	return nil
}
