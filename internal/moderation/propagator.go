// internal/moderation/propagator.go
package moderation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/lobbychat/internal/lobby"
	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/sirupsen/logrus"
)

// Payload carries the free-form part of a propagated decision.
type Payload struct {
	Reason string
	Status string
	Text   string
}

// Propagator turns a recorded moderation decision into a live lobby event.
// Sessions of a kicked or banned user close themselves when the event reaches
// them; everyone else gets the informational variant.
type Propagator struct {
	hub    lobby.Hub
	logger *logrus.Logger
}

func NewPropagator(hub lobby.Hub, logger *logrus.Logger) *Propagator {
	return &Propagator{hub: hub, logger: logger}
}

// Propagate broadcasts kind into the lobby. target is required for kicks and
// bans and ignored for system_status.
func (p *Propagator) Propagate(ctx context.Context, lobbyID uuid.UUID, kind lobby.EventKind, target *models.User, payload Payload) error {
	var ev *lobby.Event
	switch kind {
	case lobby.KindModerationKick, lobby.KindModerationBan:
		if target == nil {
			return fmt.Errorf("propagate %s: missing target", kind)
		}
		ev = lobby.NewModerationEvent(kind, lobbyID, *target, payload.Reason)
	case lobby.KindSystemStatus:
		ev = lobby.NewSystemStatusEvent(lobbyID, payload.Status, payload.Text)
	default:
		return fmt.Errorf("propagate: %s is not a moderation event", kind)
	}

	fields := logrus.Fields{"lobby_id": lobbyID, "kind": kind}
	if target != nil {
		fields["target_id"] = target.ID
	}
	if err := p.hub.Broadcast(ctx, ev); err != nil {
		p.logger.WithFields(fields).WithError(err).Error("moderation broadcast failed")
		return err
	}
	p.logger.WithFields(fields).Info("moderation event propagated")
	return nil
}
