// internal/lobby/nats_hub.go
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const natsSubjectPrefix = "lobby."

func natsSubject(lobbyID uuid.UUID) string {
	return natsSubjectPrefix + lobbyID.String()
}

// NatsHub is the NATS flavour of RedisHub: events go out on lobby.{id} and
// everything on lobby.* is fanned out locally. No queue group is used because
// every process needs every event.
type NatsHub struct {
	local  *LocalHub
	nc     *nats.Conn
	sub    *nats.Subscription
	logger *logrus.Logger
}

func NewNatsHub(nc *nats.Conn, logger *logrus.Logger) (*NatsHub, error) {
	h := &NatsHub{
		local:  NewLocalHub(),
		nc:     nc,
		logger: logger,
	}
	sub, err := nc.Subscribe(natsSubjectPrefix+"*", h.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s*: %w", natsSubjectPrefix, err)
	}
	// Make sure the server has registered the interest before anyone publishes.
	if err := nc.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}
	h.sub = sub
	return h, nil
}

func (h *NatsHub) Join(lobbyID uuid.UUID, m Member)  { h.local.Join(lobbyID, m) }
func (h *NatsHub) Leave(lobbyID uuid.UUID, m Member) { h.local.Leave(lobbyID, m) }

func (h *NatsHub) Broadcast(_ context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if err := h.nc.Publish(natsSubject(ev.LobbyID), data); err != nil {
		return fmt.Errorf("publish to %s: %w", natsSubject(ev.LobbyID), err)
	}
	return nil
}

// handle runs on the subscription's goroutine; NATS calls it sequentially.
func (h *NatsHub) handle(msg *nats.Msg) {
	lobbyID, err := uuid.Parse(strings.TrimPrefix(msg.Subject, natsSubjectPrefix))
	if err != nil {
		h.logger.WithField("subject", msg.Subject).Warn("ignoring message on malformed lobby subject")
		return
	}
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil || !ev.Kind.Valid() {
		h.logger.WithField("subject", msg.Subject).Warn("ignoring undecodable lobby event")
		return
	}
	ev.LobbyID = lobbyID
	_ = h.local.Broadcast(context.Background(), &ev)
}

func (h *NatsHub) Close() error {
	if h.sub == nil {
		return nil
	}
	return h.sub.Unsubscribe()
}
