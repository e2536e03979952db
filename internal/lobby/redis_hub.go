// internal/lobby/redis_hub.go
package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisChannelPrefix = "lobby:"

func redisChannel(lobbyID uuid.UUID) string {
	return redisChannelPrefix + lobbyID.String()
}

// RedisHub publishes events on the Redis channel lobby:{id} and delivers
// whatever arrives on lobby:* to its local connections. Every process holds one
// pattern subscription, so a broadcast reaches connections on all of them.
type RedisHub struct {
	local  *LocalHub
	rdb    *redis.Client
	sub    *redis.PubSub
	logger *logrus.Logger
}

// NewRedisHub subscribes before returning so no event published after it
// returns can be missed.
func NewRedisHub(ctx context.Context, rdb *redis.Client, logger *logrus.Logger) (*RedisHub, error) {
	sub := rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s*: %w", redisChannelPrefix, err)
	}
	return &RedisHub{
		local:  NewLocalHub(),
		rdb:    rdb,
		sub:    sub,
		logger: logger,
	}, nil
}

func (h *RedisHub) Join(lobbyID uuid.UUID, m Member)  { h.local.Join(lobbyID, m) }
func (h *RedisHub) Leave(lobbyID uuid.UUID, m Member) { h.local.Leave(lobbyID, m) }

// Broadcast publishes ev. Local members receive it through the subscription
// like everyone else.
func (h *RedisHub) Broadcast(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if err := h.rdb.Publish(ctx, redisChannel(ev.LobbyID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", redisChannel(ev.LobbyID), err)
	}
	return nil
}

// Run relays subscribed events to local members until ctx is done. Messages
// are handled one at a time, which keeps each publisher's order intact.
func (h *RedisHub) Run(ctx context.Context) error {
	ch := h.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (h *RedisHub) dispatch(channel string, payload []byte) {
	lobbyID, err := uuid.Parse(strings.TrimPrefix(channel, redisChannelPrefix))
	if err != nil {
		h.logger.WithField("channel", channel).Warn("ignoring message on malformed lobby channel")
		return
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil || !ev.Kind.Valid() {
		h.logger.WithField("channel", channel).Warn("ignoring undecodable lobby event")
		return
	}
	ev.LobbyID = lobbyID
	_ = h.local.Broadcast(context.Background(), &ev)
}

// Close drops the subscription.
func (h *RedisHub) Close() error {
	return h.sub.Close()
}
