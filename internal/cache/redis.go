// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/lobbychat/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains into lobby_events.
const DefaultQueueName = "lobby_events"

// Connect opens a Redis client and verifies it with a ping. The caller owns the
// client and must Close it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventQueue hands audit records to the historian through a Redis list so the
// moderation path never waits on Postgres.
type EventQueue struct {
	rdb  *redis.Client
	name string
}

func NewEventQueue(rdb *redis.Client, name string) *EventQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, name: name}
}

// Name returns the list key.
func (q *EventQueue) Name() string { return q.name }

// Record serializes ev and pushes it to the tail of the queue.
func (q *EventQueue) Record(ctx context.Context, ev *models.LobbyEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal LobbyEvent: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns (nil, nil) when the
// wait times out.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (*models.LobbyEvent, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}

	// res[0] is the queue name and res[1] the payload.
	var ev models.LobbyEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid lobby event record: %w", err)
	}
	return &ev, nil
}
