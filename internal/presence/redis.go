// internal/presence/redis.go
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Each lobby uses two keys sharing a hash tag so the scripts stay on one slot:
//
//	lobby_presence:{<lobby>}      HASH  user -> live session count
//	lobby_presence:{<lobby>}:exp  ZSET  user scored by expiry (unix ms)
func presenceKeys(lobbyID uuid.UUID) []string {
	base := fmt.Sprintf("lobby_presence:{%s}", lobbyID)
	return []string{base, base + ":exp"}
}

// KEYS[1]=counts KEYS[2]=expiries ARGV[1]=user ARGV[2]=expiry ms ARGV[3]=ttl ms
var addScript = redis.NewScript(`
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[3])
return 1
`)

// KEYS[1]=counts KEYS[2]=expiries ARGV[1]=user
var removeScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
  if n <= 0 then
    redis.call('HDEL', KEYS[1], ARGV[1])
    redis.call('ZREM', KEYS[2], ARGV[1])
  end
end
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1], KEYS[2])
end
return 1
`)

// KEYS[1]=counts KEYS[2]=expiries ARGV[1]=now ms
var listScript = redis.NewScript(`
local stale = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, u in ipairs(stale) do
  redis.call('HDEL', KEYS[1], u)
end
if #stale > 0 then
  redis.call('ZREMRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
end
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('DEL', KEYS[1], KEYS[2])
  return {}
end
return redis.call('HKEYS', KEYS[1])
`)

// KEYS[1]=counts KEYS[2]=expiries ARGV[1]=user ARGV[2]=expiry ms ARGV[3]=ttl ms
var touchScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[1])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[3])
return 1
`)

// RedisStore shares presence between server processes. Every operation is a
// single script, so updates to one lobby are linearized by Redis itself.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	s.now = now
	return s
}

func (s *RedisStore) Add(ctx context.Context, lobbyID, userID uuid.UUID) error {
	expiry := s.now().Add(s.ttl).UnixMilli()
	err := addScript.Run(ctx, s.rdb, presenceKeys(lobbyID), userID.String(), expiry, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("presence add %s/%s: %w", lobbyID, userID, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, lobbyID, userID uuid.UUID) error {
	if err := removeScript.Run(ctx, s.rdb, presenceKeys(lobbyID), userID.String()).Err(); err != nil {
		return fmt.Errorf("presence remove %s/%s: %w", lobbyID, userID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := listScript.Run(ctx, s.rdb, presenceKeys(lobbyID), s.now().UnixMilli()).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("presence list %s: %w", lobbyID, err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) Touch(ctx context.Context, lobbyID, userID uuid.UUID) error {
	expiry := s.now().Add(s.ttl).UnixMilli()
	err := touchScript.Run(ctx, s.rdb, presenceKeys(lobbyID), userID.String(), expiry, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("presence touch %s/%s: %w", lobbyID, userID, err)
	}
	return nil
}
