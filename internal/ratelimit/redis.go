// internal/ratelimit/redis.go
package ratelimit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1]=window ARGV[1]=now ms ARGV[2]=cutoff ms ARGV[3]=limit ARGV[4]=key ttl ms ARGV[5]=member
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[4])
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[5])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// RedisLimiter keeps each window in a sorted set scored by accept time so
// every server process shares the same budget.
type RedisLimiter struct {
	rdb  *redis.Client
	opts Options
}

func NewRedisLimiter(rdb *redis.Client, opts Options) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, opts: opts.withDefaults()}
}

func (l *RedisLimiter) Allow(ctx context.Context, userID, lobbyID uuid.UUID) (bool, error) {
	now := l.opts.Now().UnixMilli()
	res, err := allowScript.Run(ctx, l.rdb, []string{rateKey(userID, lobbyID)},
		now,
		now-l.opts.Window.Milliseconds(),
		l.opts.Limit,
		l.opts.KeyTTL.Milliseconds(),
		fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s/%s: %w", userID, lobbyID, err)
	}
	return res == 1, nil
}
