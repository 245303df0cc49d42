package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares counters across instances. The first request of a
// window sets the key expiry, so the window is fixed rather than sliding.
// A counter found without an expiry gets one, so a failed EXPIRE cannot pin
// a client at the limit.
type RedisLimiter struct {
	cfg    Config
	client redis.UniversalClient
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	cfg.ApplyDefaults()

	return &RedisLimiter{cfg: cfg, client: client, prefix: "rate_limit:"}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.TTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	count := incr.Val()
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(l.cfg.Max), nil
}
