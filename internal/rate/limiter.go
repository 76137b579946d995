package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter tracks attempt counts per key within a decay window using
// Redis INCR/EXPIRE counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Limiter] backed by the given Redis client. Keys are
// namespaced under prefix ("agrl" when empty).
func New(redisClient redis.UniversalClient, prefix string) *Limiter {
	if prefix == "" {
		prefix = "agrl"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (l *Limiter) key(key string) string {
	return l.prefix + ":" + key
}

// TooManyAttempts reports whether the recorded hits for key within the
// current decay window have reached maxAttempts. Missing keys count as zero.
func (l *Limiter) TooManyAttempts(ctx context.Context, key string, maxAttempts int) (bool, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count >= int64(maxAttempts), nil
}

// AvailableIn returns the remaining time until the window for key resets.
// Zero means a new attempt is allowed immediately.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.redis.TTL(ctx, l.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// TTL returns a negative duration for missing keys and keys without
	// expiry; both mean the window is open.
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Hit records one attempt for key. The first hit in a window arms the decay
// TTL; later hits ride the existing window (fixed-window semantics).
func (l *Limiter) Hit(ctx context.Context, key string, decay time.Duration) error {
	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(key), decay).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// Clear removes the counter for key. Used by tests and operational tooling;
// the engine itself lets windows decay naturally.
func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
