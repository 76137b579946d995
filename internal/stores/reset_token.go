package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetTokenNotFound         = errors.New("reset token not found")
	ErrResetTokenRedisUnavailable = errors.New("reset token redis unavailable")
)

// ResetTokenStore keeps at most one live password-reset token hash per
// email. Expiry is enforced by the Redis TTL; a new Put replaces whatever
// token was cached before.
type ResetTokenStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetTokenStore(redisClient redis.UniversalClient, prefix string) *ResetTokenStore {
	if prefix == "" {
		prefix = "agrst"
	}
	return &ResetTokenStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetTokenStore) key(email string) string {
	return s.prefix + ":" + email + "_reset_token"
}

// Put caches tokenHash for email with the given TTL, replacing any prior
// token. Only the hash is stored; the plaintext token goes to the caller.
func (s *ResetTokenStore) Put(ctx context.Context, email string, tokenHash [32]byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("invalid reset token ttl")
	}

	if err := s.redis.Set(ctx, s.key(email), tokenHash[:], ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetTokenRedisUnavailable, err)
	}

	return nil
}

// Match reports whether providedHash equals the cached token hash for
// email. A missing or already-expired token fails with
// [ErrResetTokenNotFound]; a live non-matching token returns false.
func (s *ResetTokenStore) Match(ctx context.Context, email string, providedHash [32]byte) (bool, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrResetTokenNotFound
		}
		return false, fmt.Errorf("%w: %v", ErrResetTokenRedisUnavailable, err)
	}
	if len(data) != len(providedHash) {
		return false, ErrResetTokenNotFound
	}

	return subtle.ConstantTimeCompare(data, providedHash[:]) == 1, nil
}

// Delete removes the cached token for email. No-op when absent.
func (s *ResetTokenStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetTokenRedisUnavailable, err)
	}
	return nil
}
