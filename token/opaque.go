package token

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mwillfox/authgate/internal"
)

// OpaqueIssuer mints random bearer tokens of the form "<id>.<secret>".
// Only the SHA-256 of the secret is stored; the token record carries the
// owning user and lives under a per-token Redis key, with a per-user set
// of token IDs for bulk revocation.
type OpaqueIssuer struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewOpaqueIssuer creates an issuer with the given token lifetime.
// Keys are namespaced under prefix ("agtok" when empty); ttl <= 0
// defaults to 30 days.
func NewOpaqueIssuer(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *OpaqueIssuer {
	if prefix == "" {
		prefix = "agtok"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &OpaqueIssuer{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (i *OpaqueIssuer) tokenKey(tokenID string) string {
	return i.prefix + ":t:" + tokenID
}

func (i *OpaqueIssuer) userKey(userID string) string {
	return i.prefix + ":u:" + userID
}

// Issue mints a new bearer token for userID. Previously issued tokens
// stay live.
func (i *OpaqueIssuer) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}

	tokenID := uuid.NewString()
	secret, err := internal.NewTokenSecret()
	if err != nil {
		return "", err
	}

	secretHash := internal.HashSecret(secret[:])
	record := userID + "|" + hex.EncodeToString(secretHash[:])

	pipe := i.redis.TxPipeline()
	pipe.Set(ctx, i.tokenKey(tokenID), record, i.ttl)
	pipe.SAdd(ctx, i.userKey(userID), tokenID)
	pipe.Expire(ctx, i.userKey(userID), i.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return tokenID + "." + base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// Validate resolves token to its owning user ID, or [ErrTokenInvalid].
func (i *OpaqueIssuer) Validate(ctx context.Context, token string) (string, error) {
	tokenID, secret, ok := splitOpaqueToken(token)
	if !ok {
		return "", ErrTokenInvalid
	}

	record, err := i.redis.Get(ctx, i.tokenKey(tokenID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	userID, storedHex, ok := strings.Cut(record, "|")
	if !ok {
		return "", ErrTokenInvalid
	}

	stored, err := hex.DecodeString(storedHex)
	if err != nil {
		return "", ErrTokenInvalid
	}

	providedHash := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(stored, providedHash[:]) != 1 {
		return "", ErrTokenInvalid
	}

	return userID, nil
}

// RevokeAll invalidates every live token belonging to userID.
func (i *OpaqueIssuer) RevokeAll(ctx context.Context, userID string) error {
	tokenIDs, err := i.redis.SMembers(ctx, i.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(tokenIDs)+1)
	for _, id := range tokenIDs {
		keys = append(keys, i.tokenKey(id))
	}
	keys = append(keys, i.userKey(userID))

	if err := i.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func splitOpaqueToken(token string) (string, []byte, bool) {
	tokenID, encodedSecret, ok := strings.Cut(token, ".")
	if !ok || tokenID == "" || encodedSecret == "" {
		return "", nil, false
	}
	if _, err := uuid.Parse(tokenID); err != nil {
		return "", nil, false
	}

	secret, err := base64.RawURLEncoding.DecodeString(encodedSecret)
	if err != nil || len(secret) != 32 {
		return "", nil, false
	}

	return tokenID, secret, true
}
