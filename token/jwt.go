package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// JWTConfig holds signing parameters for [JWTIssuer].
type JWTConfig struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Claims is the claim set carried by issued JWTs.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 bearer tokens. Because a signed token is valid
// until expiry on its own, the issuer keeps the set of live token IDs
// per user in Redis; RevokeAll drops the set, which fails the jti check
// for every outstanding token.
type JWTIssuer struct {
	redis  redis.UniversalClient
	prefix string
	config JWTConfig
}

// NewJWTIssuer validates cfg and returns an issuer. Keys are namespaced
// under prefix ("agjwt" when empty).
func NewJWTIssuer(redisClient redis.UniversalClient, prefix string, cfg JWTConfig) (*JWTIssuer, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid jwt ttl")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid jwt leeway")
	}
	if prefix == "" {
		prefix = "agjwt"
	}

	return &JWTIssuer{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}, nil
}

func (i *JWTIssuer) userKey(userID string) string {
	return i.prefix + ":u:" + userID
}

// Issue signs a new token for userID and registers its jti as live.
func (i *JWTIssuer) Issue(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}

	now := time.Now()
	jti := uuid.NewString()

	claims := Claims{
		UID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    i.config.Issuer,
			Audience:  jwt.ClaimStrings{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", err
	}

	pipe := i.redis.TxPipeline()
	pipe.SAdd(ctx, i.userKey(userID), jti)
	pipe.Expire(ctx, i.userKey(userID), i.config.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return signed, nil
}

// Validate parses and verifies tokenStr, checks the jti is still live,
// and returns the owning user ID.
func (i *JWTIssuer) Validate(ctx context.Context, tokenStr string) (string, error) {
	claims := &Claims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.config.Leeway),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(i.config.Audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.config.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrTokenInvalid
	}
	if claims.UID == "" || claims.ID == "" {
		return "", ErrTokenInvalid
	}

	live, err := i.redis.SIsMember(ctx, i.userKey(claims.UID), claims.ID).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !live {
		return "", ErrTokenInvalid
	}

	return claims.UID, nil
}

// RevokeAll invalidates every live token belonging to userID.
func (i *JWTIssuer) RevokeAll(ctx context.Context, userID string) error {
	if err := i.redis.Del(ctx, i.userKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
