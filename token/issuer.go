package token

import (
	"context"
	"errors"
)

var (
	// ErrTokenInvalid is returned when a presented token cannot be resolved
	// to a live user token.
	ErrTokenInvalid = errors.New("invalid bearer token")
	// ErrRedisUnavailable wraps transport failures talking to the token store.
	ErrRedisUnavailable = errors.New("token redis unavailable")
)

// Issuer mints bearer tokens and revokes them in bulk. Multiple live
// tokens per user may coexist; Issue never invalidates earlier tokens.
type Issuer interface {
	Issue(ctx context.Context, userID string) (string, error)
	RevokeAll(ctx context.Context, userID string) error
}

// Validator resolves a presented bearer token to the owning user ID.
// Both shipped issuers implement it; transport middleware depends only
// on this interface.
type Validator interface {
	Validate(ctx context.Context, token string) (string, error)
}
