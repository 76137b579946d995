package rate

import "errors"

var (
	// ErrRedisUnavailable wraps transport failures talking to the counter store.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
