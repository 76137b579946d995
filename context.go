package authgate

import "context"

type authenticatedUserContextKey struct{}
type clientIPContextKey struct{}

// WithAuthenticatedUser attaches the authenticated user's ID to ctx.
// Transport middleware sets it after validating a bearer token; Logout
// reads it to know whose tokens to revoke.
func WithAuthenticatedUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, authenticatedUserContextKey{}, userID)
}

// WithClientIP attaches the caller's IP address to ctx. Used only for
// audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// AuthenticatedUserFromContext returns the user ID set by
// [WithAuthenticatedUser], or "" when none is present.
func AuthenticatedUserFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userID, _ := ctx.Value(authenticatedUserContextKey{}).(string)
	return userID
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
