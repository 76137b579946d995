package authgate

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when the supplied email resolves to no user.
	ErrUserNotFound = errors.New("user not found")
	// ErrOTPInvalid is the only OTP verification failure callers see. The
	// underlying reason (missing, expired, mismatch) is carried in the
	// wrapped message and in metrics and audit, never in the error kind.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrResetTokenExpired is returned when no cached reset token exists for
	// the email, including tokens that aged out of the cache.
	ErrResetTokenExpired = errors.New("reset token expired")
	// ErrResetTokenInvalid is returned when a live cached token does not
	// match the supplied one.
	ErrResetTokenInvalid = errors.New("invalid reset token")
	// ErrPasswordReuse rejects a new password equal to the one being replaced.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrOldPasswordMismatch is returned when the supplied current password
	// fails the hash check.
	ErrOldPasswordMismatch = errors.New("old password does not match")
	// ErrChangePasswordConflict is returned when both an old password and a
	// reset token are supplied.
	ErrChangePasswordConflict = errors.New("old password and reset token are mutually exclusive")
	// ErrChangePasswordInput is returned when neither credential is supplied.
	ErrChangePasswordInput = errors.New("either old password or reset token is required")
	// ErrTooManyAttempts is returned when a rate limit window is exhausted.
	ErrTooManyAttempts = errors.New("too many attempts")
	// ErrNoAuthenticatedUser is returned by Logout when the context carries
	// no authenticated user.
	ErrNoAuthenticatedUser = errors.New("no authenticated user in context")
	// ErrEngineNotReady is returned when a required collaborator is missing.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// StatusCode maps engine errors onto HTTP status classes for transport
// layers. Unknown errors map to 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrOldPasswordMismatch),
		errors.Is(err, ErrNoAuthenticatedUser):
		return http.StatusUnauthorized
	case errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrResetTokenExpired),
		errors.Is(err, ErrResetTokenInvalid),
		errors.Is(err, ErrPasswordReuse),
		errors.Is(err, ErrChangePasswordConflict),
		errors.Is(err, ErrChangePasswordInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManyAttempts):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
