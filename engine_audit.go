package authgate

import (
	"context"
	"errors"

	"github.com/mwillfox/authgate/internal/stores"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLogout                = "logout"
	auditEventOTPGenerated          = "otp_generated"
	auditEventOTPVerifySuccess      = "otp_verify_success"
	auditEventOTPVerifyFailure      = "otp_verify_failure"
	auditEventResetTokenIssued      = "reset_token_issued"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventThrottleRejected      = "throttle_rejected"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrOTPNotFound        AuditErrorCode = "otp_not_found"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrOTPMismatch        AuditErrorCode = "otp_mismatch"
	auditErrResetTokenExpired  AuditErrorCode = "reset_token_expired"
	auditErrResetTokenInvalid  AuditErrorCode = "reset_token_invalid"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrOldPasswordInvalid AuditErrorCode = "old_password_mismatch"
	auditErrInputConflict      AuditErrorCode = "input_conflict"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrNoAuthUser         AuditErrorCode = "no_authenticated_user"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, stores.ErrOTPNotFound):
		return auditErrOTPNotFound
	case errors.Is(err, stores.ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, stores.ErrOTPMismatch):
		return auditErrOTPMismatch
	case errors.Is(err, ErrResetTokenExpired):
		return auditErrResetTokenExpired
	case errors.Is(err, ErrResetTokenInvalid):
		return auditErrResetTokenInvalid
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrOldPasswordMismatch):
		return auditErrOldPasswordInvalid
	case errors.Is(err, ErrChangePasswordConflict),
		errors.Is(err, ErrChangePasswordInput):
		return auditErrInputConflict
	case errors.Is(err, ErrTooManyAttempts):
		return auditErrRateLimited
	case errors.Is(err, ErrNoAuthenticatedUser):
		return auditErrNoAuthUser
	default:
		return auditErrInternal
	}
}
