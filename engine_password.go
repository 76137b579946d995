package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/mwillfox/authgate/internal"
	"github.com/mwillfox/authgate/internal/stores"
)

// ResetPasswordToken mints a random password-reset token for email and
// caches its hash. A ttl <= 0 falls back to the configured default. No
// user existence check happens here: the token is only usable through
// ChangePassword, which does check.
func (e *Engine) ResetPasswordToken(ctx context.Context, email string, ttl time.Duration) (string, error) {
	if e == nil || e.resetStore == nil {
		return "", ErrEngineNotReady
	}

	if ttl <= 0 {
		ttl = e.config.ResetToken.TTL
	}

	tok, err := internal.NewResetToken(e.config.ResetToken.Length)
	if err != nil {
		return "", err
	}

	if err := e.resetStore.Put(ctx, email, internal.HashSecret([]byte(tok)), ttl); err != nil {
		return "", err
	}

	e.metricInc(MetricResetTokenIssued)
	e.emitAudit(ctx, auditEventResetTokenIssued, true, "", email, nil, nil)

	return tok, nil
}

// ChangePassword sets a new password for the user behind email.
// Authorization comes from exactly one of opts.OldPassword and
// opts.ResetToken; supplying both or neither is rejected before any
// backend work. On success every bearer token of the user is revoked.
func (e *Engine) ChangePassword(ctx context.Context, email, newPassword string, opts ChangePasswordOptions) error {
	if e == nil || e.userProvider == nil || e.hasher == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}

	hasOld := opts.OldPassword != ""
	hasToken := opts.ResetToken != ""
	switch {
	case hasOld && hasToken:
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", email, ErrChangePasswordConflict, nil)
		return ErrChangePasswordConflict
	case !hasOld && !hasToken:
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", email, ErrChangePasswordInput, nil)
		return ErrChangePasswordInput
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, "", email, ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return err
	}

	if hasOld {
		if err := e.changeWithOldPassword(ctx, user, newPassword, opts.OldPassword); err != nil {
			return err
		}
	} else {
		if err := e.changeWithResetToken(ctx, user, newPassword, opts.ResetToken); err != nil {
			return err
		}
	}

	if e.tokens != nil {
		// Best effort: a password change should not strand the caller on a
		// token-store hiccup after the credential is already rotated.
		_ = e.tokens.RevokeAll(ctx, user.UserID)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, user.UserID, email, nil, nil)

	return nil
}

func (e *Engine) changeWithOldPassword(ctx context.Context, user UserRecord, newPassword, oldPassword string) error {
	if oldPassword == newPassword {
		e.metricInc(MetricPasswordChangeReuseRejected)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.UserID, user.Email, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.UserID, user.Email, ErrOldPasswordMismatch, nil)
		return ErrOldPasswordMismatch
	}

	return e.userProvider.UpdatePassword(ctx, user.UserID, newPassword)
}

func (e *Engine) changeWithResetToken(ctx context.Context, user UserRecord, newPassword, resetToken string) error {
	match, err := e.resetStore.Match(ctx, user.Email, internal.HashSecret([]byte(resetToken)))
	if err != nil {
		if errors.Is(err, stores.ErrResetTokenNotFound) {
			e.metricInc(MetricPasswordChangeTokenExpired)
			e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.UserID, user.Email, ErrResetTokenExpired, nil)
			return ErrResetTokenExpired
		}
		return err
	}
	if !match {
		e.metricInc(MetricPasswordChangeTokenInvalid)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, user.UserID, user.Email, ErrResetTokenInvalid, nil)
		return ErrResetTokenInvalid
	}

	if err := e.userProvider.UpdatePassword(ctx, user.UserID, newPassword); err != nil {
		return err
	}

	// Spent tokens do not linger until TTL.
	_ = e.resetStore.Delete(ctx, user.Email)

	return nil
}
