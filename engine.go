package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/mwillfox/authgate/internal/rate"
	"github.com/mwillfox/authgate/internal/stores"
	"github.com/mwillfox/authgate/notify"
	"github.com/mwillfox/authgate/password"
	"github.com/mwillfox/authgate/token"
)

// Engine orchestrates login, OTP confirmation, and password changes.
// Construct it through [Builder]; a built Engine is immutable and safe
// for concurrent use.
type Engine struct {
	config       Config
	userProvider UserProvider
	tokens       token.Issuer
	hasher       *password.Argon2
	otpStore     *stores.OTPStore
	resetStore   *stores.ResetTokenStore
	limiter      *rate.Limiter
	notifier     *notify.Dispatcher
	audit        *auditDispatcher
	metrics      *Metrics

	// now is swapped by tests to pin expiry arithmetic.
	now func() time.Time
}

// Close drains and stops the background dispatchers. The engine must
// not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notifier != nil {
		e.notifier.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded because the queue was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// NotifyDropped reports OTP notifications discarded because the queue
// was full.
func (e *Engine) NotifyDropped() uint64 {
	if e == nil || e.notifier == nil {
		return 0
	}
	return e.notifier.Dropped()
}

// MetricsSnapshot returns a copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// Limiter exposes the engine's rate limiter for transport middleware.
func (e *Engine) Limiter() *rate.Limiter {
	if e == nil {
		return nil
	}
	return e.limiter
}

// ThrottleConfig returns the configured OTP throttle parameters.
func (e *Engine) ThrottleConfig() ThrottleConfig {
	if e == nil {
		return ThrottleConfig{}
	}
	return e.config.Throttle
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// VerifyUserByEmail reports whether a user exists for email. It has no
// side effects; backend failures other than not-found are returned.
func (e *Engine) VerifyUserByEmail(ctx context.Context, email string) (bool, error) {
	if e == nil || e.userProvider == nil {
		return false, ErrEngineNotReady
	}

	_, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Login checks the credentials and issues a new bearer token. Unknown
// email or wrong password both return an empty token with a nil error;
// only backend failures surface as errors. Earlier tokens of the user
// stay live.
func (e *Engine) Login(ctx context.Context, email, pass string) (string, error) {
	if e == nil || e.userProvider == nil || e.hasher == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}

	user, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrUserNotFound, func() map[string]string {
				return map[string]string{
					"reason": "user_not_found",
				}
			})
			return "", nil
		}
		return "", err
	}

	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, email, nil, func() map[string]string {
			return map[string]string{
				"reason": "password_mismatch",
			}
		})
		return "", nil
	}

	issued, err := e.tokens.Issue(ctx, user.UserID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID, email, err, func() map[string]string {
			return map[string]string{
				"reason": "token_issue_failed",
			}
		})
		return "", err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, email, nil, nil)

	return issued, nil
}

// Logout revokes every live bearer token of the context-authenticated
// user. The user must have been attached with [WithAuthenticatedUser].
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	userID := AuthenticatedUserFromContext(ctx)
	if userID == "" {
		e.emitAudit(ctx, auditEventLogout, false, "", "", ErrNoAuthenticatedUser, nil)
		return ErrNoAuthenticatedUser
	}

	if err := e.tokens.RevokeAll(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventLogout, false, userID, "", err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, "", nil, nil)
	return nil
}
