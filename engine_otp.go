package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mwillfox/authgate/internal"
	"github.com/mwillfox/authgate/internal/stores"
	"github.com/mwillfox/authgate/notify"
)

// CheckOTPThrottle gates an OTP generation request for email. When the
// window still has room it records the attempt and returns zero; the
// hit is recorded on every allowed pass, not only on successful
// generation. When the window is exhausted it returns the remaining
// wait and [ErrTooManyAttempts].
func (e *Engine) CheckOTPThrottle(ctx context.Context, email string) (time.Duration, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotReady
	}

	key := "otp:" + email

	limited, err := e.limiter.TooManyAttempts(ctx, key, e.config.Throttle.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if limited {
		retryAfter, err := e.limiter.AvailableIn(ctx, key)
		if err != nil {
			return 0, err
		}

		e.metricInc(MetricThrottleRejected)
		e.emitAudit(ctx, auditEventThrottleRejected, false, "", email, ErrTooManyAttempts, func() map[string]string {
			return map[string]string{
				"retry_after": retryAfter.String(),
			}
		})
		return retryAfter, ErrTooManyAttempts
	}

	if err := e.limiter.Hit(ctx, key, e.config.Throttle.Decay); err != nil {
		return 0, err
	}
	return 0, nil
}

// GenerateOTP creates a fresh one-time code for email, stores it
// (replacing any live code), and queues the notification. Delivery is
// asynchronous: its failure never surfaces here.
func (e *Engine) GenerateOTP(ctx context.Context, email string) error {
	if e == nil || e.userProvider == nil || e.otpStore == nil {
		return ErrEngineNotReady
	}

	if _, err := e.userProvider.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventOTPGenerated, false, "", email, ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return err
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	now := e.now()
	record := &stores.OTPRecord{
		Code:      code,
		ExpiresAt: now.Add(e.config.OTP.Validity).Unix(),
	}
	if err := e.otpStore.Save(ctx, email, record, now); err != nil {
		return err
	}

	if e.notifier != nil {
		e.notifier.Dispatch(ctx, notify.OTPMessage{
			Email:    email,
			Code:     code,
			Validity: e.config.OTP.Validity,
		})
	}

	e.metricInc(MetricOTPGenerated)
	e.emitAudit(ctx, auditEventOTPGenerated, true, "", email, nil, nil)

	return nil
}

// VerifyOTP checks code against the stored OTP for email. The stored
// record is spent on every outcome: success, mismatch, and expiry all
// remove it, and a trailing delete backstops paths that never reached
// the store. All verification failures collapse into [ErrOTPInvalid];
// the precise reason is kept in the wrapped message, the counters, and
// the audit stream.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) error {
	if e == nil || e.userProvider == nil || e.otpStore == nil {
		return ErrEngineNotReady
	}

	// The record must not survive this call regardless of outcome.
	defer func() {
		_ = e.otpStore.Delete(ctx, email)
	}()

	if _, err := e.userProvider.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", email, ErrUserNotFound, nil)
			return ErrUserNotFound
		}
		return err
	}

	_, err := e.otpStore.Consume(ctx, email, code, e.now())
	if err != nil {
		var reason string
		switch {
		case errors.Is(err, stores.ErrOTPNotFound):
			e.metricInc(MetricOTPVerifyNotFound)
			reason = "not_found"
		case errors.Is(err, stores.ErrOTPExpired):
			e.metricInc(MetricOTPVerifyExpired)
			reason = "expired"
		case errors.Is(err, stores.ErrOTPMismatch):
			e.metricInc(MetricOTPVerifyMismatch)
			reason = "mismatch"
		default:
			return err
		}

		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", email, err, func() map[string]string {
			return map[string]string{
				"reason": reason,
			}
		})
		return fmt.Errorf("%w: %s", ErrOTPInvalid, reason)
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, "", email, nil, nil)

	return nil
}
