package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	authgate "github.com/mwillfox/authgate"
)

// KeyFunc extracts the throttle key (the requester's email) from the
// request. Returning "" lets the request through ungated, for callers
// that validate the body downstream.
type KeyFunc func(r *http.Request) string

type throttleRejection struct {
	Message    string `json:"message"`
	Reason     string `json:"reason"`
	RetryAfter int    `json:"retryAfter"`
}

// ThrottleOTP gates OTP generation per email. When the window is
// exhausted it answers 429 with a JSON body carrying the wait in
// seconds and never invokes the wrapped handler. When the request is
// allowed the attempt is recorded unconditionally before the handler
// runs, so abandoned or failing requests still consume the window.
func ThrottleOTP(engine *authgate.Engine, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			email := key(r)
			if email == "" {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter, err := engine.CheckOTPThrottle(r.Context(), email)
			if err != nil {
				if errors.Is(err, authgate.ErrTooManyAttempts) {
					seconds := int(retryAfter / time.Second)
					if retryAfter%time.Second != 0 {
						seconds++
					}

					w.Header().Set("Retry-After", strconv.Itoa(seconds))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusTooManyRequests)
					_ = json.NewEncoder(w).Encode(throttleRejection{
						Message:    "Too many OTP requests. Please wait before retrying.",
						Reason:     "otp_rate_limited",
						RetryAfter: seconds,
					})
					return
				}

				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
