package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authgate "github.com/mwillfox/authgate"
)

type staticProvider struct{}

func (staticProvider) GetUserByEmail(_ context.Context, email string) (authgate.UserRecord, error) {
	return authgate.UserRecord{UserID: "u1", Email: email, PasswordHash: ""}, nil
}

func (staticProvider) UpdatePassword(context.Context, string, string) error {
	return nil
}

func newTestEngine(t *testing.T) (*authgate.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := authgate.New().
		WithConfig(authgate.Config{
			Password: authgate.PasswordConfig{
				Memory:      8 * 1024,
				Time:        1,
				Parallelism: 1,
				SaltLength:  16,
				KeyLength:   16,
			},
		}).
		WithRedis(client).
		WithUserProvider(staticProvider{}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return engine, mr
}

func emailFromQuery(r *http.Request) string {
	return r.URL.Query().Get("email")
}

func TestThrottleOTPAllowsFirstRequest(t *testing.T) {
	engine, _ := newTestEngine(t)

	called := 0
	handler := ThrottleOTP(engine, emailFromQuery)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/otp/generate?email=user@example.com", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, called)
}

func TestThrottleOTPRejectsSecondRequest(t *testing.T) {
	engine, _ := newTestEngine(t)

	called := 0
	handler := ThrottleOTP(engine, emailFromQuery)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	req := httptest.NewRequest(http.MethodPost, "/otp/generate?email=user@example.com", nil)

	handler.ServeHTTP(httptest.NewRecorder(), req)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1, called, "handler must not run on rejection")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body throttleRejection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "otp_rate_limited", body.Reason)
	assert.Greater(t, body.RetryAfter, 0)
	assert.LessOrEqual(t, body.RetryAfter, 60)
}

func TestThrottleOTPIndependentEmails(t *testing.T) {
	engine, _ := newTestEngine(t)

	handler := ThrottleOTP(engine, emailFromQuery)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/otp/generate?email=a@example.com", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/otp/generate?email=b@example.com", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
}

func TestThrottleOTPWindowDecays(t *testing.T) {
	engine, mr := newTestEngine(t)

	handler := ThrottleOTP(engine, emailFromQuery)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/otp/generate?email=user@example.com", nil)

	handler.ServeHTTP(httptest.NewRecorder(), req)

	blocked := httptest.NewRecorder()
	handler.ServeHTTP(blocked, req)
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)

	mr.FastForward(61 * time.Second)

	allowed := httptest.NewRecorder()
	handler.ServeHTTP(allowed, req)
	assert.Equal(t, http.StatusOK, allowed.Code)
}

func TestThrottleOTPEmptyKeyPassesThrough(t *testing.T) {
	engine, _ := newTestEngine(t)

	called := 0
	handler := ThrottleOTP(engine, emailFromQuery)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))

	// No email in the request: the gate defers to downstream validation.
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/otp/generate", nil))
	}
	assert.Equal(t, 3, called)
}
