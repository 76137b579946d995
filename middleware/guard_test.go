package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authgate "github.com/mwillfox/authgate"
	"github.com/mwillfox/authgate/token"
)

func newTestIssuer(t *testing.T) *token.OpaqueIssuer {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return token.NewOpaqueIssuer(client, "", time.Hour)
}

func TestAuthenticateAttachesUser(t *testing.T) {
	issuer := newTestIssuer(t)
	bearer, err := issuer.Issue(context.Background(), "u1")
	require.NoError(t, err)

	var seenUser string
	handler := Authenticate(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = authgate.AuthenticatedUserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", seenUser)
}

func TestAuthenticateRejectsBadHeaders(t *testing.T) {
	issuer := newTestIssuer(t)

	handler := Authenticate(issuer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{
		"",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"Bearer not-a-real-token",
	} {
		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
