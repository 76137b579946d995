package middleware

import (
	"net/http"
	"strings"

	authgate "github.com/mwillfox/authgate"
	"github.com/mwillfox/authgate/token"
)

// Authenticate resolves the Authorization bearer token through validator
// and attaches the owning user to the request context via
// [authgate.WithAuthenticatedUser]. Requests without a valid token get
// 401 and the wrapped handler never runs.
func Authenticate(validator token.Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			bearer, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := validator.Validate(r.Context(), bearer)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := authgate.WithAuthenticatedUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}
