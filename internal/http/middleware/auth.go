package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/yava-delivery/orderhub/internal/httputil"
	"github.com/yava-delivery/orderhub/pkg/auth"
)

type contextKey string

const claimsContextKey contextKey = "session_claims"

// RequireSession creates middleware that authenticates requests with a
// Bearer access token and stores the claims on the request context.
func RequireSession(sessions *auth.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := sessions.ValidateToken(token)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the session claims stored by RequireSession.
func ClaimsFromContext(ctx context.Context) (*auth.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.AccessClaims)
	return claims, ok
}
