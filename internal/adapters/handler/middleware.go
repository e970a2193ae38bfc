package handler

import (
	"context"
	"net/http"
	"strings"

	"support-chat/internal/core/domain"
	"support-chat/internal/core/services"
)

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the authenticated session attached by Authenticate.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*domain.Session)
	return session, ok
}

// bearerToken extracts the session token from the Authorization header, with
// a query-parameter fallback for clients that cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Authenticate validates the session token and attaches the session to the
// request context. Validation refreshes the session's inactivity window.
func Authenticate(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, domain.E(domain.KindAuthRequired, "missing session token"))
				return
			}

			session, err := auth.ValidateSession(r.Context(), token)
			if err != nil {
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose session role ranks below required.
func RequireRole(required domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				writeError(w, domain.E(domain.KindAuthRequired, "not authenticated"))
				return
			}
			if !session.Role.AtLeast(required) {
				writeError(w, domain.E(domain.KindForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
