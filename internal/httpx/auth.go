package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/William6892/barcodeverify-backend/internal/users"
)

// TokenVerifier resolves a bearer token to an identity. *users.Service is
// the production implementation.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (users.Identity, error)
}

type ctxKey int

const identityKey ctxKey = 1

// CallerIdentity pulls the authenticated identity out of the request
// context. The zero value means the middleware did not run.
func CallerIdentity(r *http.Request) users.Identity {
	id, _ := r.Context().Value(identityKey).(users.Identity)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth rejects requests without a valid session token and stashes the
// caller's identity in the context for handlers downstream.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				respondError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// RequireAdmin sits behind RequireAuth and gates admin-only routes.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !CallerIdentity(r).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
