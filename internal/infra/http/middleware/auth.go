package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

// ActorKey carries the authenticated caller identity (agent or operator id)
// through the request context.
const ActorKey contextKey = "actor"

// BearerAuth rejects requests that do not carry the shared service token.
// The X-Actor-Id header, when present, identifies the human or agent behind
// the service call for audit fields.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			ctx := r.Context()
			if actor := r.Header.Get("X-Actor-Id"); actor != "" {
				ctx = context.WithValue(ctx, ActorKey, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Actor returns the caller identity recorded by BearerAuth, or "" when the
// request carried none.
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(ActorKey).(string)
	return actor
}
