package auth

import (
	"context"
	"net/http"
)

type contextKey string

// IdentityContextKey stores the resolved user id in the request context.
const IdentityContextKey contextKey = "user_id"

// Middleware rejects unidentified requests with 401 and stores the identity
// for downstream handlers.
func Middleware(r *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// [PRE_AUTH] validate identity before reaching the handler
			userID, err := r.Identify(req)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			// [ENRICHMENT]
			next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), userID)))
		})
	}
}

func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, IdentityContextKey, userID)
}

// GetIdentity is a helper to extract the identity from context safely.
func GetIdentity(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(IdentityContextKey).(string)
	return userID, ok && userID != ""
}
