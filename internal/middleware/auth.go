package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const UserKey contextKey = "user_id"

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// JWTAuth validates the bearer token from the Authorization header and
// stores the user id in the request context.
func JWTAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization format, use 'Bearer <token>'")
				return
			}

			userID, err := verifier.VerifyToken(parts[1])
			if err != nil || userID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}

			if slot, ok := r.Context().Value(logUserKey).(*logUser); ok {
				slot.id = userID
			}
			ctx := context.WithValue(r.Context(), UserKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext extracts the authenticated user id from context
func GetUserFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(UserKey).(string); ok {
		return id
	}
	return ""
}

// WithUser returns a context carrying userID, as JWTAuth would.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserKey, userID)
}

// writeError writes the API's JSON error body.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
