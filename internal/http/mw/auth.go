// Package mw contains HTTP middleware for the factcheck-api.
package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Jhoseto/factcheck-api/internal/auth"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserClaimsKey is the context key for user claims.
	UserClaimsKey ContextKey = "user_claims"
)

// UserClaims represents the authenticated user attached to a request.
type UserClaims struct {
	UserID string
	Email  string
	Name   string
}

// GetUserClaims extracts user claims from context. Returns nil when the
// request did not pass through the auth middleware.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, _ := ctx.Value(UserClaimsKey).(*UserClaims)
	return claims
}

// Auth returns a middleware that requires a valid bearer token and puts
// the resulting UserClaims into the request context.
func Auth(verifier *auth.Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("token validation failed", "error", err)
				writeUnauthorized(w, "invalid token")
				return
			}

			uc := &UserClaims{
				UserID: claims.UserID(),
				Email:  claims.Email,
				Name:   claims.Name,
			}
			ctx := context.WithValue(r.Context(), UserClaimsKey, uc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return h
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
