package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByUser returns a middleware that rate limits by user ID over a
// fixed window. Should be applied AFTER the auth middleware; requests
// without claims fall back to IP keying.
func RateLimitByUser(requests int, window time.Duration) func(http.Handler) http.Handler {
	limiter := httprate.NewRateLimiter(
		requests,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			claims := GetUserClaims(r.Context())
			if claims == nil || claims.UserID == "" {
				return httprate.KeyByIP(r)
			}
			return "user:" + claims.UserID, nil
		}),
	)
	return limiter.Handler
}

// RateLimitByIP returns a middleware that rate limits by IP address.
// Used as the global fallback for unauthenticated traffic.
func RateLimitByIP(requests int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
