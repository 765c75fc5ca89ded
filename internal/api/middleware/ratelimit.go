package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/api/response"
	"github.com/Rrens/reframe-journal/internal/repository/redis"
)

// Limiter decides whether a keyed request may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimitMiddleware limits requests per authenticated user
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware. A nil limiter
// lets every request through.
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting based on user ID
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		userID, ok := GetUserID(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		decision, err := m.limiter.Allow(r.Context(), userID.String())
		if err != nil {
			// fail open
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", decision.ResetAt.UTC().Format(time.RFC3339))

		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(decision.ResetAt).Seconds())+1))
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
