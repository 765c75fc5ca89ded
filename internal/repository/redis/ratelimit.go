package redis

import (
	"context"
	"fmt"
	"time"
)

const rateLimitPrefix = "reframe:ratelimit:"

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed one-minute window counter per key
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
	now               func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
		now:               time.Now,
	}
}

// Allow counts one request against key
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.now()
	windowStart := now.Truncate(time.Minute)
	fullKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())

	pipe := r.client.rdb.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	limit := r.requestsPerMinute + r.burst
	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   windowStart.Add(time.Minute),
	}, nil
}

// Reset clears the current window for key
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	windowStart := r.now().Truncate(time.Minute)
	fullKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, windowStart.Unix())
	return r.client.rdb.Del(ctx, fullKey).Err()
}
