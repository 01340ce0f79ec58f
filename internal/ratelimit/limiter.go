// Package ratelimit provides the fixed-window login limiter. This is a plain
// counter with time-based expiry, not a sliding window; precision at window
// boundaries is best-effort.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// FallbackKey is used when no client key (IP) is available.
const FallbackKey = "global"

// FixedWindow counts hits per key in Redis. INCR keeps concurrent
// check-and-increment atomic for the same key.
type FixedWindow struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewFixedWindow constructs a limiter allowing limit hits per window.
func NewFixedWindow(client *redis.Client, limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &FixedWindow{client: client, limit: int64(limit), window: window, prefix: "ratelimit:"}
}

// Allow records one hit for key and reports whether it is within the ceiling.
// The first hit of a window starts its expiry clock. Redis failures allow the
// request rather than locking every caller out.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	if key == "" {
		key = FallbackKey
	}
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= l.limit, nil
}

// Window exposes the configured interval for error messages.
func (l *FixedWindow) Window() time.Duration {
	return l.window
}
