// Package mratelimit implements a fixed-window rate limiter backed by
// Redis, so the cap it enforces holds across every process sharing the
// connection rather than just the calling goroutine.
package mratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultWindow = time.Second

// incrExpirer is the subset of *redis.Client the limiter needs, narrowed
// so a test double can satisfy it without a real connection.
type incrExpirer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Limiter caps how many times a keyed operation may run within a fixed
// window.
type Limiter struct {
	client incrExpirer
	limit  int64
	window time.Duration
}

// NewLimiter wires a Limiter against client, allowing up to limit calls
// per window for any given key. It panics if client is nil or limit is
// not positive. window defaults to one second when zero.
func NewLimiter(client *redis.Client, limit int, window time.Duration) *Limiter {
	if client == nil {
		panic("mratelimit: client must not be nil")
	}

	if limit <= 0 {
		panic("mratelimit: limit must be positive")
	}

	if window == 0 {
		window = defaultWindow
	}

	return &Limiter{client: client, limit: int64(limit), window: window}
}

// Allow increments key's counter for the current window and reports
// whether the caller is still within limit. The increment that opens a
// window also sets its expiry, so an idle key's counter resets on its
// own without a background sweep.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}

	return count <= l.limit, nil
}
