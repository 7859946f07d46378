// Package ratelimit implements a fixed-window request counter kept in Redis
// and shared by the HTTP and gRPC surfaces.
package ratelimit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/redis/go-redis/v9"
)

// Prefix namespaces every counter key.
const Prefix = "authkeeper:ratelimit"

// Store is the subset of redis.Cmdable the limiter needs.
type Store interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// noExpiry is what TTL reports for a key that exists without an expiration.
const noExpiry = time.Duration(-1)

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	log    logging.Logger
}

// Result describes the state of one counter after a request was counted.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

func New(store Store, limit int, window time.Duration, log logging.Logger) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, log: log.With("module", "ratelimit")}
}

// Allow counts one request against key. A store error is returned with an
// allowing Result so callers can let the request through.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	key = Prefix + ":" + key

	count, err := l.store.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn(ctx, "rate limit store unavailable", "error", err)
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	var ttl time.Duration
	if count == 1 {
		l.expire(ctx, key)
		ttl = l.window
	} else {
		ttl, err = l.store.TTL(ctx, key).Result()
		switch {
		case err != nil:
			ttl = l.window
		case ttl == noExpiry:
			// an earlier Expire was lost; without this the key never resets
			l.expire(ctx, key)
			ttl = l.window
		case ttl < 0:
			ttl = l.window
		}
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     ttl,
	}, nil
}

func (l *Limiter) expire(ctx context.Context, key string) {
	if err := l.store.Expire(ctx, key, l.window).Err(); err != nil {
		l.log.Warn(ctx, "rate limit expiry not set", "key", key, "error", err)
	}
}
