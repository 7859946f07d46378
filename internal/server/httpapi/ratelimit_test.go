package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCounter) TTL(ctx context.Context, key string) *redis.DurationCmd {
	ttl, ok := f.expires[key]
	if !ok {
		return redis.NewDurationResult(-2, nil)
	}
	return redis.NewDurationResult(ttl, nil)
}

func newLimiter(store ratelimit.Store, limit int, window time.Duration) *ratelimit.Limiter {
	return ratelimit.New(store, limit, window, logging.Discard())
}

func TestRateLimiter_BlocksAfterLimit(t *testing.T) {
	store := newFakeCounter()
	env := newAPIEnv(t, newLimiter(store, 3, 15*time.Minute))

	for i := 0; i < 3; i++ {
		res := env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "3", res.Header.Get("X-RateLimit-Limit"))
	}

	res := env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, res.Code)
	assert.Equal(t, "0", res.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "900", res.Header.Get("Retry-After"))
	assert.Equal(t, 15*time.Minute, store.expires["authkeeper:ratelimit:192.0.2.1"])
}

func TestRateLimiter_OnlyGuardsAPI(t *testing.T) {
	store := newFakeCounter()
	env := newAPIEnv(t, newLimiter(store, 1, time.Minute))

	for i := 0; i < 3; i++ {
		res := env.do(t, http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
	}
	assert.Empty(t, store.counts)
}

func TestRateLimiter_IgnoresForwardedHeadersFromClients(t *testing.T) {
	store := newFakeCounter()
	env := newAPIEnv(t, newLimiter(store, 3, time.Minute))

	blocked := 0
	for i := 0; i < 20; i++ {
		res := env.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{
			"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i),
			"X-Real-IP":       fmt.Sprintf("198.51.100.%d", i),
		})
		if res.Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	assert.Equal(t, 17, blocked)
	assert.Equal(t, map[string]int64{"authkeeper:ratelimit:192.0.2.1": 20}, store.counts)
}

func TestRateLimiter_KeysByClientBehindTrustedProxy(t *testing.T) {
	store := newFakeCounter()
	env := newAPIEnvWithOptions(t, RouterOptions{
		Limiter:        newLimiter(store, 1, time.Minute),
		TrustedProxies: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")},
	})
	const proxy = "10.0.0.5:41000"

	res := env.doFrom(t, proxy, http.MethodGet, "/api/auth/me", nil, map[string]string{"X-Forwarded-For": "203.0.113.9"})
	require.Equal(t, http.StatusOK, res.Code)
	res = env.doFrom(t, proxy, http.MethodGet, "/api/auth/me", nil, map[string]string{"X-Forwarded-For": "203.0.113.10"})
	require.Equal(t, http.StatusOK, res.Code)

	// a client prepending its own hop does not change the key
	res = env.doFrom(t, proxy, http.MethodGet, "/api/auth/me", nil, map[string]string{"X-Forwarded-For": "198.51.100.77, 203.0.113.9"})
	assert.Equal(t, http.StatusTooManyRequests, res.Code)

	assert.Equal(t, int64(2), store.counts["authkeeper:ratelimit:203.0.113.9"])
	assert.Equal(t, int64(1), store.counts["authkeeper:ratelimit:203.0.113.10"])
	assert.NotContains(t, store.counts, "authkeeper:ratelimit:10.0.0.5")
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	store := newFakeCounter()
	store.err = errors.New("connection refused")
	env := newAPIEnv(t, newLimiter(store, 1, time.Minute))

	for i := 0; i < 3; i++ {
		res := env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Empty(t, res.Header.Get("X-RateLimit-Limit"))
	}
}
