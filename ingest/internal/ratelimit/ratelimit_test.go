package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "WS-01")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.NoError(t, limiter.Close())
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter(context.Background(), "://bad", 10, time.Minute)
	assert.Error(t, err)
}

func TestNewRedisRateLimiter_Unreachable(t *testing.T) {
	mr := setupTestRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisRateLimiter(context.Background(), "redis://"+addr, 10, time.Minute)
	assert.Error(t, err)
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	mr := setupTestRedis(t)
	ctx := context.Background()

	limiter, err := NewRedisRateLimiter(ctx, "redis://"+mr.Addr(), 3, time.Minute)
	require.NoError(t, err)
	defer limiter.Close()

	rl := limiter.(*redisRateLimiter)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "WS-01")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := limiter.Allow(ctx, "WS-01")
	require.NoError(t, err)
	assert.False(t, allowed, "fourth request inside the window should be limited")

	// Keys are independent.
	allowed, err = limiter.Allow(ctx, "WS-02")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Once the window slides past the earlier entries, requests pass again.
	clock = clock.Add(2 * time.Minute)
	allowed, err = limiter.Allow(ctx, "WS-01")
	require.NoError(t, err)
	assert.True(t, allowed)
}
