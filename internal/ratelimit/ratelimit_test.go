package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func fixedClock(l *Limiter, at time.Time) *time.Time {
	clock := at
	l.now = func() time.Time { return clock }
	return &clock
}

func TestAllowDeniesAfterBurst(t *testing.T) {
	t.Parallel()

	limiter := New(newMiniRedis(t), "test", 1, 3)
	fixedClock(limiter, time.UnixMilli(1_000_000))
	ctx := context.Background()

	for i := range 3 {
		allowed, _, err := limiter.Allow(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, wait, err := limiter.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Second, wait)
}

func TestAllowRefillsOverTime(t *testing.T) {
	t.Parallel()

	limiter := New(newMiniRedis(t), "test", 2, 1)
	clock := fixedClock(limiter, time.UnixMilli(1_000_000))
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, allowed)

	*clock = clock.Add(500 * time.Millisecond)
	allowed, _, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowKeysAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := New(newMiniRedis(t), "", 1, 1)
	fixedClock(limiter, time.UnixMilli(1_000_000))
	ctx := context.Background()

	allowed, _, err := limiter.Allow(ctx, "a")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = limiter.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	t.Parallel()

	var nilLimiter *Limiter
	allowed, _, err := nilLimiter.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = New(nil, "", 0, 0).Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowReportsRedisErrors(t *testing.T) {
	t.Parallel()

	s, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s.Close()

	_, _, err = New(rdb, "", 1, 1).Allow(context.Background(), "k")
	assert.Error(t, err)
}
