package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiterSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	now := time.Unix(1700000000, 0)
	limiter := RedisLimiter{Client: client, Prefix: "test:", Now: func() time.Time { return now }}

	ctx := context.Background()
	window := 2 * time.Second
	max := 2

	for i := 0; i < max; i++ {
		allowed, remaining, _, err := limiter.Allow(ctx, "key", window, max)
		require.NoError(t, err)
		require.True(t, allowed, "request %d", i)
		require.Equal(t, max-(i+1), remaining)
	}

	allowed, remaining, reset, err := limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.False(t, allowed, "third request should be rejected")
	require.Equal(t, 0, remaining)
	require.Equal(t, now.Add(window), reset)

	now = now.Add(window + time.Millisecond)

	allowed, _, _, err = limiter.Allow(ctx, "key", window, max)
	require.NoError(t, err)
	require.True(t, allowed, "events older than the window no longer count")
}

func TestStoreLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	limiter, err := NewRedisStoreLimiter(client, "quote")
	require.NoError(t, err)

	ctx := context.Background()
	allowed, remaining, _, err := limiter.Allow(ctx, "k", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, _, _, err = limiter.Allow(ctx, "k", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestLimitersAllowWhenUnconfigured(t *testing.T) {
	ctx := context.Background()
	allowed, _, _, err := RedisLimiter{}.Allow(ctx, "k", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, _, err = StoreLimiter{}.Allow(ctx, "k", time.Second, 1)
	require.NoError(t, err)
	require.True(t, allowed)
}
