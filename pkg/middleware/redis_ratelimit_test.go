package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDistributedLimiter(t *testing.T, config RateLimitConfig) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedRateLimiter(client, config, ""), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := setupDistributedLimiter(t, RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute, BurstSize: 1})

	var decisions []Decision
	for i := 0; i < 5; i++ {
		d, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		decisions = append(decisions, d)
	}

	for i, d := range decisions[:4] {
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 3, d.Limit)
	}
	assert.Equal(t, 3, decisions[0].Remaining)
	assert.False(t, decisions[4].Allowed)
	assert.Equal(t, 0, decisions[4].Remaining)
	assert.WithinDuration(t, time.Now().Add(time.Minute), decisions[4].Reset, 2*time.Second)

	assert.True(t, mr.Exists("matsecom:ratelimit:ip:10.0.0.1"))
	assert.Equal(t, time.Minute, mr.TTL("matsecom:ratelimit:ip:10.0.0.1"))

	d, err := limiter.Allow(ctx, "ip:10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other keys have their own window")

	mr.FastForward(time.Minute + time.Second)
	d, err = limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "a new window starts after expiry")
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	limiter, _ := setupDistributedLimiter(t, RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})

	d, _ := limiter.Allow(ctx, "k")
	require.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "k")
	require.False(t, d.Allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))
	d, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := setupDistributedLimiter(t, RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to count request")
}
