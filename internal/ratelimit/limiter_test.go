package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technosupport/ts-vms-es/internal/ratelimit"
)

func newLimiter(t *testing.T) (*ratelimit.Limiter, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return ratelimit.NewLimiter(rdb, "salt"), mr
}

func TestAllow_WindowExhaustsAndResets(t *testing.T) {
	l, mr := newLimiter(t)
	ctx := context.Background()
	cfg := ratelimit.LimitConfig{Rate: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "rl:ip:a", cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "rl:ip:a", cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
	assert.InDelta(t, 60, d.RetryAfter, 1)

	// Other keys have their own window.
	d, err = l.Allow(ctx, "rl:ip:b", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	mr.FastForward(61 * time.Second)
	d, err = l.Allow(ctx, "rl:ip:a", cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_DisabledConfig(t *testing.T) {
	l, _ := newLimiter(t)
	d, err := l.Allow(context.Background(), "k", ratelimit.LimitConfig{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestAllow_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := ratelimit.NewLimiter(rdb, "")
	_, err = l.Allow(context.Background(), "k", ratelimit.LimitConfig{Rate: 1, Window: time.Second})
	assert.ErrorIs(t, err, ratelimit.ErrRedisUnavailable)
}

func TestHashIP(t *testing.T) {
	l, _ := newLimiter(t)
	assert.Equal(t, l.HashIP("10.0.0.1"), l.HashIP("10.0.0.1"))
	assert.NotEqual(t, l.HashIP("10.0.0.1"), l.HashIP("10.0.0.2"))
	assert.NotContains(t, l.HashIP("10.0.0.1"), "10.0.0.1")
}
