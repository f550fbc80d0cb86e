package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	require.NoError(t, c.Del(ctx, "k"))
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_GetMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	_, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	key := AccountWindowKey("acme", time.Now())

	for i := int64(1); i <= 3; i++ {
		allowed, n, err := rl.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		require.True(t, allowed)
		require.Equal(t, i, n)
	}

	allowed, n, err := rl.Allow(ctx, key, 3, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, int64(4), n)
}

func TestAccountWindowKey_MinuteWindow(t *testing.T) {
	at := time.Date(2026, 8, 29, 12, 30, 45, 0, time.UTC)
	require.Equal(t, "rl:marketplace:acme:202608291230", AccountWindowKey("acme", at))
	// в пределах минуты ключ стабилен
	require.Equal(t, AccountWindowKey("acme", at), AccountWindowKey("acme", at.Add(10*time.Second)))
}
