package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/itechmeat/jeex/pkg/kv"
	"github.com/itechmeat/jeex/pkg/ratelimit"
)

func newTestLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return ratelimit.New(kv.NewFromRedisClient(rdb))
}

func TestCheck_AllowsUnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := l.Check(ctx, "tenant-a:login", 3, time.Minute)
		require.True(t, res.Allowed)
		require.False(t, res.Degraded)
	}
}

func TestCheck_RejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := l.Check(ctx, "tenant-a:login", 3, time.Minute)
		require.True(t, res.Allowed)
	}

	res := l.Check(ctx, "tenant-a:login", 3, time.Minute)
	require.False(t, res.Allowed)
	require.Equal(t, int64(0), res.Remaining)
	require.True(t, res.ResetAt.After(time.Now()))
}

func TestCheck_WindowSlidesOut(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	res := l.Check(ctx, "tenant-a:login", 1, time.Second)
	require.True(t, res.Allowed)

	rejected := l.Check(ctx, "tenant-a:login", 1, time.Second)
	require.False(t, rejected.Allowed)

	time.Sleep(1100 * time.Millisecond)

	res = l.Check(ctx, "tenant-a:login", 1, time.Second)
	require.True(t, res.Allowed)
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	res := l.Check(ctx, "tenant-a:login", 1, time.Minute)
	require.True(t, res.Allowed)

	res = l.Check(ctx, "tenant-b:login", 1, time.Minute)
	require.True(t, res.Allowed, "distinct keys must not share a bucket")
}
