package ratelimit_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/solpipe/solana-relay/ratelimit"
	"github.com/solpipe/solana-relay/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, store.KV) {
	mr := miniredis.RunT(t)
	kv, err := store.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return mr, kv
}

func TestHourlyLimitPerEntity(t *testing.T) {
	_, kv := setup(t)
	ctx := context.Background()
	limiter := ratelimit.New(kv, ratelimit.Config{Prefix: "test", Hourly: 1, Daily: 100, Weekly: 1000})

	r, err := limiter.CheckLimit(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.True(t, r.Allowed)

	r, err = limiter.CheckLimit(ctx, "1.1.1.1")
	require.NoError(t, err)
	assert.False(t, r.Allowed)
	assert.True(t, r.HourLimitReached)
	assert.False(t, r.DayLimitReached)
	assert.False(t, r.WeekLimitReached)

	// another ip has its own budget
	r, err = limiter.CheckLimit(ctx, "2.2.2.2")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestExpirySetOnce(t *testing.T) {
	mr, kv := setup(t)
	ctx := context.Background()
	limiter := ratelimit.New(kv, ratelimit.Config{Prefix: "exp", Hourly: 5, Daily: 5, Weekly: 5})

	_, err := limiter.CheckLimit(ctx, "wallet")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.HOUR, mr.TTL("exp:wallet:hour"))
	assert.Equal(t, ratelimit.DAY, mr.TTL("exp:wallet:day"))
	assert.Equal(t, ratelimit.WEEK, mr.TTL("exp:wallet:week"))

	mr.FastForward(ratelimit.HOUR / 2)
	_, err = limiter.CheckLimit(ctx, "wallet")
	require.NoError(t, err)
	// the second hit inside the window does not extend it
	assert.Equal(t, ratelimit.HOUR/2, mr.TTL("exp:wallet:hour"))
}

func TestFixedWindowResets(t *testing.T) {
	mr, kv := setup(t)
	ctx := context.Background()
	limiter := ratelimit.New(kv, ratelimit.Config{Prefix: "win", Hourly: 1, Daily: 10, Weekly: 10})

	r, err := limiter.CheckLimit(ctx, "a")
	require.NoError(t, err)
	require.True(t, r.Allowed)
	r, err = limiter.CheckLimit(ctx, "a")
	require.NoError(t, err)
	require.False(t, r.Allowed)

	mr.FastForward(ratelimit.HOUR + 1)
	r, err = limiter.CheckLimit(ctx, "a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestSetLimits(t *testing.T) {
	_, kv := setup(t)
	ctx := context.Background()
	limiter := ratelimit.New(kv, ratelimit.Config{Prefix: "set", Hourly: 1, Daily: 1, Weekly: 1})

	_, err := limiter.CheckLimit(ctx, "a")
	require.NoError(t, err)
	limiter.SetLimits(10, 10, 10)
	r, err := limiter.CheckLimit(ctx, "a")
	require.NoError(t, err)
	assert.True(t, r.Allowed)
}

func TestCompositeAnyExhausted(t *testing.T) {
	_, kv := setup(t)
	ctx := context.Background()
	perIp := ratelimit.New(kv, ratelimit.Config{Prefix: "ip", Hourly: 10, Daily: 2, Weekly: 100})
	perResource := ratelimit.New(kv, ratelimit.Config{Prefix: "ip-resource", Hourly: 10, Daily: 100, Weekly: 100})

	ip := "3.3.3.3"
	checkAll := func(resource string) ratelimit.Result {
		r, err := ratelimit.Compose(
			ratelimit.Check{Limiter: perIp, Entity: ip},
			ratelimit.Check{Limiter: perResource, Entity: ip + ":" + resource},
		).CheckLimit(ctx)
		require.NoError(t, err)
		return r
	}

	assert.True(t, checkAll("track1").Allowed)
	assert.True(t, checkAll("track2").Allowed)
	r := checkAll("track3")
	assert.False(t, r.Allowed)
	assert.True(t, r.DayLimitReached)
	assert.False(t, r.HourLimitReached)
}
