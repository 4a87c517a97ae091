package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/solpipe/solana-relay/store"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	kv, err := store.Connect(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer kv.Close()

	_, err = kv.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Set(ctx, "relay:tx:abc", []byte(`{"slot":1}`), 30*time.Second))
	val, err := kv.Get(ctx, "relay:tx:abc")
	require.NoError(t, err)
	require.Equal(t, `{"slot":1}`, string(val))

	mr.FastForward(31 * time.Second)
	_, err = kv.Get(ctx, "relay:tx:abc")
	require.ErrorIs(t, err, store.ErrNotFound)

	wrote, err := kv.SetNX(ctx, "relay:tx:def", []byte("first"), 30*time.Second)
	require.NoError(t, err)
	require.True(t, wrote)
	wrote, err = kv.SetNX(ctx, "relay:tx:def", []byte("second"), 30*time.Second)
	require.NoError(t, err)
	require.False(t, wrote)
	val, err = kv.Get(ctx, "relay:tx:def")
	require.NoError(t, err)
	require.Equal(t, "first", string(val))

	n, err := kv.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = kv.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	require.NoError(t, kv.Expire(ctx, "counter", time.Minute))
	require.Equal(t, time.Minute, mr.TTL("counter"))
}

func TestConnectBadUrl(t *testing.T) {
	_, err := store.Connect(context.Background(), "not a url")
	require.Error(t, err)
}
