package peer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	sgo "github.com/gagliardetto/solana-go"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/store"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T) *peer.Signer {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return peer.CreateSigner(key)
}

func newCache(t *testing.T) (*miniredis.Miniredis, peer.Cache) {
	mr := miniredis.RunT(t)
	kv, err := store.Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return mr, peer.CreateCache(kv)
}

func record(sig sgo.Signature) []byte {
	return []byte(fmt.Sprintf(`{"blockTime":1700000000,"meta":{"err":null,"fee":5000},"slot":12,"transaction":{"message":{"accountKeys":[]},"signatures":["%s"]},"version":0}`, sig))
}

type fakeFetcher struct {
	raw   []byte
	calls atomic.Int32
	fails int32
}

func (f *fakeFetcher) FetchRaw(ctx context.Context, sig sgo.Signature) (json.RawMessage, error) {
	if f.calls.Add(1) <= f.fails {
		return nil, peer.ErrNotFound
	}
	return json.RawMessage(f.raw), nil
}

func TestSignRecover(t *testing.T) {
	s := newSigner(t)
	body := []byte(`{"transaction":"{}"}`)
	sig, err := s.Sign(body)
	require.NoError(t, err)

	addr, err := peer.Recover(body, sig)
	require.NoError(t, err)
	require.Equal(t, s.Address(), addr)

	other, err := peer.Recover([]byte(`{"transaction":"{ }"}`), sig)
	require.NoError(t, err)
	require.NotEqual(t, s.Address(), other)

	_, err = peer.Recover(body, "0x1234")
	require.ErrorIs(t, err, peer.ErrBadSignature)
}

type countingDirectory struct {
	calls atomic.Int32
	fail  atomic.Bool
	nodes []peer.Node
}

func (d *countingDirectory) Nodes(ctx context.Context) ([]peer.Node, error) {
	d.calls.Add(1)
	if d.fail.Load() {
		return nil, fmt.Errorf("directory down")
	}
	return d.nodes, nil
}

func TestCachedDirectory(t *testing.T) {
	source := &countingDirectory{nodes: []peer.Node{{Endpoint: "http://a"}}}
	d := peer.CreateCachedDirectory(source, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		nodes, err := d.Nodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
	}
	require.Equal(t, int32(1), source.calls.Load())

	time.Sleep(60 * time.Millisecond)
	source.fail.Store(true)
	nodes, err := d.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, int32(2), source.calls.Load())

	empty := peer.CreateCachedDirectory(source, time.Minute)
	_, err = empty.Nodes(ctx)
	require.Error(t, err)
}

func TestRemoteDirectory(t *testing.T) {
	s := newSigner(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"endpoint":"https://relay.example","delegateOwnerWallet":"%s"}]}`, s.Address().Hex())
	}))
	defer server.Close()

	nodes, err := peer.CreateRemoteDirectory(server.URL, nil).Nodes(context.Background())
	require.NoError(t, err)
	require.Equal(t, []peer.Node{{Endpoint: "https://relay.example", Wallet: s.Address()}}, nodes)
}

type received struct {
	m      sync.Mutex
	bodies [][]byte
	sigs   []string
}

func (r *received) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		r.m.Lock()
		r.bodies = append(r.bodies, body)
		r.sigs = append(r.sigs, req.Header.Get(peer.SIGNATURE_HEADER))
		r.m.Unlock()
		w.WriteHeader(status)
	}
}

func TestForward(t *testing.T) {
	mr, cache := newCache(t)
	signer := newSigner(t)
	sig := sgo.Signature{7, 7, 7}
	raw := record(sig)

	good := new(received)
	goodServer := httptest.NewServer(good.handler(http.StatusOK))
	defer goodServer.Close()
	bad := new(received)
	badServer := httptest.NewServer(bad.handler(http.StatusInternalServerError))
	defer badServer.Close()
	self := new(received)
	selfServer := httptest.NewServer(self.handler(http.StatusOK))
	defer selfServer.Close()

	directory := peer.StaticDirectory{
		{Endpoint: goodServer.URL, Wallet: signer.Address()},
		{Endpoint: badServer.URL + "/", Wallet: signer.Address()},
		{Endpoint: selfServer.URL, Wallet: signer.Address()},
	}
	fetcher := &fakeFetcher{raw: raw, fails: 1}
	f, err := peer.CreateForwarder(fetcher, cache, directory, signer, selfServer.URL, nil)
	require.NoError(t, err)

	require.NoError(t, f.Forward(context.Background(), sig))
	require.Equal(t, int32(2), fetcher.calls.Load())

	cached, err := cache.Get(context.Background(), sig)
	require.NoError(t, err)
	require.Equal(t, raw, cached)
	require.Equal(t, peer.TX_CACHE_TTL, mr.TTL(peer.Key(sig)))
	require.True(t, mr.Exists("relay:tx:"+sig.String()))

	require.Len(t, good.bodies, 1)
	require.Len(t, bad.bodies, 1)
	require.Len(t, self.bodies, 0)

	var body peer.CacheBody
	require.NoError(t, json.Unmarshal(good.bodies[0], &body))
	require.Equal(t, string(raw), body.Transaction)
	addr, err := peer.Recover(good.bodies[0], good.sigs[0])
	require.NoError(t, err)
	require.Equal(t, signer.Address(), addr)
}

func TestCacheWriteOnce(t *testing.T) {
	mr, cache := newCache(t)
	ctx := context.Background()
	sig := sgo.Signature{3, 1}
	local := record(sig)

	require.NoError(t, cache.Put(ctx, sig, local))
	require.NoError(t, cache.Put(ctx, sig, []byte(`{"transaction":{"signatures":["pushed"]}}`)))
	cached, err := cache.Get(ctx, sig)
	require.NoError(t, err)
	require.Equal(t, local, cached)

	mr.FastForward(peer.TX_CACHE_TTL + time.Second)
	_, err = cache.Get(ctx, sig)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestForwardFetchFails(t *testing.T) {
	_, cache := newCache(t)
	fetcher := &fakeFetcher{fails: 100}
	f, err := peer.CreateForwarder(fetcher, cache, peer.StaticDirectory{}, newSigner(t), "", nil)
	require.NoError(t, err)
	require.Error(t, f.Forward(context.Background(), sgo.Signature{1}))
	require.Equal(t, int32(peer.FETCH_ATTEMPTS), fetcher.calls.Load())
}

func TestReceive(t *testing.T) {
	mr, cache := newCache(t)
	known := newSigner(t)
	stranger := newSigner(t)
	r, err := peer.CreateReceiver(cache, peer.StaticDirectory{{Endpoint: "http://peer", Wallet: known.Address()}})
	require.NoError(t, err)
	ctx := context.Background()

	sig := sgo.Signature{9, 9}
	body, err := json.Marshal(peer.CacheBody{Transaction: string(record(sig))})
	require.NoError(t, err)

	require.ErrorIs(t, r.Receive(ctx, body, ""), peer.ErrMissingSignature)

	wrong, err := stranger.Sign(body)
	require.NoError(t, err)
	require.ErrorIs(t, r.Receive(ctx, body, wrong), peer.ErrUnknownSigner)
	require.False(t, mr.Exists(peer.Key(sig)))

	right, err := known.Sign(body)
	require.NoError(t, err)
	require.NoError(t, r.Receive(ctx, body, right))
	cached, err := cache.Get(ctx, sig)
	require.NoError(t, err)
	require.Equal(t, record(sig), cached)

	junk := []byte(`{"transaction":"not json"}`)
	junkSig, err := known.Sign(junk)
	require.NoError(t, err)
	var bad *peer.BadPayloadError
	require.ErrorAs(t, r.Receive(ctx, junk, junkSig), &bad)
}
