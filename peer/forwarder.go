package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	FETCH_ATTEMPTS = 3
	FETCH_DELAY    = 500 * time.Millisecond
)

var ErrNotFound = errors.New("transaction not found")

// CacheBody is the payload of POST /cache; Transaction is the raw record as a string.
type CacheBody struct {
	Transaction string `json:"transaction"`
}

// Fetcher returns the getTransaction result exactly as the node sent it.
type Fetcher interface {
	FetchRaw(ctx context.Context, sig sgo.Signature) (json.RawMessage, error)
}

type rpcFetcher struct {
	client *sgorpc.Client
}

func RpcFetcher(client *sgorpc.Client) Fetcher {
	return rpcFetcher{client: client}
}

func (f rpcFetcher) FetchRaw(ctx context.Context, sig sgo.Signature) (json.RawMessage, error) {
	var raw json.RawMessage
	err := f.client.RPCCallForInto(ctx, &raw, "getTransaction", []interface{}{
		sig.String(),
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNotFound
	}
	return raw, nil
}

type Forwarder struct {
	fetcher   Fetcher
	cache     Cache
	directory Directory
	signer    *Signer
	self      string
	client    *http.Client
}

func CreateForwarder(
	fetcher Fetcher,
	cache Cache,
	directory Directory,
	signer *Signer,
	self string,
	client *http.Client,
) (*Forwarder, error) {
	if fetcher == nil {
		return nil, errors.New("no fetcher")
	}
	if directory == nil {
		return nil, ErrNoDirectory
	}
	if signer == nil {
		return nil, errors.New("no identity key")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Forwarder{
		fetcher:   fetcher,
		cache:     cache,
		directory: directory,
		signer:    signer,
		self:      self,
		client:    client,
	}, nil
}

// Forward caches the confirmed transaction and pushes it to every other relay. Failures
// of single peers are only logged.
func (f *Forwarder) Forward(ctx context.Context, sig sgo.Signature) error {
	raw, err := f.fetch(ctx, sig)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", sig, err)
	}
	if err = f.cache.Put(ctx, sig, raw); err != nil {
		return fmt.Errorf("failed to cache %s: %w", sig, err)
	}
	nodes, err := f.directory.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list peers: %w", err)
	}
	body, err := json.Marshal(CacheBody{Transaction: string(raw)})
	if err != nil {
		return err
	}
	signature, err := f.signer.Sign(body)
	if err != nil {
		return err
	}

	g := new(errgroup.Group)
	for _, n := range nodes {
		if sameEndpoint(n.Endpoint, f.self) {
			continue
		}
		n := n
		g.Go(func() error {
			if err := f.post(ctx, n.Endpoint, body, signature); err != nil {
				log.WithFields(log.Fields{"peer": n.Endpoint, "signature": sig.String()}).
					WithError(err).Warn("peer forward failed")
			}
			return nil
		})
	}
	g.Wait()
	log.Debugf("forwarded signature=%s to %d peers", sig, len(nodes))
	return nil
}

func (f *Forwarder) fetch(ctx context.Context, sig sgo.Signature) (json.RawMessage, error) {
	var err error
	var raw json.RawMessage
	doneC := ctx.Done()
	for i := 0; i < FETCH_ATTEMPTS; i++ {
		raw, err = f.fetcher.FetchRaw(ctx, sig)
		if err == nil {
			return raw, nil
		}
		select {
		case <-doneC:
			return nil, ctx.Err()
		case <-time.After(FETCH_DELAY):
		}
	}
	return nil, err
}

func (f *Forwarder) post(ctx context.Context, endpoint string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+"/cache", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SIGNATURE_HEADER, signature)
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return fmt.Errorf("peer returned %d", resp.StatusCode)
	}
	return nil
}
