package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
)

type Node struct {
	Endpoint string         `json:"endpoint" yaml:"endpoint"`
	Wallet   common.Address `json:"delegateOwnerWallet" yaml:"wallet"`
}

// Directory lists the sibling relays.
type Directory interface {
	Nodes(ctx context.Context) ([]Node, error)
}

type StaticDirectory []Node

func (d StaticDirectory) Nodes(ctx context.Context) ([]Node, error) {
	list := make([]Node, len(d))
	copy(list, d)
	return list, nil
}

// RemoteDirectory reads {"data": [node...]} from a discovery url.
type RemoteDirectory struct {
	url    string
	client *http.Client
}

func CreateRemoteDirectory(url string, client *http.Client) *RemoteDirectory {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteDirectory{url: url, client: client}
}

type directoryResponse struct {
	Data []Node `json:"data"`
}

func (d *RemoteDirectory) Nodes(ctx context.Context) ([]Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory %s returned %d", d.url, resp.StatusCode)
	}
	var body directoryResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse directory: %w", err)
	}
	return body.Data, nil
}

// CachedDirectory refreshes the node list at most once per staleness window. A failed
// refresh keeps serving the previous list.
type CachedDirectory struct {
	source    Directory
	staleness time.Duration
	now       func() time.Time
	m         sync.Mutex
	nodes     []Node
	fetchedAt time.Time
}

func CreateCachedDirectory(source Directory, staleness time.Duration) *CachedDirectory {
	return &CachedDirectory{source: source, staleness: staleness, now: time.Now}
}

func (d *CachedDirectory) Nodes(ctx context.Context) ([]Node, error) {
	d.m.Lock()
	defer d.m.Unlock()
	if d.nodes != nil && d.now().Sub(d.fetchedAt) < d.staleness {
		return d.nodes, nil
	}
	nodes, err := d.source.Nodes(ctx)
	if err != nil {
		if d.nodes != nil {
			log.Debugf("directory refresh failed, serving stale list: %s", err.Error())
			return d.nodes, nil
		}
		return nil, err
	}
	if nodes == nil {
		nodes = []Node{}
	}
	d.nodes = nodes
	d.fetchedAt = d.now()
	return nodes, nil
}

// Wallets is the set of identities allowed to push into the local cache.
func Wallets(ctx context.Context, d Directory) (map[common.Address]bool, error) {
	nodes, err := d.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	ans := make(map[common.Address]bool, len(nodes))
	for _, n := range nodes {
		ans[n.Wallet] = true
	}
	return ans, nil
}

func sameEndpoint(a, b string) bool {
	return strings.TrimRight(strings.ToLower(a), "/") == strings.TrimRight(strings.ToLower(b), "/")
}

var ErrNoDirectory = errors.New("no peer directory")
