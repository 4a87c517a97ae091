package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	sgo "github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/solpipe/solana-relay/broadcast"
)

type RpcConfig struct {
	// Rpc holds every endpoint transactions are raced across; the first is the primary.
	Rpc     []string
	Ws      string
	Headers http.Header
}

func SplitList(s string) []string {
	list := make([]string, 0)
	for _, x := range strings.Split(s, ",") {
		x = strings.TrimSpace(x)
		if 0 < len(x) {
			list = append(list, x)
		}
	}
	return list
}

func RpcConfigFromEnv() (*RpcConfig, error) {
	config := new(RpcConfig)
	config.Rpc = SplitList(os.Getenv("RPC_URL"))
	if len(config.Rpc) == 0 {
		return nil, errors.New("no rpc url")
	}
	config.Ws = os.Getenv("WS_URL")
	return config, nil
}

type Connection struct {
	Primary    *sgorpc.Client
	Endpoints  []broadcast.Endpoint
	Subscriber broadcast.Subscriber
}

// RpcConnect builds one client per rpc url. Without a websocket url the
// broadcaster runs on polling alone.
func RpcConnect(ctx context.Context, config *RpcConfig) (*Connection, error) {
	var err error
	if config == nil {
		config, err = RpcConfigFromEnv()
		if err != nil {
			return nil, err
		}
	}
	if len(config.Rpc) == 0 {
		return nil, errors.New("no rpc url")
	}
	if config.Headers == nil {
		config.Headers = http.Header{}
	}
	headers := make(map[string]string)
	for k := range config.Headers {
		headers[k] = config.Headers.Get(k)
	}
	c := &Connection{Endpoints: make([]broadcast.Endpoint, len(config.Rpc))}
	for i, url := range config.Rpc {
		client := sgorpc.NewWithHeaders(url, headers)
		if i == 0 {
			c.Primary = client
		}
		c.Endpoints[i] = broadcast.RpcEndpoint(fmt.Sprintf("rpc-%d", i), client)
	}
	if 0 < len(config.Ws) {
		c.Subscriber = broadcast.WsSubscriber(config.Ws)
	}
	return c, nil
}

type RpcLookupResolver struct {
	client *sgorpc.Client
}

// CreateLookupResolver reads address lookup tables on every call since tables may be extended.
func CreateLookupResolver(client *sgorpc.Client) RpcLookupResolver {
	return RpcLookupResolver{client: client}
}

func (r RpcLookupResolver) Resolve(ctx context.Context, tables []sgo.PublicKey) (map[sgo.PublicKey]sgo.PublicKeySlice, error) {
	ans := make(map[sgo.PublicKey]sgo.PublicKeySlice, len(tables))
	for _, table := range tables {
		if _, present := ans[table]; present {
			continue
		}
		state, err := addresslookuptable.GetAddressLookupTable(ctx, r.client, table)
		if err != nil {
			return nil, fmt.Errorf("failed to load lookup table %s: %w", table, err)
		}
		ans[table] = state.Addresses
	}
	return ans, nil
}
