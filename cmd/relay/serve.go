package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/broadcast"
	"github.com/solpipe/solana-relay/errormsg"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/policy"
	"github.com/solpipe/solana-relay/ratelimit"
	"github.com/solpipe/solana-relay/relay"
	"github.com/solpipe/solana-relay/store"
	"github.com/solpipe/solana-relay/util"
	"github.com/solpipe/solana-relay/web"
)

type Serve struct {
	Listen string `name:"listen" env:"LISTEN" default:"0.0.0.0:8080" help:"Address the http server listens on."`
}

// directory is nil when no peers are configured; forwarding and the cache route are then off.
func (clients *Clients) directory() peer.Directory {
	peers := clients.Config.Peers
	if 0 < len(peers.Discovery) {
		return peer.CreateCachedDirectory(peer.CreateRemoteDirectory(peers.Discovery, nil), peers.Staleness)
	}
	nodes, err := clients.Config.StaticNodes()
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return peer.StaticDirectory(nodes)
}

type stack struct {
	kv         *store.Redis
	conn       *util.Connection
	relay      relay.Relay
	receiver   *peer.Receiver
	ipLimit    *ratelimit.Limiter
	routeLimit *ratelimit.Limiter
	proxies    []*net.IPNet
	metrics    *web.Metrics
}

// build wires every component behind the http routes.
func (clients *Clients) build(ctx context.Context) (*stack, error) {
	if err := clients.Check(); err != nil {
		return nil, err
	}
	var err error
	s := new(stack)
	s.kv, err = store.Connect(ctx, clients.RedisUrl)
	if err != nil {
		return nil, err
	}
	s.conn, err = util.RpcConnect(ctx, clients.Rpc)
	if err != nil {
		s.kv.Close()
		return nil, err
	}

	s.proxies, err = clients.Config.TrustedProxies()
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	limits := clients.Config.RateLimit
	s.ipLimit = ratelimit.New(s.kv, limits.Ip)
	s.routeLimit = ratelimit.New(s.kv, limits.IpRoute)
	policyConfig, err := clients.Config.PolicyConfiguration()
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	validator, err := policy.Create(policyConfig, clients.Pool, ratelimit.New(s.kv, limits.AccountCreation))
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	coordinator, err := broadcast.Create(clients.Config.BroadcastConfiguration(), s.conn.Endpoints, s.conn.Subscriber)
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	s.metrics = web.CreateMetrics()

	relayConfig := relay.Configuration{
		Pool:        clients.Pool,
		Validator:   validator,
		Broadcaster: coordinator,
		Resolver:    util.CreateLookupResolver(s.conn.Primary),
		Recorder:    s.metrics,
	}
	directory := clients.directory()
	if directory != nil {
		cache := peer.CreateCache(s.kv)
		s.receiver, err = peer.CreateReceiver(cache, directory)
		if err != nil {
			s.kv.Close()
			return nil, err
		}
		if clients.Signer == nil {
			log.Warn("no identity key; confirmed transactions are not forwarded")
		} else {
			forwarder, err := peer.CreateForwarder(
				peer.RpcFetcher(s.conn.Primary),
				cache,
				directory,
				clients.Signer,
				clients.Config.Peers.Self,
				nil,
			)
			if err != nil {
				s.kv.Close()
				return nil, err
			}
			relayConfig.Forwarder = forwarder
		}
	}
	s.relay, err = relay.Create(ctx, relayConfig)
	if err != nil {
		s.kv.Close()
		return nil, err
	}
	return s, nil
}

func (r *Serve) Run(kongCtx *CLIContext) error {
	ctx := kongCtx.Ctx
	s, err := kongCtx.Clients.build(ctx)
	if err != nil {
		return err
	}
	defer s.kv.Close()

	signalC := web.Run(
		ctx,
		&web.Configuration{ListenUrl: r.Listen},
		web.Services{
			Relay:        s.relay,
			Pool:         kongCtx.Clients.Pool,
			Receiver:     s.receiver,
			IpLimit:      s.ipLimit,
			IpRouteLimit: s.routeLimit,
			Metrics:      s.metrics,
			ErrorMessage: errormsg.CreateFromEnv(),

			// forwarding headers count only behind these
			TrustedProxies: s.proxies,
		},
	)
	select {
	case <-ctx.Done():
	case err = <-signalC:
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
