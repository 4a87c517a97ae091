package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/errormsg"
	"github.com/solpipe/solana-relay/feepayer"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/ratelimit"
	"github.com/solpipe/solana-relay/relay"
)

type Configuration struct {
	ListenUrl   string
	ReadTimeout time.Duration
}

// Services are the components behind the routes. Receiver, the limiters and Metrics are optional.
type Services struct {
	Relay        relay.Relay
	Pool         feepayer.Pool
	Receiver     *peer.Receiver
	IpLimit      *ratelimit.Limiter
	IpRouteLimit *ratelimit.Limiter
	Metrics      *Metrics
	ErrorMessage errormsg.ErrorMessage

	// TrustedProxies may set the client ip through forwarding headers.
	TrustedProxies []*net.IPNet
}

// Server is the routed handler plus the health state the probes read.
type Server interface {
	http.Handler
	Started()
	Health(status bool)
}

type external struct {
	ctx      context.Context
	healthC  chan<- func(*healthInternal)
	services Services
	handler  http.Handler
}

func Create(ctx context.Context, services Services) (Server, error) {
	if services.Relay == nil {
		return nil, errors.New("no relay")
	}
	healthC := make(chan func(*healthInternal), 10)
	go loopHealth(ctx, healthC)
	e1 := &external{
		ctx:      ctx,
		healthC:  healthC,
		services: services,
	}
	e1.handler = e1.routes()
	return e1, nil
}

func (e1 *external) routes() http.Handler {
	r := chi.NewRouter()
	m := e1.services.Metrics
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(identity(e1.services.ErrorMessage))

	r.Get("/health/startup", e1.startup)
	r.Get("/health/liveness", e1.liveness)
	r.Get("/feePayer", e1.feePayer)
	r.With(e1.ipLimit("relay")).Post("/relay", e1.relay)
	r.Post("/cache", e1.cache)
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}
	return r
}

func (e1 *external) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debugf("serving method=%s path=%s", r.Method, r.URL.Path)
	e1.handler.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled. The returned channel carries the listener error.
func Run(
	ctx context.Context,
	config *Configuration,
	services Services,
) (signalC <-chan error) {
	errorC := make(chan error, 1)
	signalC = errorC
	s, err := Create(ctx, services)
	if err != nil {
		errorC <- err
		return
	}
	readTimeout := config.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 5 * time.Second
	}
	server := &http.Server{
		Addr:        config.ListenUrl,
		Handler:     s,
		ReadTimeout: readTimeout,
	}
	go loopClose(ctx, server)
	go loopServe(server, errorC)
	log.Infof("listening on %s", config.ListenUrl)

	s.Started()

	return
}

func loopServe(server *http.Server, errorC chan<- error) {
	errorC <- server.ListenAndServe()
}

func loopClose(ctx context.Context, server *http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
}
