package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/config"
	"github.com/solpipe/solana-relay/feepayer"
	"github.com/solpipe/solana-relay/logger"
	"github.com/solpipe/solana-relay/peer"
	"github.com/solpipe/solana-relay/util"
)

type CLIContext struct {
	Clients *Clients
	Ctx     context.Context
}

type debugFlag bool

type LogFormat string
type RpcUrl string
type WsUrl string
type ApiKey string
type RedisUrl string
type FeePayerKeys string
type IdentityKey string
type ConfigFile string

var cli struct {
	Verbose     debugFlag    `help:"Set logging to verbose." short:"v" default:"false"`
	LogFormat   LogFormat    `name:"log-format" env:"LOG_FORMAT" default:"text" help:"Log output format, text or json."`
	RpcUrl      RpcUrl       `name:"rpc" env:"RPC_URL" help:"Comma separated Solana Rpc endpoints with format protocol://host:port; the first one is the primary."`
	WsUrl       WsUrl        `name:"ws" env:"WS_URL" help:"Solana Websocket endpoint used for signature subscriptions."`
	ApiKey      ApiKey       `name:"apikey" env:"RPC_API_KEY" help:"An API Key used to connect to an RPC Provider"`
	RedisUrl    RedisUrl     `name:"redis" env:"REDIS_URL" default:"redis://localhost:6379/0" help:"Redis holding rate limit counters and the peer transaction cache."`
	FeePayers   FeePayerKeys `name:"fee-payers" env:"FEE_PAYER_KEYS" help:"Comma separated base58 secret keys or paths to solana-keygen files."`
	IdentityKey IdentityKey  `name:"identity" env:"RELAY_IDENTITY_KEY" help:"Hex secp256k1 key that signs pushes to other relays."`
	ConfigFile  ConfigFile   `name:"config" env:"RELAY_CONFIG" help:"Yaml file with policy, rate limit and peer settings."`
	Serve       Serve        `cmd:"" name:"serve" help:"Run the relay http server."`
	FeePayer    FeePayer     `cmd:"" name:"fee-payer" help:"Print the public keys of the fee payer pool."`
	Check       Check        `cmd:"" name:"check" help:"Validate the configuration and reach redis and every rpc endpoint."`
}

type Clients struct {
	ctx      context.Context
	Rpc      *util.RpcConfig
	RedisUrl string
	Pool     feepayer.Pool
	Signer   *peer.Signer
	Config   config.Configuration
}

func (v RpcUrl) AfterApply(clients *Clients) error {
	clients.rpc().Rpc = util.SplitList(string(v))
	return nil
}

func (v WsUrl) AfterApply(clients *Clients) error {
	clients.rpc().Ws = string(v)
	return nil
}

func (key ApiKey) AfterApply(clients *Clients) error {
	if 0 < len(key) {
		clients.rpc().Headers.Set("Authorization", "Bearer "+string(key))
	}
	return nil
}

func (v RedisUrl) AfterApply(clients *Clients) error {
	clients.RedisUrl = string(v)
	return nil
}

func (v FeePayerKeys) AfterApply(clients *Clients) error {
	pool, err := feepayer.FromStrings(util.SplitList(string(v)))
	if err != nil {
		return err
	}
	clients.Pool = pool
	return nil
}

func (v IdentityKey) AfterApply(clients *Clients) error {
	if len(v) == 0 {
		return nil
	}
	signer, err := peer.SignerFromHex(string(v))
	if err != nil {
		return fmt.Errorf("bad identity key: %w", err)
	}
	clients.Signer = signer
	return nil
}

func (v ConfigFile) AfterApply(clients *Clients) error {
	c, err := config.Load(string(v))
	if err != nil {
		return err
	}
	clients.Config = c
	return nil
}

func (d debugFlag) AfterApply(clients *Clients) error {
	if d {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

func (clients *Clients) rpc() *util.RpcConfig {
	if clients.Rpc == nil {
		clients.Rpc = &util.RpcConfig{Headers: http.Header{}}
	}
	return clients.Rpc
}

func (clients *Clients) Check() error {
	if clients.Rpc == nil || len(clients.Rpc.Rpc) == 0 {
		return errors.New("no rpc url")
	}
	if len(clients.RedisUrl) == 0 {
		return errors.New("no redis url")
	}
	if clients.Pool.Size() == 0 {
		return errors.New("no fee payers")
	}
	return clients.Config.Check()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file: %s", err.Error())
	}

	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, syscall.SIGTERM, syscall.SIGINT)
	ctx, cancel := context.WithCancel(context.Background())
	go loopSignal(ctx, cancel, signalC)
	clients := &Clients{ctx: ctx, Config: config.Default()}
	kongCtx := kong.Parse(&cli, kong.Bind(clients))
	level := "info"
	if cli.Verbose {
		level = "debug"
	}
	err := logger.Configure(level, string(cli.LogFormat))
	kongCtx.FatalIfErrorf(err)
	err = kongCtx.Run(&CLIContext{Ctx: ctx, Clients: clients})
	kongCtx.FatalIfErrorf(err)
}

func loopSignal(ctx context.Context, cancel context.CancelFunc, signalC <-chan os.Signal) {
	defer cancel()
	doneC := ctx.Done()
	select {
	case <-doneC:
	case s := <-signalC:
		os.Stderr.WriteString(fmt.Sprintf("%s\n", s.String()))
	}
}
