package main

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/solpipe/solana-relay/store"
	"github.com/solpipe/solana-relay/util"
)

type Check struct {
}

// Run reaches every dependency once and reports the first one that fails.
func (r *Check) Run(kongCtx *CLIContext) error {
	ctx := kongCtx.Ctx
	clients := kongCtx.Clients
	if err := clients.Check(); err != nil {
		return err
	}
	kv, err := store.Connect(ctx, clients.RedisUrl)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	kv.Close()

	conn, err := util.RpcConnect(ctx, clients.Rpc)
	if err != nil {
		return err
	}
	for _, e := range conn.Endpoints {
		height, err := e.GetBlockHeight(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		log.Infof("endpoint=%s block height=%d", e.Name(), height)
	}

	directory := clients.directory()
	if directory == nil {
		log.Info("no peers configured")
	} else {
		nodes, err := directory.Nodes(ctx)
		if err != nil {
			return fmt.Errorf("peer directory: %w", err)
		}
		if len(nodes) == 0 {
			return errors.New("peer directory is empty")
		}
		log.Infof("%d peers", len(nodes))
	}
	if clients.Signer != nil {
		log.Infof("identity=%s", clients.Signer.Address().Hex())
	}
	log.Infof("fee payers=%d", clients.Pool.Size())
	return nil
}
