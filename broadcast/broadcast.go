package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

const (
	DEFAULT_SEND_INTERVAL = 1 * time.Second
	DEFAULT_POLL_INTERVAL = 2 * time.Second
)

type Configuration struct {
	SendInterval time.Duration
	PollInterval time.Duration
}

func (config *Configuration) Check() error {
	if config.SendInterval == 0 {
		config.SendInterval = DEFAULT_SEND_INTERVAL
	}
	if config.PollInterval == 0 {
		config.PollInterval = DEFAULT_POLL_INTERVAL
	}
	if config.SendInterval < 0 || config.PollInterval < 0 {
		return errors.New("intervals must be positive")
	}
	return nil
}

// Strategy bounds the race: once the chain passes LastValidBlockHeight the transaction cannot land.
type Strategy struct {
	Blockhash            sgo.Hash
	LastValidBlockHeight uint64
	Signature            sgo.Signature
}

type Payload struct {
	Tx            *sgo.Transaction
	Raw           []byte
	Strategy      Strategy
	Commitment    sgorpc.CommitmentType
	SkipPreflight bool
}

type Coordinator struct {
	config     Configuration
	endpoints  []Endpoint
	subscriber Subscriber
}

func Create(config Configuration, endpoints []Endpoint, subscriber Subscriber) (*Coordinator, error) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, errors.New("no endpoints")
	}
	return &Coordinator{config: config, endpoints: endpoints, subscriber: subscriber}, nil
}

func (c *Coordinator) Endpoints() []Endpoint {
	return c.endpoints
}

// DefaultStrategy pairs the transaction blockhash with the expiry height the first endpoint reports now.
func (c *Coordinator) DefaultStrategy(ctx context.Context, tx *sgo.Transaction) (Strategy, error) {
	_, lastValid, err := c.endpoints[0].GetLatestBlockhash(ctx)
	if err != nil {
		return Strategy{}, err
	}
	s := Strategy{Blockhash: tx.Message.RecentBlockhash, LastValidBlockHeight: lastValid}
	if 0 < len(tx.Signatures) {
		s.Signature = tx.Signatures[0]
	}
	return s, nil
}

type outcome struct {
	source string
	status *Status
	err    error
}

// Send drives the transaction to the target commitment. The retry, subscription and poll
// loops share one context; the first loop to report wins and the other two are cancelled.
func (c *Coordinator) Send(ctx context.Context, p Payload) (sig sgo.Signature, err error) {
	start := time.Now()
	if p.Tx == nil {
		return sig, errors.New("blank transaction")
	}
	if p.Strategy.Signature == (sgo.Signature{}) && 0 < len(p.Tx.Signatures) {
		p.Strategy.Signature = p.Tx.Signatures[0]
	}
	sig = p.Strategy.Signature
	if p.Commitment == "" {
		p.Commitment = sgorpc.CommitmentConfirmed
	}
	retries := new(atomic.Int64)
	source := "none"
	defer func() {
		entry := log.WithFields(log.Fields{
			"signature":  sig.String(),
			"elapsed_ms": time.Since(start).Milliseconds(),
			"retries":    retries.Load(),
			"source":     source,
		})
		if err != nil {
			entry.WithError(err).Info("broadcast failed")
		} else {
			entry.Info("broadcast confirmed")
		}
	}()

	if !p.SkipPreflight {
		sim, simErr := c.endpoints[0].Simulate(ctx, p.Tx)
		if simErr != nil {
			err = &SimulationFailedError{Err: simErr.Error()}
			return
		}
		if sim.Err != nil {
			err = &SimulationFailedError{Err: sim.Err, Logs: sim.Logs}
			return
		}
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	resultC := make(chan outcome, 2)
	wg := &sync.WaitGroup{}
	wg.Add(3)
	go loopRetry(raceCtx, wg, c.endpoints, p.Raw, c.config.SendInterval, retries)
	go loopSubscribe(raceCtx, wg, c.subscriber, c.endpoints, p, c.config.PollInterval, resultC)
	go loopPoll(raceCtx, wg, c.endpoints, sig, p.Commitment, c.config.PollInterval, resultC)

	var o outcome
	select {
	case <-ctx.Done():
		o = outcome{source: "caller", err: ctx.Err()}
	case o = <-resultC:
	}
	cancel()
	wg.Wait()
	source = o.source
	if o.err == nil && o.status == nil {
		o.err = errEmptyConfirmation
	}

	if o.err == nil && o.status != nil && o.status.Err == nil {
		return
	}
	var lastErr error
	if o.err != nil {
		lastErr = o.err
	} else {
		lastErr = &ExecutionError{Err: o.status.Err}
	}
	if ctx.Err() == nil {
		// the winning report can be stale relative to a transaction that just landed
		if c.recheck(ctx, sig, p.Commitment) {
			source = "recheck"
			return
		}
	}
	err = &BroadcastFailedError{LastError: lastErr}
	return
}

func (c *Coordinator) recheck(ctx context.Context, sig sgo.Signature, commitment sgorpc.CommitmentType) bool {
	for _, e := range c.endpoints {
		status, err := e.GetSignatureStatus(ctx, sig)
		if err != nil {
			log.Debugf("recheck on %s failed: %s", e.Name(), err.Error())
			continue
		}
		if status != nil && status.Err == nil && Satisfies(status.Confirmation, commitment) {
			return true
		}
	}
	return false
}

func report(ctx context.Context, resultC chan<- outcome, o outcome) {
	select {
	case <-ctx.Done():
	case resultC <- o:
	}
}
