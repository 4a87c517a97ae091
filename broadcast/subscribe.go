package broadcast

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// loopSubscribe waits on the websocket notification while watching the block height
// for expiry of the transaction's blockhash.
func loopSubscribe(
	ctx context.Context,
	wg *sync.WaitGroup,
	subscriber Subscriber,
	endpoints []Endpoint,
	p Payload,
	interval time.Duration,
	resultC chan<- outcome,
) {
	defer wg.Done()
	doneC := ctx.Done()
	subC := make(chan outcome, 1)
	if subscriber != nil {
		go loopWaitSignature(ctx, subscriber, p, subC)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	i := 0
out:
	for {
		select {
		case <-doneC:
			break out
		case o := <-subC:
			if o.err != nil {
				// expiry checks keep running without the subscription
				log.Debugf("signature subscription failed: %s", o.err.Error())
				subC = nil
				continue
			}
			report(ctx, resultC, o)
			break out
		case <-ticker.C:
			if p.Strategy.LastValidBlockHeight == 0 {
				continue
			}
			e := endpoints[i%len(endpoints)]
			i++
			height, err := e.GetBlockHeight(ctx)
			if err != nil {
				log.Debugf("block height from %s failed: %s", e.Name(), err.Error())
				continue
			}
			if p.Strategy.LastValidBlockHeight < height {
				report(ctx, resultC, outcome{source: "expiry", err: ErrExpired})
				break out
			}
		}
	}
}

func loopWaitSignature(ctx context.Context, subscriber Subscriber, p Payload, subC chan<- outcome) {
	status, err := subscriber.WaitSignature(ctx, p.Strategy.Signature, p.Commitment)
	if err == nil && status == nil {
		err = errEmptyConfirmation
	}
	subC <- outcome{source: "subscription", status: status, err: err}
}
