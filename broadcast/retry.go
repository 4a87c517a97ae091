package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// loopRetry pushes the raw transaction to every endpoint on each tick. A failing endpoint
// never stops the tick; the sends of all ticks are joined before returning.
func loopRetry(
	ctx context.Context,
	wg *sync.WaitGroup,
	endpoints []Endpoint,
	raw []byte,
	interval time.Duration,
	retries *atomic.Int64,
) {
	defer wg.Done()
	doneC := ctx.Done()
	g := new(errgroup.Group)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sendAll := func() {
		retries.Add(1)
		for _, e := range endpoints {
			e := e
			g.Go(func() error {
				_, err := e.SendRawTransaction(ctx, raw)
				if err != nil && ctx.Err() == nil {
					log.Debugf("send to %s failed: %s", e.Name(), err.Error())
				}
				return nil
			})
		}
	}

	sendAll()
out:
	for {
		select {
		case <-doneC:
			break out
		case <-ticker.C:
			sendAll()
		}
	}
	g.Wait()
}
