package broadcast

import (
	"context"
	"sync"
	"time"

	sgo "github.com/gagliardetto/solana-go"
	sgorpc "github.com/gagliardetto/solana-go/rpc"
	log "github.com/sirupsen/logrus"
)

// loopPoll asks the endpoints in turn for the signature status.
func loopPoll(
	ctx context.Context,
	wg *sync.WaitGroup,
	endpoints []Endpoint,
	sig sgo.Signature,
	commitment sgorpc.CommitmentType,
	interval time.Duration,
	resultC chan<- outcome,
) {
	defer wg.Done()
	doneC := ctx.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	i := 0
out:
	for {
		select {
		case <-doneC:
			break out
		case <-ticker.C:
		}
		e := endpoints[i%len(endpoints)]
		i++
		status, err := e.GetSignatureStatus(ctx, sig)
		if err != nil {
			if ctx.Err() == nil {
				log.Debugf("status from %s failed: %s", e.Name(), err.Error())
			}
			continue
		}
		if status == nil {
			continue
		}
		if status.Err != nil || Satisfies(status.Confirmation, commitment) {
			report(ctx, resultC, outcome{source: "poll", status: status})
			break out
		}
	}
}
