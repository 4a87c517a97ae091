package util

import "context"

// MergeCtx returns a child of a that is also cancelled when b is done. Calling the
// returned cancel releases the watcher goroutine.
func MergeCtx(a context.Context, b context.Context) (context.Context, context.CancelFunc) {
	if a == nil || b == nil {
		panic("a or b is nil")
	}
	ctxC, cancel := context.WithCancel(a)
	go loopCtxClose(ctxC, b, cancel)
	return ctxC, cancel
}

func loopCtxClose(
	ctx context.Context,
	other context.Context,
	cancel context.CancelFunc,
) {
	defer cancel()
	select {
	case <-ctx.Done():
	case <-other.Done():
	}
}
