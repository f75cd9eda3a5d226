package retriever

import (
	"context"
	"time"
)

// WithHeartbeat runs fn while invoking tick every interval, and stops the
// ticker deterministically when fn returns or ctx is cancelled. Callers use
// it to surface liveness (a typing indicator, a progress line) during a slow
// provider call.
func WithHeartbeat(ctx context.Context, interval time.Duration, tick func(), fn func(ctx context.Context) error) error {
	hctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hctx.Done():
				return
			case <-ticker.C:
				tick()
			}
		}
	}()

	err := fn(hctx)
	cancel()
	<-done
	return err
}
