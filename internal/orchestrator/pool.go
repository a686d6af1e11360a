package orchestrator

import (
	"context"
	"sync"
)

// remoteCall is one unit of the parallel remote-call phase: fn performs
// the HTTP call for the job at index, honoring ctx cancellation.
type remoteCall func(ctx context.Context) error

// runBounded executes calls with at most maxParallel concurrently active,
// via a counting semaphore, and waits for all of them to finish. Starts
// happen in input order; completion order is unconstrained, matching the
// mark/parallel-call/apply model's middle phase.
func runBounded(ctx context.Context, maxParallel int, calls []remoteCall) {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for _, call := range calls {
		call := call
		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			continue
		}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			_ = call(ctx)
		}()
	}
	wg.Wait()
}
