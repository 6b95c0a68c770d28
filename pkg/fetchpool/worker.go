package fetchpool

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/trigger"
	"github.com/rs/zerolog"
)

// Fetcher performs the actual network round-trip for one batch item.
// Implemented by pkg/network once wired; returning an error leaves
// the item in the pool for a later retry against the same or a
// different source.
type Fetcher interface {
	Fetch(ctx context.Context, item BatchItem) error
}

// Worker drains a Pool on a fixed interval via pkg/trigger's
// coalescing loop, handing each ready item to a Fetcher and removing
// it from the pool on success.
type Worker struct {
	pool    *Pool
	fetcher Fetcher
	loop    *trigger.Loop
}

// NewWorker builds a worker polling pool every interval.
func NewWorker(pool *Pool, fetcher Fetcher, interval time.Duration, logger zerolog.Logger) *Worker {
	w := &Worker{pool: pool, fetcher: fetcher}
	w.loop = trigger.NewLoop("fetchpool", interval, logger, w.drain)
	return w
}

// Trigger requests an immediate drain pass, coalesced with any other
// pending trigger.
func (w *Worker) Trigger() { w.loop.Sender().Trigger() }

// Start begins polling.
func (w *Worker) Start(ctx context.Context) { w.loop.Start(ctx) }

// Stop waits for any in-flight drain to finish, then returns.
func (w *Worker) Stop() { w.loop.Stop() }

func (w *Worker) drain(ctx context.Context) error {
	for _, batchItem := range w.pool.NextBatch() {
		if err := w.fetcher.Fetch(ctx, batchItem); err != nil {
			continue
		}
		w.pool.Remove(batchItem.Key)
	}
	return nil
}
