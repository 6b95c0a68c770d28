package integration

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// DefaultMinPublishInterval matches the conductor config's
// min_publish_interval default (§6): an authored op is not
// re-announced more often than this even if nothing has acknowledged
// it yet.
const DefaultMinPublishInterval = 5 * time.Minute

// Publisher is the network method the workflow drives: announce a
// batch of ops sharing one DHT basis to whichever peers hold it.
type Publisher interface {
	Publish(ctx context.Context, space holo.DnaHash, basis holo.AnyLinkableHash, ops []holo.DhtOp) error
}

// PublishStore returns authored ops due for (re-)announcement and
// records that a batch went out.
type PublishStore interface {
	UnpublishedAuthoredOps(ctx context.Context, limit int, olderThan time.Time) ([]holo.OpRow, error)
	MarkPublished(ctx context.Context, hashes []holo.DhtOpHash, at time.Time) error
}

// PublishWorkflow announces this node's own authored, integrated ops
// to the network — the "outbound announce" half of integration,
// independent of gossip, so a freshly authored record does not have
// to wait for a gossip round to reach anyone.
type PublishWorkflow struct {
	Space       holo.DnaHash
	Store       PublishStore
	Network     Publisher
	MinInterval time.Duration
	BatchSize   int
}

// NewPublishWorkflow builds a PublishWorkflow with the default batch
// size and minimum republish interval.
func NewPublishWorkflow(space holo.DnaHash, store PublishStore, network Publisher) *PublishWorkflow {
	return &PublishWorkflow{Space: space, Store: store, Network: network, MinInterval: DefaultMinPublishInterval, BatchSize: DefaultBatchSize}
}

// Run groups due ops by basis (the network publishes per-basis, since
// that is how the receiving authorities are selected) and announces
// each group, then marks every op in the batch published.
func (w *PublishWorkflow) Run(ctx context.Context) (int, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	minInterval := w.MinInterval
	if minInterval <= 0 {
		minInterval = DefaultMinPublishInterval
	}

	rows, err := w.Store.UnpublishedAuthoredOps(ctx, batchSize, time.Now().Add(-minInterval))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	groups := make(map[holo.AnyLinkableHash][]holo.DhtOp)
	order := make([]holo.AnyLinkableHash, 0)
	hashes := make([]holo.DhtOpHash, 0, len(rows))
	for _, row := range rows {
		op := dhtOpFromRow(row)
		basis := op.Basis()
		if _, ok := groups[basis]; !ok {
			order = append(order, basis)
		}
		groups[basis] = append(groups[basis], op)
		hashes = append(hashes, row.Hash)
	}

	for _, basis := range order {
		if err := w.Network.Publish(ctx, w.Space, basis, groups[basis]); err != nil {
			return 0, err
		}
	}

	if err := w.Store.MarkPublished(ctx, hashes, time.Now()); err != nil {
		return 0, err
	}

	return len(rows), nil
}
