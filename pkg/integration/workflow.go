// Package integration implements the three workflows that take a
// validated op the rest of the way: moving it from AwaitingIntegration
// to integrated (this file), announcing newly authored ops to the
// network (publish.go), and returning validation receipts — forcing a
// warrant when the verdict was Rejected (receipt.go).
package integration

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/trigger"
)

// DefaultBatchSize caps how many awaiting-integration rows one pass
// integrates.
const DefaultBatchSize = 50

// IntegrationUpdate stamps one op's integration time.
type IntegrationUpdate struct {
	Hash           holo.DhtOpHash
	WhenIntegrated time.Time
}

// OpStore is the persistence surface the integration workflow needs.
// AwaitingIntegrationOps is expected to return only rows with
// ValidationStage == StageAwaitingIntegration and WhenIntegrated nil —
// integration never regresses a row once WhenIntegrated is set.
type OpStore interface {
	AwaitingIntegrationOps(ctx context.Context, limit int) ([]holo.OpRow, error)
	MarkIntegrated(ctx context.Context, updates []IntegrationUpdate) error
}

// Workflow drains one space's AwaitingIntegration rows into
// integrated, regardless of whether their verdict was Valid or
// Rejected — rejection is terminal but still gets integrated so it is
// readable and its warrant/receipt can be produced.
type Workflow struct {
	Space     holo.DnaHash
	Store     OpStore
	BatchSize int

	// ReceiptTrigger and PublishTrigger are pulsed after a successful
	// pass so the receipt and publish workflows pick up newly
	// integrated rows without polling.
	ReceiptTrigger trigger.Sender
	PublishTrigger trigger.Sender

	// Events, when set, is notified of every row's integration verdict.
	Events *events.Broker
}

// NewWorkflow builds a Workflow with the default batch size.
func NewWorkflow(space holo.DnaHash, store OpStore) *Workflow {
	return &Workflow{Space: space, Store: store, BatchSize: DefaultBatchSize}
}

// Run integrates one batch, returning how many rows it moved.
func (w *Workflow) Run(ctx context.Context) (int, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows, err := w.Store.AwaitingIntegrationOps(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now()
	updates := make([]IntegrationUpdate, 0, len(rows))
	needsReceipt := false
	for _, row := range rows {
		updates = append(updates, IntegrationUpdate{Hash: row.Hash, WhenIntegrated: now})
		if row.RequireReceipt {
			needsReceipt = true
		}
	}

	if err := w.Store.MarkIntegrated(ctx, updates); err != nil {
		return 0, err
	}

	if w.Events != nil {
		for _, row := range rows {
			w.publishIntegrated(row)
		}
	}

	if needsReceipt && w.ReceiptTrigger != nil {
		w.ReceiptTrigger.Trigger()
	}
	if w.PublishTrigger != nil {
		w.PublishTrigger.Trigger()
	}

	return len(rows), nil
}

// publishIntegrated reports row's verdict on w.Events, distinguishing
// a rejected op from one that integrated clean so subscribers don't
// have to re-derive it from ValidationStatus.
func (w *Workflow) publishIntegrated(row holo.OpRow) {
	evt := &events.Event{Type: events.EventOpIntegrated, Message: row.Hash.String()}
	if row.ValidationStatus == holo.StatusRejected {
		evt.Type = events.EventOpRejected
	}
	w.Events.Publish(evt)
}

func dhtOpFromRow(row holo.OpRow) holo.DhtOp {
	return holo.DhtOp{
		Type: row.Type,
		SignedAction: holo.SignedAction{
			Action:    row.Action,
			Signature: row.Signature,
		},
		Entry: row.Entry,
	}
}
