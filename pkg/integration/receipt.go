package integration

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/holo"
)

// Receipt is a validator's signed statement of an op's final
// validation outcome, returned to the op's author.
type Receipt struct {
	Op        holo.DhtOpHash
	Validator holo.AgentPubKey
	Author    holo.AgentPubKey
	Status    holo.ValidationStatus
	Reason    string
	Timestamp time.Time
}

// ReceiptSender delivers a receipt to its op's author over the
// network.
type ReceiptSender interface {
	SendValidationReceipt(ctx context.Context, author holo.AgentPubKey, receipt Receipt) error
}

// WarrantStore persists a warrant so it is gossipped on subsequent
// rounds (§4.7 makes no distinction between a warrant's age and its
// gossip priority: warrants have no TTL).
type WarrantStore interface {
	PutWarrant(ctx context.Context, w holo.Warrant) error
}

// ReceiptStore returns integrated rows still owed a receipt and
// records that one went out.
type ReceiptStore interface {
	PendingReceipts(ctx context.Context, limit int) ([]holo.OpRow, error)
	MarkReceiptSent(ctx context.Context, hashes []holo.DhtOpHash) error
}

// ReceiptWorkflow answers every integrated row with RequireReceipt set
// — forced, per §4.4/§4.5, whenever app or sys validation rejected the
// op — and, for a Rejected verdict, also files a chain-integrity
// warrant against the author so it rides along on the next gossip
// round regardless of whether the receipt itself is ever delivered.
type ReceiptWorkflow struct {
	Space     holo.DnaHash
	Store     ReceiptStore
	Sender    ReceiptSender
	Warrants  WarrantStore
	Validator holo.AgentPubKey
	BatchSize int

	// Events, when set, is notified whenever a receipt pass files a
	// chain-integrity warrant.
	Events *events.Broker
}

// NewReceiptWorkflow builds a ReceiptWorkflow with the default batch
// size.
func NewReceiptWorkflow(space holo.DnaHash, store ReceiptStore, sender ReceiptSender, validator holo.AgentPubKey) *ReceiptWorkflow {
	return &ReceiptWorkflow{Space: space, Store: store, Sender: sender, Validator: validator, BatchSize: DefaultBatchSize}
}

// Run sends one batch of pending receipts, returning how many it
// answered.
func (w *ReceiptWorkflow) Run(ctx context.Context) (int, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows, err := w.Store.PendingReceipts(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now()
	sent := make([]holo.DhtOpHash, 0, len(rows))
	for _, row := range rows {
		receipt := Receipt{
			Op:        row.Hash,
			Validator: w.Validator,
			Author:    row.Action.Author,
			Status:    row.ValidationStatus,
			Timestamp: now,
		}

		if row.ValidationStatus == holo.StatusRejected && w.Warrants != nil {
			actionHash := holo.SignedAction{Action: row.Action, Signature: row.Signature}.Hash()
			warrant := holo.Warrant{
				Type:      holo.WarrantChainIntegrity,
				Author:    w.Validator,
				Warrantee: row.Action.Author,
				Action:    actionHash,
				Reason:    "app validation rejected op",
				Timestamp: now,
			}
			if err := w.Warrants.PutWarrant(ctx, warrant); err != nil {
				return 0, err
			}
			if w.Events != nil {
				w.Events.Publish(&events.Event{Type: events.EventWarrantIssued, Message: warrant.Warrantee.String()})
			}
		}

		if w.Sender != nil {
			if err := w.Sender.SendValidationReceipt(ctx, row.Action.Author, receipt); err != nil {
				return 0, err
			}
		}

		sent = append(sent, row.Hash)
	}

	if err := w.Store.MarkReceiptSent(ctx, sent); err != nil {
		return 0, err
	}

	return len(rows), nil
}
