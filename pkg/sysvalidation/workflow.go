package sysvalidation

import (
	"context"
	"sync"

	"github.com/holochain/holochain-core/pkg/deptracker"
	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/trigger"
)

// NumConcurrentOps bounds how many pending ops one workflow pass
// checks concurrently, and how many rows its one outcome write spans.
const NumConcurrentOps = 50

// RowUpdate is one op's validation-stage transition, ready to be
// merged into its stored OpRow.
type RowUpdate struct {
	Hash           holo.DhtOpHash
	Status         holo.ValidationStatus
	Stage          holo.ValidationStageKind
	AwaitingSysDep *holo.AnyLinkableHash
	RequireReceipt bool
}

// OpStore is the persistence surface the workflow needs: pulling the
// next batch of Pending rows and writing back every row's outcome
// from one pass in a single transaction. Backed by a per-space
// pkg/storage database once pkg/space wires one up.
type OpStore interface {
	PendingOps(ctx context.Context, limit int) ([]holo.OpRow, error)
	ApplyOutcomes(ctx context.Context, updates []RowUpdate, drops []holo.DhtOpHash) error
}

// DepFetcher is asked to go fetch a dependency this op is blocked on.
// No package in this repository implements it; nil disables active
// fetching and leaves resolution to deptracker's passive timeout.
type DepFetcher interface {
	RequestDependency(ctx context.Context, space holo.DnaHash, dep holo.AnyLinkableHash)
}

// Workflow drives repeated passes of the system validation workflow
// for one space.
type Workflow struct {
	Space      holo.DnaHash
	Store      OpStore
	Checker    *Checker
	Deps       *deptracker.Tracker
	Fetcher    DepFetcher
	AppTrigger trigger.Sender
	BatchSize  int
}

// NewWorkflow builds a Workflow with the default NUM_CONCURRENT_OPS
// batch size.
func NewWorkflow(space holo.DnaHash, store OpStore, checker *Checker, deps *deptracker.Tracker) *Workflow {
	return &Workflow{
		Space:     space,
		Store:     store,
		Checker:   checker,
		Deps:      deps,
		BatchSize: NumConcurrentOps,
	}
}

type checkResult struct {
	hash    holo.DhtOpHash
	opType  holo.DhtOpType
	outcome herr.ValidationOutcome
	err     error
}

// Run executes one pass: pull up to BatchSize pending rows, check them
// concurrently (bounded by the batch itself, since a batch never
// exceeds NumConcurrentOps), map outcomes to stage transitions, and
// write them all back in one call. Returns the number of rows
// processed. Rows whose check failed with a genuine error are left
// untouched for the next pass.
func (w *Workflow) Run(ctx context.Context) (int, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = NumConcurrentOps
	}

	rows, err := w.Store.PendingOps(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	results := make([]checkResult, len(rows))
	var wg sync.WaitGroup
	wg.Add(len(rows))
	for i, row := range rows {
		go func(i int, row holo.OpRow) {
			defer wg.Done()
			op := dhtOpFromRow(row)
			outcome, err := w.Checker.Check(ctx, op)
			results[i] = checkResult{hash: row.Hash, opType: row.Type, outcome: outcome, err: err}
		}(i, row)
	}
	wg.Wait()

	var updates []RowUpdate
	var drops []holo.DhtOpHash
	appValidationReady := false

	for _, r := range results {
		if r.err != nil {
			continue
		}
		update, drop, ok := w.mapOutcome(ctx, r)
		if drop {
			drops = append(drops, r.hash)
			continue
		}
		if !ok {
			continue
		}
		updates = append(updates, update)
		if update.Stage == holo.StageSysValidated || update.Stage == holo.StageAwaitingIntegration {
			appValidationReady = true
		}
	}

	if len(updates) == 0 && len(drops) == 0 {
		return len(rows), nil
	}
	if err := w.Store.ApplyOutcomes(ctx, updates, drops); err != nil {
		return 0, err
	}

	if appValidationReady && w.AppTrigger != nil {
		w.AppTrigger.Trigger()
	}
	return len(rows), nil
}

// mapOutcome translates one ValidationOutcome into a RowUpdate, per
// the §4.4 outcome table. The second return flags rows that should be
// dropped outright (counterfeit) rather than updated; the third is
// false when the row is left untouched.
func (w *Workflow) mapOutcome(ctx context.Context, r checkResult) (RowUpdate, bool, bool) {
	switch r.outcome.Kind {
	case herr.OutcomeCounterfeit:
		return RowUpdate{}, true, false

	case herr.OutcomeAccepted:
		if r.opType == holo.OpRegisterAgentActivity {
			// RegisterAgentActivity has no integrity zome callback to run,
			// so an accepted op bypasses app validation entirely and goes
			// straight to integration.
			return RowUpdate{
				Hash:   r.hash,
				Status: holo.StatusValid,
				Stage:  holo.StageAwaitingIntegration,
			}, false, true
		}
		return RowUpdate{
			Hash:   r.hash,
			Status: holo.StatusPending,
			Stage:  holo.StageSysValidated,
		}, false, true

	case herr.OutcomeAwaitingOpDep:
		dep := r.outcome.Dep
		if w.Deps != nil {
			w.Deps.InsertMissingHashForOp(dep, r.hash)
		}
		if w.Fetcher != nil {
			w.Fetcher.RequestDependency(ctx, w.Space, dep)
		}
		return RowUpdate{
			Hash:           r.hash,
			Status:         holo.StatusPending,
			Stage:          holo.StageAwaitingSysDeps,
			AwaitingSysDep: &dep,
		}, false, true

	case herr.OutcomeDepMissingFromDht:
		// Left Pending for a later retry pass; deptracker's own timeout
		// path is what eventually turns a stuck wait into a rejection.
		return RowUpdate{
			Hash:   r.hash,
			Status: holo.StatusPending,
			Stage:  holo.StagePending,
		}, false, true

	case herr.OutcomeRejected:
		return RowUpdate{
			Hash:           r.hash,
			Status:         holo.StatusRejected,
			Stage:          holo.StageAwaitingIntegration,
			RequireReceipt: true,
		}, false, true

	default:
		return RowUpdate{}, false, false
	}
}

// dhtOpFromRow reconstitutes the DhtOp a persisted row was built from,
// so the checker can run over it without OpStore needing to hand back
// both representations.
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
