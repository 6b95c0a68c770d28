package appvalidation

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/deptracker"
	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
)

// RetryDelay is how long the workflow asks to be re-run after a pass
// that left ops awaiting dependencies.
const RetryDelay = 10 * time.Second

// DefaultBatchSize caps how many sys-validated rows one pass pulls.
const DefaultBatchSize = 50

// RowUpdate is one op's app-validation outcome, ready to merge into
// its stored OpRow. AwaitingActivityAgent is set instead of
// AwaitingAppDeps when the callback asked for an agent-activity range
// rather than specific hashes. The workflow records the wait only: it
// does not issue an agent-activity fetch, and nothing in this tree
// reads the field back.
type RowUpdate struct {
	Hash                  holo.DhtOpHash
	Status                holo.ValidationStatus
	Stage                 holo.ValidationStageKind
	AwaitingAppDeps       []holo.AnyLinkableHash
	AwaitingActivityAgent *holo.AgentPubKey
	RequireReceipt        bool
}

// OpStore is the persistence surface the workflow needs.
type OpStore interface {
	SysValidatedOps(ctx context.Context, limit int) ([]holo.OpRow, error)
	ApplyOutcomes(ctx context.Context, updates []RowUpdate) error
}

// Result reports one pass's outcome.
type Result struct {
	Processed  int
	Complete   bool
	RetryAfter time.Duration
}

// Workflow drives repeated sequential passes of app validation over
// one space's sys-validated ops.
type Workflow struct {
	Space     holo.DnaHash
	Store     OpStore
	Checker   *Checker
	Deps      *deptracker.Tracker
	BatchSize int
}

// NewWorkflow builds a Workflow with the default batch size.
func NewWorkflow(space holo.DnaHash, store OpStore, checker *Checker, deps *deptracker.Tracker) *Workflow {
	return &Workflow{Space: space, Store: store, Checker: checker, Deps: deps, BatchSize: DefaultBatchSize}
}

// Run pulls the next batch of sys-validated rows and checks them one
// at a time (unlike sys validation, app validation is sequential —
// a validate callback may itself call must_get and block). Returns
// Complete=true once every row in the batch reached a terminal
// outcome or the dependency wait has timed out; otherwise the caller
// should re-invoke Run after RetryAfter.
func (w *Workflow) Run(ctx context.Context) (Result, error) {
	batchSize := w.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	rows, err := w.Store.SysValidatedOps(ctx, batchSize)
	if err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{Complete: true}, nil
	}

	var updates []RowUpdate
	validated := 0

	for _, row := range rows {
		op := dhtOpFromRow(row)
		outcome, err := w.Checker.Check(ctx, op)
		if err != nil {
			continue
		}
		updates = append(updates, w.mapOutcome(row.Hash, outcome))
		if outcome.Kind == herr.AppAccepted || outcome.Kind == herr.AppRejected {
			validated++
		}
	}

	if len(updates) > 0 {
		if err := w.Store.ApplyOutcomes(ctx, updates); err != nil {
			return Result{}, err
		}
	}

	result := Result{Processed: len(rows)}
	if validated < len(rows) && !w.depsTimedOut() {
		result.RetryAfter = RetryDelay
		return result, nil
	}
	result.Complete = true
	return result, nil
}

func (w *Workflow) depsTimedOut() bool {
	return w.Deps != nil && w.Deps.FetchMissingHashesTimedOut()
}

// mapOutcome translates one AppValidationOutcome into a RowUpdate per
// the §4.5 step-4 persistence table.
func (w *Workflow) mapOutcome(hash holo.DhtOpHash, outcome herr.AppValidationOutcome) RowUpdate {
	switch outcome.Kind {
	case herr.AppAccepted:
		return RowUpdate{Hash: hash, Status: holo.StatusValid, Stage: holo.StageAwaitingIntegration}

	case herr.AppRejected:
		return RowUpdate{Hash: hash, Status: holo.StatusRejected, Stage: holo.StageAwaitingIntegration, RequireReceipt: true}

	case herr.AppAwaitingDepsHashes:
		if w.Deps != nil {
			for _, dep := range outcome.DepHashes {
				w.Deps.InsertMissingHashForOp(dep, hash)
			}
		}
		return RowUpdate{Hash: hash, Status: holo.StatusPending, Stage: holo.StageAwaitingAppDeps, AwaitingAppDeps: outcome.DepHashes}

	case herr.AppAwaitingDepsActivity:
		agent := outcome.ActivityAgent
		return RowUpdate{Hash: hash, Status: holo.StatusPending, Stage: holo.StageAwaitingAppDeps, AwaitingActivityAgent: &agent}

	default:
		return RowUpdate{Hash: hash, Status: holo.StatusPending, Stage: holo.StagePending}
	}
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
