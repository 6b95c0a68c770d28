package holo

import "time"

// ValidationStatus is the op's validation verdict once it is known.
type ValidationStatus string

const (
	StatusPending  ValidationStatus = "Pending"
	StatusValid    ValidationStatus = "Valid"
	StatusRejected ValidationStatus = "Rejected"
)

// ValidationStageKind discriminates ValidationStage's variants; stages
// that carry a payload (AwaitingSysDeps, AwaitingAppDeps) set the
// corresponding field on OpRow alongside this tag.
type ValidationStageKind string

const (
	StagePending           ValidationStageKind = "Pending"
	StageSysValidated      ValidationStageKind = "SysValidated"
	StageAwaitingSysDeps   ValidationStageKind = "AwaitingSysDeps"
	StageAwaitingAppDeps   ValidationStageKind = "AwaitingAppDeps"
	StageAwaitingIntegration ValidationStageKind = "AwaitingIntegration"
)

// OpRow is the persisted shape of one DhtOp, including the validation
// bookkeeping layered on top of the op itself.
type OpRow struct {
	Hash      DhtOpHash
	Type      DhtOpType
	Basis     AnyLinkableHash
	Action    Action
	Signature []byte
	Entry     *Entry

	ValidationStatus ValidationStatus
	ValidationStage  ValidationStageKind

	// AwaitingSysDeps payload: the single hash sys validation is
	// blocked on.
	AwaitingSysDep *AnyLinkableHash

	// AwaitingAppDeps payload: every hash app validation is blocked on.
	AwaitingAppDeps []AnyLinkableHash

	WhenIntegrated *time.Time
	RequireReceipt bool
}

// NewOpRow builds the initial Pending row for a freshly ingested op,
// whether authored locally or received over the network.
func NewOpRow(op DhtOp) OpRow {
	return OpRow{
		Hash:             op.Hash(),
		Type:             op.Type,
		Basis:            op.Basis(),
		Action:           op.SignedAction.Action,
		Signature:        op.SignedAction.Signature,
		Entry:            op.Entry,
		ValidationStatus: StatusPending,
		ValidationStage:  StagePending,
	}
}

// IsTerminal reports whether this row can never change validation
// status again (invariant 3: rejection is terminal).
func (r OpRow) IsTerminal() bool {
	return r.ValidationStatus == StatusRejected && r.ValidationStage == StageAwaitingIntegration
}

// IsIntegrated reports whether this op has completed integration.
func (r OpRow) IsIntegrated() bool {
	return r.WhenIntegrated != nil
}
