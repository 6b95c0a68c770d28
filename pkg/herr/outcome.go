package herr

import "github.com/holochain/holochain-core/pkg/holo"

// OutcomeKind is the closed sum of recoverable results a structural
// check can produce. None of these ever cross a function boundary as
// a Go error — they are the success value sys/app validation branch on.
type OutcomeKind string

const (
	// OutcomeAccepted: every structural rule passed.
	OutcomeAccepted OutcomeKind = "Accepted"
	// OutcomeRejected: a deterministic rule failed; terminal.
	OutcomeRejected OutcomeKind = "Rejected"
	// OutcomeAwaitingOpDep: a dependency hash was not found locally and
	// network lookup has not yet been attempted; enqueue it.
	OutcomeAwaitingOpDep OutcomeKind = "AwaitingOpDep"
	// OutcomeDepMissingFromDht: the dependency was looked up over the
	// network and is provably absent for now; retry later rather than
	// reject.
	OutcomeDepMissingFromDht OutcomeKind = "DepMissingFromDht"
	// OutcomeCounterfeit: signature or authorship check failed; the op
	// is dropped without a stored row.
	OutcomeCounterfeit OutcomeKind = "Counterfeit"
)

// ValidationOutcome is the return value of every pure structural check
// in sys and app validation (Design Note "Exceptions for control flow").
type ValidationOutcome struct {
	Kind   OutcomeKind
	Dep    holo.AnyLinkableHash // set for AwaitingOpDep / DepMissingFromDht
	Reason string               // set for Rejected
}

func Accepted() ValidationOutcome { return ValidationOutcome{Kind: OutcomeAccepted} }

func Rejected(reason string) ValidationOutcome {
	return ValidationOutcome{Kind: OutcomeRejected, Reason: reason}
}

func AwaitingOpDep(dep holo.AnyLinkableHash) ValidationOutcome {
	return ValidationOutcome{Kind: OutcomeAwaitingOpDep, Dep: dep}
}

func DepMissingFromDht(dep holo.AnyLinkableHash) ValidationOutcome {
	return ValidationOutcome{Kind: OutcomeDepMissingFromDht, Dep: dep}
}

func Counterfeit() ValidationOutcome { return ValidationOutcome{Kind: OutcomeCounterfeit} }

// Ok reports whether this outcome represents successful validation.
func (o ValidationOutcome) Ok() bool { return o.Kind == OutcomeAccepted }

// AppOutcomeKind mirrors the ribosome's ValidateResult vocabulary
// (§6), the result of app validation rather than structural checks.
type AppOutcomeKind string

const (
	AppAccepted               AppOutcomeKind = "Accepted"
	AppRejected               AppOutcomeKind = "Rejected"
	AppAwaitingDepsHashes     AppOutcomeKind = "AwaitingDepsHashes"
	AppAwaitingDepsActivity   AppOutcomeKind = "AwaitingDepsActivity"
)

// AppValidationOutcome is the result of invoking a zome's validate
// callback and interpreting its ValidateResult.
type AppValidationOutcome struct {
	Kind          AppOutcomeKind
	Reason        string
	DepHashes     []holo.AnyLinkableHash
	ActivityAgent holo.AgentPubKey
}
