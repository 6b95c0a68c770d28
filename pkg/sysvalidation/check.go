// Package sysvalidation implements the system validation workflow
// (§4.4): counterfeit and structural checks over the next batch of
// pending ops, producing an outcome-as-value (never an error) for
// each, then batching the resulting stage transitions into a single
// storage write.
package sysvalidation

import (
	"context"

	"github.com/holochain/holochain-core/pkg/cascade"
	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
)

// Limits bounds the structural checks that depend on a configured cap
// rather than a DNA-declared invariant.
type Limits struct {
	EntryMaxBytes int
	TagMaxBytes   int
}

// DefaultLimits returns conservative round-number entry/link-tag size
// ceilings (see DESIGN.md); they are not taken from another
// implementation.
func DefaultLimits() Limits {
	return Limits{EntryMaxBytes: 4_000_000, TagMaxBytes: 1024}
}

// Verifier checks a signature was produced by agent, satisfied by
// pkg/keystore.Keystore.
type Verifier interface {
	Verify(agent holo.AgentPubKey, msg, sig []byte) bool
}

// ActivitySource answers whether author already has a distinct action
// at seq with a different hash, for the chain-rollback check. Backed
// by pkg/activity once built; nil disables the check (it degrades to
// "accept", matching local-only behavior before the DHT data exists).
type ActivitySource interface {
	ActionAtSeq(ctx context.Context, author holo.AgentPubKey, seq uint32) (*holo.Record, bool, error)
}

// Checker runs the per-op structural checks described in §4.4 against
// one space's cascade.
type Checker struct {
	Cascade  *cascade.Cascade
	Verifier Verifier
	Activity ActivitySource
	Limits   Limits
}

// Check runs the counterfeit check followed by the structural checks,
// returning the resulting ValidationOutcome. Only a genuine I/O
// failure against the cascade is returned as error.
func (c *Checker) Check(ctx context.Context, op holo.DhtOp) (herr.ValidationOutcome, error) {
	a := op.SignedAction.Action

	if c.Verifier != nil {
		msg := holo.EncodeAction(a)
		if !c.Verifier.Verify(a.Author, msg, op.SignedAction.Signature) {
			return herr.Counterfeit(), nil
		}
	}

	return c.checkStructural(ctx, op)
}

func (c *Checker) checkStructural(ctx context.Context, op holo.DhtOp) (herr.ValidationOutcome, error) {
	a := op.SignedAction.Action

	if out, err := c.checkChain(ctx, a); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkEntry(op); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkUpdate(ctx, a); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkDelete(ctx, a); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkLink(ctx, a); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkRollback(ctx, a); !out.Ok() || err != nil {
		return out, err
	}
	if out, err := c.checkCountersigning(op); !out.Ok() || err != nil {
		return out, err
	}
	return herr.Accepted(), nil
}

// checkChain verifies prev_action presence/retrievability, action_seq
// contiguity and non-decreasing timestamps.
func (c *Checker) checkChain(ctx context.Context, a holo.Action) (herr.ValidationOutcome, error) {
	if !a.RequiresPrevAction() {
		if a.ActionSeq != 0 {
			return herr.Rejected("genesis action must have action_seq 0"), nil
		}
		return herr.Accepted(), nil
	}
	if a.PrevAction == nil {
		return herr.Rejected("prev_action required but absent"), nil
	}

	prevRec, _, err := c.Cascade.RetrieveAction(ctx, *a.PrevAction, cascade.GetOptions{Strategy: cascade.LocalOnly})
	if err != nil {
		return herr.ValidationOutcome{}, err
	}
	if prevRec == nil {
		return herr.AwaitingOpDep(holo.LinkableFromAction(*a.PrevAction)), nil
	}

	prev := prevRec.SignedAction.Action
	if a.ActionSeq != prev.ActionSeq+1 {
		return herr.Rejected("action_seq is not contiguous with prev_action"), nil
	}
	if a.Timestamp.Before(prev.Timestamp) {
		return herr.Rejected("timestamp precedes prev_action's timestamp"), nil
	}
	return herr.Accepted(), nil
}

// checkEntry verifies the entry hash and size for entry-bearing
// actions whose entry body is present on this op (private entries, or
// ops that intentionally hide the entry, skip this check).
func (c *Checker) checkEntry(op holo.DhtOp) (herr.ValidationOutcome, error) {
	a := op.SignedAction.Action
	if !a.IsEntryBearing() || op.Entry == nil {
		return herr.Accepted(), nil
	}

	encoded := holo.EncodeEntry(*op.Entry)
	if holo.NewEntryHash(encoded) != a.EntryHash {
		return herr.Rejected("entry_hash does not match entry body"), nil
	}
	if c.Limits.EntryMaxBytes > 0 && len(encoded) > c.Limits.EntryMaxBytes {
		return herr.Rejected("entry exceeds configured size cap"), nil
	}
	if op.Entry.Kind != a.EntryType.Kind {
		return herr.Rejected("entry kind does not match declared entry_type"), nil
	}
	return herr.Accepted(), nil
}

// checkUpdate verifies an Update action's original action is
// retrievable, is itself a create/update, and declares a matching
// entry type.
func (c *Checker) checkUpdate(ctx context.Context, a holo.Action) (herr.ValidationOutcome, error) {
	if a.Type != holo.ActionUpdate {
		return herr.Accepted(), nil
	}
	orig, _, err := c.Cascade.RetrieveAction(ctx, a.OriginalActionHash, cascade.GetOptions{Strategy: cascade.LocalOnly})
	if err != nil {
		return herr.ValidationOutcome{}, err
	}
	if orig == nil {
		return herr.AwaitingOpDep(holo.LinkableFromAction(a.OriginalActionHash)), nil
	}
	origAction := orig.SignedAction.Action
	if origAction.Type != holo.ActionCreate && origAction.Type != holo.ActionUpdate {
		return herr.Rejected("update target is not a create/update action"), nil
	}
	if origAction.EntryType.Kind != a.EntryType.Kind {
		return herr.Rejected("update entry type does not match original"), nil
	}
	return herr.Accepted(), nil
}

// checkDelete verifies a Delete action's target is retrievable and is
// itself entry-creating.
func (c *Checker) checkDelete(ctx context.Context, a holo.Action) (herr.ValidationOutcome, error) {
	if a.Type != holo.ActionDelete {
		return herr.Accepted(), nil
	}
	deleted, _, err := c.Cascade.RetrieveAction(ctx, a.DeletedActionHash, cascade.GetOptions{Strategy: cascade.LocalOnly})
	if err != nil {
		return herr.ValidationOutcome{}, err
	}
	if deleted == nil {
		return herr.AwaitingOpDep(holo.LinkableFromAction(a.DeletedActionHash)), nil
	}
	if !deleted.SignedAction.Action.IsEntryBearing() {
		return herr.Rejected("deleted action is not entry-creating"), nil
	}
	return herr.Accepted(), nil
}

// checkLink verifies a CreateLink action's base and target are
// retrievable (as either an entry or an action) and the tag is
// within the configured size cap.
func (c *Checker) checkLink(ctx context.Context, a holo.Action) (herr.ValidationOutcome, error) {
	if a.Type != holo.ActionCreateLink {
		return herr.Accepted(), nil
	}
	if c.Limits.TagMaxBytes > 0 && len(a.Tag) > c.Limits.TagMaxBytes {
		return herr.Rejected("link tag exceeds configured size cap"), nil
	}

	for _, h := range []holo.AnyLinkableHash{a.BaseAddress, a.TargetAddress} {
		found, err := c.resolveLinkable(ctx, h)
		if err != nil {
			return herr.ValidationOutcome{}, err
		}
		if !found {
			return herr.AwaitingOpDep(h), nil
		}
	}
	return herr.Accepted(), nil
}

func (c *Checker) resolveLinkable(ctx context.Context, h holo.AnyLinkableHash) (bool, error) {
	opts := cascade.GetOptions{Strategy: cascade.LocalOnly}
	if entryHash, ok := h.AsEntryHash(); ok {
		rec, _, err := c.Cascade.RetrieveEntry(ctx, entryHash, opts)
		return rec != nil, err
	}
	if actionHash, ok := h.AsActionHash(); ok {
		rec, _, err := c.Cascade.RetrieveAction(ctx, actionHash, opts)
		return rec != nil, err
	}
	return false, nil
}

// checkRollback rejects an action whose (author, action_seq) is
// already occupied by a distinct hash. Skipped when no ActivitySource
// is wired.
func (c *Checker) checkRollback(ctx context.Context, a holo.Action) (herr.ValidationOutcome, error) {
	if c.Activity == nil {
		return herr.Accepted(), nil
	}
	existing, found, err := c.Activity.ActionAtSeq(ctx, a.Author, a.ActionSeq)
	if err != nil {
		return herr.ValidationOutcome{}, err
	}
	if !found {
		return herr.Accepted(), nil
	}
	if existing.Hash() != holo.NewActionHash(holo.EncodeAction(a)) {
		return herr.Rejected("chain rollback: distinct action already occupies this seq"), nil
	}
	return herr.Accepted(), nil
}

// checkCountersigning requires a session to be present on the entry
// when the action declares a countersigned entry type. Full
// cross-agent session consistency is the countersigning resolution
// workflow's job, not system validation's; this only guards against a
// structurally incomplete op.
func (c *Checker) checkCountersigning(op holo.DhtOp) (herr.ValidationOutcome, error) {
	a := op.SignedAction.Action
	if a.EntryType.Kind != holo.EntryKindCounterSign || op.Entry == nil {
		return herr.Accepted(), nil
	}
	if op.Entry.CounterSignSession == nil {
		return herr.Rejected("countersigned entry missing session data"), nil
	}
	return herr.Accepted(), nil
}
