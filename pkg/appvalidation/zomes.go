// Package appvalidation implements the app validation workflow
// (§4.5): for each sys-validated op, work out which of the DNA's
// integrity zomes must see it and invoke the ribosome's validate
// callback, turning its result into a stage transition.
package appvalidation

import (
	"context"
	"fmt"

	"github.com/holochain/holochain-core/pkg/cascade"
	"github.com/holochain/holochain-core/pkg/herr"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/ribosome"
)

// Checker runs one op through zome resolution and the validate
// callback.
type Checker struct {
	Cascade  *cascade.Cascade
	Ribosome ribosome.Ribosome
	Space    holo.DnaHash
}

// Check determines the zomes to invoke and runs the validate
// callback, returning its outcome. A non-zero-Kind intermediate
// outcome from zome resolution (awaiting/rejected) short-circuits
// before the callback ever runs.
func (c *Checker) Check(ctx context.Context, op holo.DhtOp) (herr.AppValidationOutcome, error) {
	zomes, out, err := c.determineZomes(ctx, op)
	if err != nil {
		return herr.AppValidationOutcome{}, err
	}
	if out.Kind != "" {
		return out, nil
	}

	access := ribosome.HostAccess{Space: c.Space, Author: op.SignedAction.Action.Author}
	invocation := ribosome.ValidateInvocation{Zomes: zomes, Op: op}
	return c.Ribosome.RunValidate(ctx, access, invocation)
}

// determineZomes implements the §4.5 step-2 table. The herr return is
// non-zero only to short-circuit Check with an awaiting/rejected
// outcome discovered while resolving zomes, not from the callback.
func (c *Checker) determineZomes(ctx context.Context, op holo.DhtOp) ([]ribosome.IntegrityZome, herr.AppValidationOutcome, error) {
	a := op.SignedAction.Action

	switch op.Type {
	case holo.OpRegisterAgentActivity:
		return c.Ribosome.IntegrityZomes(), herr.AppValidationOutcome{}, nil

	case holo.OpRegisterAddLink:
		return c.zomeByIndex(a.ZomeIndex)

	case holo.OpRegisterRemoveLink:
		createLink, out, err := c.retrieveAction(ctx, a.LinkAddress)
		if out.Kind != "" || err != nil {
			return nil, out, err
		}
		return c.zomeByIndex(createLink.SignedAction.Action.ZomeIndex)

	case holo.OpStoreEntry, holo.OpRegisterUpdatedContent, holo.OpRegisterUpdatedRecord:
		return c.zomesByEntryType(a.EntryType)

	case holo.OpRegisterDeletedBy, holo.OpRegisterDeletedEntryAction:
		deleted, out, err := c.retrieveAction(ctx, a.DeletedActionHash)
		if out.Kind != "" || err != nil {
			return nil, out, err
		}
		return c.zomesByEntryType(deleted.SignedAction.Action.EntryType)

	case holo.OpStoreRecord:
		switch a.Type {
		case holo.ActionDelete:
			deleted, out, err := c.retrieveAction(ctx, a.DeletedActionHash)
			if out.Kind != "" || err != nil {
				return nil, out, err
			}
			return c.zomesByEntryType(deleted.SignedAction.Action.EntryType)
		case holo.ActionDeleteLink:
			createLink, out, err := c.retrieveAction(ctx, a.LinkAddress)
			if out.Kind != "" || err != nil {
				return nil, out, err
			}
			return c.zomeByIndex(createLink.SignedAction.Action.ZomeIndex)
		case holo.ActionCreateLink:
			return c.zomeByIndex(a.ZomeIndex)
		case holo.ActionCreate, holo.ActionUpdate:
			return c.zomesByEntryType(a.EntryType)
		default:
			return c.Ribosome.IntegrityZomes(), herr.AppValidationOutcome{}, nil
		}

	default:
		return c.Ribosome.IntegrityZomes(), herr.AppValidationOutcome{}, nil
	}
}

func (c *Checker) zomeByIndex(idx uint8) ([]ribosome.IntegrityZome, herr.AppValidationOutcome, error) {
	zome, ok := c.Ribosome.GetIntegrityZome(idx)
	if !ok {
		return nil, herr.AppValidationOutcome{
			Kind:   herr.AppRejected,
			Reason: fmt.Sprintf("no integrity zome with index %d", idx),
		}, nil
	}
	return []ribosome.IntegrityZome{zome}, herr.AppValidationOutcome{}, nil
}

func (c *Checker) zomesByEntryType(et holo.EntryType) ([]ribosome.IntegrityZome, herr.AppValidationOutcome, error) {
	if et.Kind != holo.EntryKindApp {
		return c.Ribosome.IntegrityZomes(), herr.AppValidationOutcome{}, nil
	}
	return c.zomeByIndex(et.ZomeIndex)
}

// retrieveAction is the awaiting-dependency flavor of cascade lookup
// shared by every branch above that needs a prior action (a deleted
// action, or the CreateLink a DeleteLink/RegisterRemoveLink pairs
// with).
func (c *Checker) retrieveAction(ctx context.Context, hash holo.ActionHash) (*holo.Record, herr.AppValidationOutcome, error) {
	rec, _, err := c.Cascade.RetrieveAction(ctx, hash, cascade.GetOptions{Strategy: cascade.LocalOnly})
	if err != nil {
		return nil, herr.AppValidationOutcome{}, err
	}
	if rec == nil {
		dep := holo.LinkableFromAction(hash)
		return nil, herr.AppValidationOutcome{Kind: herr.AppAwaitingDepsHashes, DepHashes: []holo.AnyLinkableHash{dep}}, nil
	}
	return rec, herr.AppValidationOutcome{}, nil
}
