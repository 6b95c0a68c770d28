package holo

// DhtOpType identifies which per-basis projection of an action a DhtOp
// represents.
type DhtOpType string

const (
	OpStoreRecord               DhtOpType = "StoreRecord"
	OpStoreEntry                DhtOpType = "StoreEntry"
	OpRegisterAgentActivity     DhtOpType = "RegisterAgentActivity"
	OpRegisterUpdatedContent    DhtOpType = "RegisterUpdatedContent"
	OpRegisterUpdatedRecord     DhtOpType = "RegisterUpdatedRecord"
	OpRegisterDeletedBy         DhtOpType = "RegisterDeletedBy"
	OpRegisterDeletedEntryAction DhtOpType = "RegisterDeletedEntryAction"
	OpRegisterAddLink           DhtOpType = "RegisterAddLink"
	OpRegisterRemoveLink        DhtOpType = "RegisterRemoveLink"
)

// DhtOp is the DHT-level projection of one action, routed to a basis
// derived from the op type.
type DhtOp struct {
	Type         DhtOpType
	SignedAction SignedAction
	// Entry is present only when the projected action is entry-bearing
	// and the entry's visibility is Public.
	Entry *Entry
}

// Basis is the hash this op is stored and looked up under, per the
// table in the data model: StoreRecord baskets on the action hash,
// StoreEntry on the entry hash, RegisterAgentActivity on the author,
// the Register* update/delete ops on the affected entry/action, and
// link ops on the link's base address.
func (op DhtOp) Basis() AnyLinkableHash {
	a := op.SignedAction.Action
	switch op.Type {
	case OpStoreRecord:
		return LinkableFromAction(op.SignedAction.Hash())
	case OpStoreEntry:
		return LinkableFromEntry(a.EntryHash)
	case OpRegisterAgentActivity:
		return LinkableFromAction(ActionHash{a.Author.rawHash})
	case OpRegisterUpdatedContent:
		return LinkableFromEntry(a.OriginalEntryHash)
	case OpRegisterUpdatedRecord:
		return LinkableFromAction(a.OriginalActionHash)
	case OpRegisterDeletedBy:
		return LinkableFromAction(a.DeletedActionHash)
	case OpRegisterDeletedEntryAction:
		return LinkableFromEntry(a.DeletedEntryHash)
	case OpRegisterAddLink, OpRegisterRemoveLink:
		return a.BaseAddress
	default:
		return AnyLinkableHash{}
	}
}

// SysValidationDependency is the single other hash (if any) that must
// be locally resolvable before sys validation can evaluate this op.
func (op DhtOp) SysValidationDependency() (AnyLinkableHash, bool) {
	a := op.SignedAction.Action
	switch op.Type {
	case OpRegisterUpdatedContent, OpRegisterUpdatedRecord:
		return LinkableFromAction(a.OriginalActionHash), true
	case OpRegisterDeletedBy, OpRegisterDeletedEntryAction:
		return LinkableFromAction(a.DeletedActionHash), true
	case OpRegisterRemoveLink:
		return LinkableFromAction(a.LinkAddress), true
	default:
		if a.PrevAction != nil {
			return LinkableFromAction(*a.PrevAction), true
		}
		return AnyLinkableHash{}, false
	}
}

// Hash content-addresses (type, action, entry-if-public), matching
// invariant 5: hash(op) is stable across nodes regardless of which
// node computes it.
func (op DhtOp) Hash() DhtOpHash {
	payload := EncodeAction(op.SignedAction.Action)
	payload = append([]byte(op.Type), payload...)
	if op.Entry != nil {
		payload = append(payload, EncodeEntry(*op.Entry)...)
	}
	return NewDhtOpHash(payload)
}

// OpsForAction projects one signed action into the 1-N DhtOps it
// produces, selecting the entry body only when visibility allows it.
func OpsForAction(sa SignedAction, entry *Entry, visibility EntryVisibility) []DhtOp {
	publicEntry := entry
	if visibility == EntryPrivate {
		publicEntry = nil
	}

	ops := []DhtOp{
		{Type: OpStoreRecord, SignedAction: sa, Entry: publicEntry},
	}

	a := sa.Action
	switch a.Type {
	case ActionCreate:
		ops = append(ops, DhtOp{Type: OpStoreEntry, SignedAction: sa, Entry: publicEntry})
	case ActionUpdate:
		ops = append(ops,
			DhtOp{Type: OpStoreEntry, SignedAction: sa, Entry: publicEntry},
			DhtOp{Type: OpRegisterUpdatedContent, SignedAction: sa},
			DhtOp{Type: OpRegisterUpdatedRecord, SignedAction: sa},
		)
	case ActionDelete:
		ops = append(ops,
			DhtOp{Type: OpRegisterDeletedBy, SignedAction: sa},
			DhtOp{Type: OpRegisterDeletedEntryAction, SignedAction: sa},
		)
	case ActionCreateLink:
		ops = append(ops, DhtOp{Type: OpRegisterAddLink, SignedAction: sa})
	case ActionDeleteLink:
		ops = append(ops, DhtOp{Type: OpRegisterRemoveLink, SignedAction: sa})
	}

	// Every action, regardless of variant, also registers on its
	// author's activity log.
	ops = append(ops, DhtOp{Type: OpRegisterAgentActivity, SignedAction: sa})
	return ops
}
