package holo

// SignedAction pairs an Action with the Ed25519 signature its author
// produced over the action's canonical encoding.
type SignedAction struct {
	Action    Action
	Signature []byte
}

// Hash content-addresses the action's canonical encoding.
func (sa SignedAction) Hash() ActionHash {
	return NewActionHash(EncodeAction(sa.Action))
}

// Record is the canonical unit a source chain stores: a signed action
// plus the entry it points at, when one exists and is visible to the
// reader.
type Record struct {
	SignedAction SignedAction
	Entry        *Entry
}

// HasEntry reports whether this record carries an entry body (as
// opposed to the entry being hidden from this reader, or the action
// not being entry-bearing at all).
func (r Record) HasEntry() bool {
	return r.Entry != nil
}

// Hash content-addresses the record's action, the same hash its
// SignedAction carries.
func (r Record) Hash() ActionHash {
	return r.SignedAction.Hash()
}
