package holo

// Entry is the content half of a Record. Kind selects which of the
// fields below apply, mirroring the flat-struct approach used for
// Action.
type Entry struct {
	Kind EntryKind

	// Agent
	Agent AgentPubKey

	// App
	App []byte

	// CapClaim / CapGrant store opaque application-defined bytes; the
	// core runtime never interprets them, only routes and persists them.
	CapClaim []byte
	CapGrant []byte

	// CounterSign
	CounterSignSession []byte
	CounterSignEntry   []byte
}

// Bytes returns the canonical payload used for hashing and storage,
// selected by Kind.
func (e Entry) Bytes() []byte {
	switch e.Kind {
	case EntryKindAgent:
		return e.Agent.Bytes()
	case EntryKindApp:
		return e.App
	case EntryKindCapClaim:
		return e.CapClaim
	case EntryKindCapGrant:
		return e.CapGrant
	case EntryKindCounterSign:
		return append(append([]byte{}, e.CounterSignSession...), e.CounterSignEntry...)
	default:
		return nil
	}
}
