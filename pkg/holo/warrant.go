package holo

import "time"

// WarrantType enumerates the kinds of accusation a warrant can carry.
// The core currently only emits chain-integrity warrants; the type tag
// is kept open so storage and wire format do not need to change if a
// second kind is added later.
type WarrantType string

const (
	WarrantChainIntegrity WarrantType = "ChainIntegrityWarrant"
)

// Warrant is a signed statement that an op authored by Author is
// invalid. Warrants have no TTL and are gossipped indefinitely.
type Warrant struct {
	Type      WarrantType
	Author    AgentPubKey
	Warrantee AgentPubKey
	Action    ActionHash
	Reason    string
	Timestamp time.Time
	Signature []byte
}

// Hash content-addresses the warrant's accusation, independent of signature.
func (w Warrant) Hash() DhtOpHash {
	payload := EncodeAction(Action{
		Type:      ActionType(w.Type),
		Author:    w.Author,
		Timestamp: w.Timestamp,
	})
	payload = append(payload, w.Warrantee.Bytes()...)
	payload = append(payload, w.Action.Bytes()...)
	payload = append(payload, []byte(w.Reason)...)
	return NewDhtOpHash(payload)
}
