package space

import (
	"sync"

	"github.com/holochain/holochain-core/pkg/holo"
)

// WitnessedAction is one signer's copy of a countersigned action, as
// collected by this node acting as witness for someone else's
// countersigning session.
type WitnessedAction struct {
	Signer holo.AgentPubKey
	Record *holo.Record
}

// WitnessingWorkspace holds countersigning sessions this node is
// witnessing on another agent's behalf — distinct from
// CountersigningWorkspace, which tracks sessions this node is itself a
// signer of. A witness collects every expected signer's own copy of
// the action and checks they agree before the session can resolve.
type WitnessingWorkspace struct {
	mu       sync.Mutex
	sessions map[holo.EntryHash]map[holo.AgentPubKey]*holo.Record
}

func newWitnessingWorkspace() *WitnessingWorkspace {
	return &WitnessingWorkspace{sessions: map[holo.EntryHash]map[holo.AgentPubKey]*holo.Record{}}
}

// Witness records one signer's copy of the countersigned action.
func (w *WitnessingWorkspace) Witness(entryHash holo.EntryHash, signer holo.AgentPubKey, rec *holo.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.sessions[entryHash]
	if !ok {
		m = map[holo.AgentPubKey]*holo.Record{}
		w.sessions[entryHash] = m
	}
	m[signer] = rec
}

// Collected returns every signer's copy witnessed so far for
// entryHash.
func (w *WitnessingWorkspace) Collected(entryHash holo.EntryHash) []WitnessedAction {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.sessions[entryHash]
	out := make([]WitnessedAction, 0, len(m))
	for signer, rec := range m {
		out = append(out, WitnessedAction{Signer: signer, Record: rec})
	}
	return out
}

// Consistent reports whether expectedSigners copies have been
// witnessed and every one of them points at the same entry — the
// minimal cross-check a witness performs before responding. Turning a
// mismatch into a warrant against the dishonest signer belongs to the
// countersigning resolution workflow, not this workspace.
func (w *WitnessingWorkspace) Consistent(entryHash holo.EntryHash, expectedSigners int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := w.sessions[entryHash]
	if len(m) < expectedSigners {
		return false
	}
	for _, rec := range m {
		if rec.SignedAction.Action.EntryHash != entryHash {
			return false
		}
	}
	return true
}

// Close discards a witnessed session.
func (w *WitnessingWorkspace) Close(entryHash holo.EntryHash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, entryHash)
}
