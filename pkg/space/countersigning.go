package space

import (
	"sync"
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// CountersigningSession tracks one multi-author entry this node is a
// signer for. Signers is the full expected signer set; signed
// accumulates as each signature arrives.
type CountersigningSession struct {
	EntryHash   holo.EntryHash
	SessionData []byte
	Signers     []holo.AgentPubKey
	ExpiresAt   time.Time

	signed map[holo.AgentPubKey]holo.ActionHash
}

// Complete reports whether every expected signer's action has been
// recorded.
func (s *CountersigningSession) Complete() bool {
	return len(s.signed) >= len(s.Signers)
}

// Signed returns the actions recorded so far, keyed by signer.
func (s *CountersigningSession) Signed() map[holo.AgentPubKey]holo.ActionHash {
	out := make(map[holo.AgentPubKey]holo.ActionHash, len(s.signed))
	for k, v := range s.signed {
		out[k] = v
	}
	return out
}

// CountersigningWorkspace holds this space's in-progress countersigning
// sessions, keyed by entry hash. It is deliberately a bookkeeping
// surface only — resolving a stalled session or cross-checking every
// signer's own copy is the countersigning resolution workflow's job,
// out of scope here the same way pkg/sysvalidation's
// checkCountersigning only checks a session is structurally present.
type CountersigningWorkspace struct {
	mu       sync.Mutex
	sessions map[holo.EntryHash]*CountersigningSession
}

func newCountersigningWorkspace() *CountersigningWorkspace {
	return &CountersigningWorkspace{sessions: map[holo.EntryHash]*CountersigningSession{}}
}

// Open registers a new session this node is participating in,
// replacing any existing session for the same entry.
func (w *CountersigningWorkspace) Open(entryHash holo.EntryHash, sessionData []byte, signers []holo.AgentPubKey, expiresAt time.Time) *CountersigningSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &CountersigningSession{
		EntryHash:   entryHash,
		SessionData: sessionData,
		Signers:     signers,
		ExpiresAt:   expiresAt,
		signed:      map[holo.AgentPubKey]holo.ActionHash{},
	}
	w.sessions[entryHash] = s
	return s
}

// RecordSignature records one signer's action hash against entryHash's
// open session. Returns ok=false if no session is open for entryHash.
func (w *CountersigningWorkspace) RecordSignature(entryHash holo.EntryHash, signer holo.AgentPubKey, action holo.ActionHash) (complete bool, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, found := w.sessions[entryHash]
	if !found {
		return false, false
	}
	s.signed[signer] = action
	return s.Complete(), true
}

// Get returns the open session for entryHash, if any.
func (w *CountersigningWorkspace) Get(entryHash holo.EntryHash) (*CountersigningSession, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[entryHash]
	return s, ok
}

// Close discards a session, whether it resolved or was abandoned.
func (w *CountersigningWorkspace) Close(entryHash holo.EntryHash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, entryHash)
}

// ExpireOlderThan drops every session whose deadline has passed,
// returning the entry hashes it dropped.
func (w *CountersigningWorkspace) ExpireOlderThan(now time.Time) []holo.EntryHash {
	w.mu.Lock()
	defer w.mu.Unlock()
	var expired []holo.EntryHash
	for h, s := range w.sessions {
		if s.ExpiresAt.Before(now) {
			expired = append(expired, h)
			delete(w.sessions, h)
		}
	}
	return expired
}
