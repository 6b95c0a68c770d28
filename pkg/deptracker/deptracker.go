// Package deptracker maintains the process-wide bidirectional index
// between ops awaiting a dependency and the hashes they are waiting
// on, so the sys/app validation workflows can skip ops that cannot
// possibly progress and know when to give up retrying a fetch.
package deptracker

import (
	"sync"
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// Tracker is safe for concurrent use; sys validation and app
// validation each run on their own trigger loop and share one
// instance per space.
type Tracker struct {
	mu sync.Mutex

	// missingToOps maps a dependency hash not yet resolved to the set
	// of op hashes blocked on it.
	missingToOps map[string]map[string]struct{}
	// opToMissing is the reverse index, so an op's full set of
	// outstanding dependencies can be cleared in one pass.
	opToMissing map[string]map[string]struct{}
	// firstSeen records when a missing hash first entered the
	// tracker, for fetch_missing_hashes_timed_out.
	firstSeen map[string]time.Time

	timeout time.Duration
}

// New builds an empty tracker. timeout bounds how long a missing hash
// may stay unresolved before FetchMissingHashesTimedOut reports true.
func New(timeout time.Duration) *Tracker {
	return &Tracker{
		missingToOps: make(map[string]map[string]struct{}),
		opToMissing:  make(map[string]map[string]struct{}),
		firstSeen:    make(map[string]time.Time),
		timeout:      timeout,
	}
}

// InsertMissingHashForOp records that op is blocked on the dependency
// hash h, until RemoveMissingHash(h) is called.
func (t *Tracker) InsertMissingHashForOp(h holo.AnyLinkableHash, op holo.DhtOpHash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hk, ok := h.String(), op.String()
	if t.missingToOps[hk] == nil {
		t.missingToOps[hk] = make(map[string]struct{})
		t.firstSeen[hk] = time.Now()
	}
	t.missingToOps[hk][ok] = struct{}{}

	if t.opToMissing[ok] == nil {
		t.opToMissing[ok] = make(map[string]struct{})
	}
	t.opToMissing[ok][hk] = struct{}{}
}

// RemoveMissingHash clears h from the tracker, unblocking every op
// that was waiting on it. Called once the cascade successfully
// resolves h, whether by local hit or network fetch.
func (t *Tracker) RemoveMissingHash(h holo.AnyLinkableHash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeMissingHashLocked(h.String())
}

func (t *Tracker) removeMissingHashLocked(hk string) {
	for ok := range t.missingToOps[hk] {
		delete(t.opToMissing[ok], hk)
		if len(t.opToMissing[ok]) == 0 {
			delete(t.opToMissing, ok)
		}
	}
	delete(t.missingToOps, hk)
	delete(t.firstSeen, hk)
}

// RemoveOp drops every dependency entry for op, used once it has
// reached a terminal validation stage.
func (t *Tracker) RemoveOp(op holo.DhtOpHash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok := op.String()
	for hk := range t.opToMissing[ok] {
		delete(t.missingToOps[hk], ok)
		if len(t.missingToOps[hk]) == 0 {
			delete(t.missingToOps, hk)
			delete(t.firstSeen, hk)
		}
	}
	delete(t.opToMissing, ok)
}

// IsBlocked reports whether op currently has any unresolved
// dependency.
func (t *Tracker) IsBlocked(op holo.DhtOpHash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.opToMissing[op.String()]) > 0
}

// FilterOpsMissingDependencies drops ops whose dependencies are still
// unresolved, returning only those ready to proceed.
func (t *Tracker) FilterOpsMissingDependencies(ops []holo.DhtOpHash) []holo.DhtOpHash {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]holo.DhtOpHash, 0, len(ops))
	for _, op := range ops {
		if len(t.opToMissing[op.String()]) == 0 {
			out = append(out, op)
		}
	}
	return out
}

// FetchMissingHashesTimedOut reports whether the oldest outstanding
// missing hash has exceeded the tracker's configured ceiling. The app
// validation workflow uses this to stop re-triggering itself once
// further waiting cannot help.
func (t *Tracker) FetchMissingHashesTimedOut() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.firstSeen) == 0 {
		return false
	}
	oldest := time.Now()
	for _, seen := range t.firstSeen {
		if seen.Before(oldest) {
			oldest = seen
		}
	}
	return time.Since(oldest) > t.timeout
}

// PendingCount returns the number of distinct missing hashes currently
// tracked, for metrics and tests.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.missingToOps)
}
