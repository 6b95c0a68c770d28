// Package space implements the Space Registry (§4.8): a
// DnaHash -> Space table with copy-on-insert semantics, each Space
// holding its shared per-DNA databases, lazily-created per-agent
// authored databases, and its countersigning/witnessing workspaces.
package space

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/holochain/holochain-core/pkg/config"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/metrics"
	"github.com/holochain/holochain-core/pkg/storage"
)

// Space bundles one DNA's shared databases (dht, cache, peer_meta),
// its per-agent authored databases, and the two in-memory workspaces
// multi-author validation needs.
type Space struct {
	DnaHash  holo.DnaHash
	Dht      *storage.DB
	Cache    *storage.DB
	PeerMeta *storage.DB

	Countersigning *CountersigningWorkspace
	Witnessing     *WitnessingWorkspace

	mu       sync.Mutex
	authored map[holo.AgentPubKey]*storage.DB

	statsMu sync.Mutex
	stats   metrics.SpaceStats
}

func newSpace(dna holo.DnaHash, dht, cache, peerMeta *storage.DB) *Space {
	return &Space{
		DnaHash:        dna,
		Dht:            dht,
		Cache:          cache,
		PeerMeta:       peerMeta,
		authored:       map[holo.AgentPubKey]*storage.DB{},
		Countersigning: newCountersigningWorkspace(),
		Witnessing:     newWitnessingWorkspace(),
		stats:          metrics.SpaceStats{DnaHash: dna.String(), OpsByStage: map[string]int{}},
	}
}

// AuthoredDB returns the agent's authored database if it has already
// been opened.
func (s *Space) AuthoredDB(agent holo.AgentPubKey) (*storage.DB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.authored[agent]
	return db, ok
}

// RecordStats overwrites this space's metrics snapshot. pkg/space
// does not itself know the op-row bucket schema (that lives with
// whatever wires cascade/validation workflows to storage), so the
// caller computing op-by-stage counts pushes its snapshot in here
// rather than this package reaching into storage to recompute it.
func (s *Space) RecordStats(stats metrics.SpaceStats) {
	stats.DnaHash = s.DnaHash.String()
	s.statsMu.Lock()
	s.stats = stats
	s.statsMu.Unlock()
}

// Stats returns the most recently recorded snapshot.
func (s *Space) Stats() metrics.SpaceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Close closes every database this space opened, shared and authored.
func (s *Space) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	note(s.Dht.Close())
	note(s.Cache.Close())
	note(s.PeerMeta.Close())

	s.mu.Lock()
	for _, db := range s.authored {
		note(db.Close())
	}
	s.mu.Unlock()

	return firstErr
}

// Registry is the DnaHash -> Space table. GetOrCreateSpace is
// idempotent; readers (Get, SpaceCount, SpaceStats) never block behind
// a creation in progress because an insert swaps in a freshly copied
// map rather than mutating the live one — the "copy-on-insert
// semantics" §4.8 names.
type Registry struct {
	dataRootPath  string
	syncLevel     config.SyncLevel
	maxReaders    int
	encryptionKey []byte

	createMu sync.Mutex // serializes concurrent get-or-create races only
	spaces   atomic.Pointer[map[holo.DnaHash]*Space]
}

// NewRegistry builds an empty Registry. encryptionKey is the key
// material every database this registry opens is expected to share
// (§4.8); pkg/storage's bbolt backend has no native at-rest encryption
// hook, so the key is stored on the registry unchecked and is not
// applied to any database it opens.
func NewRegistry(dataRootPath string, syncLevel config.SyncLevel, maxReaders int, encryptionKey []byte) *Registry {
	r := &Registry{
		dataRootPath:  dataRootPath,
		syncLevel:     syncLevel,
		maxReaders:    maxReaders,
		encryptionKey: encryptionKey,
	}
	empty := map[holo.DnaHash]*Space{}
	r.spaces.Store(&empty)
	return r
}

// Get returns the space for dna if it has already been created.
func (r *Registry) Get(dna holo.DnaHash) (*Space, bool) {
	m := *r.spaces.Load()
	sp, ok := m[dna]
	return sp, ok
}

// GetOrCreateSpace opens (or returns the already-open) dht/cache/
// peer_meta databases for dna. Concurrent calls for the same dna
// serialize on createMu; a caller that waited re-checks the table and
// returns the space the first caller inserted, opening nothing itself.
func (r *Registry) GetOrCreateSpace(dna holo.DnaHash) (*Space, error) {
	if sp, ok := r.Get(dna); ok {
		return sp, nil
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	if sp, ok := r.Get(dna); ok {
		return sp, nil
	}

	dir := filepath.Join(r.dataRootPath, dna.String())
	dht, err := storage.Open(dir, storage.KindDht, "dht.db", r.syncLevel, r.maxReaders)
	if err != nil {
		return nil, err
	}
	cache, err := storage.Open(dir, storage.KindCache, "cache.db", r.syncLevel, r.maxReaders)
	if err != nil {
		return nil, err
	}
	peerMeta, err := storage.Open(dir, storage.KindPeerMeta, "peer_meta.db", r.syncLevel, r.maxReaders)
	if err != nil {
		return nil, err
	}

	sp := newSpace(dna, dht, cache, peerMeta)
	r.insert(dna, sp)
	return sp, nil
}

func (r *Registry) insert(dna holo.DnaHash, sp *Space) {
	old := *r.spaces.Load()
	next := make(map[holo.DnaHash]*Space, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[dna] = sp
	r.spaces.Store(&next)
}

// GetOrCreateAuthoredDB lazily opens one agent's authored database
// within dna's space, per §4.8's "authored databases are created
// lazily per agent".
func (r *Registry) GetOrCreateAuthoredDB(dna holo.DnaHash, agent holo.AgentPubKey) (*storage.DB, error) {
	sp, err := r.GetOrCreateSpace(dna)
	if err != nil {
		return nil, err
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()
	if db, ok := sp.authored[agent]; ok {
		return db, nil
	}

	dir := filepath.Join(r.dataRootPath, dna.String())
	filename := fmt.Sprintf("authored-%s.db", agent.String())
	db, err := storage.Open(dir, storage.KindAuthored, filename, r.syncLevel, r.maxReaders)
	if err != nil {
		return nil, err
	}
	sp.authored[agent] = db
	return db, nil
}

// SpaceCount implements pkg/metrics.StatsSource.
func (r *Registry) SpaceCount() int {
	return len(*r.spaces.Load())
}

// SpaceStats implements pkg/metrics.StatsSource.
func (r *Registry) SpaceStats() []metrics.SpaceStats {
	m := *r.spaces.Load()
	stats := make([]metrics.SpaceStats, 0, len(m))
	for _, sp := range m {
		stats = append(stats, sp.Stats())
	}
	return stats
}

var _ metrics.StatsSource = (*Registry)(nil)
