package gossip

import (
	"testing"
	"time"

	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/gossip/region"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpSource struct {
	agents []holo.AgentPubKey
	hashes []holo.DhtOpHash
	region region.Set
}

func (f *fakeOpSource) AgentsInArc(holo.DnaHash, ArcSet) ([]holo.AgentPubKey, error) {
	return f.agents, nil
}

func (f *fakeOpSource) OpHashesInArc(holo.DnaHash, ArcSet, time.Time) ([]holo.DhtOpHash, error) {
	return f.hashes, nil
}

func (f *fakeOpSource) RegionSet(holo.DnaHash, ArcSet) (region.Set, error) {
	return f.region, nil
}

func (f *fakeOpSource) OpHashesForRegions(holo.DnaHash, []region.Coord) ([]holo.DhtOpHash, error) {
	return f.hashes, nil
}

type fakePeerDirectory struct {
	peers []AgentInfo
}

func (f *fakePeerDirectory) Peers(holo.DnaHash) []AgentInfo { return f.peers }

type fakeFetch struct {
	pushed []holo.DhtOpHash
}

func (f *fakeFetch) Push(key holo.DhtOpHash, space holo.DnaHash, source holo.AgentPubKey, context uint32, hasContext bool) {
	f.pushed = append(f.pushed, key)
}

func testDna() holo.DnaHash { return holo.NewDnaHash([]byte("gossip-test-dna")) }

func testCert(seed byte) PeerCert {
	var c PeerCert
	for i := range c {
		c[i] = seed
	}
	return c
}

func testAgent(seed byte) holo.AgentPubKey {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return holo.NewAgentPubKey(b)
}

func testOpHash(seed byte) holo.DhtOpHash {
	return holo.NewDhtOpHash([]byte{seed, seed, seed})
}

func newTestEngine(localArc ArcSet, peers []AgentInfo, ops *fakeOpSource, fetch *fakeFetch) *Engine {
	return NewEngine(testDna(), testCert(0xA0), localArc, &fakePeerDirectory{peers: peers}, ops, fetch)
}

func TestSelectInitiateTargetSkipsArcZero(t *testing.T) {
	e := newTestEngine(EmptyArcSet(), []AgentInfo{{Cert: testCert(1), Arc: FullArcSet()}}, &fakeOpSource{}, &fakeFetch{})
	_, ok := e.SelectInitiateTarget(ModuleRecent)
	assert.False(t, ok)
}

func TestSelectInitiateTargetSkipsNonOverlapping(t *testing.T) {
	localArc := NewArcSet(Interval{Start: 0, End: 100})
	peer := AgentInfo{Cert: testCert(1), Arc: NewArcSet(Interval{Start: 200, End: 300})}
	e := newTestEngine(localArc, []AgentInfo{peer}, &fakeOpSource{}, &fakeFetch{})
	_, ok := e.SelectInitiateTarget(ModuleRecent)
	assert.False(t, ok)
}

func TestSelectInitiateTargetPicksLeastRecentlyGossipped(t *testing.T) {
	full := FullArcSet()
	p1 := AgentInfo{Cert: testCert(1), Arc: full}
	p2 := AgentInfo{Cert: testCert(2), Arc: full}
	e := newTestEngine(full, []AgentInfo{p1, p2}, &fakeOpSource{}, &fakeFetch{})

	e.lastGossipped[p1.Cert] = time.Now()

	target, ok := e.SelectInitiateTarget(ModuleRecent)
	require.True(t, ok)
	assert.Equal(t, p2.Cert, target.Cert, "never-gossipped peer is preferred over a recently-gossipped one")
}

func TestHandleInitiateDeclinesWhenLocalArcEmpty(t *testing.T) {
	e := newTestEngine(EmptyArcSet(), nil, &fakeOpSource{}, &fakeFetch{})
	out, err := e.ProcessIncoming(testCert(1), ModuleRecent, Wire{Kind: WireInitiate, Intervals: FullArcSet(), RoundID: "r1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireNoAgents, out[0].Kind)
}

func TestHandleInitiateRepliesBusyWhenRoundAlreadyOpen(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(1)
	e.recent.rounds[peer] = newRoundState("existing")

	out, err := e.ProcessIncoming(peer, ModuleRecent, Wire{Kind: WireInitiate, Intervals: full, RoundID: "r2"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireBusy, out[0].Kind)
}

func TestSimultaneousInitiateTieBreakLowerCertWins(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(0xFF) // e.localCert (0xA0...) sorts lower than 0xFF...
	e.recent.initiateTgt = &peer
	e.recent.initiateRoundID = "mine"

	out, err := e.ProcessIncoming(peer, ModuleRecent, Wire{Kind: WireInitiate, Intervals: full, RoundID: "theirs"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireBusy, out[0].Kind, "the lower-sorting cert's own initiate should win, so it must refuse the incoming one")
	assert.NotNil(t, e.recent.initiateTgt, "our own outstanding initiate must survive since we won the tie-break")
}

func TestSimultaneousInitiateTieBreakHigherCertYields(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(0x01) // sorts lower than e.localCert (0xA0...)
	e.recent.initiateTgt = &peer
	e.recent.initiateRoundID = "mine"

	out, err := e.ProcessIncoming(peer, ModuleRecent, Wire{Kind: WireInitiate, Intervals: full, RoundID: "theirs"})
	require.NoError(t, err)
	require.NotEqual(t, WireBusy, out[0].Kind, "the higher-sorting cert must yield and accept the peer's initiate")
	assert.Nil(t, e.recent.initiateTgt)
}

func TestExpireRoundsDecrementsReputation(t *testing.T) {
	e := newTestEngine(FullArcSet(), nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(1)
	round := newRoundState("r1")
	round.LastTouch = time.Now().Add(-time.Hour)
	e.recent.rounds[peer] = round

	dropped := e.ExpireRounds(ModuleRecent, time.Now())

	assert.Equal(t, []PeerCert{peer}, dropped)
	assert.Equal(t, -1, e.Reputation(peer))
	_, stillOpen := e.recent.rounds[peer]
	assert.False(t, stillOpen)
}

func TestExpireRoundsLeavesFreshRoundsAlone(t *testing.T) {
	e := newTestEngine(FullArcSet(), nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(1)
	e.recent.rounds[peer] = newRoundState("r1")

	dropped := e.ExpireRounds(ModuleRecent, time.Now())

	assert.Empty(t, dropped)
	assert.Equal(t, 0, e.Reputation(peer))
}

// TestHappyPathRecentRoundConverges mirrors the two-node recent-module
// round: B initiates, A accepts and exchanges blooms, both sides end
// with no open round and any genuinely missing ops pushed to the
// fetch pool.
func TestHappyPathRecentRoundConverges(t *testing.T) {
	full := FullArcSet()
	agentA, agentB := testAgent(0xA1), testAgent(0xB1)
	opOnlyOnA := testOpHash(0xC1)
	opOnlyOnB := testOpHash(0xC2)

	opsA := &fakeOpSource{agents: []holo.AgentPubKey{agentA}, hashes: []holo.DhtOpHash{opOnlyOnA}}
	opsB := &fakeOpSource{agents: []holo.AgentPubKey{agentB}, hashes: []holo.DhtOpHash{opOnlyOnB}}
	fetchA, fetchB := &fakeFetch{}, &fakeFetch{}

	certA, certB := testCert(0x01), testCert(0x02)
	a := NewEngine(testDna(), certA, full, &fakePeerDirectory{peers: []AgentInfo{{Cert: certB, Arc: full}}}, opsA, fetchA)
	b := NewEngine(testDna(), certB, full, &fakePeerDirectory{peers: []AgentInfo{{Cert: certA, Arc: full}}}, opsB, fetchB)

	peer, initWire, ok := b.Initiate(ModuleRecent, []holo.AgentPubKey{agentB})
	require.True(t, ok)
	assert.Equal(t, certA, peer)

	queueToA, err := a.ProcessIncoming(certB, ModuleRecent, initWire)
	require.NoError(t, err)
	require.NotEmpty(t, queueToA)

	var queueToB []Wire
	for _, w := range queueToA {
		out, err := b.ProcessIncoming(certA, ModuleRecent, w)
		require.NoError(t, err)
		queueToB = append(queueToB, out...)
	}
	require.NotEmpty(t, queueToB)

	var queueToA2 []Wire
	for _, w := range queueToB {
		out, err := a.ProcessIncoming(certB, ModuleRecent, w)
		require.NoError(t, err)
		queueToA2 = append(queueToA2, out...)
	}

	for _, w := range queueToA2 {
		_, err := b.ProcessIncoming(certA, ModuleRecent, w)
		require.NoError(t, err)
	}

	assert.Empty(t, a.recent.rounds, "A's round must have closed once both blooms were exchanged")
	assert.Empty(t, b.recent.rounds, "B's round must have closed once both blooms were exchanged")
	assert.Contains(t, fetchB.pushed, opOnlyOnA, "B must learn about A's op it was missing")
	assert.Contains(t, fetchA.pushed, opOnlyOnB, "A must learn about B's op it was missing")
}

// probeOpSource wraps a fakeOpSource and samples the engine's
// negotiating flag and the round's RegionsAreQueued bit the moment
// OpHashesForRegions is called — the only window in which a
// synchronous handleOpRegions can be observed mid-diff.
type probeOpSource struct {
	fakeOpSource
	e              *Engine
	module         Module
	peer           PeerCert
	sawNegotiating bool
	sawQueuedFalse bool
}

func (p *probeOpSource) OpHashesForRegions(dna holo.DnaHash, coords []region.Coord) ([]holo.DhtOpHash, error) {
	p.sawNegotiating = p.e.state(p.module).negotiating[p.peer]
	if round, ok := p.e.state(p.module).rounds[p.peer]; ok {
		p.sawQueuedFalse = !round.RegionsAreQueued
	}
	return p.fakeOpSource.OpHashesForRegions(dna, coords)
}

func TestHandleOpRegionsTogglesNegotiatingAndRegionsAreQueuedWhileDiffing(t *testing.T) {
	full := FullArcSet()
	peer := testCert(1)
	mismatched := region.Set{Regions: map[region.Coord]region.Data{{TimeBucket: 1}: {Count: 1}}}

	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	probe := &probeOpSource{fakeOpSource: fakeOpSource{region: mismatched}, e: e, module: ModuleHistorical, peer: peer}
	e.ops = probe

	e.historical.rounds[peer] = newRoundState("r1")

	_, err := e.ProcessIncoming(peer, ModuleHistorical, Wire{Kind: WireOpRegions, RegionSet: region.NewSet()})
	require.NoError(t, err)

	assert.True(t, probe.sawNegotiating, "negotiating[peer] must be true while the diff is being computed")
	assert.True(t, probe.sawQueuedFalse, "RegionsAreQueued must be false while mismatched-region hashes are outstanding")
	assert.False(t, e.historical.negotiating[peer], "negotiating[peer] must be cleared once the reply is ready")
}

func TestHandleInitiateRepliesBusyWhileNegotiating(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	peer := testCert(1)
	e.historical.negotiating[peer] = true

	out, err := e.ProcessIncoming(peer, ModuleHistorical, Wire{Kind: WireInitiate, Intervals: full, RoundID: "r1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireBusy, out[0].Kind)
}

func TestHandleInitiateRepliesBusyWhenAnotherRoundHasRegionsQueued(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	other := testCert(2)
	round := newRoundState("r1")
	round.RegionsAreQueued = false
	e.historical.rounds[other] = round

	peer := testCert(1)
	out, err := e.ProcessIncoming(peer, ModuleHistorical, Wire{Kind: WireInitiate, Intervals: full, RoundID: "r2"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireBusy, out[0].Kind)
}

func TestEngineBusyPublishesEvent(t *testing.T) {
	full := FullArcSet()
	e := newTestEngine(full, nil, &fakeOpSource{}, &fakeFetch{})
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	e.Events = broker
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	peer := testCert(1)
	e.recent.rounds[peer] = newRoundState("existing")
	out, err := e.ProcessIncoming(peer, ModuleRecent, Wire{Kind: WireInitiate, Intervals: full, RoundID: "r2"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, WireBusy, out[0].Kind)

	select {
	case evt := <-sub:
		assert.Equal(t, events.EventGossipBusy, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a gossip.busy event")
	}
}
