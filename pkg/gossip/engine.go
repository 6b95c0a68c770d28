// Package gossip implements the per-space sharded gossip engine
// (§4.7): two independent modules (recent, bloom-based; historical,
// region-tree-based) that run the same 3-step round state machine
// against a peer selected by least-recently-gossipped round robin.
package gossip

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/gossip/bloom"
	"github.com/holochain/holochain-core/pkg/gossip/region"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/metrics"
)

const (
	DefaultInitiateInterval = 10 * time.Second
	DefaultRoundTimeout     = 10 * time.Second
	DefaultRecentWindow     = time.Hour
)

var (
	errNoRound        = errors.New("gossip: no round open for this peer/module")
	errUnexpectedWire = errors.New("gossip: wire message did not match the round's expected state")
)

// OpSource is the engine's only dependency on the space's storage and
// cascade layers, narrowed the way pkg/cascade/pkg/sysvalidation
// narrow their own collaborators.
type OpSource interface {
	AgentsInArc(dna holo.DnaHash, arc ArcSet) ([]holo.AgentPubKey, error)
	OpHashesInArc(dna holo.DnaHash, arc ArcSet, since time.Time) ([]holo.DhtOpHash, error)
	RegionSet(dna holo.DnaHash, arc ArcSet) (region.Set, error)
	OpHashesForRegions(dna holo.DnaHash, coords []region.Coord) ([]holo.DhtOpHash, error)
}

// FetchEnqueuer is satisfied directly by *pkg/fetchpool.Pool.
type FetchEnqueuer interface {
	Push(key holo.DhtOpHash, space holo.DnaHash, source holo.AgentPubKey, context uint32, hasContext bool)
}

type moduleState struct {
	rounds          map[PeerCert]*RoundState
	initiateTgt     *PeerCert
	initiateRoundID string
	negotiating     map[PeerCert]bool
}

func newModuleState() moduleState {
	return moduleState{rounds: map[PeerCert]*RoundState{}, negotiating: map[PeerCert]bool{}}
}

// Engine runs both gossip modules for one space.
type Engine struct {
	mu sync.Mutex

	dna       holo.DnaHash
	localCert PeerCert
	localArc  ArcSet

	recentWindow time.Duration
	roundTimeout time.Duration

	peers PeerDirectory
	ops   OpSource
	fetch FetchEnqueuer

	recent     moduleState
	historical moduleState

	lastGossipped map[PeerCert]time.Time
	reputation    map[PeerCert]int

	// remoteAgents tracks one known agent per peer cert independent of
	// round lifecycle, so a MissingOpHashes reply that arrives after
	// its round has already closed (completion races ahead of its own
	// informational siblings) can still attribute a fetch-pool source.
	remoteAgents map[PeerCert]holo.AgentPubKey

	// Events, when set, is notified of round completions and Busy
	// replies.
	Events *events.Broker
}

// NewEngine builds an Engine for one space. localArc is the node's own
// storage arc; an empty arc puts the engine in arc-zero mode (§4.7: it
// "neither solicits nor serves ops via gossip").
func NewEngine(dna holo.DnaHash, localCert PeerCert, localArc ArcSet, peers PeerDirectory, ops OpSource, fetch FetchEnqueuer) *Engine {
	return &Engine{
		dna:           dna,
		localCert:     localCert,
		localArc:      localArc,
		recentWindow:  DefaultRecentWindow,
		roundTimeout:  DefaultRoundTimeout,
		peers:         peers,
		ops:           ops,
		fetch:         fetch,
		recent:        newModuleState(),
		historical:    newModuleState(),
		lastGossipped: map[PeerCert]time.Time{},
		reputation:    map[PeerCert]int{},
		remoteAgents:  map[PeerCert]holo.AgentPubKey{},
	}
}

func (e *Engine) state(module Module) *moduleState {
	if module == ModuleHistorical {
		return &e.historical
	}
	return &e.recent
}

// Reputation returns the peer's current standing, decremented once
// per round timeout and never otherwise adjusted by this package.
func (e *Engine) Reputation(peer PeerCert) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reputation[peer]
}

// SelectInitiateTarget picks the least-recently-gossipped remote with
// an overlapping arc and no round already open in module, the way the
// teacher's scheduler.selectNode picks the node with fewest containers
// — here, oldest last-gossip timestamp instead of a container count.
// Arc-zero nodes never initiate (P9).
func (e *Engine) SelectInitiateTarget(module Module) (AgentInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectInitiateTargetLocked(module)
}

func (e *Engine) selectInitiateTargetLocked(module Module) (AgentInfo, bool) {
	if e.localArc.IsEmpty() {
		return AgentInfo{}, false
	}
	ms := e.state(module)
	if ms.initiateTgt != nil {
		return AgentInfo{}, false
	}

	var best AgentInfo
	var bestSeen time.Time
	found := false
	for _, candidate := range e.peers.Peers(e.dna) {
		if !candidate.Arc.Overlaps(e.localArc) {
			continue
		}
		if _, busy := ms.rounds[candidate.Cert]; busy {
			continue
		}
		seen := e.lastGossipped[candidate.Cert]
		if !found || seen.Before(bestSeen) {
			best, bestSeen, found = candidate, seen, true
		}
	}
	return best, found
}

// Initiate starts a round against the selected target for module,
// returning the peer to send the message to and the Initiate wire
// message itself.
func (e *Engine) Initiate(module Module, localAgents []holo.AgentPubKey) (PeerCert, Wire, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	target, ok := e.selectInitiateTargetLocked(module)
	if !ok {
		return PeerCert{}, Wire{}, false
	}

	ms := e.state(module)
	id := uuid.NewString()
	ms.initiateTgt = &target.Cert
	ms.initiateRoundID = id

	return target.Cert, Wire{
		Kind:      WireInitiate,
		Intervals: e.localArc,
		RoundID:   id,
		AgentList: localAgents,
	}, true
}

// ProcessIncoming advances this peer/module's round state machine on
// receipt of msg, returning zero or more wire messages to send back.
func (e *Engine) ProcessIncoming(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch msg.Kind {
	case WireInitiate:
		return e.handleInitiate(peer, module, msg)
	case WireAccept:
		return e.handleAccept(peer, module, msg)
	case WireAgents:
		return e.handleAgents(peer, module, msg)
	case WireMissingAgents:
		return e.handleMissingAgents(peer, module, msg)
	case WireOpBloom:
		return e.handleOpBloom(peer, module, msg)
	case WireOpRegions:
		return e.handleOpRegions(peer, module, msg)
	case WireMissingOpHashes:
		return e.handleMissingOpHashes(peer, module, msg)
	case WireNoAgents, WireBusy, WireError:
		ms := e.state(module)
		if ms.initiateTgt != nil && *ms.initiateTgt == peer {
			ms.initiateTgt = nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (e *Engine) handleInitiate(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	if e.localArc.IsEmpty() {
		return []Wire{{Kind: WireNoAgents}}, nil
	}

	ms := e.state(module)
	if _, open := ms.rounds[peer]; open {
		return e.busy(module), nil
	}
	if module == ModuleHistorical && ms.negotiating[peer] {
		return e.busy(module), nil
	}
	for _, r := range ms.rounds {
		if !r.RegionsAreQueued {
			return e.busy(module), nil
		}
	}

	if ms.initiateTgt != nil && *ms.initiateTgt == peer {
		if e.localCert.Less(peer) {
			return e.busy(module), nil
		}
		ms.initiateTgt = nil
	}

	round := newRoundState(msg.RoundID)
	round.CommonArcSet = e.localArc.Intersect(msg.Intervals)
	round.RemoteAgents = agentInfosFrom(msg.AgentList, peer)
	ms.rounds[peer] = round
	e.noteRemoteAgent(peer, round.RemoteAgents)

	out := []Wire{{Kind: WireAccept, AcceptIntervals: e.localArc}}
	step, err := e.exchangeStep(module, round)
	if err != nil {
		return nil, err
	}
	return append(out, step...), nil
}

// busy publishes EventGossipBusy (when an events broker is wired) and
// returns the Busy wire reply.
func (e *Engine) busy(module Module) []Wire {
	if e.Events != nil {
		e.Events.Publish(&events.Event{Type: events.EventGossipBusy, Message: string(module)})
	}
	return []Wire{{Kind: WireBusy}}
}

func (e *Engine) handleAccept(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	ms := e.state(module)
	if ms.initiateTgt == nil || *ms.initiateTgt != peer {
		return nil, errUnexpectedWire
	}

	round := newRoundState(ms.initiateRoundID)
	round.CommonArcSet = e.localArc.Intersect(msg.AcceptIntervals)
	ms.rounds[peer] = round
	ms.initiateTgt = nil

	return e.exchangeStep(module, round)
}

// exchangeStep sends this side's half of the round: one Agents bloom
// plus one OpBloom for the recent module, or one OpRegions for the
// historical module (§4.7 steps 2-3).
func (e *Engine) exchangeStep(module Module, round *RoundState) ([]Wire, error) {
	if module == ModuleHistorical {
		rs, err := e.ops.RegionSet(e.dna, round.CommonArcSet)
		if err != nil {
			return nil, err
		}
		round.RegionSetSent = true
		return []Wire{{Kind: WireOpRegions, RegionSet: rs}}, nil
	}

	agents, err := e.ops.AgentsInArc(e.dna, round.CommonArcSet)
	if err != nil {
		return nil, err
	}
	agentsFilter := bloom.New(len(agents), 0.01)
	for _, a := range agents {
		agentsFilter.Add(a.Bytes())
	}

	hashes, err := e.ops.OpHashesInArc(e.dna, round.CommonArcSet, time.Now().Add(-e.recentWindow))
	if err != nil {
		return nil, err
	}
	opFilter := bloom.New(len(hashes), 0.01)
	for _, h := range hashes {
		opFilter.Add(h.Bytes())
	}

	round.ExpectedOpBloomsRemaining = 1
	return []Wire{
		{Kind: WireAgents, Filter: agentsFilter, Finished: true},
		{Kind: WireOpBloom, Filter: opFilter, Finished: true},
	}, nil
}

func (e *Engine) handleAgents(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	round, ok := e.state(module).rounds[peer]
	if !ok {
		return nil, errNoRound
	}
	round.LastTouch = time.Now()

	agents, err := e.ops.AgentsInArc(e.dna, round.CommonArcSet)
	if err != nil {
		return nil, err
	}
	var missing []AgentInfo
	for _, a := range agents {
		if msg.Filter == nil || !msg.Filter.Test(a.Bytes()) {
			missing = append(missing, AgentInfo{Agent: a, Cert: e.localCert})
		}
	}
	return []Wire{{Kind: WireMissingAgents, MissingAgentList: missing}}, nil
}

func (e *Engine) handleMissingAgents(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	e.noteRemoteAgent(peer, msg.MissingAgentList)
	if round, ok := e.state(module).rounds[peer]; ok {
		round.RemoteAgents = append(round.RemoteAgents, msg.MissingAgentList...)
		round.LastTouch = time.Now()
	}
	return nil, nil
}

// noteRemoteAgent records the first agent identity learned for peer,
// independent of any round's lifecycle.
func (e *Engine) noteRemoteAgent(peer PeerCert, agents []AgentInfo) {
	if _, known := e.remoteAgents[peer]; known || len(agents) == 0 {
		return
	}
	e.remoteAgents[peer] = agents[0].Agent
}

func (e *Engine) handleOpBloom(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	round, ok := e.state(module).rounds[peer]
	if !ok {
		return nil, errNoRound
	}
	round.LastTouch = time.Now()

	hashes, err := e.ops.OpHashesInArc(e.dna, round.CommonArcSet, time.Now().Add(-e.recentWindow))
	if err != nil {
		return nil, err
	}
	var missing []holo.DhtOpHash
	for _, h := range hashes {
		if msg.Filter == nil || !msg.Filter.Test(h.Bytes()) {
			missing = append(missing, h)
		}
	}

	if round.ExpectedOpBloomsRemaining > 0 {
		round.ExpectedOpBloomsRemaining--
	}
	round.ReceivedAllIncomingBlooms = msg.Finished

	e.maybeComplete(module, peer, round)
	return []Wire{{Kind: WireMissingOpHashes, Hashes: missing, Finished: true}}, nil
}

func (e *Engine) handleOpRegions(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	round, ok := e.state(module).rounds[peer]
	if !ok {
		return nil, errNoRound
	}
	round.LastTouch = time.Now()
	round.HasPendingHistoricalOpData = true

	ms := e.state(module)
	ms.negotiating[peer] = true
	defer delete(ms.negotiating, peer)

	local, err := e.ops.RegionSet(e.dna, round.CommonArcSet)
	if err != nil {
		return nil, err
	}
	coords := local.Diff(msg.RegionSet)
	// Mismatched regions have hashes outstanding until fetched below;
	// a peer initiating against us mid-diff must be told Busy rather
	// than racing a second round for the same arc.
	round.RegionsAreQueued = len(coords) == 0
	hashes, err := e.ops.OpHashesForRegions(e.dna, coords)
	if err != nil {
		return nil, err
	}
	round.RegionsAreQueued = true

	round.ExpectedOpBloomsRemaining = 0
	round.ReceivedAllIncomingBlooms = true
	round.HasPendingHistoricalOpData = false

	e.maybeComplete(module, peer, round)
	return []Wire{{Kind: WireMissingOpHashes, Hashes: hashes, Finished: true}}, nil
}

// handleMissingOpHashes enqueues ops the peer reports we're missing.
// It does not require an open round: this reply can legitimately
// arrive after the round it answers has already completed (the round
// closes as soon as both sides' incoming blooms are accounted for,
// which can race ahead of an informational sibling message sent in
// the same batch).
func (e *Engine) handleMissingOpHashes(peer PeerCert, module Module, msg Wire) ([]Wire, error) {
	if source, ok := e.remoteAgents[peer]; ok {
		for _, h := range msg.Hashes {
			e.fetch.Push(h, e.dna, source, 0, false)
		}
	}
	metrics.GossipOpsExchangedTotal.WithLabelValues("in").Add(float64(len(msg.Hashes)))

	if round, ok := e.state(module).rounds[peer]; ok {
		round.LastTouch = time.Now()
		e.maybeComplete(module, peer, round)
	}
	return nil, nil
}

func (e *Engine) maybeComplete(module Module, peer PeerCert, round *RoundState) {
	if !round.Done() {
		return
	}
	delete(e.state(module).rounds, peer)
	e.lastGossipped[peer] = time.Now()
	metrics.GossipRoundsTotal.WithLabelValues(string(module), "completed").Inc()
	if e.Events != nil {
		e.Events.Publish(&events.Event{Type: events.EventGossipRoundDone, Message: string(module)})
	}
}

// ExpireRounds drops every round in module older than the round
// timeout, decrementing the peer's reputation, and returns the
// certificates dropped (§4.7 "any round older than round_timeout is
// dropped and the peer's reputation decremented").
func (e *Engine) ExpireRounds(module Module, now time.Time) []PeerCert {
	e.mu.Lock()
	defer e.mu.Unlock()

	ms := e.state(module)
	var dropped []PeerCert
	for peer, round := range ms.rounds {
		if round.Expired(now, e.roundTimeout) {
			delete(ms.rounds, peer)
			e.reputation[peer]--
			dropped = append(dropped, peer)
			metrics.GossipRoundsTotal.WithLabelValues(string(module), "timeout").Inc()
		}
	}
	return dropped
}

func agentInfosFrom(agents []holo.AgentPubKey, cert PeerCert) []AgentInfo {
	out := make([]AgentInfo, len(agents))
	for i, a := range agents {
		out[i] = AgentInfo{Agent: a, Cert: cert}
	}
	return out
}
