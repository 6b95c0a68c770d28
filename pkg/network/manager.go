package network

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/metrics"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 20 * time.Second

// EngineLookup resolves the gossip engine for a space, so Manager can
// route inbound GossipFrames without depending on whatever owns the
// per-space engines (pkg/space, in the conductor wiring).
type EngineLookup interface {
	Engine(dna holo.DnaHash) (*gossip.Engine, bool)
}

// LocalAnswers supplies this node's own answers to a peer's Get and
// GetAgentActivity calls — the only two RPC kinds that need a
// synchronous reply rather than being handed to the core as an Event.
type LocalAnswers interface {
	GetLocal(ctx context.Context, space holo.DnaHash, hash holo.AnyLinkableHash) ([]holo.DhtOp, []holo.AgentPubKey, error)
	GetAgentActivityLocal(ctx context.Context, space holo.DnaHash, author holo.AgentPubKey, filter ChainFilter) ([]holo.Record, []holo.Warrant, error)
}

// Manager is the Transport implementation: it owns every live peer
// connection, dials new ones on demand, and dispatches inbound traffic
// either synchronously (Get/GetAgentActivity, answered from
// LocalAnswers) or onto the Events channel (Publish, Broadcast,
// CountersigningAuthorityResponse, and any gossip frame for a space
// this node doesn't have an engine for).
type Manager struct {
	mu    sync.Mutex
	conns map[gossip.PeerCert]*PeerConn

	peers   gossip.PeerDirectory
	engines EngineLookup
	local   LocalAnswers
	logger  zerolog.Logger

	dialer websocket.Dialer

	events chan Event
}

// NewManager builds a Manager. peers/engines/local may be nil façades
// during early startup, before every space is registered; callers
// wire them in as the conductor boots.
func NewManager(peers gossip.PeerDirectory, engines EngineLookup, local LocalAnswers, logger zerolog.Logger) *Manager {
	return &Manager{
		conns:   map[gossip.PeerCert]*PeerConn{},
		peers:   peers,
		engines: engines,
		local:   local,
		logger:  logger.With().Str("component", "network").Logger(),
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		events:  make(chan Event, 256),
	}
}

// Events implements Transport.
func (m *Manager) Events() <-chan Event { return m.events }

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn().Str("kind", string(ev.Kind)).Msg("event queue full, dropping")
	}
}

// Dial opens a new outbound connection to peer and starts serving it.
// Idempotent: dialing an already-connected peer returns the existing
// connection.
func (m *Manager) Dial(ctx context.Context, peer gossip.AgentInfo) (*PeerConn, error) {
	if pc, ok := m.connFor(peer.Cert); ok {
		return pc, nil
	}

	conn, _, err := m.dialer.DialContext(ctx, peer.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("network: dial %s: %w", peer.URL, err)
	}

	pc := NewPeerConn(conn, peer.Cert, m.logger, m)
	m.addConn(peer.Cert, pc)

	go func() {
		if err := pc.Run(); err != nil {
			m.logger.Warn().Err(err).Str("peer", peer.Cert.String()).Msg("peer connection closed")
		}
		m.removeConn(peer.Cert)
	}()

	return pc, nil
}

// Accept wraps an already-upgraded inbound websocket connection, the
// server-side counterpart of Dial.
func (m *Manager) Accept(conn *websocket.Conn, peer gossip.PeerCert) *PeerConn {
	pc := NewPeerConn(conn, peer, m.logger, m)
	m.addConn(peer, pc)

	go func() {
		if err := pc.Run(); err != nil {
			m.logger.Warn().Err(err).Str("peer", peer.String()).Msg("peer connection closed")
		}
		m.removeConn(peer)
	}()

	return pc
}

func (m *Manager) addConn(peer gossip.PeerCert, pc *PeerConn) {
	m.mu.Lock()
	m.conns[peer] = pc
	m.mu.Unlock()
	metrics.NetworkPeersConnected.Set(float64(m.connCount()))
}

func (m *Manager) removeConn(peer gossip.PeerCert) {
	m.mu.Lock()
	delete(m.conns, peer)
	m.mu.Unlock()
	metrics.NetworkPeersConnected.Set(float64(m.connCount()))
}

func (m *Manager) connFor(peer gossip.PeerCert) (*PeerConn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pc, ok := m.conns[peer]
	return pc, ok
}

func (m *Manager) connCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// SendGossip dispatches one outgoing gossip.Wire to peer, dialing the
// connection first if it isn't already open. This is the send side
// the gossip engine's initiate/reply loop calls into.
func (m *Manager) SendGossip(ctx context.Context, peer gossip.AgentInfo, dna holo.DnaHash, module gossip.Module, w gossip.Wire) error {
	pc, err := m.Dial(ctx, peer)
	if err != nil {
		return err
	}
	frame := wire.GossipFrame{Dna: dna, Module: module, Wire: w}
	return pc.Send(wire.Envelope{Kind: wire.EnvelopeGossip, Gossip: &frame})
}

// HandleGossip implements Dispatcher: it routes an inbound gossip
// frame to the owning space's engine and sends back whatever reply
// messages ProcessIncoming produces.
func (m *Manager) HandleGossip(peer gossip.PeerCert, frame wire.GossipFrame) {
	if m.engines == nil {
		m.emit(Event{Kind: EventGossip, Peer: peer, Dna: frame.Dna, Module: frame.Module, Wire: frame.Wire})
		return
	}
	engine, ok := m.engines.Engine(frame.Dna)
	if !ok {
		m.emit(Event{Kind: EventGossip, Peer: peer, Dna: frame.Dna, Module: frame.Module, Wire: frame.Wire})
		return
	}

	out, err := engine.ProcessIncoming(peer, frame.Module, frame.Wire)
	if err != nil {
		m.logger.Warn().Err(err).Str("peer", peer.String()).Str("dna", frame.Dna.String()).Msg("gossip processing failed")
		return
	}

	pc, ok := m.connFor(peer)
	if !ok {
		return
	}
	for _, reply := range out {
		replyFrame := wire.GossipFrame{Dna: frame.Dna, Module: frame.Module, Wire: reply}
		if err := pc.Send(wire.Envelope{Kind: wire.EnvelopeGossip, Gossip: &replyFrame}); err != nil {
			m.logger.Warn().Err(err).Str("peer", peer.String()).Msg("failed to send gossip reply")
		}
	}
}

// HandleRPC implements Dispatcher.
func (m *Manager) HandleRPC(peer gossip.PeerCert, rpc wire.RPC, reply func(wire.RPC) error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	switch rpc.Kind {
	case wire.RPCGet:
		m.answerGet(ctx, peer, rpc, reply)
	case wire.RPCGetAgentActivity:
		m.answerGetAgentActivity(ctx, peer, rpc, reply)
	case wire.RPCPublish:
		m.emit(Event{Kind: EventPublish, Peer: peer, Dna: rpc.Space, Ops: decodeRPCOps(rpc.Ops)})
	case wire.RPCCountersigningAuthorityResponse, wire.RPCBroadcast:
		payload, err := wire.Marshal(rpc)
		if err != nil {
			return
		}
		m.emit(Event{Kind: EventRemoteCall, Peer: peer, Dna: rpc.Space, RequestID: rpc.RequestID, Message: payload})
	}
}

func (m *Manager) answerGet(ctx context.Context, peer gossip.PeerCert, rpc wire.RPC, reply func(wire.RPC) error) {
	if m.local == nil {
		_ = reply(wire.RPC{Kind: wire.RPCError, Reason: "no local answers wired"})
		return
	}
	ops, sources, err := m.local.GetLocal(ctx, rpc.Space, rpc.Hash)
	if err != nil {
		metrics.NetworkRPCErrorsTotal.WithLabelValues(string(wire.RPCGet)).Inc()
		_ = reply(wire.RPC{Kind: wire.RPCError, Reason: err.Error()})
		return
	}
	wires := make([]wire.OpWire, len(ops))
	for i, op := range ops {
		wires[i] = wire.EncodeOp(op)
	}
	_ = reply(wire.RPC{Kind: wire.RPCGetResponse, Ops: wires, Sources: sources})
}

func (m *Manager) answerGetAgentActivity(ctx context.Context, peer gossip.PeerCert, rpc wire.RPC, reply func(wire.RPC) error) {
	if m.local == nil {
		_ = reply(wire.RPC{Kind: wire.RPCError, Reason: "no local answers wired"})
		return
	}
	filter := ChainFilter{ChainTop: rpc.Filter.ChainTop, Take: rpc.Filter.Take, UntilHashes: rpc.Filter.UntilHashes, UntilTimestamp: rpc.Filter.UntilTimestamp}
	records, warrants, err := m.local.GetAgentActivityLocal(ctx, rpc.Space, rpc.Author, filter)
	if err != nil {
		metrics.NetworkRPCErrorsTotal.WithLabelValues(string(wire.RPCGetAgentActivity)).Inc()
		_ = reply(wire.RPC{Kind: wire.RPCError, Reason: err.Error()})
		return
	}
	_ = reply(wire.RPC{Kind: wire.RPCGetAgentActivityResponse, Records: records, Warrants: warrants})
}

func decodeRPCOps(wires []wire.OpWire) []holo.DhtOp {
	ops := make([]holo.DhtOp, len(wires))
	for i, w := range wires {
		ops[i] = wire.DecodeOp(w)
	}
	return ops
}

// Publish implements Transport by fanning an unsolicited push out to
// every peer this space currently knows, fire-and-forget.
func (m *Manager) Publish(ctx context.Context, space holo.DnaHash, basis holo.AnyLinkableHash, ops []holo.DhtOp) error {
	wires := make([]wire.OpWire, len(ops))
	for i, op := range ops {
		wires[i] = wire.EncodeOp(op)
	}
	rpc := wire.RPC{Kind: wire.RPCPublish, Space: space, Basis: basis, Ops: wires}
	return m.fanOut(ctx, space, rpc)
}

// Broadcast implements Transport the same way Publish does: every
// peer this space currently knows is dialed and sent the message, no
// response awaited.
func (m *Manager) Broadcast(ctx context.Context, space holo.DnaHash, message []byte) error {
	return m.fanOut(ctx, space, wire.RPC{Kind: wire.RPCBroadcast, Space: space, Message: message})
}

// CountersigningAuthorityResponse implements Transport by delivering
// the authority's response to every peer participating in the space,
// matching Broadcast's fan-out (the session's signatories are a
// subset of a space's peers; narrowing to exactly the signatories is
// the caller's responsibility via a future session-scoped peer list).
func (m *Manager) CountersigningAuthorityResponse(ctx context.Context, space holo.DnaHash, sessionEntry holo.EntryHash, responses []holo.SignedAction) error {
	rpc := wire.RPC{Kind: wire.RPCCountersigningAuthorityResponse, Space: space, SessionEntryHash: sessionEntry, Responses: responses}
	return m.fanOut(ctx, space, rpc)
}

func (m *Manager) fanOut(ctx context.Context, space holo.DnaHash, rpc wire.RPC) error {
	if m.peers == nil {
		return nil
	}
	var lastErr error
	for _, peer := range m.peers.Peers(space) {
		pc, err := m.Dial(ctx, peer)
		if err != nil {
			lastErr = err
			continue
		}
		if err := pc.Send(wire.Envelope{Kind: wire.EnvelopeRPC, RPC: &rpc}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Get implements Transport: it requests the op from the first
// available peer for the space. §4.1's cascade retries/fan-out policy
// across multiple sources is the cascade's concern, not this layer's.
func (m *Manager) Get(ctx context.Context, space holo.DnaHash, hash holo.AnyLinkableHash, opts GetOptions) ([]holo.DhtOp, []holo.AgentPubKey, error) {
	if m.peers == nil {
		return nil, nil, fmt.Errorf("network: no peer directory wired for %s", space)
	}
	candidates := m.peers.Peers(space)
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("network: no peers known for %s", space)
	}

	pc, err := m.Dial(ctx, candidates[0])
	if err != nil {
		return nil, nil, err
	}
	resp, err := pc.Request(wire.RPC{Kind: wire.RPCGet, RequestID: newRequestID(), Space: space, Hash: hash, Strategy: wire.GetStrategy(opts.Strategy)}, defaultRequestTimeout)
	if err != nil {
		return nil, nil, err
	}
	ops := make([]holo.DhtOp, len(resp.Ops))
	for i, w := range resp.Ops {
		ops[i] = wire.DecodeOp(w)
	}
	return ops, resp.Sources, nil
}

// GetAgentActivity implements Transport the same way Get does.
func (m *Manager) GetAgentActivity(ctx context.Context, space holo.DnaHash, author holo.AgentPubKey, filter ChainFilter) ([]holo.Record, []holo.Warrant, error) {
	if m.peers == nil {
		return nil, nil, fmt.Errorf("network: no peer directory wired for %s", space)
	}
	candidates := m.peers.Peers(space)
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("network: no peers known for %s", space)
	}

	pc, err := m.Dial(ctx, candidates[0])
	if err != nil {
		return nil, nil, err
	}
	req := wire.RPC{
		Kind:      wire.RPCGetAgentActivity,
		RequestID: newRequestID(),
		Space:     space,
		Author:    author,
		Filter:    wire.ChainFilterWire{ChainTop: filter.ChainTop, Take: filter.Take, UntilHashes: filter.UntilHashes, UntilTimestamp: filter.UntilTimestamp},
	}
	resp, err := pc.Request(req, defaultRequestTimeout)
	if err != nil {
		return nil, nil, err
	}
	return resp.Records, resp.Warrants, nil
}

var requestIDCounter struct {
	mu  sync.Mutex
	seq uint64
}

// newRequestID produces a per-process-unique correlation ID without
// relying on a random source, since §5's determinism expectations
// extend to everything this codebase can keep deterministic.
func newRequestID() string {
	requestIDCounter.mu.Lock()
	defer requestIDCounter.mu.Unlock()
	requestIDCounter.seq++
	return fmt.Sprintf("req-%d", requestIDCounter.seq)
}

// UpgradeHandler adapts an http.Handler-style websocket upgrade into
// Manager.Accept, for wiring into a net/http server that terminates
// peer-to-peer connections.
func (m *Manager) UpgradeHandler(upgrader websocket.Upgrader, identify func(*http.Request) (gossip.PeerCert, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, err := identify(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		m.Accept(conn, peer)
	}
}
