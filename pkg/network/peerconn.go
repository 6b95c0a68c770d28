package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/metrics"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	sendQueueLen = 256
)

// Dispatcher is how a PeerConn hands decoded, non-reply traffic back
// to its owner. reply, when non-nil, sends one RPC back to this same
// peer over this same connection.
type Dispatcher interface {
	HandleGossip(peer gossip.PeerCert, frame wire.GossipFrame)
	HandleRPC(peer gossip.PeerCert, rpc wire.RPC, reply func(wire.RPC) error)
}

// PeerConn is one live connection to a remote node, multiplexing
// gossip frames and RPCs the way the teacher's coordinator multiplexes
// application messages over a single websocket: one read loop, one
// buffered send loop, one keepalive ping loop, run concurrently and
// torn down together when the read or send loop errors (a failed ping
// is only logged).
type PeerConn struct {
	conn   *websocket.Conn
	peer   gossip.PeerCert
	logger zerolog.Logger
	disp   Dispatcher

	sendCh chan wire.Envelope
	doneCh chan struct{}
	once   sync.Once

	pendingMu sync.Mutex
	pending   map[string]chan wire.RPC
}

// NewPeerConn wraps an already-established websocket connection.
func NewPeerConn(conn *websocket.Conn, peer gossip.PeerCert, logger zerolog.Logger, disp Dispatcher) *PeerConn {
	return &PeerConn{
		conn:    conn,
		peer:    peer,
		logger:  logger.With().Str("peer", peer.String()).Logger(),
		disp:    disp,
		sendCh:  make(chan wire.Envelope, sendQueueLen),
		doneCh:  make(chan struct{}),
		pending: map[string]chan wire.RPC{},
	}
}

// Run drives the connection until it errors or Close is called. It
// blocks, so callers run it in its own goroutine (one per peer).
func (pc *PeerConn) Run() error {
	readErrCh := make(chan error, 1)
	go func() { readErrCh <- pc.readLoop() }()

	go pc.pingLoop()

	err := pc.senderLoop()
	pc.Close()
	<-readErrCh
	return err
}

func (pc *PeerConn) readLoop() error {
	for {
		_, data, err := pc.conn.ReadMessage()
		if err != nil {
			pc.Close()
			return fmt.Errorf("network: read from %s: %w", pc.peer, err)
		}

		var env wire.Envelope
		if err := wire.Unmarshal(data, &env); err != nil {
			pc.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		pc.dispatch(env)
	}
}

func (pc *PeerConn) dispatch(env wire.Envelope) {
	switch env.Kind {
	case wire.EnvelopeGossip:
		if env.Gossip == nil {
			return
		}
		metrics.NetworkMessagesTotal.WithLabelValues("in", "gossip").Inc()
		pc.disp.HandleGossip(pc.peer, *env.Gossip)

	case wire.EnvelopeRPC:
		if env.RPC == nil {
			return
		}
		metrics.NetworkMessagesTotal.WithLabelValues("in", string(env.RPC.Kind)).Inc()

		pc.pendingMu.Lock()
		waiter, isReply := pc.pending[env.RPC.RequestID]
		if isReply {
			delete(pc.pending, env.RPC.RequestID)
		}
		pc.pendingMu.Unlock()

		if isReply {
			waiter <- *env.RPC
			return
		}
		pc.disp.HandleRPC(pc.peer, *env.RPC, func(resp wire.RPC) error {
			resp.RequestID = env.RPC.RequestID
			return pc.Send(wire.Envelope{Kind: wire.EnvelopeRPC, RPC: &resp})
		})
	}
}

func (pc *PeerConn) senderLoop() error {
	for {
		select {
		case env, ok := <-pc.sendCh:
			if !ok {
				return nil
			}
			if err := pc.write(env); err != nil {
				return err
			}
		case <-pc.doneCh:
			return nil
		}
	}
}

func (pc *PeerConn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := pc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				pc.logger.Debug().Err(err).Msg("ping failed")
			}
		case <-pc.doneCh:
			return
		}
	}
}

func (pc *PeerConn) write(env wire.Envelope) error {
	data, err := wire.Marshal(env)
	if err != nil {
		return fmt.Errorf("network: marshal outgoing frame: %w", err)
	}
	_ = pc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := pc.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("network: write to %s: %w", pc.peer, err)
	}
	kind := string(env.Kind)
	if env.RPC != nil {
		kind = string(env.RPC.Kind)
	}
	metrics.NetworkMessagesTotal.WithLabelValues("out", kind).Inc()
	return nil
}

// Send queues env for delivery, dropping it if the send queue is full
// rather than blocking the caller — the same backpressure policy the
// teacher's coordinator uses for its outgoing channel.
func (pc *PeerConn) Send(env wire.Envelope) error {
	select {
	case pc.sendCh <- env:
		return nil
	case <-pc.doneCh:
		return fmt.Errorf("network: connection to %s is closed", pc.peer)
	default:
		pc.logger.Warn().Msg("send queue full, dropping frame")
		return fmt.Errorf("network: send queue full for %s", pc.peer)
	}
}

// Request sends rpc and blocks for a matching RequestID reply or
// until timeout elapses.
func (pc *PeerConn) Request(rpc wire.RPC, timeout time.Duration) (wire.RPC, error) {
	waiter := make(chan wire.RPC, 1)
	pc.pendingMu.Lock()
	pc.pending[rpc.RequestID] = waiter
	pc.pendingMu.Unlock()

	defer func() {
		pc.pendingMu.Lock()
		delete(pc.pending, rpc.RequestID)
		pc.pendingMu.Unlock()
	}()

	if err := pc.Send(wire.Envelope{Kind: wire.EnvelopeRPC, RPC: &rpc}); err != nil {
		return wire.RPC{}, err
	}

	select {
	case resp := <-waiter:
		if resp.Kind == wire.RPCError {
			return resp, fmt.Errorf("network: peer %s returned error: %s", pc.peer, resp.Reason)
		}
		return resp, nil
	case <-time.After(timeout):
		return wire.RPC{}, fmt.Errorf("network: request %s to %s timed out", rpc.Kind, pc.peer)
	case <-pc.doneCh:
		return wire.RPC{}, fmt.Errorf("network: connection to %s closed while awaiting reply", pc.peer)
	}
}

// Close tears down the connection. Safe to call more than once.
func (pc *PeerConn) Close() {
	pc.once.Do(func() {
		close(pc.doneCh)
		pc.conn.Close()
	})
}
