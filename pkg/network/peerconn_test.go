package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testCert(seed byte) gossip.PeerCert {
	var c gossip.PeerCert
	for i := range c {
		c[i] = seed
	}
	return c
}

func testDna() holo.DnaHash { return holo.NewDnaHash([]byte("space")) }

// recordingDispatcher captures whatever PeerConn hands it, so a test
// can assert on what arrived without wiring a full Manager.
type recordingDispatcher struct {
	mu      sync.Mutex
	gossips []wire.GossipFrame
	rpcs    []wire.RPC

	rpcReply func(wire.RPC) wire.RPC
}

func (d *recordingDispatcher) HandleGossip(peer gossip.PeerCert, frame wire.GossipFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gossips = append(d.gossips, frame)
}

func (d *recordingDispatcher) HandleRPC(peer gossip.PeerCert, rpc wire.RPC, reply func(wire.RPC) error) {
	d.mu.Lock()
	d.rpcs = append(d.rpcs, rpc)
	replyFn := d.rpcReply
	d.mu.Unlock()
	if replyFn != nil {
		_ = reply(replyFn(rpc))
	}
}

func (d *recordingDispatcher) snapshotGossips() []wire.GossipFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]wire.GossipFrame, len(d.gossips))
	copy(out, d.gossips)
	return out
}

// pairedConns dials an in-process httptest server and returns two live
// PeerConns (server side and client side) each driven by its own
// dispatcher, closing everything on test cleanup.
func pairedConns(t *testing.T, serverDisp, clientDisp Dispatcher) (*PeerConn, *PeerConn) {
	t.Helper()
	logger := zerolog.Nop()

	var serverPC *PeerConn
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverPC = NewPeerConn(conn, testCert(1), logger, serverDisp)
		go serverPC.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	clientPC := NewPeerConn(clientConn, testCert(2), logger, clientDisp)
	go clientPC.Run()
	t.Cleanup(clientPC.Close)

	// Give the server handler a moment to run and assign serverPC.
	require.Eventually(t, func() bool { return serverPC != nil }, time.Second, 5*time.Millisecond)
	t.Cleanup(serverPC.Close)

	return serverPC, clientPC
}

func TestPeerConnSendDeliversGossipFrame(t *testing.T) {
	serverDisp := &recordingDispatcher{}
	clientDisp := &recordingDispatcher{}
	_, clientPC := pairedConns(t, serverDisp, clientDisp)

	frame := wire.GossipFrame{Dna: testDna(), Module: gossip.ModuleRecent, Wire: gossip.Wire{Kind: gossip.WireInitiate, RoundID: "r1"}}
	require.NoError(t, clientPC.Send(wire.Envelope{Kind: wire.EnvelopeGossip, Gossip: &frame}))

	require.Eventually(t, func() bool {
		return len(serverDisp.snapshotGossips()) == 1
	}, time.Second, 5*time.Millisecond)

	got := serverDisp.snapshotGossips()[0]
	require.Equal(t, "r1", got.Wire.RoundID)
}

func TestPeerConnRequestGetsMatchedReply(t *testing.T) {
	serverDisp := &recordingDispatcher{
		rpcReply: func(req wire.RPC) wire.RPC {
			return wire.RPC{Kind: wire.RPCGetResponse, Sources: []holo.AgentPubKey{testAgent(7)}}
		},
	}
	clientDisp := &recordingDispatcher{}
	_, clientPC := pairedConns(t, serverDisp, clientDisp)

	resp, err := clientPC.Request(wire.RPC{Kind: wire.RPCGet, RequestID: "req-1", Space: testDna()}, time.Second)
	require.NoError(t, err)
	require.Equal(t, wire.RPCGetResponse, resp.Kind)
	require.Len(t, resp.Sources, 1)
}

func TestPeerConnRequestTimesOutWithoutReply(t *testing.T) {
	serverDisp := &recordingDispatcher{} // no rpcReply configured: request goes unanswered
	clientDisp := &recordingDispatcher{}
	_, clientPC := pairedConns(t, serverDisp, clientDisp)

	_, err := clientPC.Request(wire.RPC{Kind: wire.RPCGet, RequestID: "req-2", Space: testDna()}, 50*time.Millisecond)
	require.Error(t, err)
}

func TestPeerConnRequestSurfacesRPCError(t *testing.T) {
	serverDisp := &recordingDispatcher{
		rpcReply: func(req wire.RPC) wire.RPC {
			return wire.RPC{Kind: wire.RPCError, Reason: "boom"}
		},
	}
	clientDisp := &recordingDispatcher{}
	_, clientPC := pairedConns(t, serverDisp, clientDisp)

	_, err := clientPC.Request(wire.RPC{Kind: wire.RPCGet, RequestID: "req-3", Space: testDna()}, time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func testAgent(seed byte) holo.AgentPubKey {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return holo.NewAgentPubKey(b)
}
