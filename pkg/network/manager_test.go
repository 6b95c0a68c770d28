package network

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// fakePeerDirectory returns a fixed peer set regardless of space,
// enough to exercise fanOut/Get/GetAgentActivity's candidate lookup.
type fakePeerDirectory struct {
	peers []gossip.AgentInfo
}

func (f fakePeerDirectory) Peers(dna holo.DnaHash) []gossip.AgentInfo { return f.peers }

// fakeLocalAnswers serves canned Get/GetAgentActivity replies, the
// server-side counterpart to a real cascade/activity resolver.
type fakeLocalAnswers struct {
	ops      []holo.DhtOp
	sources  []holo.AgentPubKey
	getErr   error
	records  []holo.Record
	warrants []holo.Warrant
	actErr   error
}

func (f fakeLocalAnswers) GetLocal(ctx context.Context, space holo.DnaHash, hash holo.AnyLinkableHash) ([]holo.DhtOp, []holo.AgentPubKey, error) {
	return f.ops, f.sources, f.getErr
}

func (f fakeLocalAnswers) GetAgentActivityLocal(ctx context.Context, space holo.DnaHash, author holo.AgentPubKey, filter ChainFilter) ([]holo.Record, []holo.Warrant, error) {
	return f.records, f.warrants, f.actErr
}

// newServerManager stands up an httptest server fronting mgr's
// UpgradeHandler, identifying every inbound connection as serverCert.
func newServerManager(t *testing.T, mgr *Manager, serverCert gossip.PeerCert) string {
	t.Helper()
	srv := httptest.NewServer(mgr.UpgradeHandler(websocket.Upgrader{}, func(r *http.Request) (gossip.PeerCert, error) {
		return serverCert, nil
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestManagerGetFetchesFromPeer(t *testing.T) {
	dna := testDna()
	serverCert := testCert(10)
	author := testAgent(3)
	action := testAction(author)
	op := holo.DhtOp{Type: holo.OpStoreRecord, SignedAction: holo.SignedAction{Action: action, Signature: []byte("sig")}}

	serverLocal := fakeLocalAnswers{ops: []holo.DhtOp{op}, sources: []holo.AgentPubKey{author}}
	serverMgr := NewManager(nil, nil, serverLocal, zerolog.Nop())
	url := newServerManager(t, serverMgr, serverCert)

	clientPeers := fakePeerDirectory{peers: []gossip.AgentInfo{{Agent: author, Cert: serverCert, URL: url, Arc: gossip.FullArcSet()}}}
	clientMgr := NewManager(clientPeers, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ops, sources, err := clientMgr.Get(ctx, dna, holo.LinkableFromAction(holo.NewActionHash([]byte("requested"))), GetOptions{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, op.Hash(), ops[0].Hash())
	require.Equal(t, []holo.AgentPubKey{author}, sources)
}

func TestManagerGetSurfacesRemoteError(t *testing.T) {
	serverCert := testCert(11)
	serverMgr := NewManager(nil, nil, fakeLocalAnswers{getErr: errBoom}, zerolog.Nop())
	url := newServerManager(t, serverMgr, serverCert)

	author := testAgent(4)
	clientPeers := fakePeerDirectory{peers: []gossip.AgentInfo{{Agent: author, Cert: serverCert, URL: url, Arc: gossip.FullArcSet()}}}
	clientMgr := NewManager(clientPeers, nil, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := clientMgr.Get(ctx, testDna(), holo.LinkableFromAction(holo.NewActionHash([]byte("x"))), GetOptions{})
	require.Error(t, err)
}

func TestManagerPublishReachesPeerAsEvent(t *testing.T) {
	serverCert := testCert(12)
	serverMgr := NewManager(nil, nil, nil, zerolog.Nop())
	url := newServerManager(t, serverMgr, serverCert)

	author := testAgent(5)
	clientPeers := fakePeerDirectory{peers: []gossip.AgentInfo{{Agent: author, Cert: serverCert, URL: url, Arc: gossip.FullArcSet()}}}
	clientMgr := NewManager(clientPeers, nil, nil, zerolog.Nop())

	op := holo.DhtOp{Type: holo.OpStoreRecord, SignedAction: holo.SignedAction{Action: testAction(author)}}
	basis := holo.LinkableFromAction(holo.NewActionHash([]byte("basis")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clientMgr.Publish(ctx, testDna(), basis, []holo.DhtOp{op}))

	require.Eventually(t, func() bool {
		select {
		case ev := <-serverMgr.Events():
			return ev.Kind == EventPublish && len(ev.Ops) == 1
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestManagerHandleGossipFallsBackToEventWithoutEngine(t *testing.T) {
	mgr := NewManager(nil, nil, nil, zerolog.Nop())
	peer := testCert(20)
	frame := wire.GossipFrame{Dna: testDna(), Module: gossip.ModuleRecent, Wire: gossip.Wire{Kind: gossip.WireInitiate, RoundID: "rX"}}
	mgr.HandleGossip(peer, frame)

	select {
	case ev := <-mgr.Events():
		require.Equal(t, EventGossip, ev.Kind)
		require.Equal(t, "rX", ev.Wire.RoundID)
	default:
		t.Fatal("expected a fallback gossip event")
	}
}
