package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/gossip/region"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeOpSource struct {
	agents []holo.AgentPubKey
	hashes []holo.DhtOpHash
	region region.Set
}

func (f *fakeOpSource) AgentsInArc(holo.DnaHash, gossip.ArcSet) ([]holo.AgentPubKey, error) {
	return f.agents, nil
}
func (f *fakeOpSource) OpHashesInArc(holo.DnaHash, gossip.ArcSet, time.Time) ([]holo.DhtOpHash, error) {
	return f.hashes, nil
}
func (f *fakeOpSource) RegionSet(holo.DnaHash, gossip.ArcSet) (region.Set, error) { return f.region, nil }
func (f *fakeOpSource) OpHashesForRegions(holo.DnaHash, []region.Coord) ([]holo.DhtOpHash, error) {
	return f.hashes, nil
}

type fakeFetch struct{ pushed []holo.DhtOpHash }

func (f *fakeFetch) Push(key holo.DhtOpHash, space holo.DnaHash, source holo.AgentPubKey, context uint32, hasContext bool) {
	f.pushed = append(f.pushed, key)
}

func TestGossipDriverTickSendsInitiateToSelectedPeer(t *testing.T) {
	remoteCert := testCert(30)
	remoteDisp := &recordingDispatcher{}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		pc := NewPeerConn(conn, remoteCert, zerolog.Nop(), remoteDisp)
		go pc.Run()
	}))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	dna := testDna()
	localAgent := testAgent(1)
	remoteAgent := testAgent(2)

	peers := fakePeerDirectory{peers: []gossip.AgentInfo{
		{Agent: remoteAgent, Cert: remoteCert, URL: url, Arc: gossip.FullArcSet()},
	}}
	ops := &fakeOpSource{agents: []holo.AgentPubKey{localAgent}}
	engine := gossip.NewEngine(dna, testCert(1), gossip.FullArcSet(), peers, ops, &fakeFetch{})

	mgr := NewManager(nil, nil, nil, zerolog.Nop())
	driver := NewGossipDriver(mgr, engine, dna, gossip.ModuleRecent, func() []holo.AgentPubKey {
		return []holo.AgentPubKey{localAgent}
	}, zerolog.Nop())

	require.NoError(t, driver.tick(context.Background()))

	require.Eventually(t, func() bool {
		for _, g := range remoteDisp.snapshotGossips() {
			if g.Wire.Kind == gossip.WireInitiate {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}
