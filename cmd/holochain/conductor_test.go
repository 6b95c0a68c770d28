package main

import (
	"context"
	"testing"
	"time"

	"github.com/holochain/holochain-core/pkg/config"
	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/holochain/holochain-core/pkg/network"
	"github.com/holochain/holochain-core/pkg/storage"
	"github.com/holochain/holochain-core/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testConductorConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		DataRootPath: dir,
		Keystore:     config.KeystoreConfig{Kind: config.KeystoreDangerTest},
		AdminInterfaces: []config.AdminInterface{
			{Driver: config.AdminDriverWebsocket, Port: 12345},
		},
	}
}

func testAgentKey(seed byte) holo.AgentPubKey {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = seed
	}
	return holo.NewAgentPubKey(pub)
}

func TestNewConductorRejectsUnsupportedKeystore(t *testing.T) {
	cfg := testConductorConfig(t)
	cfg.Keystore.Kind = config.KeystoreLairServer

	_, err := NewConductor(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestRegisterDnaThenListDnas(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	dna := holo.NewDnaHash([]byte("dna-a"))
	require.NoError(t, c.RegisterDna(dna))

	dnas := c.ListDnas()
	require.Contains(t, dnas, dna.String())
}

func TestEngineAbsentUntilWired(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	dna := holo.NewDnaHash([]byte("dna-b"))
	require.NoError(t, c.RegisterDna(dna))

	_, ok := c.Engine(dna)
	require.False(t, ok, "registering a dna must not start a gossip engine without a real peer directory")
}

func TestGetLocalReturnsNilForUnregisteredDna(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	ops, sources, err := c.GetLocal(context.Background(), holo.NewDnaHash([]byte("unknown")), holo.LinkableFromAction(holo.NewActionHash([]byte("x"))))
	require.NoError(t, err)
	require.Nil(t, ops)
	require.Nil(t, sources)
}

func TestGetLocalFindsStoredOp(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	dna := holo.NewDnaHash([]byte("dna-c"))
	require.NoError(t, c.RegisterDna(dna))
	sp, ok := c.registry.Get(dna)
	require.True(t, ok)

	action := holo.Action{
		Type:      holo.ActionCreate,
		Author:    testAgentKey(9),
		Timestamp: time.Unix(1000, 0).UTC(),
		ActionSeq: 1,
	}
	sa := holo.SignedAction{Action: action, Signature: []byte("sig")}
	op := holo.DhtOp{Type: holo.OpStoreRecord, SignedAction: sa}

	actionHash := holo.NewActionHash([]byte("stored-action"))
	linkable := holo.LinkableFromAction(actionHash)

	_, err = storage.WriteAsync(context.Background(), sp.Dht, func(txn *storage.Txn) (struct{}, error) {
		return struct{}{}, txn.Put(dhtOpsBucket, linkable.String(), wire.EncodeOp(op))
	})
	require.NoError(t, err)

	gotOps, _, err := c.GetLocal(context.Background(), dna, linkable)
	require.NoError(t, err)
	require.Len(t, gotOps, 1)
	require.Equal(t, op.Type, gotOps[0].Type)
	require.Equal(t, op.SignedAction.Action.ActionSeq, gotOps[0].SignedAction.Action.ActionSeq)
}

func TestGetAgentActivityLocalIsEmptyFallback(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	records, warrants, err := c.GetAgentActivityLocal(context.Background(), holo.NewDnaHash([]byte("d")), testAgentKey(1), network.ChainFilter{})
	require.NoError(t, err)
	require.Nil(t, records)
	require.Nil(t, warrants)
}

func TestRegisterDnaPublishesSpaceCreatedEvent(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	sub := c.Events().Subscribe()
	defer c.Events().Unsubscribe(sub)

	dna := holo.NewDnaHash([]byte("dna-event"))
	require.NoError(t, c.RegisterDna(dna))

	select {
	case evt := <-sub:
		require.Equal(t, events.EventSpaceCreated, evt.Type)
		require.Equal(t, dna.String(), evt.Message)
	case <-time.After(time.Second):
		t.Fatal("expected a space.created event")
	}
}

func TestDumpNetworkStatsAndFullStateReflectRegisteredSpaces(t *testing.T) {
	cfg := testConductorConfig(t)
	c, err := NewConductor(cfg, zerolog.Nop())
	require.NoError(t, err)

	dna := holo.NewDnaHash([]byte("dna-d"))
	require.NoError(t, c.RegisterDna(dna))

	stats := c.DumpNetworkStats()
	require.Contains(t, stats, "spaces")

	full := c.DumpFullState()
	require.Equal(t, 1, full["space_count"])
}
