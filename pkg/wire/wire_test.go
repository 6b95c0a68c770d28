package wire

import (
	"bytes"
	"testing"
	"time"

	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgent(seed byte) holo.AgentPubKey {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return holo.NewAgentPubKey(b)
}

func testAction(author holo.AgentPubKey) holo.Action {
	return holo.Action{
		Type:      holo.ActionCreate,
		Author:    author,
		Timestamp: time.Unix(1700000000, 0).UTC(),
		ActionSeq: 3,
		EntryHash: holo.NewEntryHash([]byte("entry-body")),
	}
}

func TestWriteFrameReadFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	original := RPC{Kind: RPCBroadcast, RequestID: "req-1", Space: holo.NewDnaHash([]byte("dna")), Message: []byte("hello")}

	require.NoError(t, WriteFrame(&buf, original))

	var decoded RPC
	require.NoError(t, ReadFrame(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	var v RPC
	err := ReadFrame(&buf, &v)
	assert.Error(t, err)
}

func TestOpWireRoundTrips(t *testing.T) {
	author := testAgent(1)
	action := testAction(author)
	entry := &holo.Entry{Kind: holo.EntryKindApp, App: []byte("payload")}
	op := holo.DhtOp{
		Type:         holo.OpStoreEntry,
		SignedAction: holo.SignedAction{Action: action, Signature: []byte("sig")},
		Entry:        entry,
	}

	encoded, err := MarshalOps([]holo.DhtOp{op})
	require.NoError(t, err)

	decoded, err := UnmarshalOps(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, op.Hash(), decoded[0].Hash())
	assert.Equal(t, op.SignedAction.Signature, decoded[0].SignedAction.Signature)
}

func TestOpWireEntryNilForPrivateActions(t *testing.T) {
	author := testAgent(2)
	action := testAction(author)
	op := holo.DhtOp{Type: holo.OpStoreRecord, SignedAction: holo.SignedAction{Action: action}, Entry: nil}

	w := EncodeOp(op)
	assert.Nil(t, w.Entry)

	back := DecodeOp(w)
	assert.Nil(t, back.Entry)
}

func TestGossipFrameRoundTrips(t *testing.T) {
	dna := holo.NewDnaHash([]byte("space"))
	filter := gossip.Wire{Kind: gossip.WireInitiate, RoundID: "r1", AgentList: []holo.AgentPubKey{testAgent(9)}}
	frame := GossipFrame{Dna: dna, Module: gossip.ModuleRecent, Wire: filter}

	encoded, err := EncodeGossipFrame(frame)
	require.NoError(t, err)

	decoded, err := DecodeGossipFrame(encoded)
	require.NoError(t, err)
	assert.Equal(t, frame.Dna, decoded.Dna)
	assert.Equal(t, frame.Module, decoded.Module)
	assert.Equal(t, frame.Wire.RoundID, decoded.Wire.RoundID)
	assert.Equal(t, frame.Wire.AgentList, decoded.Wire.AgentList)
}

func TestRPCGetAgentActivityRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	take := uint32(10)
	req := RPC{
		Kind:      RPCGetAgentActivity,
		RequestID: "req-2",
		Space:     holo.NewDnaHash([]byte("dna")),
		Author:    testAgent(5),
		Filter: ChainFilterWire{
			ChainTop: holo.NewActionHash([]byte("top")),
			Take:     &take,
		},
	}
	require.NoError(t, WriteFrame(&buf, req))

	var decoded RPC
	require.NoError(t, ReadFrame(&buf, &decoded))
	assert.Equal(t, req.Author, decoded.Author)
	require.NotNil(t, decoded.Filter.Take)
	assert.Equal(t, take, *decoded.Filter.Take)
}
