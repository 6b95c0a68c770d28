package holo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgent() AgentPubKey {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i + 1)
	}
	return NewAgentPubKey(pub)
}

func TestOpsForCreateProjectsStoreRecordStoreEntryAndActivity(t *testing.T) {
	entry := Entry{Kind: EntryKindApp, App: []byte("hello")}
	entryHash := NewEntryHash(EncodeEntry(entry))

	action := Action{
		Type:      ActionCreate,
		Author:    testAgent(),
		Timestamp: time.Unix(0, 0).UTC(),
		ActionSeq: 1,
		EntryType: EntryType{Kind: EntryKindApp, Visibility: EntryPublic},
		EntryHash: entryHash,
	}
	sa := SignedAction{Action: action, Signature: []byte("sig")}

	ops := OpsForAction(sa, &entry, EntryPublic)

	var types []DhtOpType
	for _, op := range ops {
		types = append(types, op.Type)
	}
	assert.Contains(t, types, OpStoreRecord)
	assert.Contains(t, types, OpStoreEntry)
	assert.Contains(t, types, OpRegisterAgentActivity)
}

func TestOpsForPrivateEntryOmitEntryBody(t *testing.T) {
	entry := Entry{Kind: EntryKindApp, App: []byte("secret")}
	action := Action{
		Type:      ActionCreate,
		Author:    testAgent(),
		Timestamp: time.Unix(0, 0).UTC(),
		EntryType: EntryType{Kind: EntryKindApp, Visibility: EntryPrivate},
	}
	sa := SignedAction{Action: action, Signature: []byte("sig")}

	ops := OpsForAction(sa, &entry, EntryPrivate)
	for _, op := range ops {
		assert.Nil(t, op.Entry, "private entries must never ride along on the wire projection")
	}
}

func TestDhtOpHashStableAcrossRecomputation(t *testing.T) {
	action := Action{Type: ActionCreate, Author: testAgent(), Timestamp: time.Unix(1000, 0).UTC(), ActionSeq: 2}
	sa := SignedAction{Action: action, Signature: []byte("sig")}
	op := DhtOp{Type: OpStoreRecord, SignedAction: sa}

	h1 := op.Hash()
	h2 := op.Hash()
	assert.Equal(t, h1, h2)

	decoded, err := DecodeAction(EncodeAction(action))
	require.NoError(t, err)
	op2 := DhtOp{Type: OpStoreRecord, SignedAction: SignedAction{Action: decoded, Signature: sa.Signature}}
	assert.Equal(t, h1, op2.Hash(), "P1: hash(encode(op)) == hash(encode(decode(encode(op))))")
}

func TestUpdateSysValidationDependencyIsOriginalAction(t *testing.T) {
	original := NewActionHash([]byte("original"))
	action := Action{Type: ActionUpdate, OriginalActionHash: original}
	op := DhtOp{Type: OpRegisterUpdatedContent, SignedAction: SignedAction{Action: action}}

	dep, ok := op.SysValidationDependency()
	require.True(t, ok)
	asAction, ok := dep.AsActionHash()
	require.True(t, ok)
	assert.Equal(t, original, asAction)
}

func TestGenesisActionHasNoPrevActionDependency(t *testing.T) {
	action := Action{Type: ActionDna}
	op := DhtOp{Type: OpStoreRecord, SignedAction: SignedAction{Action: action}}

	_, ok := op.SysValidationDependency()
	assert.False(t, ok)
	assert.False(t, action.RequiresPrevAction())
}
