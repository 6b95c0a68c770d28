package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/holochain/holochain-core/pkg/events"
	"github.com/holochain/holochain-core/pkg/holo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOpStore struct {
	mu      sync.Mutex
	pending []holo.OpRow
	updates []IntegrationUpdate
}

func (s *fakeOpStore) AwaitingIntegrationOps(ctx context.Context, limit int) ([]holo.OpRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) > limit {
		return append([]holo.OpRow{}, s.pending[:limit]...), nil
	}
	return append([]holo.OpRow{}, s.pending...), nil
}

func (s *fakeOpStore) MarkIntegrated(ctx context.Context, updates []IntegrationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, updates...)
	return nil
}

func agentPubKey(seed byte) holo.AgentPubKey {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed
	}
	return holo.NewAgentPubKey(b)
}

func rowFor(op holo.DhtOp) holo.OpRow {
	row := holo.NewOpRow(op)
	row.ValidationStage = holo.StageAwaitingIntegration
	return row
}

func TestWorkflowRunIntegratesAwaitingRows(t *testing.T) {
	op := holo.DhtOp{Type: holo.OpRegisterAgentActivity, SignedAction: holo.SignedAction{Action: holo.Action{Author: agentPubKey(1)}}}
	row := rowFor(op)
	row.ValidationStatus = holo.StatusValid
	store := &fakeOpStore{pending: []holo.OpRow{row}}

	wf := NewWorkflow(holo.NewDnaHash([]byte("space")), store)
	n, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, store.updates, 1)
	assert.Equal(t, row.Hash, store.updates[0].Hash)
	assert.False(t, store.updates[0].WhenIntegrated.IsZero())
}

func TestWorkflowRunPublishesOpIntegratedAndOpRejected(t *testing.T) {
	valid := rowFor(holo.DhtOp{Type: holo.OpRegisterAgentActivity, SignedAction: holo.SignedAction{Action: holo.Action{Author: agentPubKey(1)}}})
	valid.ValidationStatus = holo.StatusValid
	rejected := rowFor(holo.DhtOp{Type: holo.OpRegisterAgentActivity, SignedAction: holo.SignedAction{Action: holo.Action{Author: agentPubKey(2)}}})
	rejected.ValidationStatus = holo.StatusRejected
	store := &fakeOpStore{pending: []holo.OpRow{valid, rejected}}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	wf := NewWorkflow(holo.NewDnaHash([]byte("space")), store)
	wf.Events = broker
	n, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	seen := map[events.EventType]int{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-sub:
			seen[evt.Type]++
		case <-time.After(time.Second):
			t.Fatal("expected two integration events")
		}
	}
	assert.Equal(t, 1, seen[events.EventOpIntegrated])
	assert.Equal(t, 1, seen[events.EventOpRejected])
}

func TestWorkflowRunTriggersReceiptOnlyWhenRequired(t *testing.T) {
	op := holo.DhtOp{Type: holo.OpRegisterAgentActivity, SignedAction: holo.SignedAction{Action: holo.Action{Author: agentPubKey(1)}}}
	row := rowFor(op)
	row.ValidationStatus = holo.StatusRejected
	row.RequireReceipt = true
	store := &fakeOpStore{pending: []holo.OpRow{row}}

	receiptCh := make(chan struct{}, 1)
	wf := NewWorkflow(holo.NewDnaHash([]byte("space")), store)
	wf.ReceiptTrigger = receiptCh

	_, err := wf.Run(context.Background())
	require.NoError(t, err)
	select {
	case <-receiptCh:
	default:
		t.Fatal("expected ReceiptTrigger to be pulsed")
	}
}

func TestWorkflowRunReturnsZeroWhenNothingPending(t *testing.T) {
	store := &fakeOpStore{}
	wf := NewWorkflow(holo.NewDnaHash([]byte("space")), store)
	n, err := wf.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, store.updates)
}
