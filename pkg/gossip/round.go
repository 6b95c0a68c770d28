package gossip

import (
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// RoundState is the per-peer, per-module negotiation state named in
// §4.7, keyed by peer cert in Engine.
type RoundState struct {
	ID                        string
	RemoteAgents              []AgentInfo
	CommonArcSet              ArcSet
	ExpectedOpBloomsRemaining int
	ReceivedAllIncomingBlooms bool
	HasPendingHistoricalOpData bool
	// RegionsAreQueued is false while this round has mismatched
	// regions whose op hashes are still being pulled, per §4.7's Busy
	// condition: a second Initiate against the same peer must not be
	// accepted mid-diff.
	RegionsAreQueued          bool
	BloomBatchCursor          *int
	OpsBatchQueue             []holo.DhtOpHash
	RegionSetSent             bool
	LastTouch                 time.Time
}

// Done reports whether this round has satisfied its completion
// condition: "received_all_incoming_blooms = true AND
// expected_op_blooms_remaining = 0."
func (r *RoundState) Done() bool {
	return r.ReceivedAllIncomingBlooms && r.ExpectedOpBloomsRemaining == 0
}

// Expired reports whether this round is older than timeout as of now.
func (r *RoundState) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastTouch) > timeout
}

func newRoundState(id string) *RoundState {
	return &RoundState{
		ID:               id,
		RegionsAreQueued: true,
		LastTouch:        time.Now(),
	}
}
