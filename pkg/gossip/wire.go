package gossip

import (
	"github.com/holochain/holochain-core/pkg/gossip/bloom"
	"github.com/holochain/holochain-core/pkg/gossip/region"
	"github.com/holochain/holochain-core/pkg/holo"
)

// Module distinguishes the recent (bloom-based) and historical
// (region-tree-based) gossip modules, which run independently per
// space but share one wire envelope (§4.7).
type Module string

const (
	ModuleRecent     Module = "ShardedRecent"
	ModuleHistorical Module = "ShardedHistorical"
)

// WireKind discriminates a ShardedGossipWire variant.
type WireKind string

const (
	WireInitiate        WireKind = "Initiate"
	WireAccept          WireKind = "Accept"
	WireAgents          WireKind = "Agents"
	WireMissingAgents   WireKind = "MissingAgents"
	WireOpBloom         WireKind = "OpBloom"
	WireOpRegions       WireKind = "OpRegions"
	WireMissingOpHashes WireKind = "MissingOpHashes"
	WireOps             WireKind = "Ops"
	WireMissingOps      WireKind = "MissingOps"
	WireNoAgents        WireKind = "NoAgents"
	WireBusy            WireKind = "Busy"
	WireError           WireKind = "Error"
)

// MissingOpsFinished marks whether a MissingOps chunk is the last one
// for the round.
type MissingOpsFinished string

const (
	ChunkComplete MissingOpsFinished = "ChunkComplete"
	AllComplete   MissingOpsFinished = "AllComplete"
)

// Wire is one ShardedGossipWire message. Like holo.Action, it is one
// flat struct tagged by Kind rather than one Go type per variant, so
// the msgpack tagged-union framing in pkg/wire has a single shape to
// encode regardless of which fields are meaningful for a given Kind.
type Wire struct {
	Kind WireKind

	// Initiate
	Intervals ArcSet
	RoundID   string
	AgentList []holo.AgentPubKey

	// Accept
	AcceptIntervals ArcSet

	// Agents / OpBloom
	Filter   *bloom.Filter
	Finished bool

	// MissingAgents
	MissingAgentList []AgentInfo

	// OpRegions
	RegionSet region.Set

	// MissingOpHashes
	Hashes []holo.DhtOpHash

	// Ops
	Ops []holo.DhtOp

	// MissingOps
	MissingOpsStatus MissingOpsFinished

	// Error
	Reason string
}
