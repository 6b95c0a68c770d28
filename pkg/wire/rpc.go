package wire

import (
	"time"

	"github.com/holochain/holochain-core/pkg/holo"
)

// RPCKind discriminates an RPC variant. Like gossip.Wire, RPC is one
// flat struct tagged by Kind rather than one Go type per variant, for
// the same reason: a single shape to encode over the wire regardless
// of which fields are meaningful for a given Kind.
type RPCKind string

const (
	RPCPublish                        RPCKind = "Publish"
	RPCGet                            RPCKind = "Get"
	RPCGetResponse                    RPCKind = "GetResponse"
	RPCGetAgentActivity                RPCKind = "GetAgentActivity"
	RPCGetAgentActivityResponse        RPCKind = "GetAgentActivityResponse"
	RPCCountersigningAuthorityResponse RPCKind = "CountersigningAuthorityResponse"
	RPCBroadcast                       RPCKind = "Broadcast"
	RPCError                           RPCKind = "Error"
)

// GetStrategy mirrors cascade.Strategy over the wire, where the
// cascade package itself is not a dependency of pkg/wire.
type GetStrategy string

const (
	GetStrategyLocalOnly GetStrategy = "LocalOnly"
	GetStrategyMustGet   GetStrategy = "MustGet"
)

// ChainFilterWire mirrors pkg/activity.ChainFilter for the
// GetAgentActivity RPC.
type ChainFilterWire struct {
	ChainTop       holo.ActionHash
	Take           *uint32
	UntilHashes    []holo.ActionHash
	UntilTimestamp *time.Time
}

// RPC is one request or response exchanged between peers outside of
// gossip: publish(space, basis, ops), get(space, hash, options),
// get_agent_activity(space, author, filter),
// countersigning_authority_response(...), and broadcast(space,
// message) (§6 Network layer).
type RPC struct {
	Kind      RPCKind
	RequestID string

	// Publish
	Space holo.DnaHash
	Basis holo.AnyLinkableHash
	Ops   []OpWire

	// Get
	Hash     holo.AnyLinkableHash
	Strategy GetStrategy

	// GetResponse
	Sources []holo.AgentPubKey

	// GetAgentActivity
	Author holo.AgentPubKey
	Filter ChainFilterWire

	// GetAgentActivityResponse
	Records  []holo.Record
	Warrants []holo.Warrant

	// CountersigningAuthorityResponse
	SessionEntryHash holo.EntryHash
	Responses        []holo.SignedAction

	// Broadcast
	Message []byte

	// Error
	Reason string
}
