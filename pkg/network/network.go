// Package network implements the §6 network layer: the transport
// consumed by the rest of the core (publish, get, get_agent_activity,
// countersigning_authority_response, broadcast, plus an inbound event
// stream) over github.com/gorilla/websocket connections framed with
// pkg/wire, and the thin admin/app websocket façade named in
// SUPPLEMENTED FEATURE 4.
package network

import (
	"context"
	"time"

	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
)

// GetOptions parameterizes a Get call; Strategy mirrors
// pkg/cascade.Strategy without pkg/network depending on pkg/cascade.
type GetOptions struct {
	Strategy string
}

// Transport is the network layer's interface to the rest of the core
// (§6 "methods consumed by the core").
type Transport interface {
	Publish(ctx context.Context, space holo.DnaHash, basis holo.AnyLinkableHash, ops []holo.DhtOp) error
	Get(ctx context.Context, space holo.DnaHash, hash holo.AnyLinkableHash, opts GetOptions) ([]holo.DhtOp, []holo.AgentPubKey, error)
	GetAgentActivity(ctx context.Context, space holo.DnaHash, author holo.AgentPubKey, filter ChainFilter) ([]holo.Record, []holo.Warrant, error)
	CountersigningAuthorityResponse(ctx context.Context, space holo.DnaHash, sessionEntry holo.EntryHash, responses []holo.SignedAction) error
	Broadcast(ctx context.Context, space holo.DnaHash, message []byte) error

	// Events delivers inbound gossip frames, publishes and remote
	// calls this node did not itself originate.
	Events() <-chan Event
}

// ChainFilter mirrors pkg/activity.ChainFilter for callers that don't
// want pkg/network depending on pkg/activity.
type ChainFilter struct {
	ChainTop       holo.ActionHash
	Take           *uint32
	UntilHashes    []holo.ActionHash
	UntilTimestamp *time.Time
}

// EventKind discriminates an inbound Event.
type EventKind string

const (
	EventGossip    EventKind = "Gossip"
	EventPublish   EventKind = "Publish"
	EventRemoteCall EventKind = "RemoteCall"
)

// Event is one inbound occurrence the rest of the core reacts to:
// a gossip frame needing ProcessIncoming, an unsolicited publish, or a
// remote call with no built-in handler (countersigning authority
// response / broadcast). Get and get_agent_activity requests are
// answered by the manager itself and never become an Event.
type Event struct {
	Kind EventKind
	Peer gossip.PeerCert
	Dna  holo.DnaHash

	// Gossip
	Module gossip.Module
	Wire   gossip.Wire

	// Publish
	Ops []holo.DhtOp

	// RemoteCall carries the raw RPC's request ID and its marshaled
	// bytes; the manager answers Get/GetAgentActivity internally, so
	// this variant is only emitted for kinds with no built-in handler
	// (CountersigningAuthorityResponse, Broadcast).
	RequestID string
	Message   []byte
}
