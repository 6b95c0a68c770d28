package gossip

import (
	"encoding/hex"

	"github.com/holochain/holochain-core/pkg/holo"
)

// PeerCert identifies a remote node's transport-level certificate
// (§6: "peer identity is a 32-byte certificate plus a URL").
type PeerCert [32]byte

// String renders the certificate as hex, for logging and map keys in
// diagnostics output.
func (c PeerCert) String() string { return hex.EncodeToString(c[:]) }

// Less orders two certificates, used to resolve simultaneous-initiate
// collisions: "the one whose cert sorts lower wins."
func (c PeerCert) Less(other PeerCert) bool {
	for i := range c {
		if c[i] != other[i] {
			return c[i] < other[i]
		}
	}
	return false
}

// AgentInfo is what the gossip engine knows about one remote agent:
// its identity, how to reach it, and the storage arc it claims.
type AgentInfo struct {
	Agent holo.AgentPubKey
	Cert  PeerCert
	URL   string
	Arc   ArcSet
}

// PeerDirectory supplies candidate gossip partners for a space. It is
// the engine's only dependency on whatever maintains the peer_meta
// database, kept narrow the way pkg/cascade narrows its collaborators.
type PeerDirectory interface {
	Peers(dna holo.DnaHash) []AgentInfo
}
