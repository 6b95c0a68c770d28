package wire

import (
	"github.com/holochain/holochain-core/pkg/gossip"
	"github.com/holochain/holochain-core/pkg/holo"
)

// GossipFrame is the §6 "msgpack-like tagged union (dna_hash,
// module_type, ShardedGossipWire)" gossip envelope: everything a
// transport needs to route an inbound gossip.Wire to the right
// space's engine and module.
type GossipFrame struct {
	Dna    holo.DnaHash
	Module gossip.Module
	Wire   gossip.Wire
}

// EncodeGossipFrame and DecodeGossipFrame encode/decode a single frame
// directly, without WriteFrame/ReadFrame's length prefix. pkg/network's
// peer connections do not call them: they send gossip inside a
// wire.Envelope marshaled with Marshal/Unmarshal.
func EncodeGossipFrame(f GossipFrame) ([]byte, error) { return Marshal(f) }

func DecodeGossipFrame(data []byte) (GossipFrame, error) {
	var f GossipFrame
	err := Unmarshal(data, &f)
	return f, err
}
