package wire

// EnvelopeKind discriminates the two message families multiplexed over
// one peer connection: gossip frames and everything else.
type EnvelopeKind string

const (
	EnvelopeGossip EnvelopeKind = "Gossip"
	EnvelopeRPC    EnvelopeKind = "RPC"
)

// Envelope is the outermost shape written to a peer connection, so one
// websocket connection can carry both gossip frames and RPCs without a
// second socket.
type Envelope struct {
	Kind   EnvelopeKind
	Gossip *GossipFrame `msgpack:",omitempty"`
	RPC    *RPC         `msgpack:",omitempty"`
}
