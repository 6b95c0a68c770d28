// Package wire implements the §6 wire formats over
// github.com/vmihailenco/msgpack/v5: the gossip frame tagged union
// carrying a pkg/gossip.Wire between peers, the op wire format used to
// publish and fetch DhtOps, and the RPC envelope the network layer
// uses for everything that isn't gossip (publish, get,
// get_agent_activity, countersigning_authority_response, broadcast).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameSize bounds a single length-prefixed frame so a corrupt or
// hostile peer cannot make a reader allocate unbounded memory.
const maxFrameSize = 16 << 20

// WriteFrame writes v to w as a length-prefixed msgpack payload: a
// 4-byte big-endian length followed by that many bytes.
func WriteFrame(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}
	if len(payload) > maxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(payload), maxFrameSize)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed msgpack payload from r into v.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return fmt.Errorf("wire: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, maxFrameSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("wire: read payload: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}

// Marshal and Unmarshal expose the raw msgpack codec for transports
// (gorilla/websocket) that already provide their own message framing
// and so don't need WriteFrame/ReadFrame's length prefix.
func Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
