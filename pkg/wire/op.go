package wire

import "github.com/holochain/holochain-core/pkg/holo"

// OpWire is the §6 op wire format: "(signature, action, optional
// entry), content-addressed by a stable canonical hash over
// (op_type_tag, action_bytes, entry_bytes_or_empty_if_private)". It is
// the shape a DhtOp takes in transit, before it is reconstituted into
// a holo.DhtOp and content-addressed with holo.DhtOp.Hash.
type OpWire struct {
	Type      holo.DhtOpType
	Signature []byte
	Action    holo.Action
	Entry     *holo.Entry
}

// EncodeOp converts a DhtOp to its wire shape.
func EncodeOp(op holo.DhtOp) OpWire {
	return OpWire{
		Type:      op.Type,
		Signature: op.SignedAction.Signature,
		Action:    op.SignedAction.Action,
		Entry:     op.Entry,
	}
}

// DecodeOp reconstitutes a DhtOp from its wire shape. The caller is
// responsible for verifying the signature and for checking
// op.Hash() against whatever hash accompanied the fetch, if any.
func DecodeOp(w OpWire) holo.DhtOp {
	return holo.DhtOp{
		Type: w.Type,
		SignedAction: holo.SignedAction{
			Action:    w.Action,
			Signature: w.Signature,
		},
		Entry: w.Entry,
	}
}

// MarshalOps/UnmarshalOps encode and decode a batch of ops as one
// msgpack array of OpWire values. RPC bodies do not go through them;
// they carry []OpWire fields directly.
func MarshalOps(ops []holo.DhtOp) ([]byte, error) {
	wires := make([]OpWire, len(ops))
	for i, op := range ops {
		wires[i] = EncodeOp(op)
	}
	return Marshal(wires)
}

func UnmarshalOps(data []byte) ([]holo.DhtOp, error) {
	var wires []OpWire
	if err := Unmarshal(data, &wires); err != nil {
		return nil, err
	}
	ops := make([]holo.DhtOp, len(wires))
	for i, w := range wires {
		ops[i] = DecodeOp(w)
	}
	return ops, nil
}
