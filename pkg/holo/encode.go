package holo

import (
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeAction produces the canonical byte encoding an action is
// hashed and signed over. Two actions with equal field values always
// encode identically, which is what P1 (hash stability) depends on.
func EncodeAction(a Action) []byte {
	b, err := msgpack.Marshal(a)
	if err != nil {
		// Action contains no unencodable field types (no channels,
		// funcs, or cycles); a marshal error here means the struct
		// shape was broken by an edit, not a runtime condition.
		panic("holo: action encode: " + err.Error())
	}
	return b
}

// EncodeEntry produces the canonical byte encoding of an entry's payload.
func EncodeEntry(e Entry) []byte {
	return e.Bytes()
}

// DecodeAction reverses EncodeAction.
func DecodeAction(b []byte) (Action, error) {
	var a Action
	err := msgpack.Unmarshal(b, &a)
	return a, err
}
