package holo

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashType tags which kind of content a hash addresses. It determines
// the 3-byte prefix baked into the hash bytes.
type HashType uint8

const (
	HashTypeDna HashType = iota
	HashTypeAgent
	HashTypeAction
	HashTypeEntry
	HashTypeDhtOp
	HashTypeExternal
)

func (t HashType) String() string {
	switch t {
	case HashTypeDna:
		return "dna"
	case HashTypeAgent:
		return "agent"
	case HashTypeAction:
		return "action"
	case HashTypeEntry:
		return "entry"
	case HashTypeDhtOp:
		return "dhtop"
	case HashTypeExternal:
		return "external"
	default:
		return "unknown"
	}
}

var hashPrefixes = map[HashType][hashPrefixLen]byte{
	HashTypeDna:      {0x84, 0x2d, 0x24},
	HashTypeAgent:    {0x84, 0x20, 0x24},
	HashTypeAction:   {0x84, 0x29, 0x24},
	HashTypeEntry:    {0x84, 0x21, 0x24},
	HashTypeDhtOp:    {0x84, 0x24, 0x24},
	HashTypeExternal: {0x84, 0x22, 0x24},
}

const (
	hashPrefixLen = 3
	hashCoreLen   = 32
	hashLocLen    = 4
	// HashLen is the total size of a content-addressed hash: a 3-byte
	// type prefix, a 32-byte digest and a 4-byte DHT location suffix.
	HashLen = hashPrefixLen + hashCoreLen + hashLocLen
)

// ErrBadHashType is returned when a hash's prefix does not match any
// known HashType during decode.
var ErrBadHashType = errors.New("holo: unrecognized hash type prefix")

// rawHash is the common 39-byte representation embedded by every typed
// hash below. It carries the shared methods (String, Location, Bytes,
// JSON marshaling) so the typed wrappers need only a constructor.
type rawHash [HashLen]byte

func newRawHash(t HashType, content []byte) rawHash {
	digest := blake2b256(content)
	var h rawHash
	copy(h[:hashPrefixLen], hashPrefixes[t][:])
	copy(h[hashPrefixLen:hashPrefixLen+hashCoreLen], digest)
	loc := foldLocation(digest)
	binary.BigEndian.PutUint32(h[hashPrefixLen+hashCoreLen:], loc)
	return h
}

func blake2b256(content []byte) []byte {
	sum := blake2b.Sum256(content)
	return sum[:]
}

// foldLocation derives the 4-byte DHT coordinate by XOR-folding the
// 32-byte digest into 4-byte words, the same scheme used by
// Holochain's holo_hash crate so two independent implementations of
// this spec agree on placement.
func foldLocation(digest []byte) uint32 {
	var loc [4]byte
	for i := 0; i < len(digest); i += 4 {
		chunk := digest[i:min(i+4, len(digest))]
		for j, b := range chunk {
			loc[j] ^= b
		}
	}
	return binary.BigEndian.Uint32(loc[:])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Type reports the HashType encoded in the hash's prefix, or false if
// the prefix is not recognized.
func (h rawHash) Type() (HashType, bool) {
	for t, p := range hashPrefixes {
		if h[0] == p[0] && h[1] == p[1] && h[2] == p[2] {
			return t, true
		}
	}
	return 0, false
}

// Location is the 32-bit DHT coordinate this hash's basis falls on.
func (h rawHash) Location() uint32 {
	return binary.BigEndian.Uint32(h[hashPrefixLen+hashCoreLen:])
}

// Digest returns the 32-byte content digest, excluding prefix and location.
func (h rawHash) Digest() []byte {
	return h[hashPrefixLen : hashPrefixLen+hashCoreLen]
}

// Bytes returns the full 39-byte encoding.
func (h rawHash) Bytes() []byte {
	b := make([]byte, HashLen)
	copy(b, h[:])
	return b
}

// IsZero reports whether this hash is the zero value (never a valid
// content address, used as a sentinel for "absent").
func (h rawHash) IsZero() bool {
	return h == rawHash{}
}

func (h rawHash) String() string {
	return base64.RawURLEncoding.EncodeToString(h[:])
}

func (h rawHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *rawHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = rawHash{}
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("holo: decode hash: %w", err)
	}
	if len(b) != HashLen {
		return fmt.Errorf("holo: hash has %d bytes, want %d", len(b), HashLen)
	}
	copy(h[:], b)
	return nil
}

func parseRaw(s string) (rawHash, error) {
	var h rawHash
	if err := h.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return rawHash{}, err
	}
	return h, nil
}

// DnaHash identifies an application manifest (a "space").
type DnaHash struct{ rawHash }

// NewDnaHash content-addresses a DNA manifest's canonical bytes.
func NewDnaHash(content []byte) DnaHash { return DnaHash{newRawHash(HashTypeDna, content)} }

// ParseDnaHash decodes a previously-encoded DnaHash string.
func ParseDnaHash(s string) (DnaHash, error) {
	r, err := parseRaw(s)
	return DnaHash{r}, err
}

// AgentPubKey identifies an agent (a signing keypair's public half).
type AgentPubKey struct{ rawHash }

// NewAgentPubKey wraps a raw Ed25519 public key as a content address.
// Agent keys are content-addressed over the key bytes themselves, not
// hashed again, matching Holochain's convention that an AgentPubKey's
// digest bytes are the literal public key.
func NewAgentPubKey(pubKey []byte) AgentPubKey {
	var h rawHash
	copy(h[:hashPrefixLen], hashPrefixes[HashTypeAgent][:])
	copy(h[hashPrefixLen:hashPrefixLen+hashCoreLen], pubKey)
	loc := foldLocation(pubKey)
	binary.BigEndian.PutUint32(h[hashPrefixLen+hashCoreLen:], loc)
	return AgentPubKey{h}
}

// ParseAgentPubKey decodes a previously-encoded AgentPubKey string.
func ParseAgentPubKey(s string) (AgentPubKey, error) {
	r, err := parseRaw(s)
	return AgentPubKey{r}, err
}

// ActionHash identifies a single signed action on a source chain.
type ActionHash struct{ rawHash }

// NewActionHash content-addresses an action's canonical encoding.
func NewActionHash(content []byte) ActionHash { return ActionHash{newRawHash(HashTypeAction, content)} }

// ParseActionHash decodes a previously-encoded ActionHash string.
func ParseActionHash(s string) (ActionHash, error) {
	r, err := parseRaw(s)
	return ActionHash{r}, err
}

// EntryHash identifies an entry's content, independent of which action(s)
// reference it.
type EntryHash struct{ rawHash }

// NewEntryHash content-addresses an entry's canonical encoding.
func NewEntryHash(content []byte) EntryHash { return EntryHash{newRawHash(HashTypeEntry, content)} }

// ParseEntryHash decodes a previously-encoded EntryHash string.
func ParseEntryHash(s string) (EntryHash, error) {
	r, err := parseRaw(s)
	return EntryHash{r}, err
}

// DhtOpHash identifies one DhtOp: the per-basis projection of an action.
type DhtOpHash struct{ rawHash }

// NewDhtOpHash content-addresses a DhtOp's canonical (type, action, entry) encoding.
func NewDhtOpHash(content []byte) DhtOpHash { return DhtOpHash{newRawHash(HashTypeDhtOp, content)} }

// ParseDhtOpHash decodes a previously-encoded DhtOpHash string.
func ParseDhtOpHash(s string) (DhtOpHash, error) {
	r, err := parseRaw(s)
	return DhtOpHash{r}, err
}

// AnyLinkableHash is either an ActionHash or an EntryHash, used as a
// link base or target where either is valid.
type AnyLinkableHash struct{ rawHash }

// LinkableFromEntry lifts an EntryHash to an AnyLinkableHash.
func LinkableFromEntry(h EntryHash) AnyLinkableHash { return AnyLinkableHash{h.rawHash} }

// LinkableFromAction lifts an ActionHash to an AnyLinkableHash.
func LinkableFromAction(h ActionHash) AnyLinkableHash { return AnyLinkableHash{h.rawHash} }

// AsEntryHash returns the EntryHash view of this hash, if its prefix matches.
func (h AnyLinkableHash) AsEntryHash() (EntryHash, bool) {
	t, ok := h.Type()
	if !ok || t != HashTypeEntry {
		return EntryHash{}, false
	}
	return EntryHash{h.rawHash}, true
}

// AsActionHash returns the ActionHash view of this hash, if its prefix matches.
func (h AnyLinkableHash) AsActionHash() (ActionHash, bool) {
	t, ok := h.Type()
	if !ok || t != HashTypeAction {
		return ActionHash{}, false
	}
	return ActionHash{h.rawHash}, true
}

// ParseAnyLinkableHash decodes a previously-encoded AnyLinkableHash string.
func ParseAnyLinkableHash(s string) (AnyLinkableHash, error) {
	r, err := parseRaw(s)
	return AnyLinkableHash{r}, err
}
