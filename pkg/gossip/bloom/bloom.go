// Package bloom implements the Bloom filters the recent gossip module
// sends as Agents/OpBloom wire payloads (§4.7): a compact, lossy
// membership test over a set of content-addressed hashes, cheap enough
// to exchange every round instead of the full hash list.
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"
)

// Filter is a standard k-hash-function Bloom filter over bitset.BitSet,
// with double hashing (Kirsch-Mitzenmacher) over xxhash so only two
// underlying hash computations are needed regardless of k.
type Filter struct {
	bits *bitset.BitSet
	m    uint
	k    uint
}

// New sizes a filter for n expected items at false-positive rate p,
// using the standard m = -n*ln(p)/ln(2)^2, k = (m/n)*ln(2) formulas.
// Degenerate inputs are clamped: n <= 0 is sized as n = 1, and p
// outside (0, 1) is replaced by 0.01. As with any filter, an empty one
// reports every item absent.
func New(n int, p float64) *Filter {
	if n <= 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := uint(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint(math.Round(float64(m) / float64(n) * math.Ln2))
	if k == 0 {
		k = 1
	}
	return &Filter{bits: bitset.New(m), m: m, k: k}
}

// Add sets the k bit positions data hashes to.
func (f *Filter) Add(data []byte) {
	h1, h2 := f.seeds(data)
	for i := uint(0); i < f.k; i++ {
		f.bits.Set(f.location(h1, h2, i))
	}
}

// Test reports whether data's bit positions are all set. False
// positives are possible; false negatives are not.
func (f *Filter) Test(data []byte) bool {
	h1, h2 := f.seeds(data)
	for i := uint(0); i < f.k; i++ {
		if !f.bits.Test(f.location(h1, h2, i)) {
			return false
		}
	}
	return true
}

func (f *Filter) seeds(data []byte) (uint64, uint64) {
	h1 := xxhash.Sum64(data)
	salted := make([]byte, len(data)+1)
	copy(salted, data)
	salted[len(data)] = 0x5a
	h2 := xxhash.Sum64(salted)
	return h1, h2
}

func (f *Filter) location(h1, h2 uint64, i uint) uint {
	return uint((h1 + uint64(i)*h2) % uint64(f.m))
}

// Len returns the number of bits backing this filter, the size an
// OpBloom/Agents wire payload would carry.
func (f *Filter) Len() uint { return f.m }

// MarshalBinary encodes the filter's raw bit words plus its k
// parameter, for the gossip wire frame.
func (f *Filter) MarshalBinary() ([]byte, error) {
	words, err := f.bits.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(words))
	out[0] = byte(f.k)
	out[1] = byte(f.k >> 8)
	out[2] = byte(f.m)
	out[3] = byte(f.m >> 8)
	out[4] = byte(f.m >> 16)
	out[5] = byte(f.m >> 24)
	return append(out, words...), nil
}

// UnmarshalBinary decodes a filter previously produced by MarshalBinary.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errShortBuffer
	}
	f.k = uint(data[0]) | uint(data[1])<<8
	f.m = uint(data[2]) | uint(data[3])<<8 | uint(data[4])<<16 | uint(data[5])<<24
	f.bits = bitset.New(f.m)
	return f.bits.UnmarshalBinary(data[8:])
}

var errShortBuffer = bufferTooShort("bloom: buffer too short to decode filter header")

type bufferTooShort string

func (e bufferTooShort) Error() string { return string(e) }
