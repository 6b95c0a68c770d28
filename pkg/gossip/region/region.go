// Package region implements the region tree the historical gossip
// module diffs instead of exchanging Bloom filters (§4.7): the DHT's
// (time, space) coverage is partitioned into a flat grid of regions,
// each summarized by a small digest cheap enough to compare without
// exchanging the underlying op hashes.
package region

import (
	"github.com/cespare/xxhash/v2"
)

// Coord identifies one region: a time bucket index and a space
// quantum (both counted from the start of the DHT's full coverage).
// A real region tree would subdivide adaptively; a flat grid is the
// simplification described in DESIGN.md for this scope.
type Coord struct {
	TimeBucket   uint32
	SpaceQuantum uint32
}

// Data is a region's digest: the op count it covers and a running XOR
// of every op hash in it. XOR is order-independent, so two nodes that
// hold the same op set for a region always compute the same Data
// regardless of ingestion order, and a single differing op always
// changes the digest.
type Data struct {
	Count   uint32
	XORHash uint64
}

// Add folds one op hash into this region's digest.
func (d Data) Add(opHash []byte) Data {
	d.Count++
	d.XORHash ^= xxhash.Sum64(opHash)
	return d
}

// Set is one side's full region tree for a gossip round (a
// "RegionSetLtcs" in the wire vocabulary).
type Set struct {
	Regions map[Coord]Data
}

// NewSet builds an empty region set.
func NewSet() Set {
	return Set{Regions: map[Coord]Data{}}
}

// Diff returns the coordinates where s and other disagree: present in
// one but not the other, or present in both with a different digest.
// The caller pulls op hashes for exactly these regions rather than the
// whole tree.
func (s Set) Diff(other Set) []Coord {
	var out []Coord
	seen := make(map[Coord]bool, len(s.Regions)+len(other.Regions))
	for c, d := range s.Regions {
		seen[c] = true
		if od, ok := other.Regions[c]; !ok || od != d {
			out = append(out, c)
		}
	}
	for c := range other.Regions {
		if !seen[c] {
			out = append(out, c)
		}
	}
	return out
}
