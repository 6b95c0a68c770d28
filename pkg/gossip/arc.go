package gossip

import "sort"

// Interval is a half-open range [Start, End) over the 32-bit DHT
// location ring. An interval that would wrap past the ring's end is
// represented as two intervals split at the wrap point, so ArcSet
// never needs wraparound arithmetic internally.
type Interval struct {
	Start uint64
	End   uint64
}

const ringSize = uint64(1) << 32

// ArcSet is a set of non-overlapping, sorted intervals — the
// "wildcard-free explicit arc intervals" shape: an arc after a
// key-space shuffle can be several disjoint pieces, not one
// contiguous min/max pair.
type ArcSet struct {
	intervals []Interval
	full      bool
}

// FullArcSet covers the entire location ring.
func FullArcSet() ArcSet { return ArcSet{full: true} }

// EmptyArcSet covers nothing — the "arc-zero" case (§4.7).
func EmptyArcSet() ArcSet { return ArcSet{} }

// NewArcSet builds an ArcSet from explicit [start, end) location
// intervals, splitting any that wrap past the ring boundary and
// merging overlapping or adjacent pieces.
func NewArcSet(raw ...Interval) ArcSet {
	var split []Interval
	for _, iv := range raw {
		start, end := iv.Start%ringSize, iv.End
		if end <= start {
			end += ringSize
		}
		if end-start >= ringSize {
			return FullArcSet()
		}
		if wrapEnd := start + (end - start); wrapEnd > ringSize {
			split = append(split, Interval{Start: start, End: ringSize})
			split = append(split, Interval{Start: 0, End: wrapEnd - ringSize})
		} else {
			split = append(split, Interval{Start: start, End: wrapEnd})
		}
	}
	return ArcSet{intervals: normalize(split)}
}

func normalize(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })
	out := []Interval{ivs[0]}
	for _, iv := range ivs[1:] {
		last := &out[len(out)-1]
		if iv.Start <= last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// IsEmpty reports whether this arc covers no locations.
func (a ArcSet) IsEmpty() bool { return !a.full && len(a.intervals) == 0 }

// IsFull reports whether this arc covers the entire ring.
func (a ArcSet) IsFull() bool { return a.full }

// Contains reports whether loc falls within this arc.
func (a ArcSet) Contains(loc uint32) bool {
	if a.full {
		return true
	}
	l := uint64(loc)
	for _, iv := range a.intervals {
		if l >= iv.Start && l < iv.End {
			return true
		}
	}
	return false
}

// Intersect returns the common coverage of a and b — the
// "common_arc_set" a round state carries.
func (a ArcSet) Intersect(b ArcSet) ArcSet {
	if a.full {
		return b
	}
	if b.full {
		return a
	}
	var out []Interval
	i, j := 0, 0
	for i < len(a.intervals) && j < len(b.intervals) {
		x, y := a.intervals[i], b.intervals[j]
		start := max64(x.Start, y.Start)
		end := min64(x.End, y.End)
		if start < end {
			out = append(out, Interval{Start: start, End: end})
		}
		if x.End < y.End {
			i++
		} else {
			j++
		}
	}
	return ArcSet{intervals: out}
}

// Overlaps reports whether a and b share any coverage.
func (a ArcSet) Overlaps(b ArcSet) bool {
	return !a.Intersect(b).IsEmpty()
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
