package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyArcSetContainsNothing(t *testing.T) {
	a := EmptyArcSet()
	assert.True(t, a.IsEmpty())
	assert.False(t, a.Contains(0))
	assert.False(t, a.Contains(1<<31))
}

func TestFullArcSetContainsEverything(t *testing.T) {
	a := FullArcSet()
	assert.True(t, a.IsFull())
	assert.False(t, a.IsEmpty())
	assert.True(t, a.Contains(0))
	assert.True(t, a.Contains(0xFFFFFFFF))
}

func TestNewArcSetContainsPointsInRange(t *testing.T) {
	a := NewArcSet(Interval{Start: 100, End: 200})
	assert.True(t, a.Contains(150))
	assert.False(t, a.Contains(200), "End is exclusive")
	assert.False(t, a.Contains(50))
}

func TestNewArcSetSplitsWraparoundInterval(t *testing.T) {
	a := NewArcSet(Interval{Start: ringSize - 10, End: ringSize + 10})
	assert.True(t, a.Contains(uint32(ringSize-5)))
	assert.True(t, a.Contains(5))
	assert.False(t, a.Contains(uint32(ringSize/2)))
}

func TestNewArcSetMergesOverlappingIntervals(t *testing.T) {
	a := NewArcSet(Interval{Start: 0, End: 100}, Interval{Start: 50, End: 150})
	assert.True(t, a.Contains(120))
	assert.False(t, a.Contains(200))
}

func TestIntersectOfDisjointArcsIsEmpty(t *testing.T) {
	a := NewArcSet(Interval{Start: 0, End: 100})
	b := NewArcSet(Interval{Start: 200, End: 300})
	assert.True(t, a.Intersect(b).IsEmpty())
	assert.False(t, a.Overlaps(b))
}

func TestIntersectOfOverlappingArcs(t *testing.T) {
	a := NewArcSet(Interval{Start: 0, End: 100})
	b := NewArcSet(Interval{Start: 50, End: 150})
	i := a.Intersect(b)
	assert.True(t, i.Contains(75))
	assert.False(t, i.Contains(25))
	assert.False(t, i.Contains(125))
	assert.True(t, a.Overlaps(b))
}

func TestIntersectWithFullArcReturnsOther(t *testing.T) {
	a := NewArcSet(Interval{Start: 0, End: 100})
	full := FullArcSet()
	assert.Equal(t, a, full.Intersect(a))
	assert.Equal(t, a, a.Intersect(full))
}

func TestIntersectOfTwoFullArcsIsFull(t *testing.T) {
	a := FullArcSet()
	b := FullArcSet()
	assert.True(t, a.Intersect(b).IsFull())
}
