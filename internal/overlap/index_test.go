package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inodb/featcache/internal/segment"
)

func iv(start, end int64) segment.Interval {
	return segment.NewInterval(start, end)
}

func TestNewIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.FindOverlaps(iv(100, 100)))
}

func TestIndex_SingleInterval(t *testing.T) {
	idx := NewIndex([]segment.Interval{iv(100, 200)})

	assert.Equal(t, []segment.Interval{iv(100, 200)}, idx.FindOverlaps(iv(150, 150)))
	assert.Len(t, idx.FindOverlaps(iv(100, 100)), 1, "start boundary inclusive")
	assert.Len(t, idx.FindOverlaps(iv(200, 200)), 1, "end boundary inclusive")
	assert.Len(t, idx.FindOverlaps(iv(50, 100)), 1, "query ending on start")
	assert.Empty(t, idx.FindOverlaps(iv(99, 99)), "before start")
	assert.Empty(t, idx.FindOverlaps(iv(201, 300)), "after end")
	assert.Empty(t, idx.FindOverlaps(iv(300, 200)), "invalid query")
}

func TestIndex_Disjoint(t *testing.T) {
	idx := NewIndex([]segment.Interval{iv(500, 600), iv(100, 200), iv(300, 400)})
	assert.Equal(t, 3, idx.Len())

	assert.Empty(t, idx.FindOverlaps(iv(250, 250)), "gap between intervals")
	assert.Equal(t, []segment.Interval{iv(100, 200), iv(300, 400)}, idx.FindOverlaps(iv(150, 350)),
		"results ascending by start")
	assert.Equal(t, []segment.Interval{iv(100, 200), iv(300, 400), iv(500, 600)}, idx.FindOverlaps(iv(1, 1000)))
}

func TestIndex_ReachPruning(t *testing.T) {
	// A short interval followed by a long one: the prefix max must keep the
	// long one reachable.
	idx := NewIndex([]segment.Interval{iv(100, 110), iv(105, 500), iv(120, 130)})

	assert.Equal(t, []segment.Interval{iv(105, 500)}, idx.FindOverlaps(iv(400, 400)))
}

func TestIndex_DoesNotRetainInput(t *testing.T) {
	in := []segment.Interval{iv(1, 10), iv(20, 30)}
	idx := NewIndex(in)
	in[0] = iv(1000, 2000)

	assert.Equal(t, []segment.Interval{iv(1, 10)}, idx.FindOverlaps(iv(5, 5)))
}

func TestIndex_MatchesLinearScan(t *testing.T) {
	// Verify the index produces the same results as a linear scan
	intervals := []segment.Interval{
		iv(1000, 5000),
		iv(2000, 3000),
		iv(4000, 8000),
		iv(6000, 7000),
		iv(9000, 10000),
	}
	idx := NewIndex(intervals)

	for start := int64(0); start <= 11000; start += 500 {
		for _, width := range []int64{0, 250, 1500} {
			q := iv(start, start+width)

			var linear []segment.Interval
			for _, s := range intervals {
				if s.Overlaps(q) {
					linear = append(linear, s)
				}
			}
			segment.SortIntervals(linear)

			assert.Equal(t, linear, idx.FindOverlaps(q), "query=%s", q)
		}
	}
}
