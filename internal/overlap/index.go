package overlap

import (
	"sort"

	"github.com/inodb/featcache/internal/segment"
)

// Index provides O(log n + k) overlap queries over stored intervals using a
// sorted slice with a prefix-max array. It is built once and never modified.
type Index struct {
	intervals []segment.Interval
	reach     []int64 // reach[i] = max(End) for intervals[:i+1]
}

// NewIndex builds an index from intervals. The input slice is not retained.
func NewIndex(ivs []segment.Interval) *Index {
	if len(ivs) == 0 {
		return &Index{}
	}

	intervals := make([]segment.Interval, len(ivs))
	copy(intervals, ivs)
	segment.SortIntervals(intervals)

	reach := make([]int64, len(intervals))
	reach[0] = intervals[0].End
	for i := 1; i < len(intervals); i++ {
		reach[i] = max(intervals[i].End, reach[i-1])
	}

	return &Index{intervals: intervals, reach: reach}
}

// Len returns the number of indexed intervals.
func (x *Index) Len() int {
	return len(x.intervals)
}

// FindOverlaps returns the indexed intervals intersecting iv, ascending by start.
func (x *Index) FindOverlaps(iv segment.Interval) []segment.Interval {
	if len(x.intervals) == 0 || !iv.Valid() {
		return nil
	}

	// Candidates start at or before iv.End: [0, hi).
	hi := sort.Search(len(x.intervals), func(i int) bool {
		return x.intervals[i].Start > iv.End
	})
	// Everything before lo ends before iv.Start.
	lo := sort.Search(hi, func(i int) bool {
		return x.reach[i] >= iv.Start
	})

	var result []segment.Interval
	for i := lo; i < hi; i++ {
		if x.intervals[i].End >= iv.Start {
			result = append(result, x.intervals[i])
		}
	}
	return result
}
