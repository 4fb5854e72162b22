// Package segment defines the genomic intervals and payloads exchanged with the cache.
package segment

import (
	"fmt"
	"sort"
)

// Interval is a closed integer range [Start, End] on a chromosome.
type Interval struct {
	Start int64 // first position (inclusive)
	End   int64 // last position (inclusive)
}

// NewInterval returns the interval [start, end].
func NewInterval(start, end int64) Interval {
	return Interval{Start: start, End: end}
}

// Valid returns true if Start <= End.
func (iv Interval) Valid() bool {
	return iv.Start <= iv.End
}

// Len returns the number of positions covered by the interval.
func (iv Interval) Len() int64 {
	if !iv.Valid() {
		return 0
	}
	return iv.End - iv.Start + 1
}

// Overlaps returns true if the two intervals share at least one position.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start <= o.End && o.Start <= iv.End
}

// Contains returns true if o lies entirely within iv.
func (iv Interval) Contains(o Interval) bool {
	return iv.Start <= o.Start && o.End <= iv.End
}

// Intersect returns the shared part of the two intervals.
// The result is not Valid if they do not overlap.
func (iv Interval) Intersect(o Interval) Interval {
	return Interval{Start: max(iv.Start, o.Start), End: min(iv.End, o.End)}
}

// String formats the interval the way it is named on disk.
func (iv Interval) String() string {
	return fmt.Sprintf("%d_%d", iv.Start, iv.End)
}

// SortIntervals sorts intervals ascending by start, then end.
func SortIntervals(ivs []Interval) {
	sort.Slice(ivs, func(i, j int) bool {
		if ivs[i].Start != ivs[j].Start {
			return ivs[i].Start < ivs[j].Start
		}
		return ivs[i].End < ivs[j].End
	})
}
