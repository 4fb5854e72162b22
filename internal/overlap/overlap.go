// Package overlap implements the interval algebra behind the cache: cropping
// a write against what is already stored, and splitting a read into pieces
// aligned with stored intervals.
//
// All functions expect stored intervals sorted ascending by start and
// pairwise disjoint, as returned by store.ListOverlapping.
package overlap

import (
	"fmt"

	"github.com/inodb/featcache/internal/segment"
)

// WritePlan is the outcome of cropping a write against stored intervals.
type WritePlan struct {
	Range    segment.Interval   // the range to write, after cropping
	Obsolete []segment.Interval // stored intervals inside Range, to delete
	Covered  bool               // a stored interval already holds the whole request
}

// Degenerate returns true if cropping left nothing to write.
func (p WritePlan) Degenerate() bool {
	return !p.Range.Valid()
}

// NoOp returns true if the write should be skipped.
func (p WritePlan) NoOp() bool {
	return p.Covered || p.Degenerate()
}

// PlanWrite crops want against the stored intervals that overlap it.
//
// Stored intervals containing want make the write redundant. Stored intervals
// inside want are marked obsolete. An interval overlapping the left flank
// raises the start past its end; one overlapping the right flank lowers the
// end below its start. Any other shape of overlap means the stored set is
// not disjoint and is reported as a *segment.ConsistencyError.
func PlanWrite(want segment.Interval, stored []segment.Interval) (WritePlan, error) {
	if !want.Valid() {
		return WritePlan{}, fmt.Errorf("plan write: invalid range %s", want)
	}

	cur := want
	var obsolete []segment.Interval

	for _, s := range stored {
		if !s.Overlaps(cur) {
			// cropped away by an earlier neighbour
			continue
		}
		switch {
		case s.Contains(cur):
			return WritePlan{Range: cur, Covered: true}, nil
		case cur.Contains(s):
			obsolete = append(obsolete, s)
		case s.Start <= cur.Start && s.End < cur.End:
			cur.Start = s.End + 1
		case s.Start > cur.Start && s.End > cur.End:
			cur.End = s.Start - 1
		default:
			return WritePlan{}, &segment.ConsistencyError{
				Intervals: []segment.Interval{s, cur},
				Reason:    "unexpected overlap shape while cropping write",
			}
		}
	}

	if err := checkCropped(cur, obsolete, stored); err != nil {
		return WritePlan{}, err
	}
	return WritePlan{Range: cur, Obsolete: obsolete}, nil
}

// checkCropped verifies that after cropping only obsolete intervals still
// overlap the write range.
func checkCropped(cur segment.Interval, obsolete, stored []segment.Interval) error {
	if !cur.Valid() {
		if len(obsolete) > 0 {
			return &segment.ConsistencyError{
				Intervals: obsolete,
				Reason:    "write cropped to nothing but superseded intervals remain",
			}
		}
		return nil
	}

	for _, s := range stored {
		if !s.Overlaps(cur) || isObsolete(s, obsolete) {
			continue
		}
		return &segment.ConsistencyError{
			Intervals: []segment.Interval{s, cur},
			Reason:    "stored interval still overlaps cropped write",
		}
	}
	for _, o := range obsolete {
		if !cur.Contains(o) {
			return &segment.ConsistencyError{
				Intervals: []segment.Interval{o, cur},
				Reason:    "superseded interval not inside cropped write",
			}
		}
	}
	return nil
}

func isObsolete(s segment.Interval, obsolete []segment.Interval) bool {
	for _, o := range obsolete {
		if o == s {
			return true
		}
	}
	return false
}

// Split cuts iv into contiguous ascending pieces aligned with the boundaries
// of the stored intervals overlapping it. Stored intervals reaching outside iv
// are clipped; stretches not covered by any stored interval become gap pieces.
// The pieces span exactly iv.
func Split(iv segment.Interval, stored []segment.Interval) []segment.Interval {
	var pieces []segment.Interval
	cursor := iv.Start

	for _, s := range stored {
		part := s.Intersect(iv)
		if !part.Valid() || part.End < cursor {
			continue
		}
		part.Start = max(part.Start, cursor)
		if part.Start > cursor {
			pieces = append(pieces, segment.Interval{Start: cursor, End: part.Start - 1})
		}
		pieces = append(pieces, part)
		cursor = part.End + 1
	}

	if cursor <= iv.End {
		pieces = append(pieces, segment.Interval{Start: cursor, End: iv.End})
	}
	return pieces
}

// MatchKind tells how a piece corresponds to a stored interval.
type MatchKind uint8

const (
	// MatchNone means the piece is a gap.
	MatchNone MatchKind = iota
	// MatchExact means the piece has the stored interval's exact bounds.
	MatchExact
	// MatchWithin means the piece is a clipped part of the stored interval;
	// its payload must be cropped.
	MatchWithin
)

// Match finds the stored interval backing a piece produced by Split.
// The exact clause is tried over all candidates before the containment clause.
func Match(piece segment.Interval, stored []segment.Interval) (segment.Interval, MatchKind) {
	for _, s := range stored {
		if s == piece {
			return s, MatchExact
		}
	}
	for _, s := range stored {
		if s.Contains(piece) {
			return s, MatchWithin
		}
	}
	return segment.Interval{}, MatchNone
}

// VerifyCovering checks that segs are contiguous, ascending and span exactly iv.
func VerifyCovering(segs []*segment.Segment, iv segment.Interval) error {
	if len(segs) == 0 {
		return &segment.ConsistencyError{
			Intervals: []segment.Interval{iv},
			Reason:    "no segments cover range",
		}
	}
	if segs[0].Start != iv.Start {
		return &segment.ConsistencyError{
			Intervals: []segment.Interval{segs[0].Interval, iv},
			Reason:    "first segment does not start at range start",
		}
	}
	for i, s := range segs {
		if !s.Valid() {
			return &segment.ConsistencyError{
				Intervals: []segment.Interval{s.Interval},
				Reason:    "segment start after end",
			}
		}
		if i > 0 && s.Start != segs[i-1].End+1 {
			return &segment.ConsistencyError{
				Intervals: []segment.Interval{segs[i-1].Interval, s.Interval},
				Reason:    "segments not contiguous",
			}
		}
	}
	if last := segs[len(segs)-1]; last.End != iv.End {
		return &segment.ConsistencyError{
			Intervals: []segment.Interval{last.Interval, iv},
			Reason:    "last segment does not end at range end",
		}
	}
	return nil
}
