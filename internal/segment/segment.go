package segment

import "fmt"

// Status describes where a segment's payload came from.
type Status uint8

const (
	// StatusMissing marks a placeholder with no cached data.
	StatusMissing Status = iota
	// StatusCached marks a payload recovered from the cache.
	StatusCached
	// StatusImportFailed marks a cached piece whose import was rejected by the
	// target. It must not be written back.
	StatusImportFailed
	// StatusFetched marks a payload filled in by the caller from the original source.
	StatusFetched
)

var statusNames = [...]string{"missing", "cached", "import_failed", "fetched"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// Segment is an interval plus an optional payload.
// A nil Payload means the segment is a placeholder for data not yet obtained.
type Segment struct {
	Interval
	Payload *Payload
	Status  Status
}

// NewPlaceholder returns an empty segment spanning iv.
func NewPlaceholder(iv Interval) *Segment {
	return &Segment{Interval: iv, Status: StatusMissing}
}

// Empty returns true if the segment carries no payload.
func (s *Segment) Empty() bool {
	return s.Payload == nil
}

// NeedsWriteBack returns true if the caller filled the segment from the
// original source and it should be saved to extend cache coverage.
func (s *Segment) NeedsWriteBack() bool {
	return s.Status == StatusFetched && s.Payload != nil
}

// Fill attaches a freshly fetched payload to a placeholder.
func (s *Segment) Fill(p *Payload) {
	s.Payload = p
	s.Status = StatusFetched
}

// Clone returns a deep copy of the segment.
func (s *Segment) Clone() *Segment {
	return &Segment{Interval: s.Interval, Payload: s.Payload.Clone(), Status: s.Status}
}

// Payload holds the data for a segment: either one value per position
// or a list of region annotations. Exactly one of the two is set.
type Payload struct {
	Values  []float64 // one value per position, index 0 = segment start
	Regions []*Region // annotations positioned relative to the segment start
}

// Region is a nested annotation. Start and End are relative to the start of
// the segment that owns it, for children as well as for top-level regions.
type Region struct {
	Start    int64     // relative start (inclusive)
	End      int64     // relative end (inclusive)
	Name     string    // feature name
	Score    float64   // feature score
	Strand   int8      // +1, -1 or 0 when unknown
	Children []*Region // nested sub-features (e.g. exons of a transcript)
}

// IsValues returns true if the payload is a flat value array.
func (p *Payload) IsValues() bool {
	return p != nil && p.Values != nil
}

// IsRegions returns true if the payload is a region list.
func (p *Payload) IsRegions() bool {
	return p != nil && p.Regions != nil
}

// Clone returns a deep copy of the payload. A nil payload clones to nil.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	out := &Payload{}
	if p.Values != nil {
		out.Values = make([]float64, len(p.Values))
		copy(out.Values, p.Values)
	}
	if p.Regions != nil {
		out.Regions = cloneRegions(p.Regions)
	}
	return out
}

// Rebase shifts every region position, recursively, by delta.
// Values are positional and need no adjustment.
func (p *Payload) Rebase(delta int64) {
	if p == nil || delta == 0 {
		return
	}
	for _, r := range p.Regions {
		r.Rebase(delta)
	}
}

// Crop returns a new payload holding the part of p that falls within sub.
// origin is the interval p currently describes; sub must lie within origin.
// Regions overlapping sub are kept whole and rebased to sub.Start.
func (p *Payload) Crop(origin, sub Interval) (*Payload, error) {
	if p == nil {
		return nil, nil
	}
	if !origin.Contains(sub) || !sub.Valid() {
		return nil, fmt.Errorf("crop %s outside %s", sub, origin)
	}

	out := &Payload{}
	if p.Values != nil {
		if int64(len(p.Values)) != origin.Len() {
			return nil, fmt.Errorf("payload has %d values for %d positions", len(p.Values), origin.Len())
		}
		lo := sub.Start - origin.Start
		hi := sub.End - origin.Start + 1
		out.Values = make([]float64, hi-lo)
		copy(out.Values, p.Values[lo:hi])
	}
	if p.Regions != nil {
		// relative window of sub within origin
		window := Interval{Start: sub.Start - origin.Start, End: sub.End - origin.Start}
		out.Regions = make([]*Region, 0, len(p.Regions))
		for _, r := range p.Regions {
			if !r.Interval().Overlaps(window) {
				continue
			}
			c := r.Clone()
			c.Rebase(origin.Start - sub.Start)
			out.Regions = append(out.Regions, c)
		}
	}
	return out, nil
}

// Interval returns the region's relative bounds.
func (r *Region) Interval() Interval {
	return Interval{Start: r.Start, End: r.End}
}

// Clone returns a deep copy of the region and all of its children.
func (r *Region) Clone() *Region {
	c := *r
	if r.Children != nil {
		c.Children = cloneRegions(r.Children)
	}
	return &c
}

// Rebase shifts the region and all descendants by delta.
func (r *Region) Rebase(delta int64) {
	r.Start += delta
	r.End += delta
	for _, child := range r.Children {
		child.Rebase(delta)
	}
}

func cloneRegions(rs []*Region) []*Region {
	out := make([]*Region, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
