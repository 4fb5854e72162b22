package cache

import (
	"fmt"

	"github.com/inodb/featcache/internal/segment"
)

// Source is a range-addressable block of feature data held by the caller,
// typically freshly fetched or computed for [RangeStart, RangeEnd].
type Source interface {
	Chromosome() string
	RangeStart() int64
	RangeEnd() int64
	// ExtractPayload returns the data for [start, end]: one value per
	// position, or the regions overlapping the range with positions relative
	// to RangeStart(). The cache copies the result before keeping it.
	ExtractPayload(start, end int64) (*segment.Payload, error)
}

// Importer merges a segment recovered from the cache into a caller structure.
// The segment handed over is a private copy.
type Importer interface {
	ImportPayload(seg *segment.Segment) error
}

// ImporterFunc adapts a function to the Importer interface.
type ImporterFunc func(seg *segment.Segment) error

// ImportPayload calls f(seg).
func (f ImporterFunc) ImportPayload(seg *segment.Segment) error {
	return f(seg)
}

// segmentSource exposes a filled segment as a Source so it can be saved.
type segmentSource struct {
	chrom string
	seg   *segment.Segment
}

// SegmentSource wraps a segment whose payload is positioned relative to its
// own start as a Source.
func SegmentSource(chrom string, seg *segment.Segment) Source {
	return &segmentSource{chrom: chrom, seg: seg}
}

func (s *segmentSource) Chromosome() string { return s.chrom }
func (s *segmentSource) RangeStart() int64  { return s.seg.Start }
func (s *segmentSource) RangeEnd() int64    { return s.seg.End }

func (s *segmentSource) ExtractPayload(start, end int64) (*segment.Payload, error) {
	sub := segment.NewInterval(start, end)
	if s.seg.Payload == nil {
		return nil, fmt.Errorf("segment %s has no payload", s.seg.Interval)
	}
	p, err := s.seg.Payload.Crop(s.seg.Interval, sub)
	if err != nil {
		return nil, err
	}
	// Crop positions regions at sub.Start; the Source contract wants RangeStart.
	p.Rebase(start - s.seg.Start)
	return p, nil
}
