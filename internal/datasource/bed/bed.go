// Package bed reads bedGraph and BED files into range-addressable sources
// that can be saved to the segment cache.
//
// BED coordinates are 0-based half-open; they are converted to the 1-based
// closed intervals the cache uses.
package bed

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/featcache/internal/segment"
)

// ValueTrack holds one value per position over a range, read from bedGraph.
type ValueTrack struct {
	chrom  string
	rng    segment.Interval
	values []float64
}

// ReadBedGraph reads the bedGraph records of chrom overlapping rng.
// Positions without a record are 0.
func ReadBedGraph(r io.Reader, chrom string, rng segment.Interval) (*ValueTrack, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("invalid range %s", rng)
	}
	t := &ValueTrack{chrom: chrom, rng: rng, values: make([]float64, rng.Len())}

	err := scanRecords(r, func(lineNum int, fields []string) error {
		if len(fields) < 4 {
			return fmt.Errorf("line %d: expected 4 columns, got %d", lineNum, len(fields))
		}
		if fields[0] != chrom {
			return nil
		}
		iv, err := parseSpan(fields[1], fields[2])
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		value, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid value %q", lineNum, fields[3])
		}
		part := iv.Intersect(rng)
		for pos := part.Start; pos <= part.End; pos++ {
			t.values[pos-rng.Start] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read bedGraph: %w", err)
	}
	return t, nil
}

func (t *ValueTrack) Chromosome() string { return t.chrom }
func (t *ValueTrack) RangeStart() int64  { return t.rng.Start }
func (t *ValueTrack) RangeEnd() int64    { return t.rng.End }

// ExtractPayload returns a copy of the values for [start, end].
func (t *ValueTrack) ExtractPayload(start, end int64) (*segment.Payload, error) {
	sub := segment.NewInterval(start, end)
	return (&segment.Payload{Values: t.values}).Crop(t.rng, sub)
}

// RegionTrack holds the BED features overlapping a range. Feature positions
// are relative to the range start.
type RegionTrack struct {
	chrom   string
	rng     segment.Interval
	regions []*segment.Region
}

// ReadBED reads BED3 to BED12 records of chrom overlapping rng. BED12 blocks
// become child regions of their feature.
func ReadBED(r io.Reader, chrom string, rng segment.Interval) (*RegionTrack, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("invalid range %s", rng)
	}
	t := &RegionTrack{chrom: chrom, rng: rng, regions: []*segment.Region{}}

	err := scanRecords(r, func(lineNum int, fields []string) error {
		if len(fields) < 3 {
			return fmt.Errorf("line %d: expected at least 3 columns, got %d", lineNum, len(fields))
		}
		if fields[0] != chrom {
			return nil
		}
		region, err := parseFeature(fields)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
		if !region.Interval().Overlaps(rng) {
			return nil
		}
		region.Rebase(-rng.Start)
		t.regions = append(t.regions, region)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read BED: %w", err)
	}
	return t, nil
}

func (t *RegionTrack) Chromosome() string { return t.chrom }
func (t *RegionTrack) RangeStart() int64  { return t.rng.Start }
func (t *RegionTrack) RangeEnd() int64    { return t.rng.End }

// Len returns the number of features read.
func (t *RegionTrack) Len() int {
	return len(t.regions)
}

// ExtractPayload returns copies of the features overlapping [start, end],
// still positioned relative to RangeStart().
func (t *RegionTrack) ExtractPayload(start, end int64) (*segment.Payload, error) {
	sub := segment.NewInterval(start, end)
	if !t.rng.Contains(sub) {
		return nil, fmt.Errorf("extract %s outside %s", sub, t.rng)
	}
	window := segment.NewInterval(start-t.rng.Start, end-t.rng.Start)

	out := make([]*segment.Region, 0, len(t.regions))
	for _, r := range t.regions {
		if r.Interval().Overlaps(window) {
			out = append(out, r.Clone())
		}
	}
	return &segment.Payload{Regions: out}, nil
}

// parseFeature builds an absolute-position region from BED columns.
func parseFeature(fields []string) (*segment.Region, error) {
	iv, err := parseSpan(fields[1], fields[2])
	if err != nil {
		return nil, err
	}
	region := &segment.Region{Start: iv.Start, End: iv.End}

	if len(fields) > 3 {
		region.Name = fields[3]
	}
	if len(fields) > 4 && fields[4] != "." {
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q", fields[4])
		}
		region.Score = score
	}
	if len(fields) > 5 {
		switch fields[5] {
		case "+":
			region.Strand = 1
		case "-":
			region.Strand = -1
		}
	}
	if len(fields) >= 12 {
		children, err := parseBlocks(iv.Start-1, fields[9], fields[10], fields[11])
		if err != nil {
			return nil, err
		}
		region.Children = children
	}
	return region, nil
}

// parseBlocks converts BED12 blockCount/blockSizes/blockStarts into child
// regions. chromStart is the feature's 0-based start.
func parseBlocks(chromStart int64, countStr, sizesStr, startsStr string) ([]*segment.Region, error) {
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("invalid blockCount %q", countStr)
	}
	if count == 0 {
		return nil, nil
	}
	sizes := splitList(sizesStr)
	starts := splitList(startsStr)
	if len(sizes) != count || len(starts) != count {
		return nil, fmt.Errorf("blockCount %d does not match %d sizes and %d starts", count, len(sizes), len(starts))
	}

	blocks := make([]*segment.Region, count)
	for i := range count {
		size, err := strconv.ParseInt(sizes[i], 10, 64)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid block size %q", sizes[i])
		}
		off, err := strconv.ParseInt(starts[i], 10, 64)
		if err != nil || off < 0 {
			return nil, fmt.Errorf("invalid block start %q", starts[i])
		}
		start := chromStart + off + 1
		blocks[i] = &segment.Region{Start: start, End: start + size - 1}
	}
	return blocks, nil
}

// parseSpan converts a 0-based half-open BED span to a 1-based closed interval.
func parseSpan(startStr, endStr string) (segment.Interval, error) {
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return segment.Interval{}, fmt.Errorf("invalid start %q", startStr)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return segment.Interval{}, fmt.Errorf("invalid end %q", endStr)
	}
	if end <= start {
		return segment.Interval{}, fmt.Errorf("empty span %s-%s", startStr, endStr)
	}
	return segment.Interval{Start: start + 1, End: end}, nil
}

// splitList splits a comma-separated BED list, ignoring the trailing comma.
func splitList(s string) []string {
	s = strings.TrimSuffix(s, ",")
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// scanRecords calls fn with the tab-separated fields of each data line,
// skipping comments, track and browser lines.
func scanRecords(r io.Reader, fn func(lineNum int, fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, "track") || strings.HasPrefix(line, "browser") {
			continue
		}
		if err := fn(lineNum, strings.Split(line, "\t")); err != nil {
			return err
		}
	}
	return scanner.Err()
}
