package bed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featcache/internal/segment"
)

const bedGraphData = `track type=bedGraph name=phylop
# comment
chr1	0	3	0.5
chr1	5	7	-1.25
chr2	0	100	9
chr1	8	20	2
`

func TestReadBedGraph(t *testing.T) {
	rng := segment.NewInterval(2, 11)
	track, err := ReadBedGraph(strings.NewReader(bedGraphData), "chr1", rng)
	require.NoError(t, err)

	assert.Equal(t, "chr1", track.Chromosome())
	assert.Equal(t, int64(2), track.RangeStart())
	assert.Equal(t, int64(11), track.RangeEnd())

	// 1-based positions 2..11: [0,3) covers 1-3, [5,7) covers 6-7, [8,20) covers 9-20
	p, err := track.ExtractPayload(2, 11)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, -1.25, -1.25, 0, 2, 2, 2}, p.Values)

	p, err = track.ExtractPayload(6, 8)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.25, -1.25, 0}, p.Values)

	_, err = track.ExtractPayload(1, 5)
	assert.Error(t, err, "outside range")
}

func TestReadBedGraph_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"too few columns", "chr1\t0\t10\n"},
		{"bad value", "chr1\t0\t10\tx\n"},
		{"bad start", "chr1\ta\t10\t1\n"},
		{"empty span", "chr1\t10\t10\t1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBedGraph(strings.NewReader(tt.data), "chr1", segment.NewInterval(1, 20))
			assert.Error(t, err)
		})
	}

	_, err := ReadBedGraph(strings.NewReader(""), "chr1", segment.NewInterval(20, 1))
	assert.Error(t, err, "invalid range")
}

const bedData = "browser position chr1:1-1000\n" +
	"chr1\t99\t200\tgeneA\t500\t+\n" +
	"chr1\t1000\t1100\n" +
	"chr1\t149\t400\ttx1\t0\t-\t149\t400\t0\t2\t51,101,\t0,150,\n" +
	"chrX\t0\t10\tother\n"

func TestReadBED(t *testing.T) {
	rng := segment.NewInterval(101, 500)
	track, err := ReadBED(strings.NewReader(bedData), "chr1", rng)
	require.NoError(t, err)
	require.Equal(t, 2, track.Len(), "chr1:1001-1100 and chrX skipped")

	p, err := track.ExtractPayload(101, 500)
	require.NoError(t, err)
	require.Len(t, p.Regions, 2)

	gene := p.Regions[0]
	assert.Equal(t, "geneA", gene.Name)
	assert.Equal(t, int64(-1), gene.Start, "1-based 100 relative to 101")
	assert.Equal(t, int64(99), gene.End)
	assert.Equal(t, 500.0, gene.Score)
	assert.Equal(t, int8(1), gene.Strand)
	assert.Nil(t, gene.Children)

	tx := p.Regions[1]
	assert.Equal(t, "tx1", tx.Name)
	assert.Equal(t, int8(-1), tx.Strand)
	assert.Equal(t, int64(49), tx.Start)
	assert.Equal(t, int64(299), tx.End)
	require.Len(t, tx.Children, 2)
	// blocks at 1-based 150-200 and 300-400
	assert.Equal(t, segment.NewInterval(49, 99), tx.Children[0].Interval())
	assert.Equal(t, segment.NewInterval(199, 299), tx.Children[1].Interval())
}

func TestRegionTrack_ExtractPayload(t *testing.T) {
	track, err := ReadBED(strings.NewReader(bedData), "chr1", segment.NewInterval(101, 500))
	require.NoError(t, err)

	// 1-based 350..500 overlaps only tx1
	p, err := track.ExtractPayload(350, 500)
	require.NoError(t, err)
	require.Len(t, p.Regions, 1)
	assert.Equal(t, "tx1", p.Regions[0].Name)
	assert.Equal(t, int64(49), p.Regions[0].Start, "still relative to RangeStart")

	p.Regions[0].Children[0].Start = 0
	again, err := track.ExtractPayload(350, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(49), again.Regions[0].Children[0].Start, "extract returns copies")

	p, err = track.ExtractPayload(450, 500)
	require.NoError(t, err)
	assert.NotNil(t, p.Regions)
	assert.Empty(t, p.Regions)

	_, err = track.ExtractPayload(1, 200)
	assert.Error(t, err)
}

func TestReadBED_BlockErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"count mismatch", "chr1\t0\t100\tx\t0\t+\t0\t100\t0\t3\t10,10,\t0,50,"},
		{"bad size", "chr1\t0\t100\tx\t0\t+\t0\t100\t0\t1\tz,\t0,"},
		{"bad score", "chr1\t0\t100\tx\tnope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadBED(strings.NewReader(tt.line+"\n"), "chr1", segment.NewInterval(1, 100))
			assert.Error(t, err)
		})
	}
}
