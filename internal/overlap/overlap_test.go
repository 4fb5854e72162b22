package overlap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featcache/internal/segment"
)

func TestPlanWrite(t *testing.T) {
	tests := []struct {
		name     string
		want     segment.Interval
		stored   []segment.Interval
		wantPlan WritePlan
	}{
		{
			name:     "nothing stored",
			want:     iv(10, 20),
			wantPlan: WritePlan{Range: iv(10, 20)},
		},
		{
			name:     "covered by one stored interval",
			want:     iv(12, 18),
			stored:   []segment.Interval{iv(10, 20)},
			wantPlan: WritePlan{Range: iv(12, 18), Covered: true},
		},
		{
			name:     "identical to stored interval",
			want:     iv(10, 20),
			stored:   []segment.Interval{iv(10, 20)},
			wantPlan: WritePlan{Range: iv(10, 20), Covered: true},
		},
		{
			name:     "left flank",
			want:     iv(10, 30),
			stored:   []segment.Interval{iv(1, 15)},
			wantPlan: WritePlan{Range: iv(16, 30)},
		},
		{
			name:     "right flank",
			want:     iv(10, 30),
			stored:   []segment.Interval{iv(25, 40)},
			wantPlan: WritePlan{Range: iv(10, 24)},
		},
		{
			name:     "both flanks",
			want:     iv(10, 30),
			stored:   []segment.Interval{iv(1, 15), iv(25, 40)},
			wantPlan: WritePlan{Range: iv(16, 24)},
		},
		{
			name:   "supersedes inner intervals",
			want:   iv(1, 100),
			stored: []segment.Interval{iv(10, 20), iv(40, 50)},
			wantPlan: WritePlan{
				Range:    iv(1, 100),
				Obsolete: []segment.Interval{iv(10, 20), iv(40, 50)},
			},
		},
		{
			name:   "flank and supersede",
			want:   iv(10, 100),
			stored: []segment.Interval{iv(1, 15), iv(40, 50), iv(90, 200)},
			wantPlan: WritePlan{
				Range:    iv(16, 89),
				Obsolete: []segment.Interval{iv(40, 50)},
			},
		},
		{
			name:     "touching but not overlapping",
			want:     iv(10, 20),
			stored:   []segment.Interval{iv(1, 9), iv(21, 30)},
			wantPlan: WritePlan{Range: iv(10, 20)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanWrite(tt.want, tt.stored)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPlan, plan)
			assert.False(t, plan.Degenerate())
			assert.Equal(t, tt.wantPlan.Covered, plan.NoOp())
		})
	}
}

func TestPlanWrite_InvalidRange(t *testing.T) {
	_, err := PlanWrite(iv(20, 10), nil)
	require.Error(t, err)

	var ce *segment.ConsistencyError
	assert.NotErrorAs(t, err, &ce)
}

func TestPlanWrite_SupersededThenCroppedAway(t *testing.T) {
	// Only possible when the stored set already overlaps itself.
	_, err := PlanWrite(iv(1, 100), []segment.Interval{iv(40, 50), iv(30, 60), iv(45, 120)})

	var ce *segment.ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "superseded")
}

func TestWritePlan_Degenerate(t *testing.T) {
	p := WritePlan{Range: iv(21, 20)}
	assert.True(t, p.Degenerate())
	assert.True(t, p.NoOp())
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		iv     segment.Interval
		stored []segment.Interval
		want   []segment.Interval
	}{
		{
			name: "nothing stored",
			iv:   iv(1, 100),
			want: []segment.Interval{iv(1, 100)},
		},
		{
			name:   "exact",
			iv:     iv(1, 100),
			stored: []segment.Interval{iv(1, 100)},
			want:   []segment.Interval{iv(1, 100)},
		},
		{
			name:   "gaps around and between",
			iv:     iv(1, 100),
			stored: []segment.Interval{iv(5, 10), iv(21, 30)},
			want:   []segment.Interval{iv(1, 4), iv(5, 10), iv(11, 20), iv(21, 30), iv(31, 100)},
		},
		{
			name:   "stored reaching outside is clipped",
			iv:     iv(10, 100),
			stored: []segment.Interval{iv(1, 20), iv(95, 120)},
			want:   []segment.Interval{iv(10, 20), iv(21, 94), iv(95, 100)},
		},
		{
			name:   "stored containing range",
			iv:     iv(10, 20),
			stored: []segment.Interval{iv(1, 100)},
			want:   []segment.Interval{iv(10, 20)},
		},
		{
			name:   "stored outside ignored",
			iv:     iv(10, 20),
			stored: []segment.Interval{iv(1, 5), iv(30, 40)},
			want:   []segment.Interval{iv(10, 20)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.iv, tt.stored)
			assert.Equal(t, tt.want, got)

			segs := make([]*segment.Segment, len(got))
			for i, p := range got {
				segs[i] = segment.NewPlaceholder(p)
			}
			assert.NoError(t, VerifyCovering(segs, tt.iv))
		})
	}
}

func TestMatch(t *testing.T) {
	stored := []segment.Interval{iv(1, 20), iv(21, 40)}

	tests := []struct {
		name      string
		piece     segment.Interval
		wantIv    segment.Interval
		wantMatch MatchKind
	}{
		{"exact", iv(21, 40), iv(21, 40), MatchExact},
		{"within", iv(5, 10), iv(1, 20), MatchWithin},
		{"gap", iv(41, 50), segment.Interval{}, MatchNone},
		{"straddling", iv(15, 25), segment.Interval{}, MatchNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := Match(tt.piece, stored)
			assert.Equal(t, tt.wantMatch, kind)
			assert.Equal(t, tt.wantIv, got)
		})
	}
}

func TestMatch_ExactBeforeContainment(t *testing.T) {
	// With a malformed candidate list, an exact match later in the list wins
	// over a containing interval earlier in it.
	got, kind := Match(iv(5, 10), []segment.Interval{iv(1, 20), iv(5, 10)})
	assert.Equal(t, MatchExact, kind)
	assert.Equal(t, iv(5, 10), got)
}

func TestVerifyCovering(t *testing.T) {
	seg := func(start, end int64) *segment.Segment { return segment.NewPlaceholder(iv(start, end)) }
	rng := iv(1, 30)

	tests := []struct {
		name    string
		segs    []*segment.Segment
		wantErr string
	}{
		{"ok", []*segment.Segment{seg(1, 10), seg(11, 30)}, ""},
		{"empty", nil, "no segments"},
		{"late start", []*segment.Segment{seg(2, 30)}, "first segment"},
		{"gap", []*segment.Segment{seg(1, 10), seg(12, 30)}, "not contiguous"},
		{"overlap", []*segment.Segment{seg(1, 10), seg(10, 30)}, "not contiguous"},
		{"short", []*segment.Segment{seg(1, 10), seg(11, 29)}, "last segment"},
		{"inverted", []*segment.Segment{seg(1, 10), seg(11, 5)}, "start after end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyCovering(tt.segs, rng)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var ce *segment.ConsistencyError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Reason, tt.wantErr)
		})
	}
}
