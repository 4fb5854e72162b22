package main

import (
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/inodb/featcache/internal/segment"
)

// segmentJSON is the JSON form of a loaded segment.
type segmentJSON struct {
	Start   int64         `json:"start"`
	End     int64         `json:"end"`
	Status  string        `json:"status"`
	Values  []float64     `json:"values,omitempty"`
	Regions []*regionJSON `json:"regions,omitempty"`
}

// regionJSON carries absolute positions.
type regionJSON struct {
	Start    int64         `json:"start"`
	End      int64         `json:"end"`
	Name     string        `json:"name,omitempty"`
	Score    float64       `json:"score,omitempty"`
	Strand   int8          `json:"strand,omitempty"`
	Children []*regionJSON `json:"children,omitempty"`
}

func toRegionJSON(r *segment.Region, offset int64) *regionJSON {
	out := &regionJSON{
		Start:  r.Start + offset,
		End:    r.End + offset,
		Name:   r.Name,
		Score:  r.Score,
		Strand: r.Strand,
	}
	for _, c := range r.Children {
		out.Children = append(out.Children, toRegionJSON(c, offset))
	}
	return out
}

func toSegmentJSON(s *segment.Segment) segmentJSON {
	out := segmentJSON{Start: s.Start, End: s.End, Status: s.Status.String()}
	if s.Payload != nil {
		out.Values = s.Payload.Values
		for _, r := range s.Payload.Regions {
			out.Regions = append(out.Regions, toRegionJSON(r, s.Start))
		}
	}
	return out
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		kf      keyFlags
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Print what the cache holds for a range as JSON",
		Long: `Split a range into pieces aligned with the stored intervals of a key and
print them as a JSON array. Pieces not in the cache are reported with status
"missing" and no data.`,
		Example: `  featcache load --track phylop --organism human --build hg38 \
    --chrom chr1 --start 15001 --end 25000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := kf.key()
			if err != nil {
				return err
			}
			rng, err := kf.interval()
			if err != nil {
				return err
			}
			m, err := a.manager()
			if err != nil {
				return err
			}

			segs, err := m.Load(key, nil, rng, nil)
			if err != nil {
				return err
			}

			out := make([]segmentJSON, len(segs))
			for i, s := range segs {
				out[i] = toSegmentJSON(s)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(out)
		},
	}

	kf.register(cmd, true)
	cmd.Flags().BoolVar(&compact, "compact", false, "print JSON on a single line")
	return cmd
}
