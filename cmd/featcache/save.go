package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inodb/featcache/internal/cache"
	"github.com/inodb/featcache/internal/datasource/bed"
	"github.com/inodb/featcache/internal/segment"
	"github.com/inodb/featcache/internal/store"
)

// keyFlags are the flags naming a cache key and a range on it.
type keyFlags struct {
	track    string
	organism string
	build    string
	chrom    string
	start    int64
	end      int64
}

func (f *keyFlags) register(cmd *cobra.Command, withRange bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.track, "track", "", "track name")
	fl.StringVar(&f.organism, "organism", "", "organism, e.g. human")
	fl.StringVar(&f.build, "build", "", "genome build, e.g. hg38")
	fl.StringVar(&f.chrom, "chrom", "", "chromosome")
	if withRange {
		fl.Int64Var(&f.start, "start", 0, "range start (1-based, inclusive)")
		fl.Int64Var(&f.end, "end", 0, "range end (1-based, inclusive)")
	}
}

func (f *keyFlags) key() (store.Key, error) {
	k := store.Key{Track: f.track, Organism: f.organism, Build: f.build, Chromosome: f.chrom}
	if err := k.Validate(); err != nil {
		return store.Key{}, usagef("%v", err)
	}
	return k, nil
}

func (f *keyFlags) interval() (segment.Interval, error) {
	iv := segment.NewInterval(f.start, f.end)
	if f.start < 1 || !iv.Valid() {
		return segment.Interval{}, usagef("invalid range %d-%d: need 1 <= start <= end", f.start, f.end)
	}
	return iv, nil
}

func newSaveCmd(a *app) *cobra.Command {
	var (
		kf       keyFlags
		bedGraph string
		bedFile  string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a range of a bedGraph or BED file in the cache",
		Long: `Read the records of one chromosome overlapping a range from a bedGraph
(values) or BED (regions) file and store them under a cache key. Parts of the
range that are already cached are skipped.`,
		Example: `  featcache save --track phylop --organism human --build hg38 \
    --chrom chr1 --start 10001 --end 20000 --bedgraph phylop.chr1.bedGraph
  featcache save --track genes --organism human --build hg38 \
    --chrom chr1 --start 1 --end 1000000 --bed genes.bed`,
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
			if (bedGraph == "") == (bedFile == "") {
				return usagef("exactly one of --bedgraph or --bed is required")
			}

			src, err := readSource(bedGraph, bedFile, key.Chromosome, rng)
			if err != nil {
				return err
			}

			m, err := a.manager()
			if err != nil {
				return err
			}
			ok, err := m.Save(key, rng, src)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("save %s %s failed; see log for details", key, rng)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cached %s %s\n", key, rng)
			return nil
		},
	}

	kf.register(cmd, true)
	cmd.Flags().StringVar(&bedGraph, "bedgraph", "", "bedGraph file with one value per position")
	cmd.Flags().StringVar(&bedFile, "bed", "", "BED file with region annotations")
	return cmd
}

func readSource(bedGraph, bedFile, chrom string, rng segment.Interval) (cache.Source, error) {
	path := bedGraph
	if path == "" {
		path = bedFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if bedGraph != "" {
		return bed.ReadBedGraph(f, chrom, rng)
	}
	return bed.ReadBED(f, chrom, rng)
}
