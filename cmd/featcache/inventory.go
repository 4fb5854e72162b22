package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/featcache/internal/duckdb"
)

func newInventoryCmd(a *app) *cobra.Command {
	var (
		dbPath string
		track  string
	)

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Export the cache inventory to DuckDB and print coverage per key",
		Long: `Stat every stored interval under the cache root, write one row per file
to a DuckDB table (segments) and print a coverage summary per key. The
database can be queried directly afterwards.`,
		Example: `  featcache inventory
  featcache inventory --db /tmp/featcache.duckdb --track phylop`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = filepath.Join(filepath.Dir(m.Root()), "inventory.duckdb")
			}

			entries, err := m.Entries()
			if err != nil {
				return err
			}

			db, err := duckdb.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.WriteInventory(entries); err != nil {
				return fmt.Errorf("write inventory: %w", err)
			}
			if err := db.WriteStamp(duckdb.ExportStamp{
				Root:    m.Root(),
				Entries: int64(len(entries)),
				Written: time.Now(),
			}); err != nil {
				return fmt.Errorf("write inventory stamp: %w", err)
			}

			rows, err := db.Coverage(track)
			if err != nil {
				return err
			}

			w := newTabWriter(cmd)
			fmt.Fprintln(w, "KEY\tSEGMENTS\tPOSITIONS\tBYTES\tFIRST\tLAST")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n",
					r.Key.RelDir(), r.Segments, r.Positions, r.Bytes, r.MinStart, r.MaxEnd)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s\n", len(entries), dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "DuckDB file (default: inventory.duckdb next to the cache root)")
	cmd.Flags().StringVar(&track, "track", "", "only summarize this track")
	return cmd
}
