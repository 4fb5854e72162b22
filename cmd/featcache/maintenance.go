package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLsCmd(a *app) *cobra.Command {
	var kf keyFlags

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List cached keys, or the stored intervals of one key",
		Example: `  featcache ls
  featcache ls --track phylop --organism human --build hg38 --chrom chr1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if kf.track == "" && kf.organism == "" && kf.build == "" && kf.chrom == "" {
				keys, err := m.Keys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(out, k.RelDir())
				}
				return nil
			}

			key, err := kf.key()
			if err != nil {
				return err
			}
			ivs, err := m.Coverage(key)
			if err != nil {
				return err
			}
			for _, iv := range ivs {
				fmt.Fprintf(out, "%d\t%d\t%d\n", iv.Start, iv.End, iv.Len())
			}
			return nil
		},
	}

	kf.register(cmd, false)
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the stored intervals of every key are sorted and disjoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			report, err := m.Verify(cmd.Context(), workers)
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d keys, %d stored intervals, %d broken\n",
				report.Keys, report.Intervals, report.Broken)
			return err
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (default: number of CPUs)")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove everything under the cache root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return usagef("refusing to clear %s without --force", a.cfg.Cache.Root)
			}
			m, err := a.manager()
			if err != nil {
				return err
			}
			if !m.Clear() {
				return fmt.Errorf("some entries under %s could not be removed; see log for details", m.Root())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", m.Root())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm removal")
	return cmd
}

func newTabWriter(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}
