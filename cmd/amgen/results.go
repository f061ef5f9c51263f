package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chazu/amgen/pkg/generate"
	"github.com/chazu/amgen/pkg/refine"
	"github.com/chazu/amgen/pkg/store"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func (c *cli) resultsCmd() *cobra.Command {
	var (
		counts    bool
		fromStore bool
	)
	cmd := &cobra.Command{
		Use:   "results",
		Short: "print per-generation parameters and refinement metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStore {
				return c.printStore(cmd.OutOrStdout())
			}

			tbl, err := refine.ReadResultsFile(c.dir)
			if err != nil {
				return err
			}
			if !counts {
				tbl = tbl.Without(refine.ColPartVoxels, refine.ColSupportVoxels)
			}
			values, err := generate.ReadValuesFile(c.dir)
			if errors.Is(err, fs.ErrNotExist) {
				values = nil
			} else if err != nil {
				return err
			}
			if values != nil && len(values.Rows) != len(tbl.Rows) {
				values = nil
			}
			return printTable(cmd.OutOrStdout(), tbl, values)
		},
	}
	cmd.Flags().BoolVar(&counts, "counts", false, "include voxel count columns")
	cmd.Flags().BoolVar(&fromStore, "store", false, "read the result store instead of "+refine.ResultsFile)
	return cmd
}

// printTable writes one aligned row per generation. values may be nil.
func printTable(w io.Writer, tbl *refine.Table, values *generate.Values) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "resolution %s\n", strconv.FormatFloat(tbl.Resolution, 'f', -1, 64))

	header := []string{"Generation"}
	if values != nil {
		header = append(header, values.Names...)
	}
	header = append(header, tbl.Header...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, row := range tbl.Rows {
		cells := []string{refine.GenName(i)}
		if values != nil {
			cells = append(cells, lo.Map(values.Rows[i], func(v float64, _ int) string {
				return strconv.FormatFloat(v, 'f', -1, 64)
			})...)
		}
		cells = append(cells, lo.Map(row, func(c refine.Cell, _ int) string {
			if !c.OK {
				return "-"
			}
			return c.String()
		})...)
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printStore lists the records of the result store.
func (c *cli) printStore(w io.Writer) error {
	s, err := store.Open(c.path(c.cfg.Store.GetPath()))
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.List()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Generation\tResolution\tPart Volume\tSupport Volume\tSupport Ratio\tElapsed")
	for _, r := range recs {
		if r.Failed() {
			fmt.Fprintf(tw, "%s\t%g\tfailed: %s\t\t\t%.2fs\n", r.Name, r.Resolution, r.Error, r.Elapsed)
			continue
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%.4f\t%.2fs\n",
			r.Name, r.Resolution, r.PartVolume, r.SupportVolume, r.SupportRatio, r.Elapsed)
	}
	return tw.Flush()
}
