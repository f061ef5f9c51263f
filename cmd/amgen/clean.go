package main

import (
	"fmt"

	"github.com/chazu/amgen/pkg/generate"
	"github.com/chazu/amgen/pkg/refine"
	"github.com/chazu/amgen/pkg/store"
	"github.com/spf13/cobra"
)

func (c *cli) cleanCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "delete refinement output",
		Long:  "Deletes the .npy grids, " + refine.ResultsFile + " and the result store. With --all the generations and " + generate.GeneratedFile + " go too.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := refine.DeleteRefinements(c.dir); err != nil {
				return err
			}
			if !c.cfg.Store.Disabled {
				s, err := store.Open(c.path(c.cfg.Store.GetPath()))
				if err != nil {
					return err
				}
				err = s.DeleteAll()
				if cerr := s.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
			}
			if all {
				if err := generate.DeleteGenerations(c.dir); err != nil {
					return err
				}
			}
			if all {
				fmt.Fprintln(cmd.OutOrStdout(), "refinements and generations deleted")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "refinements deleted")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also delete generations and their parameter values")
	return cmd
}
