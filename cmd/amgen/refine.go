package main

import (
	"errors"
	"fmt"

	"github.com/chazu/amgen/pkg/refine"
	"github.com/chazu/amgen/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var errNoGenerations = errors.New("no generations found (run amgen generate first)")

func (c *cli) refineCmd() *cobra.Command {
	var (
		resolution  float64
		workers     int
		buildVolume bool
		support     bool
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "refine",
		Short: "voxelize every generation and synthesize its support structure",
		Long:  "Rasterizes each Gen<i> mesh, synthesizes its support, writes " + refine.ResultsFile + ", the grids as .npy files and the result store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.cfg.Refine.Options()
			flags := cmd.Flags()
			if flags.Changed("resolution") {
				opts.Resolution = resolution
			}
			if flags.Changed("workers") {
				opts.Workers = workers
			}
			if flags.Changed("build-volume") {
				opts.BuildVolume = buildVolume
			}
			if flags.Changed("support") {
				opts.SupportStructure = support
			}

			jobs, err := refine.DiscoverJobs(c.dir)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				return errNoGenerations
			}

			reg := prometheus.NewRegistry()
			metrics, err := refine.NewMetrics(reg)
			if err != nil {
				return err
			}
			runner, err := refine.NewRunner(opts, metrics)
			if err != nil {
				return err
			}

			results, runErr := runner.Run(cmd.Context(), jobs)
			if err := c.saveResults(opts, results); err != nil {
				return err
			}
			if metricsFile != "" {
				if err := prometheus.WriteToTextfile(c.path(metricsFile), reg); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, res := range results {
				if res.Failed() {
					failed++
					fmt.Fprintf(out, "%s\tfailed: %v\n", res.Name, res.Err)
				}
			}
			fmt.Fprintf(out, "%d generations refined at resolution %g, %d failed\n", len(results)-failed, opts.Resolution, failed)
			return runErr
		},
	}
	cmd.Flags().Float64VarP(&resolution, "resolution", "r", 0, "voxels per unit length (default from config)")
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "parallel jobs (default from config)")
	cmd.Flags().BoolVar(&buildVolume, "build-volume", true, "compute part voxel count and volume")
	cmd.Flags().BoolVar(&support, "support", true, "synthesize support structures")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write prometheus metrics in text format to this file")
	return cmd
}

// saveResults replaces the output of any earlier run with the results
// table, the grids and, unless disabled, the result store.
func (c *cli) saveResults(opts refine.Options, results []refine.Result) error {
	if err := refine.DeleteRefinements(c.dir); err != nil {
		return err
	}
	if err := refine.WriteResultsFile(c.dir, opts, results); err != nil {
		return err
	}
	for _, res := range results {
		if err := refine.SaveGrids(c.dir, res); err != nil {
			return err
		}
	}
	if c.cfg.Store.Disabled {
		return nil
	}
	s, err := store.Open(c.path(c.cfg.Store.GetPath()))
	if err != nil {
		return err
	}
	if err := s.DeleteAll(); err != nil {
		s.Close()
		return err
	}
	if err := refine.Persist(s, opts, results); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}
