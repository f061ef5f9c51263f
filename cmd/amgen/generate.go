package main

import (
	"fmt"
	"os"

	"github.com/chazu/amgen/pkg/generate"
	"github.com/spf13/cobra"
)

func (c *cli) generateCmd() *cobra.Command {
	var (
		count      int
		seed       uint64
		format     string
		kernelName string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "sweep the part template into numbered generations",
		Long:  "Draws every parameter of the ranges file uniformly, evaluates the template with the drawn values and writes Gen<i>.stl plus " + generate.GeneratedFile + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gc := c.cfg.Generate
			if !cmd.Flags().Changed("count") {
				count = gc.GetCount()
			}
			if !cmd.Flags().Changed("seed") {
				seed = gc.Seed
			}
			if !cmd.Flags().Changed("format") && gc.Format != "" {
				format = gc.Format
			}

			source, err := os.ReadFile(c.path(gc.GetTemplate()))
			if err != nil {
				return err
			}
			ranges, err := generate.LoadRanges(c.path(gc.GetParameters()))
			if err != nil {
				return err
			}
			k, err := c.newKernel(kernelName)
			if err != nil {
				return err
			}

			gens, err := generate.New(k).Sweep(cmd.Context(), c.dir, string(source), ranges, generate.Options{
				Count:  count,
				Seed:   seed,
				Format: format,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, g := range gens {
				if g.Failed() {
					failed++
					fmt.Fprintf(out, "%s\tfailed: %v\n", g.Name, g.Err)
					continue
				}
				fmt.Fprintf(out, "%s\t%d triangles\n", g.Name, g.Triangles)
			}
			fmt.Fprintf(out, "%d generations produced, %d failed\n", len(gens)-failed, failed)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "number of generations (default from config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "sampler seed, 0 for random")
	cmd.Flags().StringVar(&format, "format", ".stl", "mesh format: .stl or .3mf")
	cmd.Flags().StringVar(&kernelName, "kernel", "sdfx", "geometry kernel: sdfx or manifold")
	return cmd
}
