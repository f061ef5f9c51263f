package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chazu/amgen/pkg/refine"
	"github.com/chazu/amgen/pkg/store"
	"github.com/chazu/amgen/pkg/view"
	"github.com/chazu/amgen/pkg/voxel"
	"github.com/spf13/cobra"
)

func (c *cli) previewCmd() *cobra.Command {
	var (
		layer    int
		cellSize int
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "preview <generation>",
		Short: "render the layers of a refined generation as PNG images",
		Long:  "Renders part voxels orange and support voxels red, one PNG per layer seen from above.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil || index < 0 {
				return fmt.Errorf("generation must be a non-negative index, got %q", args[0])
			}
			part, support, err := loadGrids(refine.GenDir(c.dir, index))
			if err != nil {
				return err
			}

			dir := outDir
			if dir == "" {
				dir = filepath.Join(refine.GenDir(c.dir, index), "preview")
			} else {
				dir = c.path(dir)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			_, _, h := part.Dims()
			layers := []int{layer}
			if layer < 0 {
				layers = make([]int, h)
				for z := range layers {
					layers[z] = z
				}
			}
			for _, z := range layers {
				path := filepath.Join(dir, fmt.Sprintf("layer_%03d.png", z))
				l := view.Layer{Part: part, Support: support, Z: z, CellSize: cellSize}
				if err := l.SavePNG(path); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d layers written to %s\n", refine.GenName(index), len(layers), dir)
			return nil
		},
	}
	cmd.Flags().IntVarP(&layer, "layer", "z", -1, "layer to render, -1 for all")
	cmd.Flags().IntVar(&cellSize, "cell", view.DefaultCellSize, "pixels per voxel")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default Gen<i>/preview)")
	return cmd
}

// loadGrids reads a generation's part grid and, if present, its support
// grid.
func loadGrids(dir string) (part, support *voxel.Grid, err error) {
	part, err = store.LoadNPY(filepath.Join(dir, refine.PartGridFile))
	if err != nil {
		return nil, nil, err
	}
	support, err = store.LoadNPY(filepath.Join(dir, refine.SupportGridFile))
	if errors.Is(err, fs.ErrNotExist) {
		return part, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return part, support, nil
}
