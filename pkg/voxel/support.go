package voxel

import (
	"context"

	"github.com/chazu/amgen/pkg/logging"
)

// SupportFloor is the highest layer that is never artificially supported.
// Layers 0 (the plate) through SupportFloor are left alone even when they
// overhang.
const SupportFloor = 2

// belowNeighbors are the (dx, dy) offsets checked in the layer under a
// voxel: the cell directly below and its eight planar neighbours.
var belowNeighbors = [9][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {0, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Support is the output of SynthesizeSupport.
type Support struct {
	// Grid has the part's shape; true marks a voxel to fill with support
	// material. It never marks a voxel that is solid in the part.
	Grid *Grid
	// PartVoxels counts the solid part voxels visited above the plate.
	PartVoxels int
	// SupportVoxels counts the voxels marked in Grid.
	SupportVoxels int
}

// Ratio returns SupportVoxels / (PartVoxels + SupportVoxels), or 0 for an
// empty part.
func (s *Support) Ratio() float64 {
	total := s.PartVoxels + s.SupportVoxels
	if total == 0 {
		return 0
	}
	return float64(s.SupportVoxels) / float64(total)
}

// SynthesizeSupport computes the support voxels needed to print part along
// +z. Layers are scanned upward from z = 1 (z = 0 is the plate). A solid
// voxel is supported when any of the nine voxels below it (clipped at the
// grid edge) is solid in the part, a one-cell lateral tolerance that
// approximates a 45 degree overhang rule. An unsupported voxel above
// SupportFloor gets a pillar: every empty voxel straight below it is marked,
// stopping at the first solid part voxel or at z = 1.
//
// Classification reads only the part grid, so the result does not depend on
// scan order. part is not modified.
//
// Cost is O(X*Y*Z) for the scan plus the pillar lengths, O(X*Y*Z^2) in the
// worst case of tall overhangs over an empty column.
func SynthesizeSupport(part *Grid) (*Support, error) {
	return SynthesizeSupportContext(context.Background(), part)
}

// SynthesizeSupportContext is SynthesizeSupport checking ctx between
// layers.
func SynthesizeSupportContext(ctx context.Context, part *Grid) (*Support, error) {
	if part == nil {
		return nil, &ShapeMismatchError{Reason: "nil part grid"}
	}
	w, d, h := part.Dims()
	if w == 0 || d == 0 || h == 0 {
		return nil, &ShapeMismatchError{Reason: "zero-sized part grid"}
	}

	out := &Support{Grid: NewGrid(w, d, h)}
	for z := 1; z < h; z++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for y := 0; y < d; y++ {
			for x := 0; x < w; x++ {
				if !part.At(x, y, z) {
					continue
				}
				out.PartVoxels++
				if z <= SupportFloor || supported(part, x, y, z) {
					continue
				}
				for zi := z - 1; zi >= 1 && !part.At(x, y, zi); zi-- {
					if !out.Grid.At(x, y, zi) {
						out.Grid.Set(x, y, zi, true)
						out.SupportVoxels++
					}
				}
			}
		}
	}

	logging.Logger().Debug("support synthesized",
		"dims", [3]int{w, d, h}, "part_voxels", out.PartVoxels, "support_voxels", out.SupportVoxels)
	return out, nil
}

// supported reports whether any of the nine cells under (x, y, z) is solid.
func supported(part *Grid, x, y, z int) bool {
	below := part.Layer(z - 1)
	for _, o := range belowNeighbors {
		nx, ny := x+o[0], y+o[1]
		if nx < 0 || nx >= part.w || ny < 0 || ny >= part.d {
			continue
		}
		if below[ny*part.w+nx] {
			return true
		}
	}
	return false
}
