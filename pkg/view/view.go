// Package view turns refinement output into things a person can look at:
// coloured voxel lists, per-layer PNG previews and colour scales for
// result tables.
package view

import (
	"fmt"

	"github.com/chazu/amgen/pkg/voxel"
	"github.com/gogpu/gg"
)

// Voxel colours.
var (
	PartColour    = gg.RGB(0.95, 0.55, 0.0)
	SupportColour = gg.RGB(0.95, 0.05, 0.05)
)

// Voxel is one coloured cell.
type Voxel struct {
	X, Y, Z int
	Colour  gg.RGBA
}

// Colorize lists every solid cell of part and support with its colour.
// support may be nil. A cell in both grids takes the support colour;
// cells in neither are left out.
func Colorize(part, support *voxel.Grid) ([]Voxel, error) {
	if part == nil {
		return nil, &voxel.ShapeMismatchError{Reason: "nil part grid"}
	}
	if support != nil && !support.SameShape(part) {
		pw, pd, ph := part.Dims()
		sw, sd, sh := support.Dims()
		return nil, &voxel.ShapeMismatchError{
			Reason: fmt.Sprintf("part %dx%dx%d vs support %dx%dx%d", pw, pd, ph, sw, sd, sh),
		}
	}

	var out []Voxel
	w, d, h := part.Dims()
	for z := 0; z < h; z++ {
		for y := 0; y < d; y++ {
			for x := 0; x < w; x++ {
				if c, ok := colourAt(part, support, x, y, z); ok {
					out = append(out, Voxel{X: x, Y: y, Z: z, Colour: c})
				}
			}
		}
	}
	return out, nil
}

func colourAt(part, support *voxel.Grid, x, y, z int) (gg.RGBA, bool) {
	switch {
	case support != nil && support.At(x, y, z):
		return SupportColour, true
	case part.At(x, y, z):
		return PartColour, true
	}
	return gg.RGBA{}, false
}
