package voxel

import "fmt"

// Grid is a dense 3D occupancy grid addressed (x, y, z), z being the build
// direction. Cells live in one flat buffer in layer-major order: the offset
// of (x, y, z) is (z*D + y)*W + x, so every z layer is a contiguous run of
// W*D cells.
type Grid struct {
	w, d, h int
	cells   []bool
}

// NewGrid returns an all-false grid of the given dimensions. It panics if
// any dimension is negative.
func NewGrid(w, d, h int) *Grid {
	if w < 0 || d < 0 || h < 0 {
		panic(fmt.Sprintf("voxel: negative grid dimensions %dx%dx%d", w, d, h))
	}
	return &Grid{w: w, d: d, h: h, cells: make([]bool, w*d*h)}
}

// GridFromCells wraps an existing layer-major buffer. The buffer is not
// copied.
func GridFromCells(w, d, h int, cells []bool) (*Grid, error) {
	if w < 0 || d < 0 || h < 0 {
		return nil, &ShapeMismatchError{Reason: fmt.Sprintf("negative dimensions %dx%dx%d", w, d, h)}
	}
	if len(cells) != w*d*h {
		return nil, &ShapeMismatchError{
			Reason: fmt.Sprintf("%d cells for a %dx%dx%d grid", len(cells), w, d, h),
		}
	}
	return &Grid{w: w, d: d, h: h, cells: cells}, nil
}

// Dims returns the width (x), depth (y) and height (z) of the grid.
func (g *Grid) Dims() (w, d, h int) {
	return g.w, g.d, g.h
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// InBounds reports whether (x, y, z) addresses a cell.
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.w && y >= 0 && y < g.d && z >= 0 && z < g.h
}

func (g *Grid) index(x, y, z int) int {
	return (z*g.d+y)*g.w + x
}

// At returns the cell at (x, y, z). Out-of-range coordinates read as false.
func (g *Grid) At(x, y, z int) bool {
	if !g.InBounds(x, y, z) {
		return false
	}
	return g.cells[g.index(x, y, z)]
}

// Set writes the cell at (x, y, z). It panics on out-of-range coordinates.
func (g *Grid) Set(x, y, z int, v bool) {
	if !g.InBounds(x, y, z) {
		panic(fmt.Sprintf("voxel: Set(%d, %d, %d) outside %dx%dx%d grid", x, y, z, g.w, g.d, g.h))
	}
	g.cells[g.index(x, y, z)] = v
}

// Layer returns the z-th layer as a W*D slice indexed y*W + x. The slice
// aliases the grid.
func (g *Grid) Layer(z int) []bool {
	n := g.w * g.d
	return g.cells[z*n : (z+1)*n]
}

// Cells returns the whole layer-major buffer. The slice aliases the grid.
func (g *Grid) Cells() []bool {
	return g.cells
}

// Count returns the number of true cells.
func (g *Grid) Count() int {
	n := 0
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return n
}

// SameShape reports whether both grids have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return o != nil && g.w == o.w && g.d == o.d && g.h == o.h
}

// Equal reports whether both grids have the same shape and contents.
func (g *Grid) Equal(o *Grid) bool {
	if !g.SameShape(o) {
		return false
	}
	for i, c := range g.cells {
		if c != o.cells[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether any cell is true in both grids.
func (g *Grid) Overlaps(o *Grid) (bool, error) {
	if !g.SameShape(o) {
		return false, shapeMismatch(g, o)
	}
	for i, c := range g.cells {
		if c && o.cells[i] {
			return true, nil
		}
	}
	return false, nil
}

// Union returns a new grid that is true wherever either grid is.
func (g *Grid) Union(o *Grid) (*Grid, error) {
	if !g.SameShape(o) {
		return nil, shapeMismatch(g, o)
	}
	out := g.Clone()
	for i, c := range o.cells {
		if c {
			out.cells[i] = true
		}
	}
	return out, nil
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{w: g.w, d: g.d, h: g.h, cells: make([]bool, len(g.cells))}
	copy(out.cells, g.cells)
	return out
}

// MirrorY returns a copy with the y axis reversed, so that
// out.At(x, D-1-y, z) == g.At(x, y, z). Consumers that view parts with a
// left-handed y axis apply it after rasterization.
func (g *Grid) MirrorY() *Grid {
	out := NewGrid(g.w, g.d, g.h)
	for z := 0; z < g.h; z++ {
		src, dst := g.Layer(z), out.Layer(z)
		for y := 0; y < g.d; y++ {
			copy(dst[(g.d-1-y)*g.w:(g.d-y)*g.w], src[y*g.w:(y+1)*g.w])
		}
	}
	return out
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%dx%d, %d solid)", g.w, g.d, g.h, g.Count())
}

func shapeMismatch(a, b *Grid) error {
	if b == nil {
		return &ShapeMismatchError{Reason: "nil grid"}
	}
	return &ShapeMismatchError{
		Reason: fmt.Sprintf("%dx%dx%d vs %dx%dx%d", a.w, a.d, a.h, b.w, b.d, b.h),
	}
}
