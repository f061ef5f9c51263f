package voxel

import (
	"context"
	"fmt"
	"math"

	"github.com/chazu/amgen/pkg/geom"
	"github.com/chazu/amgen/pkg/logging"
)

// MaxCells bounds the padded grid size Rasterize will allocate.
const MaxCells = 1 << 30

// extentEpsilon absorbs floating point noise when turning a scaled extent
// into a voxel count, so 3.0000000000004 voxels stays 3.
const extentEpsilon = 1e-9

// Rasterize converts a closed triangle mesh into an occupancy grid at the
// given resolution (voxels per unit length).
//
// The mesh is shifted so its bounding box starts at the origin and scaled
// by resolution. Voxel (i, j, k) is solid when its centre (i+.5, j+.5, k+.5)
// is inside the surface: each height k is sliced at z = k+.5 and the
// section is filled row by row with an even-odd scanline. The result is
// padded with one empty voxel on every face, so a part whose bounding box
// spans n voxels along an axis yields n+2 cells along it and surface voxels
// never touch the grid boundary.
//
// Axis convention: the working layer stack is (height, row, column) and the
// returned grid is addressed (x, y, z) with z the build direction; the two
// coincide because layers are stored z-major. Use Grid.MirrorY for viewers
// that expect a mirrored y axis.
//
// Open meshes rasterize to unspecified, usually partial, fills.
func Rasterize(m *geom.Mesh, resolution float64) (*Grid, error) {
	return RasterizeContext(context.Background(), m, resolution)
}

// RasterizeContext is Rasterize checking ctx between layers. It returns
// ctx's error and no grid once ctx is done.
func RasterizeContext(ctx context.Context, m *geom.Mesh, resolution float64) (*Grid, error) {
	if m.IsEmpty() {
		return nil, &GeometryError{Reason: "cannot rasterize", Err: ErrEmptyMesh}
	}
	if !(resolution > 0) || math.IsInf(resolution, 0) {
		return nil, &GeometryError{Reason: fmt.Sprintf("resolution %v must be positive and finite", resolution)}
	}

	bb := geom.NewBoundingBox()
	for i, t := range m.Triangles {
		for _, v := range t {
			if !v.IsFinite() {
				return nil, &GeometryError{Reason: fmt.Sprintf("triangle %d has a non-finite vertex %v", i, v)}
			}
			bb.Extend(v)
		}
	}
	size := bb.Size()
	if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
		return nil, &GeometryError{Reason: fmt.Sprintf("zero-sized bounding box %v", size)}
	}

	extent := size.Scale(resolution)
	for _, e := range [3]float64{extent.X, extent.Y, extent.Z} {
		if math.IsInf(e, 0) || e > MaxCells {
			return nil, &GeometryError{Reason: fmt.Sprintf("scaled extent %v exceeds %d cells", extent, MaxCells)}
		}
	}
	nx := voxelSpan(extent.X)
	ny := voxelSpan(extent.Y)
	nz := voxelSpan(extent.Z)
	if cells := float64(nx+2) * float64(ny+2) * float64(nz+2); cells > MaxCells {
		return nil, &GeometryError{Reason: fmt.Sprintf("%dx%dx%d grid exceeds %d cells", nx+2, ny+2, nz+2, MaxCells)}
	}

	scaled := m.Transform(func(v geom.Vec3) geom.Vec3 {
		return v.Sub(bb.Min).Scale(resolution)
	})

	logging.Logger().Debug("rasterizing mesh",
		"mesh", m.Name, "triangles", len(m.Triangles),
		"resolution", resolution, "dims", [3]int{nx + 2, ny + 2, nz + 2})

	grid := NewGrid(nx+2, ny+2, nz+2)
	layer := make([]bool, nx*ny)
	var segs []segment
	var xs []float64
	for k := 0; k < nz; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		segs = crossSection(scaled.Triangles, float64(k)+0.5, segs[:0])
		clear(layer)
		xs = fillLayer(segs, layer, nx, ny, xs)

		dst := grid.Layer(k + 1)
		for j := 0; j < ny; j++ {
			copy(dst[(j+1)*grid.w+1:(j+1)*grid.w+1+nx], layer[j*nx:(j+1)*nx])
		}
	}
	return grid, nil
}

// voxelSpan turns a scaled extent into a voxel count of at least one. The
// extent must fit in an int.
func voxelSpan(extent float64) int {
	n := int(math.Ceil(extent - extentEpsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// CountSolid returns the number of solid voxels in a part grid.
func CountSolid(g *Grid) int {
	if g == nil {
		return 0
	}
	return g.Count()
}

// Volume converts a voxel count at the given resolution back to a volume in
// mesh units.
func Volume(voxels int, resolution float64) float64 {
	return float64(voxels) / (resolution * resolution * resolution)
}
