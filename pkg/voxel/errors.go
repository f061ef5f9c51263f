package voxel

import (
	"errors"
	"fmt"
)

// ErrEmptyMesh is wrapped by the GeometryError returned for a mesh with no
// triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// GeometryError reports mesh input that cannot be rasterized: no triangles,
// non-finite coordinates, a zero-sized bounding box or an unusable
// resolution. No grid accompanies it.
type GeometryError struct {
	Reason string
	Err    error
}

func (e *GeometryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voxel: geometry: %s: %v", e.Reason, e.Err)
	}
	return "voxel: geometry: " + e.Reason
}

func (e *GeometryError) Unwrap() error { return e.Err }

// ShapeMismatchError reports a grid that support synthesis or a grid
// comparison cannot work with, such as a nil or zero-sized grid or two grids
// of different dimensions.
type ShapeMismatchError struct {
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return "voxel: shape mismatch: " + e.Reason
}
