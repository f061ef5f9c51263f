// Package kernel defines the abstract geometry kernel interface used to
// build parametric part generations. Implementations (sdfx, manifold)
// provide solid modeling and boolean operations behind this interface and
// hand back closed triangle meshes for voxelization.
package kernel

import "github.com/chazu/amgen/pkg/geom"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() geom.BoundingBox
}

// Kernel is the abstract geometry kernel interface.
//
// Placement conventions shared by all backends: Box has its minimum corner
// at the origin; Cylinder stands on the z=0 plane centred on the z axis;
// Sphere is centred at the origin.
type Kernel interface {
	// Primitives
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64, segments int) Solid
	Sphere(radius float64, segments int) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// Mesh output
	ToMesh(s Solid) (*geom.Mesh, error)
}

// UnionAll folds Union over solids. It returns nil for an empty list.
func UnionAll(k Kernel, solids ...Solid) Solid {
	var acc Solid
	for _, s := range solids {
		if s == nil {
			continue
		}
		if acc == nil {
			acc = s
			continue
		}
		acc = k.Union(acc, s)
	}
	return acc
}
