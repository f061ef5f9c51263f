// Package geom holds the small set of geometry primitives shared by the
// mesh readers, the geometry kernels and the voxelizer: vectors, triangles,
// triangle meshes and axis-aligned bounding boxes.
package geom

import "math"

// Vec3 is a point or direction in 3D space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v multiplied by s on every axis.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Min returns the component-wise minimum of v and o.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{X: math.Min(v.X, o.X), Y: math.Min(v.Y, o.Y), Z: math.Min(v.Z, o.Z)}
}

// Max returns the component-wise maximum of v and o.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{X: math.Max(v.X, o.X), Y: math.Max(v.Y, o.Y), Z: math.Max(v.Z, o.Z)}
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Triangle is three vertices in counter-clockwise order when seen from
// outside the part.
type Triangle [3]Vec3

// Mesh is an unindexed triangle soup describing one part surface.
// No connectivity is stored; shared vertices are repeated per triangle.
type Mesh struct {
	Name      string     `json:"name"`
	Triangles []Triangle `json:"triangles"`
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Triangles)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return m == nil || len(m.Triangles) == 0
}

// BoundingBox returns the box enclosing every vertex of the mesh.
// An empty mesh yields an empty box.
func (m *Mesh) BoundingBox() BoundingBox {
	bb := NewBoundingBox()
	if m == nil {
		return bb
	}
	for _, t := range m.Triangles {
		bb.Extend(t[0])
		bb.Extend(t[1])
		bb.Extend(t[2])
	}
	return bb
}

// Transform returns a copy of the mesh with f applied to every vertex.
func (m *Mesh) Transform(f func(Vec3) Vec3) *Mesh {
	out := &Mesh{Name: m.Name, Triangles: make([]Triangle, len(m.Triangles))}
	for i, t := range m.Triangles {
		out.Triangles[i] = Triangle{f(t[0]), f(t[1]), f(t[2])}
	}
	return out
}

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	Min Vec3 `json:"min"`
	Max Vec3 `json:"max"`
}

// NewBoundingBox returns an empty box that any Extend call will replace.
func NewBoundingBox() BoundingBox {
	return BoundingBox{
		Min: Vec3{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: Vec3{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// Extend grows the box to include p.
func (b *BoundingBox) Extend(p Vec3) {
	b.Min = b.Min.Min(p)
	b.Max = b.Max.Max(p)
}

// Empty reports whether the box has never been extended.
func (b BoundingBox) Empty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Size returns the box extents. Empty boxes have zero size.
func (b BoundingBox) Size() Vec3 {
	if b.Empty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Volume returns the product of the extents.
func (b BoundingBox) Volume() float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}
