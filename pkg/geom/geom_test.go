package geom

import (
	"math"
	"testing"
)

func TestBoundingBoxExtend(t *testing.T) {
	bb := NewBoundingBox()
	if !bb.Empty() {
		t.Fatal("new bounding box should be empty")
	}
	if got := bb.Size(); got != (Vec3{}) {
		t.Errorf("empty Size() = %v, want zero", got)
	}
	bb.Extend(Vec3{X: 1, Y: -2, Z: 3})
	bb.Extend(Vec3{X: -1, Y: 4, Z: 0})
	if bb.Min != (Vec3{X: -1, Y: -2, Z: 0}) {
		t.Errorf("Min = %v", bb.Min)
	}
	if bb.Max != (Vec3{X: 1, Y: 4, Z: 3}) {
		t.Errorf("Max = %v", bb.Max)
	}
	if got := bb.Volume(); got != 2*6*3 {
		t.Errorf("Volume() = %v, want 36", got)
	}
}

func TestVec3IsFinite(t *testing.T) {
	tests := []struct {
		name string
		v    Vec3
		want bool
	}{
		{"zero", Vec3{}, true},
		{"nan", Vec3{X: math.NaN()}, false},
		{"inf", Vec3{Z: math.Inf(-1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.IsFinite(); got != tt.want {
				t.Errorf("IsFinite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoxMesh(t *testing.T) {
	m := Box(Vec3{}, Vec3{X: 2, Y: 3, Z: 4})
	if m.TriangleCount() != 12 {
		t.Fatalf("TriangleCount() = %d, want 12", m.TriangleCount())
	}
	bb := m.BoundingBox()
	if bb.Size() != (Vec3{X: 2, Y: 3, Z: 4}) {
		t.Errorf("Size() = %v", bb.Size())
	}

	// Signed volume via the divergence theorem confirms outward winding.
	var vol float64
	for _, tri := range m.Triangles {
		a, b, c := tri[0], tri[1], tri[2]
		vol += a.X*(b.Y*c.Z-b.Z*c.Y) - a.Y*(b.X*c.Z-b.Z*c.X) + a.Z*(b.X*c.Y-b.Y*c.X)
	}
	vol /= 6
	if math.Abs(vol-24) > 1e-9 {
		t.Errorf("signed volume = %v, want 24", vol)
	}
}

func TestMeshTransform(t *testing.T) {
	m := Box(Vec3{}, Vec3{X: 1, Y: 1, Z: 1})
	shifted := m.Transform(func(v Vec3) Vec3 { return v.Add(Vec3{X: 10}) })
	if shifted.BoundingBox().Min.X != 10 {
		t.Errorf("transformed min x = %v, want 10", shifted.BoundingBox().Min.X)
	}
	if m.BoundingBox().Min.X != 0 {
		t.Error("Transform mutated the source mesh")
	}
}

func TestMerge(t *testing.T) {
	a := Box(Vec3{}, Vec3{X: 1, Y: 1, Z: 1})
	b := Box(Vec3{X: 2}, Vec3{X: 3, Y: 1, Z: 1})
	m := Merge("pair", a, nil, b)
	if m.TriangleCount() != 24 {
		t.Errorf("TriangleCount() = %d, want 24", m.TriangleCount())
	}
	if m.IsEmpty() {
		t.Error("merged mesh should not be empty")
	}
	var nilMesh *Mesh
	if !nilMesh.IsEmpty() {
		t.Error("nil mesh should be empty")
	}
}
