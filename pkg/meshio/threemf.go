package meshio

import (
	"fmt"
	"io"

	"github.com/chazu/amgen/pkg/geom"
	"github.com/hpinc/go3mf"
)

// Read3MF loads every mesh object of a 3MF package into one triangle soup.
// Build-item transforms are not applied; objects are taken in their own
// coordinates.
func Read3MF(path string) (*geom.Mesh, error) {
	r, err := go3mf.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("3mf: open %s: %w", path, err)
	}
	defer r.Close()

	var model go3mf.Model
	if err := r.Decode(&model); err != nil {
		return nil, fmt.Errorf("3mf: decode %s: %w", path, err)
	}

	out := &geom.Mesh{}
	for _, obj := range model.Resources.Objects {
		if obj.Mesh == nil {
			continue
		}
		if out.Name == "" {
			out.Name = obj.Name
		}
		verts := obj.Mesh.Vertices.Vertex
		for _, t := range obj.Mesh.Triangles.Triangle {
			idx := [3]uint32{t.V1, t.V2, t.V3}
			var tri geom.Triangle
			for j, i := range idx {
				if int(i) >= len(verts) {
					return nil, fmt.Errorf("3mf: object %d: vertex index %d out of range: %w", obj.ID, i, ErrCorrupt)
				}
				p := verts[i]
				tri[j] = geom.Vec3{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
			}
			out.Triangles = append(out.Triangles, tri)
		}
	}
	return out, nil
}

// Write3MF encodes m as a single-object 3MF package in millimetres.
// Coincident vertices are shared.
func Write3MF(w io.Writer, m *geom.Mesh) error {
	mesh := &go3mf.Mesh{}
	index := make(map[go3mf.Point3D]uint32)
	vertex := func(v geom.Vec3) uint32 {
		p := go3mf.Point3D{float32(v.X), float32(v.Y), float32(v.Z)}
		if i, ok := index[p]; ok {
			return i
		}
		i := uint32(len(mesh.Vertices.Vertex))
		mesh.Vertices.Vertex = append(mesh.Vertices.Vertex, p)
		index[p] = i
		return i
	}
	for _, t := range m.Triangles {
		mesh.Triangles.Triangle = append(mesh.Triangles.Triangle, go3mf.Triangle{
			V1: vertex(t[0]),
			V2: vertex(t[1]),
			V3: vertex(t[2]),
		})
	}

	model := go3mf.Model{
		Units: go3mf.UnitMillimeter,
		Resources: go3mf.Resources{
			Objects: []*go3mf.Object{{
				ID:   1,
				Name: m.Name,
				Type: go3mf.ObjectTypeModel,
				Mesh: mesh,
			}},
		},
		Build: go3mf.Build{
			Items: []*go3mf.Item{{ObjectID: 1}},
		},
	}
	if err := go3mf.NewEncoder(w).Encode(&model); err != nil {
		return fmt.Errorf("3mf: encode: %w", err)
	}
	return nil
}
