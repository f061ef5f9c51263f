// Package tessellate turns an evaluated part model into triangle meshes
// using a geometry kernel, either one mesh per part or a single mesh of
// the unioned model.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/amgen/pkg/engine"
	"github.com/chazu/amgen/pkg/geom"
	"github.com/chazu/amgen/pkg/kernel"
)

// ErrEmptyModel is returned for a model without parts.
var ErrEmptyModel = errors.New("tessellate: model has no parts")

// Tessellate produces one triangle mesh per part, in part order, each
// named after its part. It never mutates the model.
func Tessellate(m *engine.Model, k kernel.Kernel) ([]*geom.Mesh, error) {
	if m.IsEmpty() {
		return nil, nil
	}

	meshes := make([]*geom.Mesh, 0, len(m.Parts))
	for _, p := range m.Parts {
		mesh, err := k.ToMesh(p.Solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for part %q: %w", p.Name, err)
		}
		mesh.Name = p.Name
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// Merged unions every part and tessellates the result into one closed
// mesh named name. Overlapping parts become one solid, so the mesh
// rasterizes without even-odd cancellation where parts meet.
func Merged(m *engine.Model, k kernel.Kernel, name string) (*geom.Mesh, error) {
	if m.IsEmpty() {
		return nil, ErrEmptyModel
	}
	mesh, err := k.ToMesh(m.Solid(k))
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for %q: %w", name, err)
	}
	mesh.Name = name
	return mesh, nil
}
