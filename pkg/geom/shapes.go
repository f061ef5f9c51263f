package geom

// Box returns the 12-triangle closed surface of the axis-aligned box
// spanning min to max. Faces are wound outward.
func Box(min, max Vec3) *Mesh {
	// Corner i has bit 0 -> x, bit 1 -> y, bit 2 -> z.
	var c [8]Vec3
	for i := range c {
		c[i] = min
		if i&1 != 0 {
			c[i].X = max.X
		}
		if i&2 != 0 {
			c[i].Y = max.Y
		}
		if i&4 != 0 {
			c[i].Z = max.Z
		}
	}
	quads := [6][4]int{
		{0, 2, 3, 1}, // bottom (-z)
		{4, 5, 7, 6}, // top (+z)
		{0, 1, 5, 4}, // front (-y)
		{2, 6, 7, 3}, // back (+y)
		{0, 4, 6, 2}, // left (-x)
		{1, 3, 7, 5}, // right (+x)
	}
	m := &Mesh{Name: "box", Triangles: make([]Triangle, 0, 12)}
	for _, q := range quads {
		m.Triangles = append(m.Triangles,
			Triangle{c[q[0]], c[q[1]], c[q[2]]},
			Triangle{c[q[0]], c[q[2]], c[q[3]]},
		)
	}
	return m
}

// Merge concatenates the triangles of several meshes. Overlapping closed
// meshes stay closed individually, which is what the even-odd voxel fill
// needs as long as their volumes are disjoint.
func Merge(name string, meshes ...*Mesh) *Mesh {
	out := &Mesh{Name: name}
	for _, m := range meshes {
		if m == nil {
			continue
		}
		out.Triangles = append(out.Triangles, m.Triangles...)
	}
	return out
}
