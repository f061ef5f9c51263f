package voxel

import (
	"math"
	"slices"

	"github.com/chazu/amgen/pkg/geom"
)

// segment is one edge of a planar cross-section, in voxel-index x/y.
type segment struct {
	ax, ay, bx, by float64
}

// crossSection appends to dst the segments where the triangles cut the
// horizontal plane z = h. An edge crosses the plane when its endpoints fall
// on different sides under the half-open rule (z <= h vs z > h), so a
// triangle contributes zero or exactly two crossing points and vertices
// lying on the plane are never counted twice.
func crossSection(tris []geom.Triangle, h float64, dst []segment) []segment {
	for _, t := range tris {
		var pts [2][2]float64
		n := 0
		for e := 0; e < 3; e++ {
			a, b := t[e], t[(e+1)%3]
			if (a.Z <= h) == (b.Z <= h) {
				continue
			}
			if n < 2 {
				pts[n] = edgeAt(a, b, h)
			}
			n++
		}
		if n == 2 {
			dst = append(dst, segment{ax: pts[0][0], ay: pts[0][1], bx: pts[1][0], by: pts[1][1]})
		}
	}
	return dst
}

// edgeAt interpolates the x/y position where edge a-b meets z = h. The
// endpoints are put in a canonical order first so the two triangles sharing
// an edge compute bit-identical points and the section stays closed.
func edgeAt(a, b geom.Vec3, h float64) [2]float64 {
	if lessVec(b, a) {
		a, b = b, a
	}
	s := (h - a.Z) / (b.Z - a.Z)
	return [2]float64{a.X + s*(b.X-a.X), a.Y + s*(b.Y-a.Y)}
}

func lessVec(a, b geom.Vec3) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.X != b.X {
		return a.X < b.X
	}
	return a.Y < b.Y
}

// fillLayer rasterizes a closed cross-section into an nx*ny layer indexed
// y*nx + x. Each row samples voxel centres on the line y = j + 0.5; every
// boundary crossing toggles inside/outside (even-odd rule). xs is scratch
// space and is returned for reuse.
func fillLayer(segs []segment, layer []bool, nx, ny int, xs []float64) []float64 {
	for j := 0; j < ny; j++ {
		yc := float64(j) + 0.5
		xs = xs[:0]
		for _, s := range segs {
			if (s.ay <= yc) == (s.by <= yc) {
				continue
			}
			t := (yc - s.ay) / (s.by - s.ay)
			xs = append(xs, s.ax+t*(s.bx-s.ax))
		}
		if len(xs) < 2 {
			continue
		}
		slices.Sort(xs)

		row := layer[j*nx : (j+1)*nx]
		for p := 0; p+1 < len(xs); p += 2 {
			// Centre i+0.5 is inside when xs[p] <= i+0.5 < xs[p+1].
			lo := int(math.Ceil(xs[p] - 0.5))
			hi := int(math.Ceil(xs[p+1] - 0.5))
			lo = max(lo, 0)
			hi = min(hi, nx)
			for i := lo; i < hi; i++ {
				row[i] = true
			}
		}
	}
	return xs
}
