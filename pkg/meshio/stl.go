package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/amgen/pkg/geom"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 12*4 + 2
)

// ReadSTL decodes a binary or ASCII STL stream. ASCII is assumed when the
// data starts with "solid" and its length does not match the binary layout.
func ReadSTL(r io.Reader) (*geom.Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("stl: read: %w", err)
	}
	if isBinarySTL(data) {
		return decodeBinarySTL(data)
	}
	if bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("solid")) {
		return decodeASCIISTL(data)
	}
	return nil, fmt.Errorf("stl: %w", ErrCorrupt)
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	return int64(len(data)) == stlHeaderSize+4+int64(n)*stlRecordSize
}

func decodeBinarySTL(data []byte) (*geom.Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	m := &geom.Mesh{
		Name:      strings.TrimRight(string(data[:stlHeaderSize]), " \x00"),
		Triangles: make([]geom.Triangle, n),
	}
	buf := data[stlHeaderSize+4:]
	for i := range m.Triangles {
		rec := buf[i*stlRecordSize:]
		for v := 0; v < 3; v++ {
			// Skip the 12-byte facet normal.
			off := 12 + 12*v
			m.Triangles[i][v] = geom.Vec3{
				X: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[off:]))),
				Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[off+4:]))),
				Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[off+8:]))),
			}
		}
	}
	return m, nil
}

func decodeASCIISTL(data []byte) (*geom.Mesh, error) {
	m := &geom.Mesh{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	var (
		tri  geom.Triangle
		nv   int
		line int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if len(fields) > 1 && m.Name == "" {
				m.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			nv = 0
		case "vertex":
			if len(fields) != 4 || nv >= 3 {
				return nil, fmt.Errorf("stl: line %d: malformed vertex: %w", line, ErrCorrupt)
			}
			var c [3]float64
			for i := range c {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("stl: line %d: %w", line, err)
				}
				c[i] = f
			}
			tri[nv] = geom.Vec3{X: c[0], Y: c[1], Z: c[2]}
			nv++
		case "endfacet":
			if nv != 3 {
				return nil, fmt.Errorf("stl: line %d: facet has %d vertices: %w", line, nv, ErrCorrupt)
			}
			m.Triangles = append(m.Triangles, tri)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	return m, nil
}

// WriteSTL encodes m as binary STL with per-facet normals.
func WriteSTL(w io.Writer, m *geom.Mesh) error {
	bw := bufio.NewWriter(w)

	var header [stlHeaderSize]byte
	copy(header[:], m.Name)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("stl: write header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(m.Triangles))); err != nil {
		return fmt.Errorf("stl: write count: %w", err)
	}

	var rec [stlRecordSize]byte
	put := func(off int, v geom.Vec3) {
		binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(float32(v.X)))
		binary.LittleEndian.PutUint32(rec[off+4:], math.Float32bits(float32(v.Y)))
		binary.LittleEndian.PutUint32(rec[off+8:], math.Float32bits(float32(v.Z)))
	}
	for _, t := range m.Triangles {
		put(0, facetNormal(t))
		put(12, t[0])
		put(24, t[1])
		put(36, t[2])
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("stl: write facet: %w", err)
		}
	}
	return bw.Flush()
}

// facetNormal returns the unit normal of t by the right-hand rule, or the
// zero vector for a degenerate triangle.
func facetNormal(t geom.Triangle) geom.Vec3 {
	a := t[1].Sub(t[0])
	b := t[2].Sub(t[0])
	n := geom.Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
	l := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z)
	if l == 0 {
		return geom.Vec3{}
	}
	return n.Scale(1 / l)
}
