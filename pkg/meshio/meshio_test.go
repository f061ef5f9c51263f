package meshio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/amgen/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cube() *geom.Mesh {
	m := geom.Box(geom.Vec3{X: 1, Y: 2, Z: 3}, geom.Vec3{X: 3, Y: 5, Z: 4})
	m.Name = "cube"
	return m
}

func TestBinarySTLRoundTrip(t *testing.T) {
	want := cube()

	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, want))
	assert.Equal(t, stlHeaderSize+4+12*stlRecordSize, buf.Len())

	got, err := ReadSTL(&buf)
	require.NoError(t, err)
	assert.Equal(t, "cube", got.Name)
	// Box corners are small integers, exact in float32.
	assert.Equal(t, want.Triangles, got.Triangles)
}

func TestBinarySTLHeaderStartingWithSolid(t *testing.T) {
	m := cube()
	m.Name = "solid exported by some CAD tool"

	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, m))
	got, err := ReadSTL(&buf)
	require.NoError(t, err)
	assert.Equal(t, 12, got.TriangleCount())
}

func TestWriteSTLNormals(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSTL(&buf, cube()))
	data := buf.Bytes()[stlHeaderSize+4:]

	// Every facet normal of an axis-aligned box is a unit axis vector.
	for i := 0; i < 12; i++ {
		rec := data[i*stlRecordSize:]
		var sum float64
		for c := 0; c < 3; c++ {
			f := float64(math.Float32frombits(binary.LittleEndian.Uint32(rec[4*c:])))
			sum += math.Abs(f)
		}
		assert.InDelta(t, 1, sum, 1e-6, "facet %d", i)
	}
	assert.Equal(t, geom.Vec3{}, facetNormal(geom.Triangle{}))
}

func TestASCIISTL(t *testing.T) {
	src := `solid wedge
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 0 0 1.5
      vertex 1e0 0 1.5
      vertex 0 1 1.5
    endloop
  endfacet
endsolid wedge
`
	m, err := ReadSTL(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "wedge", m.Name)
	require.Equal(t, 2, m.TriangleCount())
	assert.Equal(t, geom.Vec3{X: 1, Z: 1.5}, m.Triangles[1][1])
}

func TestReadSTLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "not a mesh at all, definitely"},
		{"bad vertex", "solid x\nfacet\nvertex 1 2\nendfacet\n"},
		{"two vertices", "solid x\nfacet\nvertex 1 2 3\nvertex 1 2 3\nendfacet\n"},
		{"bad number", "solid x\nfacet\nvertex 1 2 q\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSTL(strings.NewReader(tt.data))
			assert.Error(t, err)
		})
	}
	_, err := ReadSTL(strings.NewReader("garbage that is long enough to not be anything"))
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func Test3MFRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.3mf")
	want := geom.Merge("pair",
		cube(),
		geom.Box(geom.Vec3{X: 10}, geom.Vec3{X: 11, Y: 1, Z: 1}),
	)
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.TriangleCount(), got.TriangleCount())
	assert.Equal(t, want.BoundingBox(), got.BoundingBox())
	assert.Equal(t, want.Triangles, got.Triangles)
}

func TestLoadSaveSTLByExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Gen0.STL")
	require.NoError(t, Save(path, &geom.Mesh{Triangles: cube().Triangles}))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, got.TriangleCount())
	assert.Equal(t, "Gen0", got.Name, "unnamed meshes take the file stem")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.obj")
	assert.ErrorIs(t, Save(path, cube()), ErrUnsupportedFormat)
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
