// Package meshio reads and writes triangle meshes as STL and 3MF files.
package meshio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/amgen/pkg/geom"
)

var (
	// ErrUnsupportedFormat is returned for file extensions other than
	// .stl and .3mf.
	ErrUnsupportedFormat = errors.New("unsupported mesh format")

	// ErrCorrupt is returned when a file does not decode as a mesh.
	ErrCorrupt = errors.New("corrupt mesh data")
)

// Load reads the mesh at path, choosing the decoder by extension.
func Load(path string) (*geom.Mesh, error) {
	switch ext(path) {
	case ".stl":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		m, err := ReadSTL(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if m.Name == "" {
			m.Name = stem(path)
		}
		return m, nil
	case ".3mf":
		m, err := Read3MF(path)
		if err != nil {
			return nil, err
		}
		if m.Name == "" {
			m.Name = stem(path)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// Save writes m to path, choosing the encoder by extension. The file is
// written to a temporary sibling and renamed into place.
func Save(path string, m *geom.Mesh) (err error) {
	var write func(f *os.File) error
	switch ext(path) {
	case ".stl":
		write = func(f *os.File) error { return WriteSTL(f, m) }
	case ".3mf":
		write = func(f *os.File) error { return Write3MF(f, m) }
	default:
		return fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".mesh-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = write(f); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
