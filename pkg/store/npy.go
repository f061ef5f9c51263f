package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/chazu/amgen/pkg/voxel"
)

var npyMagic = []byte("\x93NUMPY")

// ErrBadNPY is returned when a file is not a 3-D boolean .npy array.
var ErrBadNPY = errors.New("not a 3-d boolean npy array")

// WriteNPY encodes g as a NumPy v1.0 array of dtype |b1 and shape
// (W, D, H) in C order, so arr[x, y, z] equals g.At(x, y, z).
func WriteNPY(w io.Writer, g *voxel.Grid) error {
	nx, ny, nz := g.Dims()
	dict := fmt.Sprintf("{'descr': '|b1', 'fortran_order': False, 'shape': (%d, %d, %d), }", nx, ny, nz)

	// magic(6) + version(2) + length(2) + dict + padding + '\n' is a
	// multiple of 64.
	pre := len(npyMagic) + 4
	total := pre + len(dict) + 1
	pad := (64 - total%64) % 64
	header := dict + strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	for x := 0; x < nx; x++ {
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				var b byte
				if g.At(x, y, z) {
					b = 1
				}
				if err := bw.WriteByte(b); err != nil {
					return fmt.Errorf("npy: write: %w", err)
				}
			}
		}
	}
	return bw.Flush()
}

var (
	descrPattern   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	fortranPattern = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapePattern   = regexp.MustCompile(`'shape':\s*\(\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,?\s*\)`)
)

// ReadNPY decodes a 3-D .npy array of dtype |b1 or |u1 in either C or
// Fortran order. Any non-zero byte is a solid voxel.
func ReadNPY(r io.Reader) (*voxel.Grid, error) {
	br := bufio.NewReader(r)

	pre := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(br, pre); err != nil {
		return nil, fmt.Errorf("npy: %w", ErrBadNPY)
	}
	if !bytes.Equal(pre[:len(npyMagic)], npyMagic) {
		return nil, fmt.Errorf("npy: bad magic: %w", ErrBadNPY)
	}

	var hlen int
	switch major := pre[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("npy: %w", err)
		}
		hlen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("npy: %w", err)
		}
		hlen = int(n)
	default:
		return nil, fmt.Errorf("npy: unsupported version %d: %w", major, ErrBadNPY)
	}

	header := make([]byte, hlen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("npy: header: %w", err)
	}

	descr := descrPattern.FindSubmatch(header)
	if descr == nil || (string(descr[1]) != "|b1" && string(descr[1]) != "|u1") {
		return nil, fmt.Errorf("npy: dtype: %w", ErrBadNPY)
	}
	fortran := fortranPattern.FindSubmatch(header)
	if fortran == nil {
		return nil, fmt.Errorf("npy: fortran_order: %w", ErrBadNPY)
	}
	shape := shapePattern.FindSubmatch(header)
	if shape == nil {
		return nil, fmt.Errorf("npy: shape: %w", ErrBadNPY)
	}
	var dims [3]int
	for i := range dims {
		n, err := strconv.Atoi(string(shape[i+1]))
		if err != nil {
			return nil, fmt.Errorf("npy: shape: %w", err)
		}
		dims[i] = n
	}
	n := 1
	for _, d := range dims {
		if d > 0 && n > voxel.MaxCells/d {
			return nil, fmt.Errorf("npy: shape %v exceeds %d cells: %w", dims, voxel.MaxCells, ErrBadNPY)
		}
		n *= d
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, fmt.Errorf("npy: data: %w", err)
	}

	cells := make([]bool, len(data))
	if string(fortran[1]) == "True" {
		// Fortran order over (x, y, z) is already x-fastest, layer-major.
		for i, b := range data {
			cells[i] = b != 0
		}
	} else {
		nx, ny, nz := dims[0], dims[1], dims[2]
		i := 0
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				for z := 0; z < nz; z++ {
					cells[(z*ny+y)*nx+x] = data[i] != 0
					i++
				}
			}
		}
	}
	return voxel.GridFromCells(dims[0], dims[1], dims[2], cells)
}

// SaveNPY writes g to path.
func SaveNPY(path string, g *voxel.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteNPY(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadNPY reads a grid from path.
func LoadNPY(path string) (*voxel.Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadNPY(f)
}
