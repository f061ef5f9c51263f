package view

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/chazu/amgen/pkg/voxel"
	"github.com/gogpu/gg"
)

// DefaultCellSize is the edge length in pixels of one voxel in a preview.
const DefaultCellSize = 8

// Background fills preview pixels with no voxel.
var Background = gg.White

// Layer draws layer z of part and support seen from above, cellSize
// pixels per voxel, y increasing upwards. support may be nil.
type Layer struct {
	Part     *voxel.Grid
	Support  *voxel.Grid
	Z        int
	CellSize int
}

func (l Layer) validate() error {
	if l.Part == nil {
		return errors.New("view: no part grid")
	}
	if l.Support != nil && !l.Support.SameShape(l.Part) {
		return &voxel.ShapeMismatchError{Reason: "support grid does not match part"}
	}
	if _, _, h := l.Part.Dims(); l.Z < 0 || l.Z >= h {
		return fmt.Errorf("view: layer %d outside 0..%d", l.Z, h-1)
	}
	return nil
}

func (l Layer) cellSize() int {
	if l.CellSize < 1 {
		return DefaultCellSize
	}
	return l.CellSize
}

// draw renders the layer into a new context. The caller closes it.
func (l Layer) draw() (*gg.Context, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	cs := l.cellSize()
	w, d, _ := l.Part.Dims()
	dc := gg.NewContext(w*cs, d*cs)
	dc.ClearWithColor(Background)

	// One path per colour.
	for _, pass := range []struct {
		colour gg.RGBA
		match  func(x, y int) bool
	}{
		{PartColour, func(x, y int) bool {
			return l.Part.At(x, y, l.Z) && (l.Support == nil || !l.Support.At(x, y, l.Z))
		}},
		{SupportColour, func(x, y int) bool {
			return l.Support != nil && l.Support.At(x, y, l.Z)
		}},
	} {
		n := 0
		for y := 0; y < d; y++ {
			for x := 0; x < w; x++ {
				if !pass.match(x, y) {
					continue
				}
				dc.DrawRectangle(float64(x*cs), float64((d-1-y)*cs), float64(cs), float64(cs))
				n++
			}
		}
		if n == 0 {
			continue
		}
		dc.SetColor(pass.colour.Color())
		if err := dc.Fill(); err != nil {
			dc.Close()
			return nil, fmt.Errorf("view: fill: %w", err)
		}
	}
	return dc, nil
}

// Image renders the layer.
func (l Layer) Image() (image.Image, error) {
	dc, err := l.draw()
	if err != nil {
		return nil, err
	}
	defer dc.Close()
	return dc.Image(), nil
}

// WritePNG renders the layer as PNG to w.
func (l Layer) WritePNG(w io.Writer) error {
	dc, err := l.draw()
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

// SavePNG renders the layer as a PNG file.
func (l Layer) SavePNG(path string) error {
	dc, err := l.draw()
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.SavePNG(path)
}
