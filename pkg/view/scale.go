package view

import (
	"image/color"
	"math"

	"github.com/chazu/amgen/pkg/refine"
	"github.com/samber/lo"
)

// DefaultHue is the hue of result table colour scales.
const DefaultHue = 0.5

// Missing colours a cell that holds no value.
var Missing = color.NRGBA{R: 230, G: 184, B: 184, A: 255}

// ColourScale colours every cell of t by its position within its column's
// value range: saturation runs from 0 at the column minimum to 1 at the
// maximum, at the given hue and full value. Cells without a value get
// Missing. A column whose values are all equal is white.
func ColourScale(t *refine.Table, hue float64) [][]color.NRGBA {
	out := lo.Map(t.Rows, func(row []refine.Cell, _ int) []color.NRGBA {
		return make([]color.NRGBA, len(row))
	})
	for i := range t.Header {
		col, _ := t.Column(t.Header[i])
		ok := lo.Filter(col, func(c refine.Cell, _ int) bool { return c.OK })
		values := lo.Map(ok, func(c refine.Cell, _ int) float64 { return c.Value })
		low, high := lo.Min(values), lo.Max(values)

		for j, c := range col {
			if !c.OK {
				out[j][i] = Missing
				continue
			}
			s := 0.0
			if high > low {
				s = (c.Value - low) / (high - low)
			}
			out[j][i] = hsv(hue, s, 1)
		}
	}
	return out
}

// hsv converts a hue, saturation and value in [0, 1] to an opaque colour,
// truncating each channel to 8 bits.
func hsv(h, s, v float64) color.NRGBA {
	r, g, b := v, v, v
	if s != 0 {
		i := math.Floor(h * 6)
		f := h*6 - i
		p := v * (1 - s)
		q := v * (1 - s*f)
		t := v * (1 - s*(1-f))
		switch int(i) % 6 {
		case 0:
			r, g, b = v, t, p
		case 1:
			r, g, b = q, v, p
		case 2:
			r, g, b = p, v, t
		case 3:
			r, g, b = p, q, v
		case 4:
			r, g, b = t, p, v
		case 5:
			r, g, b = v, p, q
		}
	}
	return color.NRGBA{R: channel(r), G: channel(g), B: channel(b), A: 255}
}

func channel(c float64) uint8 {
	return uint8(math.Max(0, math.Min(255, c*255)))
}
