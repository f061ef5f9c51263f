// Package generate perturbs a parametric part template into numbered
// generations. Each named parameter is drawn uniformly from its range,
// the template is evaluated with the drawn values and the resulting solid
// is written as Gen<i>.stl.
package generate

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/amgen/pkg/engine"
	"github.com/samber/lo"
)

// RangesFile is the conventional name of the parameter ranges file.
const RangesFile = "Parameters.txt"

// ErrBadRanges is returned for a malformed parameter ranges file.
var ErrBadRanges = errors.New("malformed parameter ranges")

// Range is the closed interval a parameter is drawn from.
type Range struct {
	Name string
	Min  float64
	Max  float64
}

// Sample draws a value uniformly from r.
func (r Range) Sample(rng *rand.Rand) float64 {
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// ParseRanges reads one "name,min,max" range per line. Blank lines are
// skipped. A range with min > max, a duplicate name or a name that is not
// a valid template identifier is an error.
func ParseRanges(r io.Reader) ([]Range, error) {
	var ranges []Range
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("generate: line %d: want name,min,max: %w", line, ErrBadRanges)
		}
		rg := Range{Name: strings.TrimSpace(fields[0])}
		if err := engine.ValidParamName(rg.Name); err != nil {
			return nil, fmt.Errorf("generate: line %d: %v: %w", line, err, ErrBadRanges)
		}
		var err error
		if rg.Min, err = parseBound(fields[1]); err != nil {
			return nil, fmt.Errorf("generate: line %d: min: %w", line, err)
		}
		if rg.Max, err = parseBound(fields[2]); err != nil {
			return nil, fmt.Errorf("generate: line %d: max: %w", line, err)
		}
		if rg.Min > rg.Max {
			return nil, fmt.Errorf("generate: line %d: %s: min %v > max %v: %w", line, rg.Name, rg.Min, rg.Max, ErrBadRanges)
		}
		if lo.ContainsBy(ranges, func(o Range) bool { return o.Name == rg.Name }) {
			return nil, fmt.Errorf("generate: line %d: duplicate parameter %q: %w", line, rg.Name, ErrBadRanges)
		}
		ranges = append(ranges, rg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	return ranges, nil
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number: %w", s, ErrBadRanges)
	}
	return v, nil
}

// LoadRanges reads a parameter ranges file.
func LoadRanges(path string) ([]Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRanges(f)
}

// Names returns the parameter names in file order.
func Names(ranges []Range) []string {
	return lo.Map(ranges, func(r Range, _ int) string { return r.Name })
}
