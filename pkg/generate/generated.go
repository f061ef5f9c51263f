package generate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/samber/lo"
)

// GeneratedFile is the name of the per-sweep parameter values table.
const GeneratedFile = "GeneratedParameters.txt"

// Decimals is the precision drawn values are rounded to before use.
const Decimals = 2

// Round rounds v to Decimals places.
func Round(v float64) float64 {
	const scale = 100
	return math.Round(v*scale) / scale
}

// Values holds the parameter values of a sweep: one row per generation,
// one column per name.
type Values struct {
	Names []string
	Rows  [][]float64
}

// Params returns row i as a name to value map.
func (v *Values) Params(i int) map[string]float64 {
	params := make(map[string]float64, len(v.Names))
	for j, name := range v.Names {
		params[name] = v.Rows[i][j]
	}
	return params
}

// Write encodes v as CSV with a header of parameter names.
func (v *Values) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(v.Names); err != nil {
		return err
	}
	for _, row := range v.Rows {
		rec := lo.Map(row, func(x float64, _ int) string {
			return strconv.FormatFloat(x, 'f', -1, 64)
		})
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadValues decodes a table written by Values.Write.
func ReadValues(r io.Reader) (*Values, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		// A sweep without parameters writes an empty header.
		return &Values{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	v := &Values{Names: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("generate: %w", err)
		}
		row := make([]float64, len(rec))
		for i, s := range rec {
			if row[i], err = strconv.ParseFloat(s, 64); err != nil {
				return nil, fmt.Errorf("generate: generation %d: %s: %w", len(v.Rows), v.Names[i], err)
			}
		}
		v.Rows = append(v.Rows, row)
	}
	return v, nil
}

// WriteValuesFile writes v to GeneratedFile in dir.
func WriteValuesFile(dir string, v *Values) error {
	f, err := os.Create(filepath.Join(dir, GeneratedFile))
	if err != nil {
		return err
	}
	if err := v.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadValuesFile reads GeneratedFile from dir.
func ReadValuesFile(dir string) (*Values, error) {
	f, err := os.Open(filepath.Join(dir, GeneratedFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadValues(f)
}
