package refine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ResultsFile is the name of the per-batch results table.
const ResultsFile = "RefinementResults.txt"

// Column headings of the results table.
const (
	ColPartVoxels    = "Part Voxel Count"
	ColPartVolume    = "Part Volume"
	ColSupportVoxels = "Support Voxel Count"
	ColSupportVolume = "Support Volume"
	ColSupportRatio  = "Support Ratio"
)

// ErrBadResults is returned when a results file cannot be parsed.
var ErrBadResults = errors.New("malformed results file")

// Columns returns the headings enabled by opts, in file order.
func Columns(opts Options) []string {
	var cols []string
	if opts.BuildVolume {
		cols = append(cols, ColPartVoxels, ColPartVolume)
	}
	if opts.SupportStructure {
		cols = append(cols, ColSupportVoxels, ColSupportVolume, ColSupportRatio)
	}
	return cols
}

// Cell is one table value. OK is false for a generation that produced no
// result.
type Cell struct {
	Value float64
	OK    bool
}

func (c Cell) String() string {
	if !c.OK {
		return ""
	}
	return strconv.FormatFloat(c.Value, 'f', -1, 64)
}

// Table is the contents of a results file: the resolution, the enabled
// columns and one row per generation.
type Table struct {
	Resolution float64
	Header     []string
	Rows       [][]Cell
}

// NewTable tabulates results under the columns enabled by opts. Failed
// results become rows of empty cells.
func NewTable(opts Options, results []Result) *Table {
	header := Columns(opts)
	t := &Table{Resolution: opts.Resolution, Header: header}
	for _, res := range results {
		row := make([]Cell, len(header))
		if !res.Failed() {
			for i, col := range header {
				row[i] = Cell{Value: res.value(col), OK: true}
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (r Result) value(col string) float64 {
	switch col {
	case ColPartVoxels:
		return float64(r.PartVoxels)
	case ColPartVolume:
		return r.PartVolume
	case ColSupportVoxels:
		return float64(r.SupportVoxels)
	case ColSupportVolume:
		return r.SupportVolume
	case ColSupportRatio:
		return r.SupportRatio
	}
	return 0
}

// Column returns the cells of the named column.
func (t *Table) Column(name string) ([]Cell, bool) {
	i := slices.Index(t.Header, name)
	if i < 0 {
		return nil, false
	}
	return lo.Map(t.Rows, func(row []Cell, _ int) Cell { return row[i] }), true
}

// Without returns a copy of t without the named columns.
func (t *Table) Without(names ...string) *Table {
	keep := lo.FilterMap(t.Header, func(h string, i int) (int, bool) {
		return i, !slices.Contains(names, h)
	})
	pick := func(row []Cell) []Cell {
		return lo.Map(keep, func(i int, _ int) Cell { return row[i] })
	}
	return &Table{
		Resolution: t.Resolution,
		Header:     lo.Map(keep, func(i int, _ int) string { return t.Header[i] }),
		Rows:       lo.Map(t.Rows, func(row []Cell, _ int) []Cell { return pick(row) }),
	}
}

// Write encodes t: a resolution line, the comma-separated header, then
// one comma-separated row per generation.
func (t *Table) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "resolution=%s\n", strconv.FormatFloat(t.Resolution, 'f', -1, 64))
	fmt.Fprintln(bw, strings.Join(t.Header, ","))
	for _, row := range t.Rows {
		fmt.Fprintln(bw, strings.Join(lo.Map(row, func(c Cell, _ int) string { return c.String() }), ","))
	}
	return bw.Flush()
}

// ReadTable decodes a results file. Empty or non-numeric cells are read
// as missing values.
func ReadTable(r io.Reader) (*Table, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		return nil, fmt.Errorf("refine: results: missing resolution line: %w", ErrBadResults)
	}
	key, val, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
	if !ok || key != "resolution" {
		return nil, fmt.Errorf("refine: results: bad resolution line %q: %w", sc.Text(), ErrBadResults)
	}
	res, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil, fmt.Errorf("refine: results: resolution: %w", ErrBadResults)
	}

	if !sc.Scan() {
		return nil, fmt.Errorf("refine: results: missing header: %w", ErrBadResults)
	}
	t := &Table{Resolution: res}
	if h := strings.TrimSpace(sc.Text()); h != "" {
		t.Header = strings.Split(h, ",")
	}

	line := 2
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" && len(t.Header) != 1 {
			continue
		}
		fields := strings.Split(text, ",")
		if len(fields) != len(t.Header) {
			return nil, fmt.Errorf("refine: results: line %d has %d cells, want %d: %w",
				line, len(fields), len(t.Header), ErrBadResults)
		}
		t.Rows = append(t.Rows, lo.Map(fields, func(f string, _ int) Cell {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			return Cell{Value: v, OK: err == nil}
		}))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("refine: results: %w", err)
	}
	return t, nil
}

// WriteResultsFile writes the results table into dir.
func WriteResultsFile(dir string, opts Options, results []Result) error {
	f, err := os.Create(filepath.Join(dir, ResultsFile))
	if err != nil {
		return err
	}
	if err := NewTable(opts, results).Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadResultsFile reads the results table from dir.
func ReadResultsFile(dir string) (*Table, error) {
	f, err := os.Open(filepath.Join(dir, ResultsFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}
