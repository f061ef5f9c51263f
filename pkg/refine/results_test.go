package refine

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/amgen/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults(t *testing.T) []Result {
	t.Helper()
	ok, err := Refine(shelf(), testOptions())
	require.NoError(t, err)
	ok.Index, ok.Name = 1, "Gen1"
	return []Result{
		ok,
		{Index: 2, Name: "Gen2", Err: errors.New("degenerate mesh")},
	}
}

func TestColumns(t *testing.T) {
	opts := testOptions()
	assert.Equal(t, []string{ColPartVoxels, ColPartVolume, ColSupportVoxels, ColSupportVolume, ColSupportRatio}, Columns(opts))

	opts.SupportStructure = false
	assert.Equal(t, []string{ColPartVoxels, ColPartVolume}, Columns(opts))

	opts = testOptions()
	opts.BuildVolume = false
	assert.Equal(t, []string{ColSupportVoxels, ColSupportVolume, ColSupportRatio}, Columns(opts))
}

func TestTableWrite(t *testing.T) {
	opts := testOptions()
	opts.Resolution = 1
	var buf bytes.Buffer
	require.NoError(t, NewTable(opts, sampleResults(t)).Write(&buf))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "resolution=1", lines[0])
	assert.Equal(t, "Part Voxel Count,Part Volume,Support Voxel Count,Support Volume,Support Ratio", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "48,48,27,27,0.36"), lines[2])
	assert.Equal(t, ",,,,", lines[3])
}

func TestTableRoundTrip(t *testing.T) {
	opts := testOptions()
	opts.Resolution = 0.5
	want := NewTable(opts, sampleResults(t))

	var buf bytes.Buffer
	require.NoError(t, want.Write(&buf))
	got, err := ReadTable(&buf)
	require.NoError(t, err)

	assert.Equal(t, 0.5, got.Resolution)
	assert.Equal(t, want.Header, got.Header)
	require.Len(t, got.Rows, 2)
	for i := range want.Rows {
		for j := range want.Rows[i] {
			assert.Equal(t, want.Rows[i][j].OK, got.Rows[i][j].OK)
			assert.InDelta(t, want.Rows[i][j].Value, got.Rows[i][j].Value, 1e-12)
		}
	}
}

func TestTableSingleColumnKeepsFailedRows(t *testing.T) {
	tbl := &Table{
		Resolution: 1,
		Header:     []string{ColSupportRatio},
		Rows:       [][]Cell{{{Value: 0.25, OK: true}}, {{}}, {{Value: 0.5, OK: true}}},
	}
	var buf bytes.Buffer
	require.NoError(t, tbl.Write(&buf))

	got, err := ReadTable(&buf)
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	assert.False(t, got.Rows[1][0].OK)
	assert.Equal(t, 0.5, got.Rows[2][0].Value)
}

func TestTableWithout(t *testing.T) {
	tbl := NewTable(testOptions(), sampleResults(t))
	view := tbl.Without(ColPartVoxels, ColSupportVoxels)

	assert.Equal(t, []string{ColPartVolume, ColSupportVolume, ColSupportRatio}, view.Header)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, 48.0, view.Rows[0][0].Value)
	assert.Len(t, tbl.Header, 5, "original table is unchanged")

	ratios, ok := view.Column(ColSupportRatio)
	require.True(t, ok)
	assert.True(t, ratios[0].OK)
	assert.False(t, ratios[1].OK)

	_, ok = view.Column(ColPartVoxels)
	assert.False(t, ok)
}

func TestReadTableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no resolution", "Part Volume\n1\n"},
		{"bad resolution", "resolution=abc\nPart Volume\n"},
		{"no header", "resolution=1\n"},
		{"short row", "resolution=1\nPart Voxel Count,Part Volume\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrBadResults)
		})
	}
}

func TestReadTableNonNumericCells(t *testing.T) {
	got, err := ReadTable(strings.NewReader("resolution=2\nA,B\n1,nan?\n\n3,4\n"))
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.True(t, got.Rows[0][0].OK)
	assert.False(t, got.Rows[0][1].OK)
	assert.Equal(t, 4.0, got.Rows[1][1].Value)
}

func TestResultsFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	require.NoError(t, WriteResultsFile(dir, opts, sampleResults(t)))

	got, err := ReadResultsFile(dir)
	require.NoError(t, err)
	assert.Len(t, got.Rows, 2)

	_, err = ReadResultsFile(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverJobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Gen3.stl", "Gen1.3mf", "Gen0.STL", "notes.txt", "GenX.stl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Gen5.stl"), 0o755))

	jobs, err := DiscoverJobs(dir)
	require.NoError(t, err)
	require.Len(t, jobs, 4)
	for i, job := range jobs {
		assert.Equal(t, i, job.Index)
		assert.Equal(t, GenName(i), job.Name)
	}
	assert.Equal(t, filepath.Join(dir, "Gen0.STL"), jobs[0].Path)
	assert.Equal(t, filepath.Join(dir, "Gen1.3mf"), jobs[1].Path)
	assert.Empty(t, jobs[2].Path, "missing generation keeps its slot")
	assert.Equal(t, filepath.Join(dir, "Gen3.stl"), jobs[3].Path)

	empty, err := DiscoverJobs(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveAndDeleteRefinements(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults(t)
	for _, res := range results {
		require.NoError(t, SaveGrids(dir, res))
	}
	require.NoError(t, WriteResultsFile(dir, testOptions(), results))

	part, err := store.LoadNPY(filepath.Join(GenDir(dir, 1), PartGridFile))
	require.NoError(t, err)
	assert.True(t, part.Equal(results[0].Part))
	support, err := store.LoadNPY(filepath.Join(GenDir(dir, 1), SupportGridFile))
	require.NoError(t, err)
	assert.Equal(t, 27, support.Count())

	_, err = os.Stat(GenDir(dir, 2))
	assert.ErrorIs(t, err, os.ErrNotExist, "failed generations write no grids")

	// A generation mesh next to the grids survives deletion.
	mesh := filepath.Join(GenDir(dir, 1), "keep.stl")
	require.NoError(t, os.WriteFile(mesh, nil, 0o644))

	require.NoError(t, DeleteRefinements(dir))
	for _, p := range []string{
		filepath.Join(GenDir(dir, 1), PartGridFile),
		filepath.Join(GenDir(dir, 1), SupportGridFile),
		filepath.Join(dir, ResultsFile),
	} {
		_, err := os.Stat(p)
		assert.ErrorIs(t, err, os.ErrNotExist, p)
	}
	_, err = os.Stat(mesh)
	assert.NoError(t, err)

	require.NoError(t, DeleteRefinements(dir), "deleting twice is fine")
}

func TestPersist(t *testing.T) {
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	opts := testOptions()
	results := sampleResults(t)
	require.NoError(t, Persist(s, opts, results))

	recs, err := s.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 48, recs[0].PartVoxels)
	assert.True(t, recs[0].HasSupport)
	assert.Equal(t, opts.Resolution, recs[0].Resolution)
	assert.True(t, recs[1].Failed())
	assert.Equal(t, "degenerate mesh", recs[1].Error)

	part, support, err := s.Grids(1)
	require.NoError(t, err)
	assert.True(t, part.Equal(results[0].Part))
	assert.True(t, support.Equal(results[0].Support))
}

func TestSaveGridsReplacesStaleGrids(t *testing.T) {
	dir := t.TempDir()
	ok := sampleResults(t)[0]
	partPath := filepath.Join(GenDir(dir, 1), PartGridFile)
	supportPath := filepath.Join(GenDir(dir, 1), SupportGridFile)

	require.NoError(t, SaveGrids(dir, ok))
	assert.FileExists(t, partPath)
	assert.FileExists(t, supportPath)

	noSupport := ok
	noSupport.Support = nil
	require.NoError(t, SaveGrids(dir, noSupport))
	assert.FileExists(t, partPath)
	assert.NoFileExists(t, supportPath, "support grid from an earlier run")

	require.NoError(t, SaveGrids(dir, ok))
	failed := Result{Index: 1, Name: "Gen1", Err: errors.New("truncated mesh")}
	require.NoError(t, SaveGrids(dir, failed))
	assert.NoFileExists(t, partPath)
	assert.NoFileExists(t, supportPath)

	require.NoError(t, SaveGrids(t.TempDir(), failed), "nothing to remove")
}

func TestDiscoverJobsRejectsStrayIndex(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Gen0.stl", "Gen1.stl", "Gen999999999.stl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	jobs, err := DiscoverJobs(dir)
	assert.ErrorIs(t, err, ErrGenerationGap)
	assert.Contains(t, err.Error(), "Gen999999999.stl")
	assert.Nil(t, jobs)

	require.NoError(t, os.Remove(filepath.Join(dir, "Gen999999999.stl")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GenName(MaxMissingGenerations+2)+".stl"), nil, 0o644))
	jobs, err = DiscoverJobs(dir)
	require.NoError(t, err, "a gap of exactly MaxMissingGenerations is filled")
	assert.Len(t, jobs, MaxMissingGenerations+3)
}
