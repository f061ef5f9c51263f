package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/amgen/pkg/generate"
	"github.com/chazu/amgen/pkg/logging"
	"github.com/chazu/amgen/pkg/refine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the CLI against dir and returns its standard output.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { logging.SetLogger(nil) })

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"-C", dir}, args...))
	err := root.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), err
}

// newProject writes a small project: a post with an arm hanging off its
// top, so every generation needs support.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"part.zy": `; post with an overhanging arm
(part "post" (box 3 3 h))
(part "arm" (translate (box 6 3 2) 3 0 (- h 2)))
`,
		"Parameters.txt": "h,6,8\n",
		"amgen.yaml": `refine:
  resolution: 1
  workers: 2
generate:
  count: 2
  seed: 5
  mesh_cells: 30
log_level: warn
`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestPipeline(t *testing.T) {
	dir := newProject(t)

	out, err := run(t, dir, "generate")
	require.NoError(t, err)
	assert.Contains(t, out, "2 generations produced, 0 failed")
	assert.True(t, exists(filepath.Join(dir, "Gen0.stl")))
	assert.True(t, exists(filepath.Join(dir, "Gen1.stl")))
	assert.True(t, exists(filepath.Join(dir, generate.GeneratedFile)))

	out, err = run(t, dir, "refine", "--metrics-file", "metrics.prom")
	require.NoError(t, err)
	assert.Contains(t, out, "2 generations refined at resolution 1, 0 failed")
	assert.True(t, exists(filepath.Join(dir, refine.ResultsFile)))
	assert.True(t, exists(filepath.Join(dir, "Gen0", refine.PartGridFile)))
	assert.True(t, exists(filepath.Join(dir, "Gen1", refine.SupportGridFile)))

	metrics, err := os.ReadFile(filepath.Join(dir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `amgen_refine_jobs_total{status="ok"} 2`)

	tbl, err := refine.ReadResultsFile(dir)
	require.NoError(t, err)
	ratios, ok := tbl.Column(refine.ColSupportRatio)
	require.True(t, ok)
	for _, r := range ratios {
		require.True(t, r.OK)
		assert.Greater(t, r.Value, 0.0, "the arm needs support")
	}

	out, err = run(t, dir, "results")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation")
	assert.Contains(t, out, "Support Ratio")
	assert.Contains(t, out, "Gen1")
	assert.NotContains(t, out, "Voxel Count")
	header := strings.Split(out, "\n")[1]
	assert.True(t, strings.Contains(header, " h "), "parameter column in %q", header)

	out, err = run(t, dir, "results", "--counts")
	require.NoError(t, err)
	assert.Contains(t, out, "Support Voxel Count")

	out, err = run(t, dir, "results", "--store")
	require.NoError(t, err)
	assert.Contains(t, out, "Gen0")
	assert.Contains(t, out, "Gen1")

	out, err = run(t, dir, "preview", "0", "--layer", "1", "--cell", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1 layers written")
	assert.True(t, exists(filepath.Join(dir, "Gen0", "preview", "layer_001.png")))

	_, err = run(t, dir, "clean")
	require.NoError(t, err)
	assert.False(t, exists(filepath.Join(dir, refine.ResultsFile)))
	assert.False(t, exists(filepath.Join(dir, "Gen0", refine.PartGridFile)))
	assert.True(t, exists(filepath.Join(dir, "Gen0.stl")))

	out, err = run(t, dir, "results", "--store")
	require.NoError(t, err)
	assert.NotContains(t, out, "Gen0")

	_, err = run(t, dir, "clean", "--all")
	require.NoError(t, err)
	assert.False(t, exists(filepath.Join(dir, "Gen0.stl")))
	assert.False(t, exists(filepath.Join(dir, "Gen0")))
	assert.False(t, exists(filepath.Join(dir, generate.GeneratedFile)))
	assert.True(t, exists(filepath.Join(dir, "part.zy")))
}

func TestRefineWithoutGenerations(t *testing.T) {
	_, err := run(t, newProject(t), "refine")
	assert.ErrorIs(t, err, errNoGenerations)
}

func TestRefineSupportOff(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "generate", "-n", "1")
	require.NoError(t, err)
	_, err = run(t, dir, "refine", "--support=false", "--resolution", "2")
	require.NoError(t, err)

	tbl, err := refine.ReadResultsFile(dir)
	require.NoError(t, err)
	assert.Equal(t, 2.0, tbl.Resolution)
	assert.Equal(t, []string{refine.ColPartVoxels, refine.ColPartVolume}, tbl.Header)
	assert.False(t, exists(filepath.Join(dir, "Gen0", refine.SupportGridFile)))
}

func TestEvalCommand(t *testing.T) {
	dir := newProject(t)
	out, err := run(t, dir, "eval", "part.zy", "-p", "h=7")
	require.NoError(t, err)

	var result EvalResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Parts, 2)
	assert.Equal(t, "post", result.Parts[0].Name)
	assert.Equal(t, "arm", result.Parts[1].Name)

	_, err = run(t, dir, "eval", "part.zy")
	assert.ErrorIs(t, err, errTemplate, "h is unbound")
}

func TestBadFlags(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "--log-level", "loud", "results")
	assert.Error(t, err)
	_, err = run(t, dir, "eval", "part.zy", "--kernel", "nurbs")
	assert.Error(t, err)
	_, err = run(t, dir, "preview", "x")
	assert.Error(t, err)
}

func TestRefineReplacesStaleGrids(t *testing.T) {
	dir := newProject(t)
	_, err := run(t, dir, "generate")
	require.NoError(t, err)
	_, err = run(t, dir, "refine")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "Gen0", refine.PartGridFile))
	require.FileExists(t, filepath.Join(dir, "Gen1", refine.SupportGridFile))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Gen0.stl"), nil, 0o644))
	out, err := run(t, dir, "refine", "--support=false")
	require.NoError(t, err)
	assert.Contains(t, out, "1 generations refined at resolution 1, 1 failed")

	assert.NoFileExists(t, filepath.Join(dir, "Gen0", refine.PartGridFile))
	assert.NoFileExists(t, filepath.Join(dir, "Gen0", refine.SupportGridFile))
	assert.FileExists(t, filepath.Join(dir, "Gen1", refine.PartGridFile))
	assert.NoFileExists(t, filepath.Join(dir, "Gen1", refine.SupportGridFile))

	_, err = run(t, dir, "preview", "0")
	assert.Error(t, err, "failed generation has no grids to preview")
}
