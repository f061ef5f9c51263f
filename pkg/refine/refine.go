// Package refine voxelizes design generations, synthesizes their support
// structures and records per-generation metrics. A batch runs jobs in
// parallel; a failing job is recorded and never aborts the others.
package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chazu/amgen/pkg/geom"
	"github.com/chazu/amgen/pkg/meshio"
	"github.com/chazu/amgen/pkg/voxel"
)

// ErrJobTimeout marks a job that exceeded Options.JobTimeout.
var ErrJobTimeout = errors.New("refine: job timed out")

// Job is one generation to refine. Mesh takes precedence over Path.
type Job struct {
	Index int
	Name  string
	Path  string
	Mesh  *geom.Mesh
}

func (j Job) name() string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("Gen%d", j.Index)
}

// Result is the outcome of one job. A failed result has Err set and
// carries no grids.
type Result struct {
	Index int
	Name  string

	Part    *voxel.Grid
	Support *voxel.Grid

	PartVoxels    int
	SupportVoxels int
	PartVolume    float64
	SupportVolume float64
	SupportRatio  float64

	Elapsed time.Duration
	Err     error
}

// Failed reports whether the job produced no result.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Refine rasterizes m and, when enabled, synthesizes its support. The
// volume metrics follow the enabled toggles; the part grid is always
// returned.
func Refine(m *geom.Mesh, opts Options) (Result, error) {
	return RefineContext(context.Background(), m, opts)
}

// RefineContext is Refine stopping between layers once ctx is done.
func RefineContext(ctx context.Context, m *geom.Mesh, opts Options) (Result, error) {
	part, err := voxel.RasterizeContext(ctx, m, opts.Resolution)
	if err != nil {
		return Result{}, err
	}
	if opts.MirrorY {
		part = part.MirrorY()
	}

	res := Result{Part: part}
	if opts.BuildVolume {
		res.PartVoxels = voxel.CountSolid(part)
		res.PartVolume = voxel.Volume(res.PartVoxels, opts.Resolution)
	}
	if opts.SupportStructure {
		s, err := voxel.SynthesizeSupportContext(ctx, part)
		if err != nil {
			return Result{}, err
		}
		res.Support = s.Grid
		res.PartVoxels = s.PartVoxels
		res.SupportVoxels = s.SupportVoxels
		res.SupportVolume = voxel.Volume(s.SupportVoxels, opts.Resolution)
		res.SupportRatio = s.Ratio()
	}
	return res, nil
}

// refineJob loads the job's mesh if needed and refines it.
func refineJob(ctx context.Context, job Job, opts Options) (Result, error) {
	m := job.Mesh
	if m == nil {
		if job.Path == "" {
			return Result{}, fmt.Errorf("refine: %s: no mesh or path", job.name())
		}
		loaded, err := meshio.Load(job.Path)
		if err != nil {
			return Result{}, err
		}
		m = loaded
	}
	return RefineContext(ctx, m, opts)
}
