package refine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/chazu/amgen/pkg/store"
)

// Grid file names inside a generation directory.
const (
	PartGridFile    = "voxelModel.npy"
	SupportGridFile = "supportModel.npy"
)

// GenName returns the conventional name of generation index.
func GenName(index int) string {
	return "Gen" + strconv.Itoa(index)
}

// GenDir returns the directory holding generation index's grids.
func GenDir(dir string, index int) string {
	return filepath.Join(dir, GenName(index))
}

// MaxMissingGenerations bounds the index gaps DiscoverJobs fills.
const MaxMissingGenerations = 1000

// ErrGenerationGap is returned by DiscoverJobs when generation indices
// skip more than MaxMissingGenerations meshes.
var ErrGenerationGap = errors.New("too many missing generations")

// genMeshPattern matches generation meshes such as Gen12.stl.
var genMeshPattern = regexp.MustCompile(`^Gen(\d+)\.(?i:stl|3mf)$`)

// DiscoverJobs returns one job per generation index from 0 up to the
// highest Gen<i>.stl or Gen<i>.3mf file in dir, so that results line up
// with generation indices. An index without a mesh file gets a job with
// no path, which fails and leaves an empty results row. More than
// MaxMissingGenerations such indices is an ErrGenerationGap naming the
// highest mesh, usually a stray file.
func DiscoverJobs(dir string) ([]Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make(map[int]string)
	highest := -1
	var highestName string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := genMeshPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		paths[index] = filepath.Join(dir, e.Name())
		if index > highest {
			highest, highestName = index, e.Name()
		}
	}
	if missing := highest + 1 - len(paths); missing > MaxMissingGenerations {
		return nil, fmt.Errorf("refine: %s leaves %d generations without a mesh: %w", highestName, missing, ErrGenerationGap)
	}

	jobs := make([]Job, 0, highest+1)
	for i := 0; i <= highest; i++ {
		jobs = append(jobs, Job{Index: i, Name: GenName(i), Path: paths[i]})
	}
	return jobs, nil
}

// SaveGrids writes the grids of a result under GenDir, replacing those of
// an earlier run. A failed result removes both grid files and a result
// without support removes the support grid, so no stale grid outlives its
// results row.
func SaveGrids(dir string, res Result) error {
	gd := GenDir(dir, res.Index)
	partPath := filepath.Join(gd, PartGridFile)
	supportPath := filepath.Join(gd, SupportGridFile)
	if res.Failed() || res.Part == nil {
		return removeAll(partPath, supportPath)
	}
	if err := os.MkdirAll(gd, 0o755); err != nil {
		return err
	}
	if err := store.SaveNPY(partPath, res.Part); err != nil {
		return fmt.Errorf("refine: %s: %w", res.Name, err)
	}
	if res.Support == nil {
		return removeAll(supportPath)
	}
	if err := store.SaveNPY(supportPath, res.Support); err != nil {
		return fmt.Errorf("refine: %s: %w", res.Name, err)
	}
	return nil
}

// DeleteRefinements removes every generation's grid files and the results
// table from dir. Missing files are ignored.
func DeleteRefinements(dir string) error {
	var paths []string
	for _, name := range []string{PartGridFile, SupportGridFile} {
		matches, err := filepath.Glob(filepath.Join(dir, "Gen*", name))
		if err != nil {
			return err
		}
		paths = append(paths, matches...)
	}
	paths = append(paths, filepath.Join(dir, ResultsFile))
	return removeAll(paths...)
}

// removeAll removes each path, ignoring those that do not exist.
func removeAll(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Record converts a result into its stored form.
func (r Result) Record(opts Options) store.Record {
	rec := store.Record{
		Index:      r.Index,
		Name:       r.Name,
		Resolution: opts.Resolution,
		Elapsed:    r.Elapsed.Seconds(),
	}
	if r.Failed() {
		rec.Error = r.Err.Error()
		return rec
	}
	rec.PartVoxels = r.PartVoxels
	rec.PartVolume = r.PartVolume
	rec.SupportVoxels = r.SupportVoxels
	rec.SupportVolume = r.SupportVolume
	rec.SupportRatio = r.SupportRatio
	rec.HasSupport = r.Support != nil
	return rec
}

// Persist stores every result and its grids in s.
func Persist(s *store.ResultStore, opts Options, results []Result) error {
	for _, res := range results {
		if err := s.Put(res.Record(opts), res.Part, res.Support); err != nil {
			return err
		}
	}
	return nil
}
