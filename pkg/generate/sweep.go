package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chazu/amgen/pkg/engine"
	"github.com/chazu/amgen/pkg/kernel"
	"github.com/chazu/amgen/pkg/logging"
	"github.com/chazu/amgen/pkg/meshio"
	"github.com/chazu/amgen/pkg/tessellate"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ErrNoSolid is returned for a template that builds nothing.
var ErrNoSolid = errors.New("template defines no solid")

// Options configures a sweep.
type Options struct {
	// Count is the number of generations to produce.
	Count int
	// Seed seeds the sampler. Zero picks a random seed.
	Seed uint64
	// Format is the mesh file extension, ".stl" (default) or ".3mf".
	Format string
}

func (o Options) format() string {
	if o.Format == "" {
		return ".stl"
	}
	return strings.ToLower(o.Format)
}

// Generation is the outcome of one generation of a sweep.
type Generation struct {
	Index     int
	Name      string
	Path      string
	Params    map[string]float64
	Triangles int
	Err       error
}

// Failed reports whether the generation produced no mesh.
func (g Generation) Failed() bool {
	return g.Err != nil
}

// Generator evaluates a part template into generation meshes.
type Generator struct {
	kernel kernel.Kernel
	engine *engine.Engine
}

// New returns a Generator building solids with k.
func New(k kernel.Kernel, opts ...engine.Option) *Generator {
	return &Generator{kernel: k, engine: engine.NewEngine(k, opts...)}
}

// Sweep produces opts.Count generations of template in dir, numbered
// from 0, and writes their parameter values to GeneratedFile. A
// generation that fails is recorded and the sweep continues; its values
// are still written so rows stay aligned with generation indices. A
// cancelled sweep writes the values of the generations it finished.
func (g *Generator) Sweep(ctx context.Context, dir, template string, ranges []Range, opts Options) ([]Generation, error) {
	if opts.Count < 1 {
		return nil, fmt.Errorf("generate: count must be at least 1, got %d", opts.Count)
	}
	ext := opts.format()
	if ext != ".stl" && ext != ".3mf" {
		return nil, fmt.Errorf("generate: %q: %w", opts.Format, meshio.ErrUnsupportedFormat)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	log := logging.Logger().With("run", uuid.NewString())
	log.Info("generation sweep started", "count", opts.Count, "params", len(ranges), "seed", seed)
	start := time.Now()

	values := &Values{Names: Names(ranges)}
	gens := make([]Generation, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			log.Warn("generation sweep cancelled", "done", len(gens), "err", err)
			if len(values.Rows) > 0 {
				err = errors.Join(err, WriteValuesFile(dir, values))
			}
			return gens, err
		}
		row := lo.Map(ranges, func(r Range, _ int) float64 { return Round(r.Sample(rng)) })
		values.Rows = append(values.Rows, row)

		gen := Generation{Index: i, Name: "Gen" + strconv.Itoa(i), Params: values.Params(i)}
		gen.Path = filepath.Join(dir, gen.Name+ext)
		gen.Triangles, gen.Err = g.build(template, gen)
		if gen.Err != nil {
			gen.Path = ""
			log.Warn("generation failed", "gen", gen.Name, "err", gen.Err)
		} else {
			log.Debug("generation written", "gen", gen.Name, "triangles", gen.Triangles)
		}
		gens = append(gens, gen)
	}

	if err := WriteValuesFile(dir, values); err != nil {
		return gens, err
	}
	failed := lo.CountBy(gens, func(g Generation) bool { return g.Failed() })
	log.Info("generation sweep finished", "count", len(gens), "failed", failed, "elapsed", time.Since(start))
	return gens, nil
}

// build evaluates the template for one generation and writes its mesh.
func (g *Generator) build(template string, gen Generation) (int, error) {
	model, evalErrs, err := g.engine.Evaluate(template, gen.Params)
	if err != nil {
		return 0, err
	}
	if len(evalErrs) > 0 {
		return 0, errors.Join(lo.Map(evalErrs, func(e engine.EvalError, _ int) error { return e })...)
	}
	if model.IsEmpty() {
		return 0, ErrNoSolid
	}
	mesh, err := tessellate.Merged(model, g.kernel, gen.Name)
	if err != nil {
		return 0, err
	}
	if err := meshio.Save(gen.Path, mesh); err != nil {
		return 0, err
	}
	return mesh.TriangleCount(), nil
}

// genFilePattern matches the files and directories a sweep or its
// refinement leaves behind.
var genFilePattern = regexp.MustCompile(`^Gen\d+((?i:\.stl|\.3mf))?$`)

// DeleteGenerations removes every generation mesh, every generation
// directory and GeneratedFile from dir.
func DeleteGenerations(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if !genFilePattern.MatchString(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(filepath.Join(dir, GeneratedFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
