package refine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chazu/amgen/pkg/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner refines batches of jobs.
type Runner struct {
	opts    Options
	metrics *Metrics

	// refine is swapped in tests.
	refine func(context.Context, Job, Options) (Result, error)
}

// NewRunner validates opts and returns a Runner. metrics may be nil.
func NewRunner(opts Options, metrics *Metrics) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Runner{opts: opts, metrics: metrics, refine: refineJob}, nil
}

// Options returns the runner's options.
func (r *Runner) Options() Options {
	return r.opts
}

// Run refines jobs with at most Options.Workers in flight and returns one
// Result per job, in job order. Failures are recorded per result. The
// returned error is non-nil only when ctx ends before every job has run;
// jobs not started by then fail with ctx's error.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	log := logging.Logger().With("batch", uuid.NewString())
	log.Info("refinement started", "jobs", len(jobs), "workers", r.opts.Workers, "resolution", r.opts.Resolution)
	start := time.Now()

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Index: job.Index, Name: job.name(), Err: err}
			continue
		}
		g.Go(func() error {
			results[i] = r.runJob(ctx, log, job)
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	log.Info("refinement finished", "jobs", len(jobs), "failed", failed, "elapsed", time.Since(start))
	return results, ctx.Err()
}

// runJob refines one job in its own goroutine, bounded by the job timeout
// and ctx. A job that panics fails with the panic value. A job that times
// out or is cancelled is stopped, and runJob returns only once it has, so
// no more than Options.Workers jobs ever compute at once.
func (r *Runner) runJob(ctx context.Context, log *slog.Logger, job Job) Result {
	start := time.Now()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- Result{Err: fmt.Errorf("refine: panic: %v", p)}
			}
		}()
		res, err := r.refine(jobCtx, job, r.opts)
		if err != nil {
			res = Result{Err: err}
		}
		ch <- res
	}()

	timer := time.NewTimer(r.opts.JobTimeout)
	defer timer.Stop()

	var res Result
	select {
	case res = <-ch:
	case <-timer.C:
		cancel()
		<-ch
		res = Result{Err: fmt.Errorf("%w after %s", ErrJobTimeout, r.opts.JobTimeout)}
	case <-ctx.Done():
		<-ch
		res = Result{Err: ctx.Err()}
	}

	res.Index = job.Index
	res.Name = job.name()
	res.Elapsed = time.Since(start)
	if res.Err != nil {
		res.Part, res.Support = nil, nil
		log.Warn("refinement job failed", "gen", res.Name, "err", res.Err)
	} else {
		log.Debug("refinement job done",
			"gen", res.Name, "part_voxels", res.PartVoxels, "support_voxels", res.SupportVoxels, "elapsed", res.Elapsed)
	}
	r.metrics.observe(res)
	return res
}
