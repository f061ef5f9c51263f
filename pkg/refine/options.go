package refine

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"
)

// DefaultJobTimeout bounds one generation's refinement.
const DefaultJobTimeout = 2 * time.Minute

// Options configures refinement of a batch of generations.
type Options struct {
	// Resolution is the voxel count per unit length.
	Resolution float64
	// BuildVolume enables the part voxel count and volume metrics.
	BuildVolume bool
	// SupportStructure enables support synthesis and its metrics.
	SupportStructure bool
	// MirrorY flips grids along y before support synthesis and export,
	// for consumers that expect a left-handed (x, y, z) layout.
	MirrorY bool
	// Workers bounds concurrently running jobs.
	Workers int
	// JobTimeout bounds each job; a job that exceeds it fails with
	// ErrJobTimeout. Its computation stops at the next layer boundary and
	// keeps its worker until then.
	JobTimeout time.Duration
}

// DefaultOptions returns resolution 1, both metrics on, one worker per
// CPU and DefaultJobTimeout.
func DefaultOptions() Options {
	return Options{
		Resolution:       1,
		BuildVolume:      true,
		SupportStructure: true,
		Workers:          runtime.GOMAXPROCS(0),
		JobTimeout:       DefaultJobTimeout,
	}
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	if !(o.Resolution > 0) || math.IsInf(o.Resolution, 0) {
		return fmt.Errorf("refine: resolution must be positive and finite, got %v", o.Resolution)
	}
	if !o.BuildVolume && !o.SupportStructure {
		return errors.New("refine: nothing to compute: enable build volume or support structure")
	}
	if o.Workers < 1 {
		return fmt.Errorf("refine: workers must be at least 1, got %d", o.Workers)
	}
	if o.JobTimeout <= 0 {
		return fmt.Errorf("refine: job timeout must be positive, got %s", o.JobTimeout)
	}
	return nil
}
