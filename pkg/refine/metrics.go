package refine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Job status label values.
const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusTimeout = "timeout"
)

// Metrics holds the prometheus collectors updated by a Runner. A nil
// *Metrics records nothing.
type Metrics struct {
	jobs    *prometheus.CounterVec
	seconds prometheus.Histogram
	voxels  *prometheus.CounterVec
}

// NewMetrics creates the refinement collectors and registers them on reg.
// Collectors already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amgen",
			Subsystem: "refine",
			Name:      "jobs_total",
			Help:      "Refinement jobs by final status.",
		}, []string{"status"}),
		seconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amgen",
			Subsystem: "refine",
			Name:      "job_seconds",
			Help:      "Wall time of refinement jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		voxels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amgen",
			Subsystem: "refine",
			Name:      "voxels_total",
			Help:      "Voxels produced by successful jobs, by kind.",
		}, []string{"kind"}),
	}

	var err error
	if m.jobs, err = register(reg, m.jobs); err != nil {
		return nil, err
	}
	if m.seconds, err = register(reg, m.seconds); err != nil {
		return nil, err
	}
	if m.voxels, err = register(reg, m.voxels); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c on reg. If an equal collector is already
// registered, that one is returned instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if reg == nil {
		return c, nil
	}
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *Metrics) observe(res Result) {
	if m == nil {
		return
	}
	status := statusOK
	switch {
	case errors.Is(res.Err, ErrJobTimeout):
		status = statusTimeout
	case res.Err != nil:
		status = statusFailed
	}
	m.jobs.WithLabelValues(status).Inc()
	m.seconds.Observe(res.Elapsed.Seconds())
	if res.Err == nil {
		m.voxels.WithLabelValues("part").Add(float64(res.PartVoxels))
		m.voxels.WithLabelValues("support").Add(float64(res.SupportVoxels))
	}
}
