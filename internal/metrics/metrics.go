// Package metrics instruments grid cells and orchestration runs with
// Prometheus collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stages of cell work
const (
	StageTrain   = "train"
	StagePredict = "predict"
)

// Cell outcomes
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Recorder holds the collectors for one registry
type Recorder struct {
	cells        *prometheus.CounterVec
	cellDuration *prometheus.HistogramVec
	inflight     *prometheus.GaugeVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default registerer. Collectors already registered under the same
// names are reused, so several runs in one process share them.
func New(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Recorder{
		cells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cells_total",
			Help:      "Grid cells processed, by stage, model and outcome.",
		}, []string{"stage", "model", "status"}),
		cellDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grid_cell_duration_seconds",
			Help:      "Wall time of one cell's train or predict call.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage", "model"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grid_cells_inflight",
			Help:      "Cells currently running.",
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs, by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full orchestration run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}

	var err error
	if r.cells, err = register(reg, r.cells); err != nil {
		return nil, err
	}
	if r.cellDuration, err = register(reg, r.cellDuration); err != nil {
		return nil, err
	}
	if r.inflight, err = register(reg, r.inflight); err != nil {
		return nil, err
	}
	if r.runs, err = register(reg, r.runs); err != nil {
		return nil, err
	}
	if r.runDuration, err = register(reg, r.runDuration); err != nil {
		return nil, err
	}
	return r, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// CellStarted marks a cell as running
func (r *Recorder) CellStarted(stage string) {
	if r == nil {
		return
	}
	r.inflight.WithLabelValues(stage).Inc()
}

// CellFinished records the outcome and duration of a cell
func (r *Recorder) CellFinished(stage, model, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.inflight.WithLabelValues(stage).Dec()
	r.cells.WithLabelValues(stage, model, status).Inc()
	r.cellDuration.WithLabelValues(stage, model).Observe(d.Seconds())
}

// CellSkipped records a cell that was never started
func (r *Recorder) CellSkipped(stage, model string) {
	if r == nil {
		return
	}
	r.cells.WithLabelValues(stage, model, StatusSkipped).Inc()
}

// RunFinished records a completed orchestration run
func (r *Recorder) RunFinished(status string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(d.Seconds())
}
