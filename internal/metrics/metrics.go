// Package metrics collects per-run counters and exports them in the
// node-exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for component counts
const (
	OutcomeBuilt  = "built"
	OutcomeReused = "reused"
)

// Run holds the metrics of one invocation
type Run struct {
	registry *prometheus.Registry

	Components      *prometheus.CounterVec
	ExternalBuilds  prometheus.Counter
	SnapshotChanged prometheus.Gauge
	Duration        *prometheus.GaugeVec
	LastSuccess     *prometheus.GaugeVec
}

// New creates the metrics of a run on a private registry
func New() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		Components: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdgo_components_total",
				Help: "Number of components handled by the build, by outcome.",
			},
			[]string{"outcome"},
		),
		ExternalBuilds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rdgo_external_builds_total",
				Help: "Number of batch builds started.",
			},
		),
		SnapshotChanged: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rdgo_snapshot_changed",
				Help: "1 if the last resolve promoted a new snapshot.",
			},
		),
		Duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rdgo_run_duration_seconds",
				Help: "Wall time of the last run, by command.",
			},
			[]string{"command"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "rdgo_last_success_timestamp_seconds",
				Help: "Unix time of the last successful run, by command.",
			},
			[]string{"command"},
		),
	}

	r.registry.MustRegister(r.Components, r.ExternalBuilds, r.SnapshotChanged, r.Duration, r.LastSuccess)

	return r
}

// Built counts a rebuilt component
func (r *Run) Built() {
	r.Components.WithLabelValues(OutcomeBuilt).Inc()
}

// Reused counts a component carried over from the previous generation
func (r *Run) Reused() {
	r.Components.WithLabelValues(OutcomeReused).Inc()
}

// Finished records a successful run of command that started at start
func (r *Run) Finished(command string, start, end time.Time) {
	r.Duration.WithLabelValues(command).Set(end.Sub(start).Seconds())
	r.LastSuccess.WithLabelValues(command).Set(float64(end.Unix()))
}

// Gatherer exposes the registry
func (r *Run) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile writes the metrics to path for the node-exporter textfile
// collector. An empty path is a no-op.
func (r *Run) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}

	return prometheus.WriteToTextfile(path, r.registry)
}
