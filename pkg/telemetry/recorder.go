// Package telemetry records pipeline run metrics in a Prometheus registry
// and writes them to a node-exporter textfile.
package telemetry

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// Stage outcome label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Recorder owns a private registry so that several runs in one process
// (watch mode, tests) never collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration     *prometheus.HistogramVec
	stageRuns         *prometheus.CounterVec
	rows              *prometheus.GaugeVec
	features          prometheus.Gauge
	unknownCategories *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec
	lastSuccess       prometheus.Gauge
}

// NewRecorder creates a Recorder with all pipeline metrics registered.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elecbill_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage", "status"},
		),
		stageRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elecbill_stage_runs_total",
				Help: "Total number of pipeline stage executions",
			},
			[]string{"stage", "status"},
		),
		rows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "elecbill_split_rows",
				Help: "Number of rows in each data split of the last run",
			},
			[]string{"split"},
		),
		features: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "elecbill_transformed_features",
				Help: "Number of output columns of the fitted preprocessor",
			},
		),
		unknownCategories: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elecbill_unknown_categories_total",
				Help: "Categories seen at transform time that were absent during fit",
			},
			[]string{"column"},
		),
		errorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elecbill_error_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"type", "component"},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "elecbill_last_success_timestamp_seconds",
				Help: "Unix time of the last successful pipeline run",
			},
		),
	}
}

// Registry exposes the underlying registry, e.g. for testutil.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveStage records one stage execution.
func (r *Recorder) ObserveStage(stage string, d time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	labels := prometheus.Labels{"stage": stage, "status": status}
	r.stageDuration.With(labels).Observe(d.Seconds())
	r.stageRuns.With(labels).Inc()
}

// SetRows records the row count of a split ("raw", "train", "test").
func (r *Recorder) SetRows(split string, n int) {
	r.rows.WithLabelValues(split).Set(float64(n))
}

// SetFeatures records the transformed column count.
func (r *Recorder) SetFeatures(n int) {
	r.features.Set(float64(n))
}

// AddUnknownCategories counts unseen categories for column.
func (r *Recorder) AddUnknownCategories(column string, n int) {
	r.unknownCategories.WithLabelValues(column).Add(float64(n))
}

// RecordError counts an error by type and component.
func (r *Recorder) RecordError(errType, component string) {
	r.errorCounter.WithLabelValues(errType, component).Inc()
}

// MarkSuccess stamps the time of a successful run.
func (r *Recorder) MarkSuccess(t time.Time) {
	r.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes every metric in the text exposition format to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewPersistenceError("mkdir", filepath.Dir(path), err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.NewPersistenceError("write", path, err)
	}
	return nil
}
