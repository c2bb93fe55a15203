// Package metrics collects per-run Prometheus metrics and writes them to a
// node-exporter textfile when the run ends.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pxsubmit"

// Recorder holds the metrics of one run. A nil Recorder ignores all calls.
type Recorder struct {
	registry *prometheus.Registry

	units       prometheus.Counter
	files       *prometheus.CounterVec
	fetches     *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	validations *prometheus.CounterVec
	validTime   prometheus.Histogram
	transfers   *prometheus.CounterVec
	runTime     prometheus.Histogram
	lastRun     *prometheus.GaugeVec
}

// New registers a fresh metric set on its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		units: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Preparations with proteomes processed.",
		}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_files_total",
			Help:      "Rows added to the file mapping table by type.",
		}, []string{"type"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Files resolved by scheme and whether they were downloaded or reused.",
		}, []string{"scheme", "outcome"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent downloading a single file.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 4, 8),
		}, []string{"scheme"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Converter validations by outcome.",
		}, []string{"outcome"}),
		validTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating a result/peak pair.",
			Buckets:   prometheus.ExponentialBuckets(1, 3, 8),
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Submission uploads by outcome.",
		}, []string{"outcome"}),
		runTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run.",
			Buckets:   prometheus.ExponentialBuckets(10, 3, 8),
		}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run for the study succeeded, 0 otherwise.",
		}, []string{"study"}),
	}
	r.registry.MustRegister(r.units, r.files, r.fetches, r.fetchTime, r.validations,
		r.validTime, r.transfers, r.runTime, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) UnitProcessed() {
	if r == nil {
		return
	}
	r.units.Inc()
}

func (r *Recorder) FileRecorded(fileType string) {
	if r == nil {
		return
	}
	r.files.WithLabelValues(fileType).Inc()
}

// Fetch records one resolved file. Reused files do not observe a duration.
func (r *Recorder) Fetch(scheme string, fetched bool, d time.Duration) {
	if r == nil {
		return
	}
	if !fetched {
		r.fetches.WithLabelValues(scheme, "reused").Inc()
		return
	}
	r.fetches.WithLabelValues(scheme, "downloaded").Inc()
	r.fetchTime.WithLabelValues(scheme).Observe(d.Seconds())
}

func (r *Recorder) Validation(ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.validations.WithLabelValues(outcome(ok)).Inc()
	r.validTime.Observe(d.Seconds())
}

func (r *Recorder) Transfer(status string) {
	if r == nil {
		return
	}
	r.transfers.WithLabelValues(status).Inc()
}

func (r *Recorder) RunFinished(studyID string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	r.runTime.Observe(d.Seconds())
	value := 0.0
	if ok {
		value = 1
	}
	r.lastRun.WithLabelValues(studyID).Set(value)
}

// WriteTextfile writes the registry to path for the node exporter textfile
// collector. An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
