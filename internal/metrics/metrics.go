// Package metrics records lifecycle metrics of one installer run with the
// Prometheus client and writes them to a node-exporter textfile.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/ocp-installer/internal/cluster"
)

const namespace = "ocp_installer"

// Operation results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
)

// Recorder holds the metrics of one run. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	lifecycleTotal    *prometheus.CounterVec
	lifecycleDuration *prometheus.HistogramVec
	phaseDuration     *prometheus.HistogramVec
	rollbacksTotal    *prometheus.CounterVec
	uploadFailures    prometheus.Counter
	clusters          *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		lifecycleTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "total",
				Help:      "Total number of cluster lifecycles by operation, platform and result",
			},
			[]string{"operation", "platform", "result"},
		),
		lifecycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "duration_seconds",
				Help:      "Duration of cluster lifecycles in seconds",
				Buckets:   prometheus.ExponentialBuckets(30, 2, 9), // 30s to ~2h
			},
			[]string{"operation", "platform"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "phase_duration_seconds",
				Help:      "Time spent reaching each lifecycle phase in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1s to ~4.5h
			},
			[]string{"platform", "phase"},
		),
		rollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "rollbacks_total",
				Help:      "Total number of clusters destroyed by a batch rollback",
			},
			[]string{"platform"},
		),
		uploadFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "state",
				Name:      "upload_failures_total",
				Help:      "Total number of cluster archives that failed to upload",
			},
		),
		clusters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "batch",
				Name:      "clusters",
				Help:      "Clusters of the last batch by final phase",
			},
			[]string{"phase"},
		),
	}
	r.registry.MustRegister(
		r.lifecycleTotal,
		r.lifecycleDuration,
		r.phaseDuration,
		r.rollbacksTotal,
		r.uploadFailures,
		r.clusters,
	)
	return r
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Lifecycle records one finished create or destroy.
func (r *Recorder) Lifecycle(operation string, platform cluster.Platform, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.lifecycleTotal.WithLabelValues(operation, string(platform), result).Inc()
	r.lifecycleDuration.WithLabelValues(operation, string(platform)).Observe(d.Seconds())
}

// Phase records the time a cluster took to reach phase.
func (r *Recorder) Phase(platform cluster.Platform, phase cluster.Phase, d time.Duration) {
	if r == nil {
		return
	}
	r.phaseDuration.WithLabelValues(string(platform), string(phase)).Observe(d.Seconds())
}

// Rollback records a cluster destroyed by a batch rollback.
func (r *Recorder) Rollback(platform cluster.Platform) {
	if r == nil {
		return
	}
	r.rollbacksTotal.WithLabelValues(string(platform)).Inc()
}

// UploadFailed records a failed archive upload.
func (r *Recorder) UploadFailed() {
	if r == nil {
		return
	}
	r.uploadFailures.Inc()
}

// Batch sets the final phase counts of a batch.
func (r *Recorder) Batch(records []*cluster.Record) {
	if r == nil {
		return
	}
	r.clusters.Reset()
	for _, rec := range records {
		r.clusters.WithLabelValues(string(rec.Phase)).Inc()
	}
}

// WriteFile writes the metrics in the text exposition format to path,
// atomically, for the node-exporter textfile collector.
func (r *Recorder) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// ResultOf maps a lifecycle error to a result label.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, cluster.ErrTimeout):
		return ResultTimeout
	}
	return ResultFailure
}
