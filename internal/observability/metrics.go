// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cycle status label values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the collector.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	// Snapshot metrics
	SnapshotsInserted prometheus.Counter
	SnapshotsIgnored  prometheus.Counter

	// Derived metrics
	DerivedRowsWritten  prometheus.Counter
	CalculationFailures prometheus.Counter
	MirrorFailures      prometheus.Counter

	// Upstream metrics
	FetchDuration *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "railway_template_metrics"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycles_total",
			Help:      "Total number of collection cycles by status",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycle_duration_seconds",
			Help:      "Collection cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		SnapshotsInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "inserted_total",
			Help:      "Total number of template snapshot rows inserted",
		}),
		SnapshotsIgnored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "ignored_total",
			Help:      "Total number of template snapshot rows skipped as duplicates",
		}),

		DerivedRowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "rows_written_total",
			Help:      "Total number of derived metrics rows written",
		}),
		CalculationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "calculation_failures_total",
			Help:      "Total number of failed derived metrics calculations",
		}),
		MirrorFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "derived",
			Name:      "mirror_failures_total",
			Help:      "Total number of failed writes to the analytics mirror",
		}),

		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		LastSuccessfulCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful collection cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns an HTTP handler serving the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordCycle records the outcome and duration of one cycle.
func (m *Metrics) RecordCycle(status string, duration time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	if status == StatusSkipped {
		return
	}
	m.CycleDuration.Observe(duration.Seconds())
	if status == StatusSuccess {
		m.LastSuccessfulCycle.Set(float64(finishedAt.Unix()))
	}
}

// RecordSnapshots records the outcome of one template batch write.
func (m *Metrics) RecordSnapshots(inserted, ignored int) {
	if m == nil {
		return
	}
	m.SnapshotsInserted.Add(float64(inserted))
	m.SnapshotsIgnored.Add(float64(ignored))
}

// RecordDerived records the outcome of one derived metrics calculation.
func (m *Metrics) RecordDerived(rows int, err, mirrorErr error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CalculationFailures.Inc()
		return
	}
	m.DerivedRowsWritten.Add(float64(rows))
	if mirrorErr != nil {
		m.MirrorFailures.Inc()
	}
}

// RecordFetch records upstream fetch latency.
func (m *Metrics) RecordFetch(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}
