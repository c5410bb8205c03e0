package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the interpretation counters exposed on /metrics.
type Metrics struct {
	Interpretations *prometheus.CounterVec
	QCFailures      *prometheus.CounterVec
	OverrideActions *prometheus.CounterVec
	ReportCache     *prometheus.CounterVec
	Duration        prometheus.Histogram
}

// NewMetrics registers the service metrics on the given registerer.
// Production wiring passes prometheus.DefaultRegisterer; tests pass a
// fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Interpretations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nris_interpretations_total",
			Help: "Completed sample interpretations by final disposition.",
		}, []string{"disposition"}),
		QCFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nris_qc_failures_total",
			Help: "QC hard failures by remediation advice.",
		}, []string{"advice"}),
		OverrideActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nris_override_actions_total",
			Help: "Staff override actions by kind.",
		}, []string{"action"}),
		ReportCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nris_report_cache_requests_total",
			Help: "Report cache lookups by result.",
		}, []string{"result"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nris_interpretation_duration_seconds",
			Help:    "Wall-clock time spent interpreting one sample run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
