// Package metrics holds the Prometheus instrumentation for the
// detection-to-incident pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the counters and gauges emitted by one pipeline instance.
type Metrics struct {
	TickDuration      prometheus.Histogram
	TicksSkippedTotal prometheus.Counter
	AnomaliesTotal    prometheus.Counter
	IncidentsTotal    prometheus.Counter
	DedupSuppressions prometheus.Counter
	NotifierFailures  *prometheus.CounterVec
	IncidentsTracked  prometheus.Gauge
}

// New creates and registers the pipeline's Prometheus metrics.
// instanceName distinguishes metrics when more than one pipeline instance
// shares a registry, mirroring the corpus's ConstLabels convention.
func New(reg prometheus.Registerer, instanceName string) *Metrics {
	labels := prometheus.Labels{"instance": instanceName}

	m := &Metrics{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "sentinelops_tick_duration_seconds",
			Help:        "Duration of a single detection-to-incident tick",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		TicksSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sentinelops_ticks_skipped_total",
			Help:        "Ticks skipped because the previous tick was still running",
			ConstLabels: labels,
		}),
		AnomaliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sentinelops_anomalies_detected_total",
			Help:        "Total anomalies emitted by the detector",
			ConstLabels: labels,
		}),
		IncidentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sentinelops_incidents_created_total",
			Help:        "Total incidents created",
			ConstLabels: labels,
		}),
		DedupSuppressions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "sentinelops_incident_dedup_suppressions_total",
			Help:        "Incident candidates suppressed by an active cooldown",
			ConstLabels: labels,
		}),
		NotifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "sentinelops_notifier_failures_total",
			Help:        "Notifier delivery failures by channel",
			ConstLabels: labels,
		}, []string{"channel"}),
		IncidentsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinelops_incidents_tracked",
			Help:        "Incidents currently retained in the store",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		m.TickDuration,
		m.TicksSkippedTotal,
		m.AnomaliesTotal,
		m.IncidentsTotal,
		m.DedupSuppressions,
		m.NotifierFailures,
		m.IncidentsTracked,
	)

	return m
}
