package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "userindex"

// Metrics holds the Prometheus collectors. All methods are safe on a nil
// receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	IngestRuns      *prometheus.CounterVec
	IngestAttempts  *prometheus.CounterVec
	IngestDuration  prometheus.Histogram
	RecordsSkipped  prometheus.Counter
	UsersLoaded     prometheus.Gauge
	SearchDuration  *prometheus.HistogramVec
	LookupsTotal    *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheInvalidate prometheus.Counter
}

// NewMetrics creates the collectors and registers them, along with the Go
// and process collectors, on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		IngestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "runs_total",
				Help:      "Ingestion runs by outcome (success, failed, rejected)",
			},
			[]string{"outcome"},
		),

		IngestAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "attempts_total",
				Help:      "Source fetch attempts by outcome (success, retryable, fatal)",
			},
			[]string{"outcome"},
		),

		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "duration_seconds",
				Help:      "Ingestion run duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),

		RecordsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "records_skipped_total",
				Help:      "Raw records dropped by the transformer",
			},
		),

		UsersLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "users",
				Help:      "Users in the current generation",
			},
		),

		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "duration_seconds",
				Help:      "Search latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),

		LookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lookup",
				Name:      "total",
				Help:      "Point lookups by key and outcome (found, not_found)",
			},
			[]string{"key", "outcome"},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Cache hits by keyspace",
			},
			[]string{"keyspace"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Cache misses by keyspace",
			},
			[]string{"keyspace"},
		),

		CacheInvalidate: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "invalidations_total",
				Help:      "Wholesale cache invalidations",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.IngestRuns,
		m.IngestAttempts,
		m.IngestDuration,
		m.RecordsSkipped,
		m.UsersLoaded,
		m.SearchDuration,
		m.LookupsTotal,
		m.CacheHits,
		m.CacheMisses,
		m.CacheInvalidate,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordIngestRun counts a finished run and its duration.
func (m *Metrics) RecordIngestRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestRuns.WithLabelValues(outcome).Inc()
	if outcome != "rejected" {
		m.IngestDuration.Observe(d.Seconds())
	}
}

// RecordIngestAttempt counts one source fetch attempt.
func (m *Metrics) RecordIngestAttempt(outcome string) {
	if m == nil {
		return
	}
	m.IngestAttempts.WithLabelValues(outcome).Inc()
}

// RecordSkipped adds n dropped records.
func (m *Metrics) RecordSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsSkipped.Add(float64(n))
}

// SetUsers sets the size of the current generation.
func (m *Metrics) SetUsers(n int) {
	if m == nil {
		return
	}
	m.UsersLoaded.Set(float64(n))
}

// RecordSearch observes one search latency.
func (m *Metrics) RecordSearch(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordLookup counts one point lookup.
func (m *Metrics) RecordLookup(key string, found bool) {
	if m == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	m.LookupsTotal.WithLabelValues(key, outcome).Inc()
}

// RecordCacheHit counts a hit in keyspace.
func (m *Metrics) RecordCacheHit(keyspace string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(keyspace).Inc()
}

// RecordCacheMiss counts a miss in keyspace.
func (m *Metrics) RecordCacheMiss(keyspace string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(keyspace).Inc()
}

// RecordCacheInvalidation counts a wholesale invalidation.
func (m *Metrics) RecordCacheInvalidation() {
	if m == nil {
		return
	}
	m.CacheInvalidate.Inc()
}
