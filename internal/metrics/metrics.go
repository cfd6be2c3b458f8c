// Package metrics exposes the brain's Prometheus collectors on a private
// registry so tests can create as many instances as they like.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brain"

// Error kinds reported through ObserveError.
const (
	ErrEmbedding = "embedding"
	ErrVector    = "vector"
	ErrStore     = "store"
	ErrCache     = "cache"
	ErrIngest    = "ingest"
	ErrPanic     = "panic"
)

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	thinkDuration *prometheus.HistogramVec
	learns        *prometheus.CounterVec
	forgets       prometheus.Counter
	ingestPairs   *prometheus.CounterVec
	errors        *prometheus.CounterVec
	knowledgeSize prometheus.Gauge
	cacheSize     prometheus.Gauge
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Questions answered, by the tier that produced the answer.",
		}, []string{"match_type"}),
		thinkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "think_duration_seconds",
			Help:      "Time spent answering a question.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"match_type"}),
		learns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "learn_total",
			Help:      "Learn operations, split into created and updated entries.",
		}, []string{"result"}),
		forgets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forget_total",
			Help:      "Entries soft-deleted.",
		}),
		ingestPairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_pairs_total",
			Help:      "Question/answer pairs seen during document ingestion.",
		}, []string{"outcome"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors that were absorbed or returned, by subsystem.",
		}, []string{"kind"}),
		knowledgeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "knowledge_entries",
			Help:      "Active knowledge entries held in memory.",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Answers currently held in the local cache.",
		}),
	}
	reg.MustRegister(
		m.queries, m.thinkDuration, m.learns, m.forgets,
		m.ingestPairs, m.errors, m.knowledgeSize, m.cacheSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery records one answered question. A nil receiver is a no-op,
// as with every method below.
func (m *Metrics) ObserveQuery(matchType string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(matchType).Inc()
	m.thinkDuration.WithLabelValues(matchType).Observe(d.Seconds())
}

func (m *Metrics) ObserveLearn(created bool) {
	if m == nil {
		return
	}
	result := "updated"
	if created {
		result = "created"
	}
	m.learns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveForget() {
	if m == nil {
		return
	}
	m.forgets.Inc()
}

func (m *Metrics) ObserveIngest(learned, failed int) {
	if m == nil {
		return
	}
	m.ingestPairs.WithLabelValues("learned").Add(float64(learned))
	m.ingestPairs.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetKnowledgeSize(n int) {
	if m == nil {
		return
	}
	m.knowledgeSize.Set(float64(n))
}

func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}
