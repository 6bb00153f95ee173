// Package metrics provides Prometheus metrics export for the routing engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "myassistant"
	subsystem = "routing"
)

// PrometheusExporter exports routing metrics in Prometheus format.
// A nil *PrometheusExporter is valid and records nothing.
type PrometheusExporter struct {
	registry *prometheus.Registry

	decisions          *prometheus.CounterVec
	switches           *prometheus.CounterVec
	classifyLatency    *prometheus.HistogramVec
	generateLatency    *prometheus.HistogramVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	llmTokensUsed      *prometheus.CounterVec
	activeSessionsFunc prometheus.Collector
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decisions_total",
			Help:      "Total number of routing decisions",
		},
		[]string{"source", "state", "specialist"},
	)

	e.switches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "switches_total",
			Help:      "Total number of decisions that changed the active specialist",
		},
		[]string{"from", "to"},
	)

	e.classifyLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "classification_duration_seconds",
			Help:      "Classification call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"outcome"},
	)

	e.generateLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Generation call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"outcome"},
	)

	e.cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	e.cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "token_type"},
	)

	registry.MustRegister(
		e.decisions,
		e.switches,
		e.classifyLatency,
		e.generateLatency,
		e.cacheHits,
		e.cacheMisses,
		e.llmTokensUsed,
	)

	return e
}

// RecordDecision records one routing decision.
func (e *PrometheusExporter) RecordDecision(source, state, specialistID string) {
	if e == nil {
		return
	}
	e.decisions.WithLabelValues(source, state, specialistID).Inc()
}

// RecordSwitch records a change of active specialist.
func (e *PrometheusExporter) RecordSwitch(from, to string) {
	if e == nil {
		return
	}
	e.switches.WithLabelValues(from, to).Inc()
}

// ObserveClassification records a classification call. outcome is "ok" or
// the failure kind.
func (e *PrometheusExporter) ObserveClassification(outcome string, latency time.Duration) {
	if e == nil {
		return
	}
	e.classifyLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// ObserveGeneration records a generation call. outcome is "ok" or the
// failure kind.
func (e *PrometheusExporter) ObserveGeneration(outcome string, latency time.Duration) {
	if e == nil {
		return
	}
	e.generateLatency.WithLabelValues(outcome).Observe(latency.Seconds())
}

// RecordCacheHit records a cache hit.
func (e *PrometheusExporter) RecordCacheHit(cacheType string) {
	if e == nil {
		return
	}
	e.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (e *PrometheusExporter) RecordCacheMiss(cacheType string) {
	if e == nil {
		return
	}
	e.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(provider, tokenType string, count int) {
	if e == nil || count <= 0 {
		return
	}
	e.llmTokensUsed.WithLabelValues(provider, tokenType).Add(float64(count))
}

// TrackActiveSessions exports the live session count, read at scrape time.
// Only the first call registers the gauge.
func (e *PrometheusExporter) TrackActiveSessions(count func() int) {
	if e == nil || e.activeSessionsFunc != nil {
		return
	}
	e.activeSessionsFunc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_sessions",
			Help:      "Number of live sessions",
		},
		func() float64 { return float64(count()) },
	)
	e.registry.MustRegister(e.activeSessionsFunc)
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
