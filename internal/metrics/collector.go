// Package metrics exposes Prometheus collectors for the graph engine.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector registers and records the service metrics.
type Collector struct {
	logger *slog.Logger

	// Request metrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	// Graph construction metrics
	subgraphBuildsTotal   *prometheus.CounterVec
	subgraphBuildDuration prometheus.Histogram
	subgraphSize          prometheus.Histogram

	// Analytics metrics
	analysisRunsTotal  *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	analysisJobsActive prometheus.Gauge

	// Resolution metrics
	resolutionRunsTotal  *prometheus.CounterVec
	aiFallbacksTotal     prometheus.Counter
	eventsPublishedTotal *prometheus.CounterVec
}

// NewCollector creates a collector with all metrics registered on the
// default registry.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{
		logger: logger,

		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_engine_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graph_engine_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		requestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "graph_engine_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		subgraphBuildsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_engine_subgraph_builds_total",
				Help: "Total number of subgraph constructions",
			},
			[]string{"status"},
		),
		subgraphBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graph_engine_subgraph_build_duration_seconds",
				Help:    "Subgraph construction duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		subgraphSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "graph_engine_subgraph_size_nodes",
				Help:    "Number of nodes in constructed subgraphs",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		analysisRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_engine_analysis_runs_total",
				Help: "Total number of graph analysis runs",
			},
			[]string{"operation", "status"},
		),
		analysisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graph_engine_analysis_duration_seconds",
				Help:    "Graph analysis duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		analysisJobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "graph_engine_analysis_jobs_active",
				Help: "Number of analysis jobs currently running",
			},
		),

		resolutionRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_engine_resolution_runs_total",
				Help: "Total number of entity resolution runs",
			},
			[]string{"mode", "status"},
		),
		aiFallbacksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "graph_engine_resolution_ai_fallbacks_total",
				Help: "Total number of AI resolutions that fell back to string matching",
			},
		),
		eventsPublishedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_engine_resolution_events_published_total",
				Help: "Total number of resolution events published",
			},
			[]string{"status"},
		),
	}
}

// RecordRequest records one completed HTTP request.
func (c *Collector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, endpoint, status).Inc()
	c.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RequestStarted marks a request in flight; the returned function marks it
// finished.
func (c *Collector) RequestStarted() func() {
	c.requestsInFlight.Inc()
	return c.requestsInFlight.Dec
}

// RecordSubgraphBuild records one subgraph construction.
func (c *Collector) RecordSubgraphBuild(nodes int, duration time.Duration, err error) {
	c.subgraphBuildsTotal.WithLabelValues(statusLabel(err)).Inc()
	if err == nil {
		c.subgraphBuildDuration.Observe(duration.Seconds())
		c.subgraphSize.Observe(float64(nodes))
	}
}

// RecordAnalysis records one analytics run.
func (c *Collector) RecordAnalysis(operation string, duration time.Duration, err error) {
	c.analysisRunsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	if err == nil {
		c.analysisDuration.WithLabelValues(operation).Observe(duration.Seconds())
	}
}

// AnalysisJobStarted marks an analysis job active; the returned function
// marks it finished.
func (c *Collector) AnalysisJobStarted() func() {
	c.analysisJobsActive.Inc()
	return c.analysisJobsActive.Dec
}

// RecordResolution records one resolution run.
func (c *Collector) RecordResolution(mode string, err error) {
	c.resolutionRunsTotal.WithLabelValues(mode, statusLabel(err)).Inc()
}

// RecordAIFallback records one fallback from the AI path.
func (c *Collector) RecordAIFallback() {
	c.aiFallbacksTotal.Inc()
}

// RecordEventPublished records one resolution event publish attempt.
func (c *Collector) RecordEventPublished(err error) {
	c.eventsPublishedTotal.WithLabelValues(statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
