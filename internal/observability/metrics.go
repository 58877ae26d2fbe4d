// Package observability provides Prometheus metrics for newsblend.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace is the namespace for all newsblend metrics.
const MetricsNamespace = "newsblend"

// Outcome labels shared by several metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Aggregation metrics
	AggregatorSourceTotal    *prometheus.CounterVec
	AggregatorSourceDuration *prometheus.HistogramVec
	AggregatorItems          prometheus.Gauge

	// Scraper metrics
	ScrapeSourceTotal *prometheus.CounterVec
	ScrapeSourceItems *prometheus.CounterVec

	// Scheduler metrics
	ScrapeRunsTotal   *prometheus.CounterVec
	ScrapeRunDuration prometheus.Histogram
	UpsertsTotal      *prometheus.CounterVec
	ScrapeRunning     prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewRegistry returns a registry with the Go runtime and process collectors
// registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g in the exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewMetrics creates and registers all metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initAggregatorMetrics(factory)
	m.initScraperMetrics(factory)
	m.initSchedulerMetrics(factory)
	m.initHTTPMetrics(factory)

	return m
}

func (m *Metrics) initAggregatorMetrics(factory promauto.Factory) {
	m.AggregatorSourceTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "aggregator",
			Name:      "source_fetches_total",
			Help:      "Content source fetches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	m.AggregatorSourceDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "aggregator",
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of content source fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	m.AggregatorItems = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "aggregator",
			Name:      "combined_items",
			Help:      "Number of items in the last combined feed",
		},
	)
}

func (m *Metrics) initScraperMetrics(factory promauto.Factory) {
	m.ScrapeSourceTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scraper",
			Name:      "source_scrapes_total",
			Help:      "Source scrapes by source, strategy and outcome",
		},
		[]string{"source", "strategy", "outcome"},
	)

	m.ScrapeSourceItems = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scraper",
			Name:      "items_total",
			Help:      "Items extracted per source",
		},
		[]string{"source"},
	)
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.ScrapeRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scrape runs by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	m.ScrapeRunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Duration of scrape runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~3.4min
		},
	)

	m.UpsertsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "upserts_total",
			Help:      "Store upserts by outcome",
		},
		[]string{"outcome"},
	)

	m.ScrapeRunning = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "run_in_progress",
			Help:      "1 while a scrape run is in progress",
		},
	)

	m.LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: "scheduler",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last finished scrape run",
		},
	)
}

func (m *Metrics) initHTTPMetrics(factory promauto.Factory) {
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
}

// ObserveAggregatorSource records one content source fetch.
func (m *Metrics) ObserveAggregatorSource(source string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.AggregatorSourceTotal.WithLabelValues(source, outcome(err)).Inc()
	m.AggregatorSourceDuration.WithLabelValues(source).Observe(d.Seconds())
}

// SetCombinedItems records the size of the last combined feed.
func (m *Metrics) SetCombinedItems(n int) {
	if m == nil {
		return
	}
	m.AggregatorItems.Set(float64(n))
}

// ObserveScrapeSource records one source scrape.
func (m *Metrics) ObserveScrapeSource(source, strategy string, items int, err error) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "none"
	}
	m.ScrapeSourceTotal.WithLabelValues(source, strategy, outcome(err)).Inc()
	m.ScrapeSourceItems.WithLabelValues(source).Add(float64(items))
}

// ObserveScrapeRun records a finished scrape run.
func (m *Metrics) ObserveScrapeRun(trigger string, err error, d time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.ScrapeRunsTotal.WithLabelValues(trigger, outcome(err)).Inc()
	m.ScrapeRunDuration.Observe(d.Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}

// SkipScrapeRun records a run refused because another one was in progress.
func (m *Metrics) SkipScrapeRun(trigger string) {
	if m == nil {
		return
	}
	m.ScrapeRunsTotal.WithLabelValues(trigger, OutcomeSkipped).Inc()
}

// SetScrapeRunning toggles the in-progress gauge.
func (m *Metrics) SetScrapeRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.ScrapeRunning.Set(1)
		return
	}
	m.ScrapeRunning.Set(0)
}

// ObserveUpsert records one store upsert.
func (m *Metrics) ObserveUpsert(result string) {
	if m == nil {
		return
	}
	m.UpsertsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
