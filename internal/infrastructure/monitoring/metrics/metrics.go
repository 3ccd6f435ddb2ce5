// Package metrics exposes the backend's Prometheus instrumentation: dataset
// load timing, query counters by kind, result-cache effectiveness and HTTP
// request durations.  A single Collector owns its own registry so tests can
// construct isolated instances.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query kinds used as the "kind" label of the query counters.
const (
	QueryKindRows         = "rows"
	QueryKindAggregates   = "aggregates"
	QueryKindMetadata     = "metadata"
	QueryKindDistribution = "distribution"
)

// Cache slot names used as the "slot" label of the cache counters.
const (
	SlotPrimary  = "primary"
	SlotOverview = "overview"
)

// Collector bundles all Prometheus collectors of the backend.
type Collector struct {
	registry *prometheus.Registry

	datasetLoadSeconds prometheus.Histogram
	datasetRows        prometheus.Gauge
	queriesTotal       *prometheus.CounterVec
	queryFailuresTotal *prometheus.CounterVec
	cacheHitsTotal     *prometheus.CounterVec
	cacheMissesTotal   *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewCollector constructs a Collector with a private registry that also
// carries the standard Go runtime and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		datasetLoadSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carsigef",
			Name:      "dataset_load_seconds",
			Help:      "Wall time of a full dataset load (resolve, parse, enrich).",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		datasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "carsigef",
			Name:      "dataset_rows",
			Help:      "Row count of the loaded relation.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsigef",
			Name:      "queries_total",
			Help:      "Queries executed against the embedded engine, by kind.",
		}, []string{"kind"}),
		queryFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsigef",
			Name:      "query_failures_total",
			Help:      "Engine query failures, by kind.",
		}, []string{"kind"}),
		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsigef",
			Name:      "result_cache_hits_total",
			Help:      "Result-cache hits, by slot.",
		}, []string{"slot"}),
		cacheMissesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsigef",
			Name:      "result_cache_misses_total",
			Help:      "Result-cache misses (recomputations), by slot.",
		}, []string{"slot"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carsigef",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method, route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	c.registry.MustRegister(
		c.datasetLoadSeconds,
		c.datasetRows,
		c.queriesTotal,
		c.queryFailuresTotal,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.httpDuration,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveDatasetLoad records the duration of a completed load and the
// resulting row count.
func (c *Collector) ObserveDatasetLoad(d time.Duration, rows int64) {
	c.datasetLoadSeconds.Observe(d.Seconds())
	c.datasetRows.Set(float64(rows))
}

// IncQuery counts one executed query of the given kind.
func (c *Collector) IncQuery(kind string) {
	c.queriesTotal.WithLabelValues(kind).Inc()
}

// IncQueryFailure counts one failed query of the given kind.
func (c *Collector) IncQueryFailure(kind string) {
	c.queryFailuresTotal.WithLabelValues(kind).Inc()
}

// IncCacheHit counts one result-cache hit for the given slot.
func (c *Collector) IncCacheHit(slot string) {
	c.cacheHitsTotal.WithLabelValues(slot).Inc()
}

// IncCacheMiss counts one result-cache miss for the given slot.
func (c *Collector) IncCacheMiss(slot string) {
	c.cacheMissesTotal.WithLabelValues(slot).Inc()
}

// ObserveHTTP records one served HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
