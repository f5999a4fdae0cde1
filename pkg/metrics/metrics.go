// Package metrics defines the Prometheus metric collectors used by the
// collector job and the stats service, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	PagesFetchedTotal    *prometheus.CounterVec
	RateLimitHitsTotal   prometheus.Counter
	CooldownSecondsTotal prometheus.Counter
	RecordsIngestedTotal *prometheus.CounterVec
	BucketsIngestedTotal *prometheus.CounterVec
	PartitionsTotal      *prometheus.CounterVec
	PartitionDuration    prometheus.Histogram
	RunDurationSeconds   prometheus.Gauge
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	StatsCacheHitsTotal  prometheus.Counter
	StatsCacheMissTotal  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		PagesFetchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pages_fetched_total",
				Help: "Total pages fetched from the upstream API by request kind (records, counts).",
			},
			[]string{"kind"},
		),
		RateLimitHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limit_hits_total",
				Help: "Total rate-limit responses received from the upstream API.",
			},
		),
		CooldownSecondsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cooldown_seconds_total",
				Help: "Total seconds spent waiting out rate-limit cooldowns.",
			},
		),
		RecordsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_ingested_total",
				Help: "Total raw records appended to the sink by country.",
			},
			[]string{"country"},
		),
		BucketsIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "count_buckets_ingested_total",
				Help: "Total daily count buckets appended to the sink by country.",
			},
			[]string{"country"},
		),
		PartitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "partitions_total",
				Help: "Total partitions attempted by outcome (ok, failed).",
			},
			[]string{"outcome"},
		),
		PartitionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "partition_duration_seconds",
				Help:    "Wall-clock time to collect one partition, including cooldowns.",
				Buckets: []float64{0.5, 1, 5, 15, 60, 300, 900, 1800, 3600},
			},
		),
		RunDurationSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "run_duration_seconds",
				Help: "Duration of the most recent collection run.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StatsCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stats_cache_hits_total",
				Help: "Total stats snapshot reads served from Redis.",
			},
		),
		StatsCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stats_cache_misses_total",
				Help: "Total stats snapshot reads computed from Postgres.",
			},
		),
	}

	prometheus.MustRegister(
		m.PagesFetchedTotal,
		m.RateLimitHitsTotal,
		m.CooldownSecondsTotal,
		m.RecordsIngestedTotal,
		m.BucketsIngestedTotal,
		m.PartitionsTotal,
		m.PartitionDuration,
		m.RunDurationSeconds,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StatsCacheHitsTotal,
		m.StatsCacheMissTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
