package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache store counters. Hits and misses are recorded by the logging
	// decorator; evictions and the size gauges by the store itself, which
	// is the only place that sees them.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_cache_hits_total",
			Help: "Total number of cache hits.",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_cache_misses_total",
			Help: "Total number of cache misses, including lazy TTL expiries.",
		},
	)
	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_cache_evictions_total",
			Help: "Total number of entries evicted (LRU pressure or TTL expiry).",
		},
	)
	CacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocache_cache_size_bytes",
			Help: "Current stored size of all live cache entries in bytes.",
		},
	)
	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocache_cache_entries",
			Help: "Current number of live cache entries.",
		},
	)

	// Loader.
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocache_fetches_total",
			Help: "Underlying fetches executed by the loader, by outcome.",
		},
		[]string{"outcome"}, // ok | error
	)
	CoalescedWaitersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_coalesced_waiters_total",
			Help: "Load calls that attached to an already in-flight fetch.",
		},
	)
	InFlightFetches = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocache_inflight_fetches",
			Help: "Number of fetches currently in flight.",
		},
	)
	FetchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geocache_fetch_duration_seconds",
			Help:    "Latency of underlying fetches in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// Harness HTTP surface.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geocache_http_latency_seconds",
			Help:    "HTTP request latency of the harness in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)

	// Streamer.
	StreamItemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_stream_items_total",
			Help: "Total decoded items delivered by the chunked streamer.",
		},
	)
	StreamChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocache_stream_chunks_total",
			Help: "Total chunks delivered by the chunked streamer.",
		},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		CacheSizeBytes,
		CacheEntries,
		FetchesTotal,
		CoalescedWaitersTotal,
		InFlightFetches,
		FetchDurationSeconds,
		HTTPLatencySeconds,
		StreamItemsTotal,
		StreamChunksTotal,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures harness latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		HTTPLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush forwards streaming flushes to the underlying writer.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
