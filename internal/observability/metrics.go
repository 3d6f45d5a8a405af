package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the process's Prometheus instruments.
type Metrics struct {
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	fetchPages        *prometheus.CounterVec
	fetchRows         *prometheus.CounterVec
	fetchErrors       *prometheus.CounterVec
	mergeDuration     prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheWriteErrors  prometheus.Counter
}

// NewMetrics registers and returns the instrument set.
func NewMetrics() *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		fetchPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_fetch_pages_total",
			Help: "Total pages fetched from the remote store per series.",
		}, []string{"series"}),
		fetchRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_fetch_rows_total",
			Help: "Total rows fetched from the remote store per series.",
		}, []string{"series"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "remote_fetch_errors_total",
			Help: "Total fetch failures surfaced to the sync controller per series.",
		}, []string{"series"}),
		mergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "series_merge_duration_seconds",
			Help:    "Histogram of series merge durations.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "series_cache_hits_total",
			Help: "Total local series cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "series_cache_misses_total",
			Help: "Total local series cache misses, including read errors treated as misses.",
		}),
		cacheWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "series_cache_write_errors_total",
			Help: "Total local series cache write failures recovered by keeping data in memory.",
		}),
	}

	prometheus.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.fetchPages,
		m.fetchRows,
		m.fetchErrors,
		m.mergeDuration,
		m.cacheHits,
		m.cacheMisses,
		m.cacheWriteErrors,
	)

	return m
}

// ObserveFetch records one completed page fetch.
func (m *Metrics) ObserveFetch(seriesID string, rows int) {
	if m == nil {
		return
	}
	m.fetchPages.WithLabelValues(seriesID).Inc()
	m.fetchRows.WithLabelValues(seriesID).Add(float64(rows))
}

// ObserveFetchError records a fetch failure surfaced to the controller.
func (m *Metrics) ObserveFetchError(seriesID string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(seriesID).Inc()
}

// ObserveMerge records the duration of one merge.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m == nil {
		return
	}
	m.mergeDuration.Observe(d.Seconds())
}

// ObserveCache records a cache lookup outcome.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWriteError records a cache write failure.
func (m *Metrics) ObserveCacheWriteError() {
	if m == nil {
		return
	}
	m.cacheWriteErrors.Inc()
}

// Instrument wraps an HTTP handler with request counting and timing.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
