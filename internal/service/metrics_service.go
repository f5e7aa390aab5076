package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// sync engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rateLimited     prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheWrite      prometheus.Observer
	resolvedModes   *prometheus.CounterVec
	syncDuration    prometheus.Observer
	syncErrors      prometheus.Counter
	syncRecords     *prometheus.CounterVec
	dbQueryDuration *prometheus.HistogramVec
}

// NewMetricsService registers the service's Prometheus collectors on a fresh
// registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "api_rate_limited_total",
		Help: "Requests rejected by the daily rate limit",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total response cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total response cache misses",
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for response cache writes",
		Buckets: prometheus.DefBuckets,
	})

	resolvedModes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "api_resolved_mode_total",
		Help: "Requests served per resolved sync mode",
	}, []string{"mode"})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_pass_duration_seconds",
		Help:    "Duration of incremental sync passes",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	syncErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_errors_total",
		Help: "Row-level errors observed during sync passes",
	})

	syncRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_records_total",
		Help: "Reporting rows touched by sync passes",
	}, []string{"op"})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, rateLimited, cacheHits, cacheMisses,
		cacheWrite, resolvedModes, syncDuration, syncErrors, syncRecords, dbQueryDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		rateLimited:     rateLimited,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheWrite:      cacheWrite,
		resolvedModes:   resolvedModes,
		syncDuration:    syncDuration,
		syncErrors:      syncErrors,
		syncRecords:     syncRecords,
		dbQueryDuration: dbQueryDuration,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return s.handler
}

// RecordRequest observes one finished HTTP request.
func (s *MetricsService) RecordRequest(method, path, status string, duration time.Duration) {
	if s == nil {
		return
	}
	s.requestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRateLimited counts a rejected request.
func (s *MetricsService) RecordRateLimited() {
	if s == nil {
		return
	}
	s.rateLimited.Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (s *MetricsService) RecordCacheLookup(hit bool) {
	if s == nil {
		return
	}
	if hit {
		s.cacheHits.Inc()
	} else {
		s.cacheMisses.Inc()
	}
}

// ObserveCacheWrite records the latency of a cache set.
func (s *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if s == nil {
		return
	}
	s.cacheWrite.Observe(duration.Seconds())
}

// RecordResolvedMode counts a request served in the given resolved mode.
func (s *MetricsService) RecordResolvedMode(mode string) {
	if s == nil {
		return
	}
	s.resolvedModes.WithLabelValues(mode).Inc()
}

// RecordSyncPass observes a completed sync pass.
func (s *MetricsService) RecordSyncPass(duration time.Duration, created, updated, errors int) {
	if s == nil {
		return
	}
	s.syncDuration.Observe(duration.Seconds())
	s.syncRecords.WithLabelValues("created").Add(float64(created))
	s.syncRecords.WithLabelValues("updated").Add(float64(updated))
	s.syncErrors.Add(float64(errors))
}

// ObserveDBQuery records the latency of a named query.
func (s *MetricsService) ObserveDBQuery(query string, duration time.Duration) {
	if s == nil {
		return
	}
	s.dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}
