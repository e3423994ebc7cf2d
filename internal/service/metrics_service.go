package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-api/internal/models"
)

const metricsNamespace = "lms"

// MetricsService owns the Prometheus registry of the API and keeps running totals for the admin snapshot.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	queryDuration   *prometheus.HistogramVec
	events          *prometheus.CounterVec

	requestCount   atomic.Uint64
	requestNanos   atomic.Uint64
	cacheHitCount  atomic.Uint64
	cacheMissCount atomic.Uint64
	queryCount     atomic.Uint64
	queryNanos     atomic.Uint64

	eventsMu    sync.Mutex
	eventTotals map[string]uint64
	startedAt   time.Time
}

// NewMetricsService builds a private registry with HTTP, stats cache, query and write event collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry:    prometheus.NewRegistry(),
		eventTotals: make(map[string]uint64),
		startedAt:   time.Now().UTC(),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route template.",
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "stats_cache",
			Name:      "lookups_total",
			Help:      "Stats cache lookups by result.",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "stats_cache",
			Name:      "operation_seconds",
			Help:      "Latency of stats cache operations.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Duration of instrumented database queries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"query"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "write_events_total",
			Help:      "Writes that change dashboard counts, by event.",
		}, []string{"event"}),
	}

	m.registry.MustRegister(
		m.requestDuration,
		m.requests,
		m.cacheLookups,
		m.cacheLatency,
		m.queryDuration,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.requests.WithLabelValues(method, route, code).Inc()
	m.requestCount.Add(1)
	m.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a stats cache read. Errors count as misses in the snapshot.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.cacheHitCount.Add(1)
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
	m.cacheMissCount.Add(1)
}

// ObserveCacheWrite tracks stats cache writes and invalidations.
func (m *MetricsService) ObserveCacheWrite(op string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveDBQuery records the duration of a labelled query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.queryCount.Add(1)
	m.queryNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordEvent counts a write such as a fee decision or quiz submission.
func (m *MetricsService) RecordEvent(event string) {
	if m == nil || event == "" {
		return
	}
	m.events.WithLabelValues(event).Inc()
	m.eventsMu.Lock()
	m.eventTotals[event]++
	m.eventsMu.Unlock()
}

// Snapshot summarises the process counters for GET /admin/metrics.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	now := time.Now().UTC()
	if m == nil {
		return models.SystemMetrics{GeneratedAt: now}
	}
	hits := m.cacheHitCount.Load()
	misses := m.cacheMissCount.Load()
	requests := m.requestCount.Load()
	queries := m.queryCount.Load()

	snapshot := models.SystemMetrics{
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio(float64(hits), float64(hits+misses)),
		RequestsTotal:            requests,
		AverageRequestDurationMs: ratio(float64(m.requestNanos.Load()), float64(requests)) / float64(time.Millisecond),
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: ratio(float64(m.queryNanos.Load()), float64(queries)) / float64(time.Millisecond),
		Goroutines:               runtime.NumGoroutine(),
		UptimeSeconds:            int64(now.Sub(m.startedAt).Seconds()),
		WriteEvents:              make(map[string]uint64),
		GeneratedAt:              now,
	}
	m.eventsMu.Lock()
	for event, total := range m.eventTotals {
		snapshot.WriteEvents[event] = total
	}
	m.eventsMu.Unlock()
	return snapshot
}

func ratio(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
