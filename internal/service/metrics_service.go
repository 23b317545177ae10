package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yishan1331/student-affairs-management/internal/models"
)

// timing accumulates a count and total duration for average reporting.
type timing struct {
	count uint64
	nanos uint64
}

func (t *timing) add(d time.Duration) {
	atomic.AddUint64(&t.count, 1)
	atomic.AddUint64(&t.nanos, uint64(d.Nanoseconds()))
}

func (t *timing) load() (uint64, float64) {
	count := atomic.LoadUint64(&t.count)
	if count == 0 {
		return 0, 0
	}
	return count, float64(atomic.LoadUint64(&t.nanos)) / float64(count) / float64(time.Millisecond)
}

// MetricsService owns the Prometheus registry and mirrors the figures served by /system/metrics.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheOps     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheRatio   prometheus.Gauge
	dbDuration   *prometheus.HistogramVec

	generated    prometheus.Counter
	recalculated prometheus.Counter
	unmatched    prometheus.Counter

	requests timing
	queries  timing

	hits, misses                          uint64
	generatedN, recalculatedN, unmatchedN uint64
}

// NewMetricsService builds a private registry with HTTP, cache, database and salary engine collectors.
func NewMetricsService() *MetricsService {
	httpLabels := []string{"method", "path", "status"}
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, httpLabels),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, httpLabels),
		cacheOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cache_operation_duration_seconds",
			Help:    "Latency of summary cache reads and writes",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Summary cache lookups by result",
		}, []string{"result"}),
		cacheRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		dbDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of labelled database queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "course_sessions_generated_total",
			Help: "Course sessions created by batch generation",
		}),
		recalculated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salary_recalculated_total",
			Help: "Course session salaries rewritten by recalculation sweeps",
		}),
		unmatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "salary_unmatched_total",
			Help: "Salary calculations where no salary base matched",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpDuration, m.httpTotal,
		m.cacheOps, m.cacheLookups, m.cacheRatio,
		m.dbDuration,
		m.generated, m.recalculated, m.unmatched,
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
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, code).Inc()
	m.requests.add(duration)
}

// RecordCacheOperation records a cache lookup and refreshes the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.hits, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.misses, 1)
	}
	m.cacheRatio.Set(m.hitRatio())
}

// ObserveCacheWrite records the latency of a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.queries.add(duration)
}

// RecordSessionsGenerated counts sessions created by a batch run.
func (m *MetricsService) RecordSessionsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.generated.Add(float64(n))
	atomic.AddUint64(&m.generatedN, uint64(n))
}

// RecordSalaryRecalculated counts salaries persisted by a sweep.
func (m *MetricsService) RecordSalaryRecalculated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recalculated.Add(float64(n))
	atomic.AddUint64(&m.recalculatedN, uint64(n))
}

// RecordSalaryUnmatched counts a calculation that found no salary base.
func (m *MetricsService) RecordSalaryUnmatched() {
	if m == nil {
		return
	}
	m.unmatched.Inc()
	atomic.AddUint64(&m.unmatchedN, 1)
}

func (m *MetricsService) hitRatio() float64 {
	hits := atomic.LoadUint64(&m.hits)
	total := hits + atomic.LoadUint64(&m.misses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot returns aggregated figures for the system metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	requests, avgRequestMs := m.requests.load()
	queries, avgQueryMs := m.queries.load()

	return models.SystemMetrics{
		CacheHitRatio:            m.hitRatio(),
		CacheHits:                atomic.LoadUint64(&m.hits),
		CacheMisses:              atomic.LoadUint64(&m.misses),
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: avgQueryMs,
		SessionsGenerated:        atomic.LoadUint64(&m.generatedN),
		SalaryRecalculated:       atomic.LoadUint64(&m.recalculatedN),
		SalaryUnmatched:          atomic.LoadUint64(&m.unmatchedN),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
