package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// scheduling engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	sessionsGenerated prometheus.Counter
	lessonsAssigned   prometheus.Counter
	blocksCreated     prometheus.Counter
	sweepDuration     prometheus.Histogram
	sweepFailures     prometheus.Counter

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	sessionsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_sessions_generated_total",
		Help: "Sessions created by the rolling planner",
	})

	lessonsAssigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_lessons_assigned_total",
		Help: "Lesson-to-session links written by the assigner",
	})

	blocksCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_blocks_created_total",
		Help: "Curriculum blocks appended automatically",
	})

	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_sweep_duration_seconds",
		Help:    "Duration of per-class sweep passes",
		Buckets: prometheus.DefBuckets,
	})

	sweepFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engine_sweep_failures_total",
		Help: "Sweep passes that ended in error",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionsGenerated, lessonsAssigned, blocksCreated, sweepDuration, sweepFailures, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		sessionsGenerated: sessionsGenerated,
		lessonsAssigned:   lessonsAssigned,
		blocksCreated:     blocksCreated,
		sweepDuration:     sweepDuration,
		sweepFailures:     sweepFailures,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveEnginePass records what one assignment pass produced.
func (m *MetricsService) ObserveEnginePass(sessionsCreated, lessonsAssigned, blocksCreated int) {
	if m == nil {
		return
	}
	m.sessionsGenerated.Add(float64(sessionsCreated))
	m.lessonsAssigned.Add(float64(lessonsAssigned))
	m.blocksCreated.Add(float64(blocksCreated))
}

// ObserveSweep records the duration and outcome of a sweep pass.
func (m *MetricsService) ObserveSweep(duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	if !ok {
		m.sweepFailures.Inc()
	}
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
