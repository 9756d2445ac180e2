package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/projecthub-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	uploadDuration  *prometheus.HistogramVec
	uploadsInFlight prometheus.Gauge
	purgeTotal      *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	uploadOK             uint64
	uploadFailed         uint64
	uploadedBytes        uint64
	inFlight             int64
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "file_uploads_total",
		Help: "File uploads by category and outcome",
	}, []string{"category", "outcome"})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_upload_bytes_total",
		Help: "Bytes persisted by successful uploads",
	})

	uploadDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "file_upload_duration_seconds",
		Help:    "Time spent persisting one file",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"category"})

	uploadsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "file_uploads_in_flight",
		Help: "Uploads currently being persisted",
	})

	purgeTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "blob_purge_jobs_total",
		Help: "Background blob purge jobs by outcome",
	}, []string{"outcome"})

	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "milestone_status_changes_total",
		Help: "Milestone status writes by target status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal,
		cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		uploadsTotal, uploadBytes, uploadDuration, uploadsInFlight,
		purgeTotal, statusChanges, goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		uploadsTotal:    uploadsTotal,
		uploadBytes:     uploadBytes,
		uploadDuration:  uploadDuration,
		uploadsInFlight: uploadsInFlight,
		purgeTotal:      purgeTotal,
		statusChanges:   statusChanges,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// UploadStarted marks one more upload in flight.
func (m *MetricsService) UploadStarted() {
	if m == nil {
		return
	}
	m.uploadsInFlight.Inc()
	atomic.AddInt64(&m.inFlight, 1)
}

// UploadFinished records the outcome of an upload that passed validation.
func (m *MetricsService) UploadFinished(category models.FileCategory, size int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.uploadsInFlight.Dec()
	atomic.AddInt64(&m.inFlight, -1)
	m.uploadDuration.WithLabelValues(string(category)).Observe(duration.Seconds())
	if err != nil {
		m.uploadsTotal.WithLabelValues(string(category), "error").Inc()
		atomic.AddUint64(&m.uploadFailed, 1)
		return
	}
	m.uploadsTotal.WithLabelValues(string(category), "completed").Inc()
	m.uploadBytes.Add(float64(size))
	atomic.AddUint64(&m.uploadOK, 1)
	atomic.AddUint64(&m.uploadedBytes, uint64(size))
}

// UploadRejected counts a file refused by validation.
func (m *MetricsService) UploadRejected(category models.FileCategory) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(string(category), "rejected").Inc()
	atomic.AddUint64(&m.uploadFailed, 1)
}

// PurgeFinished counts a finished blob purge job.
func (m *MetricsService) PurgeFinished(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.purgeTotal.WithLabelValues(outcome).Inc()
}

// MilestoneStatusChanged counts a status write.
func (m *MetricsService) MilestoneStatusChanged(status models.MilestoneStatus) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

// Snapshot returns aggregated metrics suitable for the status endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		UploadsSucceeded:         atomic.LoadUint64(&m.uploadOK),
		UploadsFailed:            atomic.LoadUint64(&m.uploadFailed),
		UploadedBytes:            atomic.LoadUint64(&m.uploadedBytes),
		UploadsInFlight:          atomic.LoadInt64(&m.inFlight),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
