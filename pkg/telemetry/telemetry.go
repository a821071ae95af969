// Package telemetry exposes the service's Prometheus metrics and the
// request instrumentation middleware.
package telemetry

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeshare/pkg/logger"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codeshare_requests_total",
		Help: "Dispatched requests by outcome status.",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codeshare_request_duration_seconds",
		Help:    "Wall time from admission to final write.",
		Buckets: prometheus.DefBuckets,
	})

	throttledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeshare_throttled_total",
		Help: "Requests rejected by the rate limiter.",
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeshare_template_cache_hits_total",
		Help: "Template cache lookups served from memory.",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeshare_template_cache_misses_total",
		Help: "Template cache lookups that read the backing file.",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codeshare_template_cache_evictions_total",
		Help: "Template cache entries evicted under the byte budget.",
	})

	writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codeshare_write_behind_failures_total",
		Help: "Write-behind operations that exhausted their retries.",
	}, []string{"op"})
)

// Counter hooks wired into the other packages at startup.
func RecordStatus(status string) { requestsTotal.WithLabelValues(status).Inc() }

func RecordThrottled() { throttledTotal.Inc() }

func RecordCacheHit() { cacheHits.Inc() }

func RecordCacheMiss() { cacheMisses.Inc() }

func RecordCacheEviction() { cacheEvictions.Inc() }

func RecordWriteFailure(op string) { writeFailures.WithLabelValues(op).Inc() }

// ObserveDuration records a request's wall time.
func ObserveDuration(d time.Duration) { requestDuration.Observe(d.Seconds()) }

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }

// Middleware tags every request with an id and logs slow ones.
func Middleware(next http.Handler) http.Handler {
	const slowThreshold = 200 * time.Millisecond
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		ObserveDuration(dur)
		if dur > slowThreshold {
			logger.Warn("slow_request", "request_id", reqID, "path", r.URL.Path, "duration_ms", dur.Milliseconds())
		}
	})
}
