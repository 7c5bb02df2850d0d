// Package metrics provides Prometheus metrics for the preview service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jstcode_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jstcode_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Build metrics
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jstcode_builds_total",
			Help: "Total preview builds by outcome (ok or the failing stage)",
		},
		[]string{"outcome"},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jstcode_build_duration_seconds",
			Help:    "Preview build duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	buildsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jstcode_builds_superseded_total",
			Help: "Build results dropped because a newer build was issued",
		},
	)

	retriesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jstcode_build_retries_rejected_total",
			Help: "Retry requests rejected by the back-off",
		},
	)

	// Project metrics
	projectFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jstcode_project_files",
			Help: "Number of files in the project",
		},
	)

	projectBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jstcode_project_bytes",
			Help: "Total size of file contents in the project",
		},
	)

	// Persistence metrics
	snapshotWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jstcode_snapshot_writes_total",
			Help: "Snapshot save attempts by result",
		},
		[]string{"result"},
	)

	snapshotBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jstcode_snapshot_bytes",
			Help: "Size of the last encoded snapshot",
		},
	)

	// Preview log metrics
	previewMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jstcode_preview_messages_total",
			Help: "Preview host messages by kind",
		},
		[]string{"kind"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jstcode_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jstcode_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBuild records a finished build. outcome is "ok" or the failing stage.
func RecordBuild(outcome string, duration time.Duration) {
	buildsTotal.WithLabelValues(outcome).Inc()
	buildDuration.Observe(duration.Seconds())
}

// RecordSuperseded records a dropped stale build result.
func RecordSuperseded() {
	buildsSuperseded.Inc()
}

// RecordRetryRejected records a retry refused by the back-off.
func RecordRetryRejected() {
	retriesRejected.Inc()
}

// SetProjectSize sets the project gauges.
func SetProjectSize(files, bytes int) {
	projectFiles.Set(float64(files))
	projectBytes.Set(float64(bytes))
}

// RecordSnapshotWrite records a snapshot save. result is one of "written",
// "unchanged", "too_large", "retried" or "error".
func RecordSnapshotWrite(result string, size int) {
	snapshotWritesTotal.WithLabelValues(result).Inc()
	if size > 0 {
		snapshotBytes.Set(float64(size))
	}
}

// RecordPreviewMessage records a demultiplexed preview message.
func RecordPreviewMessage(kind string) {
	previewMessagesTotal.WithLabelValues(kind).Inc()
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request metrics labelled by the chi route pattern, so
// wildcard file paths do not explode the label space.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
