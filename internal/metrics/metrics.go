// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnail_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnail_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// UploadSizeBytes observes accepted upload sizes.
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbnail_upload_size_bytes",
			Help:    "Size of uploaded videos in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12), // 64KiB to 128MiB
		},
	)

	// FrameGrabAttemptsTotal counts frame-grab attempts by result.
	FrameGrabAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnail_frame_grab_attempts_total",
			Help: "Total number of frame-grab attempts",
		},
		[]string{"result"},
	)

	// EnhancementsTotal counts enhancement stage outcomes by provider.
	EnhancementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thumbnail_enhancements_total",
			Help: "Total number of enhancement stage outcomes",
		},
		[]string{"provider", "outcome"},
	)

	// PipelineDuration observes end-to-end thumbnail generation time by outcome.
	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thumbnail_pipeline_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"outcome"},
	)
)

// Frame-grab attempt results.
const (
	AttemptOK      = "ok"
	AttemptEmpty   = "empty"
	AttemptFailed  = "failed"
	AttemptTimeout = "timeout"
)

// Enhancement outcomes.
const (
	EnhancementApplied  = "applied"
	EnhancementSkipped  = "skipped"
	EnhancementFallback = "fallback"
)

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route, status string, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordUpload records the size of an accepted upload.
func RecordUpload(size int64) {
	UploadSizeBytes.Observe(float64(size))
}

// RecordFrameGrab records one frame-grab attempt.
func RecordFrameGrab(result string) {
	FrameGrabAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordEnhancement records an enhancement stage outcome.
func RecordEnhancement(provider, outcome string) {
	EnhancementsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordPipeline records a completed pipeline run.
func RecordPipeline(outcome string, seconds float64) {
	PipelineDuration.WithLabelValues(outcome).Observe(seconds)
}
