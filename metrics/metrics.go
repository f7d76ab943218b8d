package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Tool metrics
var (
	ToolInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_tool_invocations_total",
			Help: "Total number of ffmpeg/ffprobe invocations",
		},
		[]string{"task", "status"},
	)

	ToolInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_tool_invocation_duration_seconds",
			Help:    "Wall time of ffmpeg/ffprobe invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"task"},
	)

	ProgressParseAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_progress_parse_anomalies_total",
			Help: "Progress lines that were malformed or out of order",
		},
	)
)

// Export metrics
var (
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_exports_total",
			Help: "Total number of finished exports",
		},
		[]string{"mode", "outcome"},
	)

	ExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_export_duration_seconds",
			Help:    "Export wall time in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"mode"},
	)

	ExportsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "splicer_exports_in_flight",
			Help: "Number of exports currently running",
		},
	)

	ClipsPreprocessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_clips_preprocessed_total",
			Help: "Clips trimmed and normalized ahead of concatenation",
		},
	)

	CleanupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_cleanup_failures_total",
			Help: "Scratch artifacts that could not be removed",
		},
	)

	ThumbnailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_thumbnails_total",
			Help: "Thumbnail extraction attempts",
		},
		[]string{"status"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveTool records one finished tool invocation.
func ObserveTool(task, status string, elapsed time.Duration) {
	ToolInvocationsTotal.WithLabelValues(task, status).Inc()
	ToolInvocationDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

// ObserveExport records one finished export.
func ObserveExport(mode, outcome string, elapsed time.Duration) {
	ExportsTotal.WithLabelValues(mode, outcome).Inc()
	ExportDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
