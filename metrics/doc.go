// Package metrics provides Prometheus instrumentation for splicer.
//
// All collectors are registered on the default registry at init through
// promauto and are prefixed with "splicer_". The api package exposes them on
// GET /metrics.
//
// # Metric Categories
//
// ## Tool Metrics
//
// Track every ffmpeg and ffprobe invocation:
//   - ToolInvocationsTotal: Counter of invocations by task and status
//   - ToolInvocationDuration: Histogram of wall time by task
//   - ProgressParseAnomalies: Counter of progress lines that were malformed or
//     would have moved progress backwards
//
// ## Export Metrics
//
// Track export jobs end to end:
//   - ExportsTotal: Counter of finished exports by mode and outcome
//   - ExportDuration: Histogram of export wall time by mode
//   - ExportsInFlight: Gauge of running exports
//   - ClipsPreprocessedTotal: Counter of per-clip preprocessing passes
//   - CleanupFailuresTotal: Counter of scratch artifacts that could not be removed
//   - ThumbnailsTotal: Counter of thumbnail attempts by status
//
// ## HTTP Metrics
//
// Track the local API:
//   - HTTPRequestsTotal: Counter of requests by method, route and status
//   - HTTPRequestDuration: Histogram of request duration by method and route
package metrics
