// Package metrics provides the Prometheus registry and HTTP handler for the
// render cache. All metrics are defined in their respective packages (cache,
// head, intercept, render, server) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the render cache.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - render_cache_hits_total (Counter): Records served from the store
//   - render_cache_misses_total (Counter): Lookups with no stored record
//   - render_cache_errors_total{operation} (Counter): Failed store operations (init, get, set, delete)
//   - render_cache_partitions_initialized_total (Counter): Partition setups that reached the backend
//
// Head Metrics (pkg/head):
//   - render_cache_invalid_overrides_total{kind} (Counter): Skipped override directives (header, status_code)
//
// Hook Metrics (pkg/intercept):
//   - render_cache_hook_results_total{hook, action} (Counter): Hook outcomes (before_render/after_render, continue/respond)
//
// Render Metrics (pkg/render):
//   - render_requests_total{status} (Counter): Upstream render requests by HTTP status
//   - render_cache_render_duration_seconds (Histogram): Render duration, retries included
//   - render_errors_total{class} (Counter): Render errors by class (client, server, network)
//   - render_retries_total{error_class} (Counter): Retry attempts
//   - render_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - render_retry_exhausted_total{error_class} (Counter): Renders that exhausted retries
//
// Server Metrics (internal/server):
//   - render_cache_http_requests_total{method, code} (Counter): Served HTTP requests
//   - render_cache_http_request_duration_seconds{method} (Histogram): Request duration
//   - render_cache_render_failures_total (Counter): Requests answered with 502
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(render_cache_hits_total[5m])) /
//   (sum(rate(render_cache_hits_total[5m])) + sum(rate(render_cache_misses_total[5m])))
//
//   # Store Error Rate
//   sum by (operation) (rate(render_cache_errors_total[5m]))
//
//   # Requests answered without rendering
//   rate(render_cache_hook_results_total{hook="before_render", action="respond"}[5m])
//
//   # P95 Render Latency
//   histogram_quantile(0.95, rate(render_cache_render_duration_seconds_bucket[5m]))
