package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_cache_http_requests_total",
		Help: "Total HTTP requests served by method and status code",
	}, []string{"method", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "render_cache_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	renderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_cache_render_failures_total",
		Help: "Total requests answered with 502 because the render failed",
	})
)
