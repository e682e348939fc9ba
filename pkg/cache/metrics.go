package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks records served from the store
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_hits_total",
			Help: "Total number of render cache hits",
		},
	)

	// CacheMisses tracks lookups with no stored record
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_misses_total",
			Help: "Total number of render cache misses",
		},
	)

	// CacheErrors tracks failed store operations
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_cache_errors_total",
			Help: "Total number of render cache operation errors",
		},
		[]string{"operation"}, // "init", "get", "set", "delete"
	)

	// PartitionsInitialized tracks partition setup calls that reached the backend
	PartitionsInitialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_cache_partitions_initialized_total",
			Help: "Total number of partition initializations performed",
		},
	)
)
