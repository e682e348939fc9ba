// Package cache stores rendered pages keyed by normalized request URI.
//
// Records are grouped into partitions, one per origin host. Each partition
// maps to its own backend collection: a Redis hash or a SQLite table with a
// unique index on the key. Partitions are created on first access and the
// Store remembers which ones it has already set up.
//
// # Basic Usage
//
//	backend, err := cache.OpenBackend(ctx, "redis://localhost:6379/0")
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	store, err := cache.NewStore(backend, cache.DefaultStoreConfig())
//	if err != nil {
//		return err
//	}
//
//	key := cache.Normalize(r.URL.RequestURI())
//	record, err := store.Get(ctx, key.Partition(), key)
//	if errors.Is(err, cache.ErrNotFound) {
//		// render and store
//	}
//
// # Errors
//
// Get returns ErrNotFound on a miss. Backend failures are returned as
// *StoreError, which matches ErrStoreUnavailable; callers are expected to
// fall back to a live render.
//
// # Metrics
//
//   - render_cache_hits_total - Records served from the store
//   - render_cache_misses_total - Lookups with no record
//   - render_cache_errors_total{operation} - Failed store operations
//   - render_cache_partitions_initialized_total - Partition setups
//
// There is no expiry. Records live until they are replaced or deleted.
package cache
