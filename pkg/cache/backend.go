package cache

import "context"

// Backend is a partitioned key-value engine holding encoded records.
//
// Implementations must be safe for concurrent use. EnsurePartition must be
// idempotent: calling it for a partition that already exists, including
// from several goroutines at once, succeeds.
type Backend interface {
	// EnsurePartition creates the partition's collection and its key
	// uniqueness constraint if they do not exist yet.
	EnsurePartition(ctx context.Context, p Partition) error

	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, p Partition, key Key) ([]byte, error)

	// Put inserts or fully replaces the value for key.
	Put(ctx context.Context, p Partition, key Key, value []byte) error

	// Delete removes key. A missing key is not an error.
	Delete(ctx context.Context, p Partition, key Key) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend's connections.
	Close() error
}
