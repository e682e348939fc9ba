package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// StoreConfig holds Store settings.
type StoreConfig struct {
	// PartitionCacheSize bounds how many initialized partitions are remembered.
	// A partition evicted from the memo is initialized again on next access.
	PartitionCacheSize int

	// Logger receives store diagnostics.
	Logger zerolog.Logger
}

// DefaultStoreConfig returns a store configuration with sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		PartitionCacheSize: 1024,
		Logger:             zerolog.Nop(),
	}
}

// Store reads and writes records in a partitioned backend.
// It is safe for concurrent use.
type Store struct {
	backend Backend
	ready   *lru.Cache[Partition, struct{}]
	logger  zerolog.Logger
	now     func() time.Time
}

// NewStore creates a store over backend.
func NewStore(backend Backend, cfg StoreConfig) (*Store, error) {
	if backend == nil {
		panic("cache backend cannot be nil")
	}
	if cfg.PartitionCacheSize <= 0 {
		cfg.PartitionCacheSize = DefaultStoreConfig().PartitionCacheSize
	}

	ready, err := lru.New[Partition, struct{}](cfg.PartitionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create partition memo: %w", err)
	}

	return &Store{
		backend: backend,
		ready:   ready,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// ensurePartition initializes p on first observed access.
// Two requests racing on a new partition may both initialize it; the
// backend operation is idempotent.
func (s *Store) ensurePartition(ctx context.Context, p Partition) error {
	if s.ready.Contains(p) {
		return nil
	}
	if err := s.backend.EnsurePartition(ctx, p); err != nil {
		CacheErrors.WithLabelValues("init").Inc()
		return &StoreError{Op: "init", Partition: p, Err: err}
	}
	s.ready.Add(p, struct{}{})
	PartitionsInitialized.Inc()
	s.logger.Debug().Str("partition", string(p)).Msg("Partition initialized")
	return nil
}

// Get returns the record for key in partition p.
// Returns ErrNotFound if no record exists.
func (s *Store) Get(ctx context.Context, p Partition, key Key) (*Record, error) {
	if err := s.ensurePartition(ctx, p); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, p, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			CacheMisses.Inc()
			s.logger.Debug().Str("partition", string(p)).Str("key", string(key)).Msg("Cache miss")
			return nil, ErrNotFound
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, &StoreError{Op: "get", Partition: p, Key: key, Err: err}
	}

	record, err := decodeRecord(data)
	if err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, err
	}

	CacheHits.Inc()
	s.logger.Debug().
		Str("partition", string(p)).
		Str("key", string(key)).
		Int("status_code", record.StatusCode).
		Msg("Cache hit")

	return record, nil
}

// Set stores record under key in partition p, replacing any previous record.
// The record's Timestamp is set to the write time.
func (s *Store) Set(ctx context.Context, p Partition, key Key, record *Record) error {
	if err := record.validate(); err != nil {
		return err
	}
	if err := s.ensurePartition(ctx, p); err != nil {
		return err
	}

	record.Timestamp = s.now().UTC()
	if record.Headers == nil {
		record.Headers = map[string]string{}
	}

	data, err := encodeRecord(record)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return err
	}

	if err := s.backend.Put(ctx, p, key, data); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return &StoreError{Op: "set", Partition: p, Key: key, Err: err}
	}

	s.logger.Debug().
		Str("partition", string(p)).
		Str("key", string(key)).
		Int("status_code", record.StatusCode).
		Int("size", len(data)).
		Msg("Cache record stored")

	return nil
}

// Delete removes the record for key in partition p.
// Deleting a missing record succeeds.
func (s *Store) Delete(ctx context.Context, p Partition, key Key) error {
	if err := s.ensurePartition(ctx, p); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, p, key); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return &StoreError{Op: "delete", Partition: p, Key: key, Err: err}
	}

	s.logger.Debug().Str("partition", string(p)).Str("key", string(key)).Msg("Cache record deleted")
	return nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
