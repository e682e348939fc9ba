package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no record exists for the key in its partition
	ErrNotFound = errors.New("cache record not found")

	// ErrStoreUnavailable indicates the backend could not serve the operation
	ErrStoreUnavailable = errors.New("cache store unavailable")

	// ErrInvalidRecord indicates a record that cannot be stored or decoded
	ErrInvalidRecord = errors.New("invalid cache record")
)

// StoreError describes a failed backend operation.
// It matches both ErrStoreUnavailable and the underlying cause with errors.Is.
type StoreError struct {
	// Op is the store operation: "init", "get", "set" or "delete"
	Op string

	Partition Partition
	Key       Key

	// Err is the backend error
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s partition %q: %v", e.Op, e.Partition, e.Err)
	}
	return fmt.Sprintf("cache %s %q in partition %q: %v", e.Op, e.Key, e.Partition, e.Err)
}

// Unwrap returns ErrStoreUnavailable and the backend error.
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}
