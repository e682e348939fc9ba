package cache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/render-cache/pkg/head"
)

// setupTestSQLite opens a private in-memory SQLite backend.
func setupTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()

	backend, err := OpenSQLite("")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() {
		backend.Close()
	})
	return backend
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()

	store, err := NewStore(backend, DefaultStoreConfig())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func testRecord(content string, status int, headers map[string]string) *Record {
	merged := head.Head{StatusCode: status, Headers: headers}
	return NewRecord(content, merged, merged, head.Overrides{Headers: map[string]string{}})
}

// countingBackend counts partition initializations.
type countingBackend struct {
	Backend

	mu    sync.Mutex
	inits map[Partition]int
}

func (c *countingBackend) EnsurePartition(ctx context.Context, p Partition) error {
	c.mu.Lock()
	if c.inits == nil {
		c.inits = map[Partition]int{}
	}
	c.inits[p]++
	c.mu.Unlock()
	return c.Backend.EnsurePartition(ctx, p)
}

func (c *countingBackend) count(p Partition) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits[p]
}

// failingBackend fails every operation with err.
type failingBackend struct {
	err     error
	initErr error
}

func (f failingBackend) EnsurePartition(context.Context, Partition) error { return f.initErr }
func (f failingBackend) Get(context.Context, Partition, Key) ([]byte, error) {
	return nil, f.err
}
func (f failingBackend) Put(context.Context, Partition, Key, []byte) error { return f.err }
func (f failingBackend) Delete(context.Context, Partition, Key) error { return f.err }
func (f failingBackend) Ping(context.Context) error { return f.err }
func (f failingBackend) Close() error { return nil }

func TestNewStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewStore should panic with nil backend")
		}
	}()
	NewStore(nil, DefaultStoreConfig())
}

func TestStore_SetAndGet(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	key := Normalize("/http://example.com/page")
	record := testRecord("<html>hello</html>", 200, map[string]string{"Content-Type": "text/html"})

	if err := store.Set(ctx, key.Partition(), key, record); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := store.Get(ctx, key.Partition(), key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Content != record.Content {
		t.Errorf("Content = %q, want %q", got.Content, record.Content)
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
	if !reflect.DeepEqual(got.Headers, record.Headers) {
		t.Errorf("Headers = %v, want %v", got.Headers, record.Headers)
	}
	if !got.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, fixed)
	}
	if !reflect.DeepEqual(got.OriginalHead, record.OriginalHead) {
		t.Errorf("OriginalHead = %+v, want %+v", got.OriginalHead, record.OriginalHead)
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()
	key := Normalize("/http://example.com/page")
	p := key.Partition()

	if err := store.Set(ctx, p, key, testRecord("first", 200, map[string]string{"X-Old": "1"})); err != nil {
		t.Fatalf("first Set failed: %v", err)
	}
	if err := store.Set(ctx, p, key, testRecord("second", 404, map[string]string{"X-New": "2"})); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	got, err := store.Get(ctx, p, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "second" || got.StatusCode != 404 {
		t.Errorf("got %q/%d, want second/404", got.Content, got.StatusCode)
	}
	if _, ok := got.Headers["X-Old"]; ok {
		t.Errorf("Headers = %v, old header survived a full replace", got.Headers)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()
	key := Normalize("/http://example.com/page")
	p := key.Partition()

	if err := store.Set(ctx, p, key, testRecord("body", 200, nil)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, p, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, p, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}

	// deleting again, and in a partition never seen before, succeeds
	if err := store.Delete(ctx, p, key); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "never.example", "never.example/x"); err != nil {
		t.Errorf("Delete in new partition failed: %v", err)
	}
}

func TestStore_GetMiss(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))

	_, err := store.Get(context.Background(), "unseen.example", "unseen.example/x")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_SetInvalidRecord(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()

	tests := []struct {
		name   string
		record *Record
	}{
		{"nil record", nil},
		{"missing status", &Record{Content: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Set(ctx, "example.com", "example.com/x", tt.record)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("err = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestStore_NilHeadersStoredEmpty(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()

	if err := store.Set(ctx, "example.com", "example.com/x", &Record{Content: "x", StatusCode: 200}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "example.com", "example.com/x")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Headers == nil {
		t.Error("Headers is nil, want empty map")
	}
}

func TestStore_PartitionsIsolated(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()
	const key Key = "shared/path"

	if err := store.Set(ctx, "a.com", key, testRecord("from a", 200, nil)); err != nil {
		t.Fatalf("Set a failed: %v", err)
	}
	if _, err := store.Get(ctx, "b.com", key); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get from b.com: err = %v, want ErrNotFound", err)
	}
}

func TestStore_QuotedPartitionNames(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()
	const p Partition = `we"ird; DROP TABLE x`

	if err := store.Set(ctx, p, "k", testRecord("body", 200, nil)); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, p, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "body" {
		t.Errorf("Content = %q, want body", got.Content)
	}
}

func TestStore_PartitionInitMemoized(t *testing.T) {
	backend := &countingBackend{Backend: setupTestSQLite(t)}
	store := newTestStore(t, backend)
	ctx := context.Background()
	key := Normalize("/http://example.com/page")
	p := key.Partition()

	_ = store.Set(ctx, p, key, testRecord("body", 200, nil))
	_, _ = store.Get(ctx, p, key)
	_ = store.Delete(ctx, p, key)
	_, _ = store.Get(ctx, p, key)

	if n := backend.count(p); n != 1 {
		t.Errorf("EnsurePartition called %d times, want 1", n)
	}
}

func TestStore_PartitionReinitAfterEviction(t *testing.T) {
	backend := &countingBackend{Backend: setupTestSQLite(t)}
	store, err := NewStore(backend, StoreConfig{PartitionCacheSize: 1})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	ctx := context.Background()

	_, _ = store.Get(ctx, "a.com", "a.com/x")
	_, _ = store.Get(ctx, "b.com", "b.com/x")
	_, _ = store.Get(ctx, "a.com", "a.com/x")

	if n := backend.count("a.com"); n != 2 {
		t.Errorf("EnsurePartition(a.com) called %d times, want 2", n)
	}
}

func TestStore_ConcurrentSet(t *testing.T) {
	store := newTestStore(t, setupTestSQLite(t))
	ctx := context.Background()
	key := Normalize("/http://race.example/page")
	p := key.Partition()

	contents := []string{"one", "two", "three", "four"}
	var wg sync.WaitGroup
	for _, c := range contents {
		wg.Add(1)
		go func(content string) {
			defer wg.Done()
			if err := store.Set(ctx, p, key, testRecord(content, 200, nil)); err != nil {
				t.Errorf("Set(%s) failed: %v", content, err)
			}
		}(c)
	}
	wg.Wait()

	got, err := store.Get(ctx, p, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	found := false
	for _, c := range contents {
		if got.Content == c {
			found = true
		}
	}
	if !found {
		t.Errorf("Content = %q, want one of %v", got.Content, contents)
	}
}

func TestStore_CorruptRecord(t *testing.T) {
	backend := setupTestSQLite(t)
	store := newTestStore(t, backend)
	ctx := context.Background()

	if err := backend.EnsurePartition(ctx, "example.com"); err != nil {
		t.Fatalf("EnsurePartition failed: %v", err)
	}
	if err := backend.Put(ctx, "example.com", "example.com/x", []byte("not json")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := store.Get(ctx, "example.com", "example.com/x"); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("err = %v, want ErrInvalidRecord", err)
	}
}

func TestStore_BackendFailure(t *testing.T) {
	cause := errors.New("connection refused")
	ctx := context.Background()

	tests := []struct {
		name    string
		backend failingBackend
		op      func(*Store) error
		wantOp  string
	}{
		{
			name:    "get",
			backend: failingBackend{err: cause},
			op: func(s *Store) error {
				_, err := s.Get(ctx, "example.com", "example.com/x")
				return err
			},
			wantOp: "get",
		},
		{
			name:    "set",
			backend: failingBackend{err: cause},
			op: func(s *Store) error {
				return s.Set(ctx, "example.com", "example.com/x", testRecord("x", 200, nil))
			},
			wantOp: "set",
		},
		{
			name:    "delete",
			backend: failingBackend{err: cause},
			op: func(s *Store) error {
				return s.Delete(ctx, "example.com", "example.com/x")
			},
			wantOp: "delete",
		},
		{
			name:    "partition init",
			backend: failingBackend{err: cause, initErr: cause},
			op: func(s *Store) error {
				_, err := s.Get(ctx, "example.com", "example.com/x")
				return err
			},
			wantOp: "init",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op(newTestStore(t, tt.backend))

			if !errors.Is(err, ErrStoreUnavailable) {
				t.Errorf("err = %v, want ErrStoreUnavailable", err)
			}
			if !errors.Is(err, cause) {
				t.Errorf("err = %v, want cause %v", err, cause)
			}
			var storeErr *StoreError
			if !errors.As(err, &storeErr) {
				t.Fatalf("err = %T, want *StoreError", err)
			}
			if storeErr.Op != tt.wantOp {
				t.Errorf("Op = %q, want %q", storeErr.Op, tt.wantOp)
			}
		})
	}
}

func TestStore_InitFailureNotMemoized(t *testing.T) {
	backend := &flakyInitBackend{Backend: setupTestSQLite(t), failures: 1}
	store := newTestStore(t, backend)
	ctx := context.Background()

	if _, err := store.Get(ctx, "example.com", "example.com/x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("first Get: err = %v, want ErrStoreUnavailable", err)
	}
	if _, err := store.Get(ctx, "example.com", "example.com/x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Get: err = %v, want ErrNotFound", err)
	}
}

// flakyInitBackend fails the first partition initializations.
type flakyInitBackend struct {
	Backend
	failures int
}

func (f *flakyInitBackend) EnsurePartition(ctx context.Context, p Partition) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("temporarily unavailable")
	}
	return f.Backend.EnsurePartition(ctx, p)
}
