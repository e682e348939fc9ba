package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteBackend stores each partition in its own table with a unique index
// on the key column.
type SQLiteBackend struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// OpenSQLite opens a SQLite database. An empty filename opens a private
// in-memory database.
func OpenSQLite(filename string) (*SQLiteBackend, error) {
	inMemory := filename == "" || filename == ":memory:"
	if inMemory {
		filename = ":memory:"
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if inMemory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	return &SQLiteBackend{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

// tableName returns the quoted table identifier for a partition.
func tableName(p Partition) string {
	return `"pages:` + strings.ReplaceAll(string(p), `"`, `""`) + `"`
}

// indexName returns the quoted unique index identifier for a partition.
func indexName(p Partition) string {
	return `"pages_key:` + strings.ReplaceAll(string(p), `"`, `""`) + `"`
}

// EnsurePartition creates the partition table and its unique key index.
func (s *SQLiteBackend) EnsurePartition(ctx context.Context, p Partition) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	table := tableName(p)
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS `+indexName(p)+` ON `+table+` (key)`); err != nil {
		return fmt.Errorf("create index on %s: %w", table, err)
	}
	return nil
}

// Get returns the stored value for key.
func (s *SQLiteBackend) Get(ctx context.Context, p Partition, key Key) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM `+tableName(p)+` WHERE key = ?`, string(key)).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sqlite select: %w", err)
	}
	return value, nil
}

// Put upserts the value for key.
func (s *SQLiteBackend) Put(ctx context.Context, p Partition, key Key, value []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO `+tableName(p)+` (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(key), value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite upsert: %w", err)
	}
	return nil
}

// Delete removes the row for key.
func (s *SQLiteBackend) Delete(ctx context.Context, p Partition, key Key) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM `+tableName(p)+` WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
