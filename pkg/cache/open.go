package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Supported store URL schemes.
const (
	SchemeRedis     = "redis"
	SchemeRedisTLS  = "rediss"
	SchemeSQLite    = "sqlite"
	sqliteURLPrefix = SchemeSQLite + "://"
)

// OpenBackend connects to the backend named by storeURL and pings it.
//
// Accepted forms:
//
//	redis://[:password@]host:port/db
//	rediss://host:port/db
//	host:port                   (plain Redis address)
//	sqlite:///var/lib/render-cache.db
//	sqlite://                   (in-memory)
func OpenBackend(ctx context.Context, storeURL string) (Backend, error) {
	var backend Backend

	switch scheme, _, found := strings.Cut(storeURL, "://"); {
	case !found:
		backend = NewRedisBackend(redis.NewClient(&redis.Options{Addr: storeURL}))
	case scheme == SchemeRedis || scheme == SchemeRedisTLS:
		opts, err := redis.ParseURL(storeURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		backend = NewRedisBackend(redis.NewClient(opts))
	case scheme == SchemeSQLite:
		sqlite, err := OpenSQLite(strings.TrimPrefix(storeURL, sqliteURLPrefix))
		if err != nil {
			return nil, err
		}
		backend = sqlite
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}

	if err := backend.Ping(ctx); err != nil {
		backend.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return backend, nil
}
