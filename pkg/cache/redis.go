package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// redisPagesPrefix prefixes the hash holding one partition's records
	redisPagesPrefix = "render:pages:"

	// redisPartitionsKey is the set of known partitions
	redisPartitionsKey = "render:partitions"
)

// RedisBackend stores each partition as a Redis hash keyed by normalized
// URI. Hash fields are unique, so the per-partition key constraint holds
// without extra setup; EnsurePartition only registers the partition.
type RedisBackend struct {
	redis *redis.Client
}

// NewRedisBackend creates a backend on top of an existing client.
func NewRedisBackend(redisClient *redis.Client) *RedisBackend {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisBackend{redis: redisClient}
}

func redisPagesKey(p Partition) string {
	return redisPagesPrefix + string(p)
}

// EnsurePartition registers the partition in the partition set.
func (b *RedisBackend) EnsurePartition(ctx context.Context, p Partition) error {
	if err := b.redis.SAdd(ctx, redisPartitionsKey, string(p)).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Get reads the record for key from the partition hash.
func (b *RedisBackend) Get(ctx context.Context, p Partition, key Key) ([]byte, error) {
	data, err := b.redis.HGet(ctx, redisPagesKey(p), string(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// Put overwrites the hash field for key.
func (b *RedisBackend) Put(ctx context.Context, p Partition, key Key, value []byte) error {
	if err := b.redis.HSet(ctx, redisPagesKey(p), string(key), value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Delete removes the hash field for key.
func (b *RedisBackend) Delete(ctx context.Context, p Partition, key Key) error {
	if err := b.redis.HDel(ctx, redisPagesKey(p), string(key)).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Partitions lists the partitions registered so far.
func (b *RedisBackend) Partitions(ctx context.Context) ([]Partition, error) {
	members, err := b.redis.SMembers(ctx, redisPartitionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	partitions := make([]Partition, len(members))
	for i, m := range members {
		partitions[i] = Partition(m)
	}
	return partitions, nil
}

// Ping checks the Redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.redis.Ping(ctx).Err()
}

// Close closes the underlying client.
func (b *RedisBackend) Close() error {
	return b.redis.Close()
}
