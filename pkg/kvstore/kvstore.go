// Package kvstore is a thin redis hash store used to persist pruning
// tallies and cached replacements across runs. It is optional: the core
// never requires it.
package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheType tags the database layout; a store populated by an incompatible
// writer is refused instead of silently misread.
const cacheType = "souper-go/1"

// Store wraps one redis connection.
type Store struct {
	rdb *redis.Client
}

// Open connects to the redis server at addr (host:port) and verifies the
// database is either fresh or written by a compatible version.
func Open(addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 1500 * time.Millisecond,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kvstore: connect %s: %w", addr, err)
	}

	existing, err := rdb.Get(ctx, "cachetype").Result()
	switch {
	case err == redis.Nil:
		if err := rdb.Set(ctx, "cachetype", cacheType, 0).Err(); err != nil {
			return nil, fmt.Errorf("kvstore: tag database: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("kvstore: read cachetype: %w", err)
	case existing != cacheType:
		return nil, fmt.Errorf("kvstore: incompatible database (cachetype %q, want %q)", existing, cacheType)
	}
	return &Store{rdb: rdb}, nil
}

// Close releases the connection.
func (s *Store) Close() error { return s.rdb.Close() }

// HIncrBy adds incr to a hash field, creating it as needed.
func (s *Store) HIncrBy(key, field string, incr int64) error {
	return s.rdb.HIncrBy(context.Background(), key, field, incr).Err()
}

// HGet reads a hash field; found is false when the field is absent.
func (s *Store) HGet(key, field string) (value string, found bool, err error) {
	v, err := s.rdb.HGet(context.Background(), key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("kvstore: hget %s/%s: %w", key, field, err)
	}
	return v, true, nil
}

// HSet writes a hash field.
func (s *Store) HSet(key, field, value string) error {
	return s.rdb.HSet(context.Background(), key, field, value).Err()
}
