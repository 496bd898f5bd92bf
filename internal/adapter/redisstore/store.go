// Package redisstore keeps geocode cache entries in Redis as JSON strings
// under a key prefix.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
)

// DefaultPrefix namespaces cache keys within a shared Redis database.
const DefaultPrefix = "forest-geocode:"

var _ geocode.Store = (*Store)(nil)

// Store implements geocode.Store on Redis.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(rdb, DefaultPrefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) (domain.GeocodeCacheEntry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.GeocodeCacheEntry{}, false, nil
	}
	if err != nil {
		return domain.GeocodeCacheEntry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var e domain.GeocodeCacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.GeocodeCacheEntry{}, false, fmt.Errorf("decode %s: %w: %w", key, geocode.ErrStoreCorrupt, err)
	}
	e.Key = key
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, e domain.GeocodeCacheEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Key, err)
	}
	if err := s.rdb.Set(ctx, s.prefix+e.Key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", e.Key, err)
	}
	return nil
}

// Reset deletes every key under the prefix.
func (s *Store) Reset(ctx context.Context) error {
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
