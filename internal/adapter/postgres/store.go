// Package postgres keeps the geocode cache in a PostgreSQL table, for
// deployments that already run a database and want a shared cache.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
)

const createTable = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	provider     TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL
)`

var _ geocode.Store = (*Store)(nil)

// Store implements geocode.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects with dsn and ensures the cache table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create geocode_cache: %w", classify(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (domain.GeocodeCacheEntry, bool, error) {
	e := domain.GeocodeCacheEntry{Key: key}
	err := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, display_name, confidence, provider, updated_at
		   FROM geocode_cache WHERE key = $1`, key,
	).Scan(&e.Latitude, &e.Longitude, &e.DisplayName, &e.Confidence, &e.Provider, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodeCacheEntry{}, false, nil
	}
	if err != nil {
		return domain.GeocodeCacheEntry{}, false, fmt.Errorf("get %s: %w", key, classify(err))
	}
	e.UpdatedAt = e.UpdatedAt.UTC()
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, e domain.GeocodeCacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, latitude, longitude, display_name, confidence, provider, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (key) DO UPDATE SET
		   latitude = EXCLUDED.latitude,
		   longitude = EXCLUDED.longitude,
		   display_name = EXCLUDED.display_name,
		   confidence = EXCLUDED.confidence,
		   provider = EXCLUDED.provider,
		   updated_at = EXCLUDED.updated_at`,
		e.Key, e.Latitude, e.Longitude, e.DisplayName, e.Confidence, e.Provider, e.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", e.Key, classify(err))
	}
	return nil
}

// Reset drops and recreates the cache table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS geocode_cache`); err != nil {
		return fmt.Errorf("drop geocode_cache: %w", err)
	}
	return s.migrate(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// classify marks data corruption and read-only transactions as recoverable
// by Reset. Connection failures are not.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code.Class() {
	case "XX": // internal error, includes data_corrupted and index_corrupted
		return fmt.Errorf("%w: %w", geocode.ErrStoreCorrupt, err)
	case "25":
		if pqErr.Code == "25006" { // read_only_sql_transaction
			return fmt.Errorf("%w: %w", geocode.ErrStoreCorrupt, err)
		}
	case "42":
		if pqErr.Code == "42P01" || pqErr.Code == "42703" { // table or column missing
			return fmt.Errorf("%w: %w", geocode.ErrStoreCorrupt, err)
		}
	}
	return err
}
