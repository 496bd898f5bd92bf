// Package sqlite is the default durable geocode cache: one SQLite file in WAL
// mode. A file that turns out to be corrupt or read-only is deleted together
// with its -wal and -shm sidecars and recreated empty.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
	"github.com/couchcryptid/forest-data-etl/internal/geocode"
)

const schema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key          TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL DEFAULT 0,
	provider     TEXT NOT NULL DEFAULT '',
	updated_at   TEXT NOT NULL
)`

var _ geocode.Store = (*Store)(nil)

// errNotOpen is returned while a failed Reset has left no database open. It
// is classed as corrupt so the cache attempts another reset.
var errNotOpen = fmt.Errorf("cache database not open: %w", geocode.ErrStoreCorrupt)

// Store implements geocode.Store on a SQLite file.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// Open opens or creates the cache file at path. An unusable existing file is
// replaced rather than reported.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	err := s.open(ctx)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, geocode.ErrStoreCorrupt) {
		return nil, err
	}

	logger.Warn("geocode cache file unusable, recreating", "path", path, "error", err)
	if err := s.removeFiles(); err != nil {
		return nil, err
	}
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open(ctx context.Context) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	dsn := "file:" + s.path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return classify("create schema", err)
	}
	var check string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&check); err != nil {
		_ = db.Close()
		return classify("quick check", err)
	}
	if check != "ok" {
		_ = db.Close()
		return fmt.Errorf("quick check: %s: %w", check, geocode.ErrStoreCorrupt)
	}

	s.db = db
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (domain.GeocodeCacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.GeocodeCacheEntry{}, false, errNotOpen
	}

	e := domain.GeocodeCacheEntry{Key: key}
	var updated string
	err := s.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, display_name, confidence, provider, updated_at
		   FROM geocode_cache WHERE key = ?`, key,
	).Scan(&e.Latitude, &e.Longitude, &e.DisplayName, &e.Confidence, &e.Provider, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.GeocodeCacheEntry{}, false, nil
	}
	if err != nil {
		return domain.GeocodeCacheEntry{}, false, classify("get", err)
	}
	e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return domain.GeocodeCacheEntry{}, false, fmt.Errorf("decode updated_at %q: %w", updated, geocode.ErrStoreCorrupt)
	}
	return e, true, nil
}

func (s *Store) Put(ctx context.Context, e domain.GeocodeCacheEntry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errNotOpen
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (key, latitude, longitude, display_name, confidence, provider, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   latitude = excluded.latitude,
		   longitude = excluded.longitude,
		   display_name = excluded.display_name,
		   confidence = excluded.confidence,
		   provider = excluded.provider,
		   updated_at = excluded.updated_at`,
		e.Key, e.Latitude, e.Longitude, e.DisplayName, e.Confidence, e.Provider,
		e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return classify("put", err)
	}
	return nil
}

// Reset closes the database, deletes the file and its sidecars, and opens a
// fresh one. If that fails the store stays closed and every operation
// returns an ErrStoreCorrupt error until a later Reset succeeds.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	if err := s.removeFiles(); err != nil {
		return err
	}
	s.logger.Warn("geocode cache recreated", "path", s.path)
	return s.open(ctx)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) removeFiles() error {
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// classify wraps err with geocode.ErrStoreCorrupt when recreating the file
// can fix it.
func classify(op string, err error) error {
	if isRecoverable(err) {
		return fmt.Errorf("%s: %w: %w", op, geocode.ErrStoreCorrupt, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isRecoverable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"not a database", "malformed", "corrupt", "readonly", "read-only", "notadb"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
