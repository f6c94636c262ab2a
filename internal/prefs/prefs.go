// Package prefs persists small per-user settings (last opened folder,
// organization scope, search history) in a local SQLite database so the
// client restores its state across restarts. Failures surface as
// source.CacheError: a broken preference store degrades the session, it
// never aborts it.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mastertenor/korgan/internal/source"
)

// Well-known preference keys.
const (
	KeyLastFolder  = "last_folder"
	KeyLastOrg     = "last_org"
	KeyLastContext = "last_context"
)

// maxSearchHistory caps how many distinct search queries are remembered.
const maxSearchHistory = 50

// Store persists preferences in a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the preference database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening preference db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get returns the stored value for a key. A key that was never set
// returns the empty string with no error.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM prefs WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &source.CacheError{Op: fmt.Sprintf("reading pref %s", key), Err: err}
	}
	return value, nil
}

// Set stores a value under a key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prefs (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return &source.CacheError{Op: fmt.Sprintf("writing pref %s", key), Err: err}
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM prefs WHERE key = ?", key)
	if err != nil {
		return &source.CacheError{Op: fmt.Sprintf("deleting pref %s", key), Err: err}
	}
	return nil
}

// RecordSearch notes that a query was searched, moving it to the front of
// the history and bumping its use count. Blank queries are ignored. The
// history is pruned to the most recent maxSearchHistory entries.
func (s *Store) RecordSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO searches (query, uses, seq, last_used)
		VALUES (?, 1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM searches), ?)
		ON CONFLICT(query) DO UPDATE SET
			uses = uses + 1,
			seq = (SELECT COALESCE(MAX(seq), 0) + 1 FROM searches),
			last_used = excluded.last_used`,
		query, time.Now().UTC(),
	)
	if err != nil {
		return &source.CacheError{Op: "recording search", Err: err}
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM searches WHERE query NOT IN (
			SELECT query FROM searches ORDER BY seq DESC LIMIT ?
		)`,
		maxSearchHistory,
	)
	if err != nil {
		return &source.CacheError{Op: "pruning search history", Err: err}
	}
	return nil
}

// RecentSearches returns up to limit queries, most recently used first.
// A non-positive limit defaults to 10.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	var queries []string
	err := s.db.SelectContext(ctx, &queries,
		"SELECT query FROM searches ORDER BY seq DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, &source.CacheError{Op: "listing recent searches", Err: err}
	}
	return queries, nil
}

// DeleteSearch removes one query from the history.
func (s *Store) DeleteSearch(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM searches WHERE query = ?", query)
	if err != nil {
		return &source.CacheError{Op: "deleting search", Err: err}
	}
	return nil
}

// ClearSearches empties the search history.
func (s *Store) ClearSearches(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM searches")
	if err != nil {
		return &source.CacheError{Op: "clearing search history", Err: err}
	}
	return nil
}
