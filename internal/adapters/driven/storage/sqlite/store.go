// Package sqlite implements the durable visit ledger on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/parchment-labs/recall/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/parchment-labs/recall/internal/core/domain"
	"github.com/parchment-labs/recall/internal/core/ports/driven"
)

// Ensure VisitStore implements the interface.
var _ driven.VisitStore = (*VisitStore)(nil)

// VisitStore persists per-URL visit counts and last-seen instants.
// Writes for different URLs serialise inside SQLite; no global engine
// lock is needed for visit signals.
type VisitStore struct {
	db   *sql.DB
	path string
}

// NewVisitStore opens (or creates) the ledger inside dataDir.
// If dataDir is empty, defaults to ~/.recall/data.
func NewVisitStore(dataDir string) (*VisitStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".recall", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "visits.db")

	// WAL mode keeps readers unblocked while visit signals stream in.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &VisitStore{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// RecordVisit increments (or creates) the record for url and returns the
// new count. The upsert and the count read happen in one statement, so
// concurrent signals for the same URL never lose increments.
func (s *VisitStore) RecordVisit(ctx context.Context, url string, at time.Time) (int, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return 0, fmt.Errorf("%w: url is empty", domain.ErrInvalidInput)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO visits (url, visit_count, last_visit)
		VALUES (?, 1, ?)
		ON CONFLICT(url) DO UPDATE SET
			visit_count = visit_count + 1,
			last_visit = excluded.last_visit
		RETURNING visit_count
	`, url, at.UTC())

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("recording visit: %w", err)
	}
	return count, nil
}

// Get returns the record for url, or domain.ErrNotFound.
func (s *VisitStore) Get(ctx context.Context, url string) (*domain.VisitRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT url, visit_count, last_visit FROM visits WHERE url = ?
	`, url)

	var rec domain.VisitRecord
	var lastVisit sql.NullTime
	if err := row.Scan(&rec.URL, &rec.VisitCount, &lastVisit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting visit record: %w", err)
	}
	if lastVisit.Valid {
		rec.LastVisit = lastVisit.Time.UTC()
	}
	return &rec, nil
}

// Close closes the database connection.
func (s *VisitStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *VisitStore) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *VisitStore) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}
		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
