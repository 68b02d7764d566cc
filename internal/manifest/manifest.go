// Package manifest records which files have been ingested, so an ingestion
// run can skip files whose size and modification time are unchanged.
package manifest

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

	"github.com/fyrsmithlabs/docrag/internal/manifest/migrations"
)

// Entry is one ingested file.
type Entry struct {
	Path       string    `json:"path" yaml:"path"`
	Collection string    `json:"collection" yaml:"collection"`
	Size       int64     `json:"size" yaml:"size"`
	ModTime    time.Time `json:"mod_time" yaml:"mod_time"`
	Chunks     int       `json:"chunks" yaml:"chunks"`
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
}

// Store is a SQLite-backed manifest.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the manifest database at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("manifest path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating manifest directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Unchanged reports whether relPath was ingested with the same size and
// modification time (second precision).
func (s *Store) Unchanged(ctx context.Context, relPath string, size int64, modTime time.Time) (bool, error) {
	var gotSize, gotMod int64
	err := s.db.QueryRowContext(ctx,
		"SELECT size, mod_time FROM files WHERE path = ?", relPath,
	).Scan(&gotSize, &gotMod)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", relPath, err)
	}
	return gotSize == size && gotMod == modTime.Unix(), nil
}

// Record stores or replaces the entry for e.Path.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.IngestedAt.IsZero() {
		e.IngestedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (path, collection, size, mod_time, chunks, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			collection = excluded.collection,
			size = excluded.size,
			mod_time = excluded.mod_time,
			chunks = excluded.chunks,
			ingested_at = excluded.ingested_at
	`, e.Path, e.Collection, e.Size, e.ModTime.Unix(), e.Chunks, e.IngestedAt.Unix())
	if err != nil {
		return fmt.Errorf("recording %s: %w", e.Path, err)
	}
	return nil
}

// List returns all entries ordered by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT path, collection, size, mod_time, chunks, ingested_at FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e             Entry
			mod, ingested int64
		)
		if err := rows.Scan(&e.Path, &e.Collection, &e.Size, &mod, &e.Chunks, &ingested); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		e.ModTime = time.Unix(mod, 0)
		e.IngestedAt = time.Unix(ingested, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
