package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"subtrans/pkg/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is the fingerprint cache contract. Implementations must be
// safe for concurrent use; a write race on the same fingerprint is
// harmless because identical inputs produce interchangeable values.
type Store interface {
	// Lookup returns the cached translation for the fingerprint, or
	// ok=false on a miss.
	Lookup(ctx context.Context, fingerprint string) (translated string, ok bool, err error)
	// Put stores or overwrites the translation for the fingerprint.
	Put(ctx context.Context, fingerprint, translated string) error
	Close() error
}

// DefaultPath resolves the cache database location. SUBTRANS_CACHE
// overrides the per-user default.
func DefaultPath() (string, error) {
	if path := os.Getenv("SUBTRANS_CACHE"); path != "" {
		return path, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "subtrans", "cache.db"), nil
}

// Open returns the store for the given cache mode. Mode "off" and an
// unopenable database both yield the no-op store: cache trouble
// degrades to all-misses, it never fails the run.
func Open(path, mode string) Store {
	if mode == "off" {
		return Noop()
	}
	store, err := NewSQLiteStore(path)
	if err != nil {
		log.Warn("cache store unavailable, continuing without cache: %v", err)
		return Noop()
	}
	return store
}

// SQLiteStore persists cache entries in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path
// and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	var translated string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT translated_text FROM translations WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&translated)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return translated, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, fingerprint, translated string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translations (fingerprint, translated_text, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
			translated_text=excluded.translated_text,
			created_at=excluded.created_at`,
		fingerprint,
		translated,
		time.Now().UTC(),
	)
	return err
}

// noopStore treats every lookup as a miss and discards writes. Used
// when caching is off or the real store cannot be opened.
type noopStore struct{}

// Noop returns the no-op store.
func Noop() Store {
	return noopStore{}
}

func (noopStore) Lookup(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopStore) Put(context.Context, string, string) error           { return nil }
func (noopStore) Close() error                                        { return nil }
