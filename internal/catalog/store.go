package catalog

import (
	"context"
	_ "embed"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// dbDirName and dbFileName place the index at
// <library_root>/.slidemanager/index.sqlite.
const (
	dbDirName  = ".slidemanager"
	dbFileName = "index.sqlite"
)

// Store owns the single SQLite database for one library root. All pipeline
// and API code reads and writes through it; there is exactly one Store per
// running daemon.
type Store struct {
	db          *sql.DB
	LibraryRoot string
}

// DBPath returns the on-disk path of the index database under root.
func DBPath(libraryRoot string) string {
	return filepath.Join(libraryRoot, dbDirName, dbFileName)
}

// Open creates (if needed) and opens the catalog database under libraryRoot:
// foreign keys on, WAL journaling, NORMAL synchronous, in-memory temp store,
// and a
// 5-second busy timeout so concurrent pipeline goroutines don't immediately
// fail on SQLITE_BUSY.
func Open(libraryRoot string) (*Store, error) {
	dir := filepath.Join(libraryRoot, dbDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	dsn := DBPath(libraryRoot) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	// The planner, watchdog, and every pipeline share one *sql.DB; SQLite
	// itself serializes writers, so a single connection avoids
	// database-is-locked churn under modernc.org/sqlite's driver.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, LibraryRoot: libraryRoot}, nil
}

// migrate applies schema.sql, one statement at a time since the driver does
// not guarantee multi-statement Exec.
func migrate(db *sql.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema statement %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		stmt := strings.TrimSpace(raw)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if len(s) > 60 {
		return s[:60]
	}
	return s
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, committing on nil return and rolling
// back otherwise. UpsertFTSPage's delete-then-insert and
// CancelJobActiveWork's task+artifact update run through it so neither is
// left half-applied.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// NowEpoch returns the current Unix time, the timestamp unit every
// *_at column stores.
func NowEpoch() int64 {
	return time.Now().Unix()
}
