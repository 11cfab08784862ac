package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/copyleftdev/irtune/internal/verify"
)

const schema = `
CREATE TABLE IF NOT EXISTS benchmark_records (
	id TEXT PRIMARY KEY,
	problem_id INTEGER NOT NULL,
	attempt INTEGER NOT NULL,
	baseline_ms REAL NOT NULL,
	compiled_ms REAL NOT NULL,
	optimized_ms REAL NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(problem_id, attempt)
);
CREATE INDEX IF NOT EXISTS idx_benchmark_problem ON benchmark_records(problem_id);
`

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn, creating its directory and schema
// as needed.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite store: empty DSN")
	}
	if dir := dsnDir(dsn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// dsnDir returns the directory of a file-backed DSN.
func dsnDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// Append implements verify.Recorder.
func (s *SQLite) Append(ctx context.Context, rec *verify.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var attempt int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt), 0) + 1 FROM benchmark_records WHERE problem_id = ?`,
		rec.ProblemID).Scan(&attempt)
	if err != nil {
		return fmt.Errorf("next attempt: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO benchmark_records (id, problem_id, attempt, baseline_ms, compiled_ms, optimized_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProblemID, attempt, rec.BaselineMS, rec.CompiledMS, rec.OptimizedMS,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	rec.Attempt = attempt
	return nil
}

// History implements Store.
func (s *SQLite) History(ctx context.Context, problemID int) ([]verify.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, problem_id, attempt, baseline_ms, compiled_ms, optimized_ms, created_at
		 FROM benchmark_records WHERE problem_id = ? ORDER BY attempt`, problemID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []verify.Record
	for rows.Next() {
		var (
			r       verify.Record
			created string
		)
		if err := rows.Scan(&r.ID, &r.ProblemID, &r.Attempt, &r.BaselineMS, &r.CompiledMS, &r.OptimizedMS, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
