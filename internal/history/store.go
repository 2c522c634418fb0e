// Package history is an append-only SQLite ledger of completed task runs,
// queried by the `scaffold history` subcommand. It never updates or
// deletes a row; ResultProcessor appends one record per run that was
// blocked, failed in its handler, or ended with an opened PR.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one completed (or failed) task invocation.
type Run struct {
	SessionID   string
	TaskID      string
	Route       string // "claude_code" or "manual"
	Success     bool
	ExitCode    int
	CostUSD     float64
	DurationSec float64
	PRURL       string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Store is a SQLite-backed task_runs ledger.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at dbPath, enabling WAL mode and a busy
// timeout so a concurrent `scaffold history` read never collides with an
// in-flight orchestrator write.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(2)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory ledger, for tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Append records one task run.
func (s *Store) Append(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs
			(session_id, task_id, route, success, exit_code, cost_usd, duration_sec, pr_url, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.SessionID, run.TaskID, run.Route, run.Success, run.ExitCode,
		run.CostUSD, run.DurationSec, nullableString(run.PRURL), nullableString(run.Error),
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("appending task run for %s: %w", run.TaskID, err)
	}
	return nil
}

// QueryFilter narrows a Query call. Zero values mean "no filter".
type QueryFilter struct {
	TaskID string
	Since  time.Time
}

// Query returns runs matching filter, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Run, error) {
	query := `
		SELECT session_id, task_id, route, success, exit_code, cost_usd, duration_sec,
		       COALESCE(pr_url, ''), COALESCE(error, ''), started_at, finished_at
		FROM task_runs
		WHERE (? = '' OR task_id = ?)
		  AND (? IS NULL OR started_at >= ?)
		ORDER BY started_at DESC`

	var since interface{}
	if !filter.Since.IsZero() {
		since = filter.Since
	}

	rows, err := s.db.QueryContext(ctx, query, filter.TaskID, filter.TaskID, since, since)
	if err != nil {
		return nil, fmt.Errorf("querying task runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.SessionID, &r.TaskID, &r.Route, &r.Success, &r.ExitCode,
			&r.CostUSD, &r.DurationSec, &r.PRURL, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning task run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
