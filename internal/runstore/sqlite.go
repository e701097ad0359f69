package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a run store. Use ":memory:" for an in-memory
// database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		remote TEXT NOT NULL,
		branch TEXT NOT NULL DEFAULT '',
		commit_hash TEXT NOT NULL DEFAULT '',
		files INTEGER NOT NULL DEFAULT 0,
		cloned INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends a run to the history.
func (s *Store) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, remote, branch, commit_hash, files, cloned, outcome, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Source, run.Remote, run.Branch, run.Commit,
		run.Files, boolInt(run.Cloned), run.Outcome, run.Error,
		run.StartedAt.Unix(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// BySource retrieves the most recent runs of one source, newest first.
// limit <= 0 means no limit.
func (s *Store) BySource(ctx context.Context, source string, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE source = ? ORDER BY started_at DESC, rowid DESC LIMIT ?",
		source, limitValue(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return s.scanRuns(rows)
}

// Recent retrieves the most recent runs across all sources, newest
// first. limit <= 0 means no limit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		selectColumns+" ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limitValue(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return s.scanRuns(rows)
}

// Last retrieves the most recent run of one source, or nil when the
// source has never run.
func (s *Store) Last(ctx context.Context, source string) (*Run, error) {
	runs, err := s.BySource(ctx, source, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

const selectColumns = "SELECT id, source, remote, branch, commit_hash, files, cloned, outcome, error, started_at, duration_ms FROM runs"

func (s *Store) scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run        Run
			id         string
			cloned     int
			startedAt  int64
			durationMS int64
		)
		err := rows.Scan(&id, &run.Source, &run.Remote, &run.Branch, &run.Commit,
			&run.Files, &cloned, &run.Outcome, &run.Error, &startedAt, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		run.Cloned = cloned != 0
		run.StartedAt = time.Unix(startedAt, 0)
		run.Duration = time.Duration(durationMS) * time.Millisecond

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func limitValue(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: negative LIMIT means unlimited
	}
	return limit
}
