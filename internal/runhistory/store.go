// Package runhistory persists a record of each orchestrator run so the
// CLI's history subcommand can list and compare past runs. It is a
// cross-run complement to models.RunContext, which is scoped to a single
// invocation and discarded once the run ends.
package runhistory

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"database/sql"

	"github.com/harrison/parallelorc/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// RunRecord is one row of run history.
type RunRecord struct {
	RunID          string
	Requirements   string
	Backend        string
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	SkippedTasks   int
	SuccessRate    float64
	StartedAt      time.Time
	FinishedAt     time.Time
	Duration       time.Duration
}

// Store manages the SQLite-backed run history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if necessary) the run history database at
// dbPath and initializes its schema. dbPath may be ":memory:" for an
// ephemeral database, used by tests.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run history directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run history database: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init run history schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun inserts a completed run's summary. runID must be unique;
// re-recording the same runID is an error rather than an upsert, since a
// run is only ever recorded once, at completion.
func (s *Store) RecordRun(ctx context.Context, runID, requirements, backend string, summary *models.RunSummary, startedAt, finishedAt time.Time) error {
	query := `INSERT INTO runs
		(run_id, requirements, backend, total_tasks, completed_tasks, failed_tasks, skipped_tasks, success_rate, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		runID,
		requirements,
		backend,
		summary.TotalTasks,
		summary.Completed,
		summary.Failed,
		summary.Skipped,
		summary.SuccessRate,
		startedAt,
		finishedAt,
		summary.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs, most recent first, up to limit
// rows. A non-positive limit returns all recorded runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `SELECT run_id, requirements, backend, total_tasks, completed_tasks, failed_tasks, skipped_tasks, success_rate, started_at, finished_at, duration_ms
		FROM runs
		ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		r := &RunRecord{}
		var durationMs int64
		if err := rows.Scan(
			&r.RunID,
			&r.Requirements,
			&r.Backend,
			&r.TotalTasks,
			&r.CompletedTasks,
			&r.FailedTasks,
			&r.SkippedTasks,
			&r.SuccessRate,
			&r.StartedAt,
			&r.FinishedAt,
			&durationMs,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}

	return records, nil
}

// GetRun looks up a single run by its run ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `SELECT run_id, requirements, backend, total_tasks, completed_tasks, failed_tasks, skipped_tasks, success_rate, started_at, finished_at, duration_ms
		FROM runs
		WHERE run_id = ?`

	r := &RunRecord{}
	var durationMs int64
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&r.RunID,
		&r.Requirements,
		&r.Backend,
		&r.TotalTasks,
		&r.CompletedTasks,
		&r.FailedTasks,
		&r.SkippedTasks,
		&r.SuccessRate,
		&r.StartedAt,
		&r.FinishedAt,
		&durationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query run %q: %w", runID, err)
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond

	return r, nil
}
