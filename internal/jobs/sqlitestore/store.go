// Package sqlitestore persists consolidation jobs in SQLite so job history
// survives restarts of the API process.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	_ "modernc.org/sqlite"

	"github.com/dvloznov/revenue-tracker/internal/jobs"
)

// Fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a JobStore backed by a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and ensures the jobs table
// exists. Pass ":memory:" for an in-memory database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// An in-memory database lives only as long as its connection.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS consolidate_jobs (
			job_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error TEXT NOT NULL DEFAULT '',
			row_count INTEGER NOT NULL DEFAULT 0,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consolidate_jobs_session ON consolidate_jobs(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_consolidate_jobs_status ON consolidate_jobs(status)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.ConsolidateJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidate_jobs
		(job_id, session_id, start_date, end_date, status, created_at, started_at,
		 completed_at, error, row_count, retry_count, max_retries)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(job_id) DO UPDATE SET
			session_id = excluded.session_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error = excluded.error,
			row_count = excluded.row_count,
			retry_count = excluded.retry_count,
			max_retries = excluded.max_retries`,
		job.JobID, job.SessionID, formatDate(job.Window.Start), formatDate(job.Window.End),
		string(job.Status), job.CreatedAt.UTC().Format(timeLayout),
		nullTime(job.StartedAt), nullTime(job.CompletedAt),
		job.Error, job.Rows, job.RetryCount, job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("SaveJob %s: %w", job.JobID, err)
	}
	return nil
}

const selectColumns = `job_id, session_id, start_date, end_date, status, created_at,
	started_at, completed_at, error, row_count, retry_count, max_retries`

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ConsolidateJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM consolidate_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ConsolidateJob, error) {
	var where []string
	var args []any
	if filter.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + selectColumns + ` FROM consolidate_jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: %w", err)
	}
	defer rows.Close()

	result := []*jobs.ConsolidateJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ListJobs: %w", err)
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListJobs: %w", err)
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE consolidate_jobs
		SET status = ?, error = CASE WHEN ? = '' THEN error ELSE ? END
		WHERE job_id = ?`,
		string(status), errorMsg, errorMsg, jobID)
	if err != nil {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*jobs.ConsolidateJob, error) {
	var (
		job                jobs.ConsolidateJob
		start, end, status string
		created            string
		started, completed sql.NullString
	)
	err := sc.Scan(&job.JobID, &job.SessionID, &start, &end, &status, &created,
		&started, &completed, &job.Error, &job.Rows, &job.RetryCount, &job.MaxRetries)
	if err != nil {
		return nil, err
	}
	job.Status = jobs.JobStatus(status)

	if job.Window.Start, err = parseDate(start); err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	if job.Window.End, err = parseDate(end); err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	if job.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if job.StartedAt, err = parseNullTime(started); err != nil {
		return nil, fmt.Errorf("started_at: %w", err)
	}
	if job.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, fmt.Errorf("completed_at: %w", err)
	}
	return &job, nil
}

func formatDate(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}

func parseDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ jobs.JobStore = (*Store)(nil)
