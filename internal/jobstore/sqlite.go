package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/pavescan/internal/geo"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "jobstore: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "jobstore: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	address    TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated_at ON jobs(updated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "jobstore: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, point geo.Point, address string) (*Job, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, lat, lng, address, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, point.Lat, point.Lng, address, string(StatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "jobstore: insert job")
	}

	return &Job{
		ID:        id,
		Point:     point,
		Address:   address,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, jobID string, status JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "jobstore: update status %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, result json.RawMessage) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, updated_at = ? WHERE id = ?`,
		string(StatusCompleted), string(result), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "jobstore: complete job %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, cause string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), cause, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "jobstore: fail job %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lat, lng, address, status, result, error, created_at, updated_at FROM jobs WHERE id = ?`,
		jobID,
	)

	var j Job
	var status string
	var result sql.NullString
	err := row.Scan(&j.ID, &j.Point.Lat, &j.Point.Lng, &j.Address, &status, &result, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "jobstore: get job %s", jobID)
	}
	j.Status = JobStatus(status)
	if result.Valid {
		j.Result = json.RawMessage(result.String)
	}
	return &j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := `SELECT id, lat, lng, address, status, result, error, created_at, updated_at FROM jobs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "jobstore: list jobs")
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var status string
		var result sql.NullString
		if err := rows.Scan(&j.ID, &j.Point.Lat, &j.Point.Lng, &j.Address, &status, &result, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "jobstore: scan job")
		}
		j.Status = JobStatus(status)
		if result.Valid {
			j.Result = json.RawMessage(result.String)
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "jobstore: list jobs iterate")
}

func (s *SQLiteStore) DeleteExpired(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusCompleted), string(StatusFailed), cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "jobstore: delete expired")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "jobstore: rows affected")
	}
	return int(n), nil
}

func checkRowsAffected(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "jobstore: rows affected")
	}
	if n == 0 {
		return eris.Errorf("jobstore: job %s not found", jobID)
	}
	return nil
}
