// Package runlog records pipeline stages in a local SQLite database.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// DefaultFile is the database file name inside the work directory.
const DefaultFile = "runlog.db"

// Status of a stage.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Entry is one recorded stage.
type Entry struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	Stage       string         `json:"stage"`
	Status      Status         `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Rows        int64          `json:"rows"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Result is the outcome of a stage, passed to Complete.
type Result struct {
	Rows     int64
	Metadata map[string]any
}

// Log writes stage entries for one pipeline invocation. A nil *Log records
// nothing, so callers can run without a run log.
type Log struct {
	db    *sql.DB
	runID string
	now   func() time.Time
}

const migration = `
CREATE TABLE IF NOT EXISTS stages (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows         INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	metadata     TEXT
);

CREATE INDEX IF NOT EXISTS idx_stages_run_id ON stages(run_id);
CREATE INDEX IF NOT EXISTS idx_stages_started_at ON stages(started_at);
`

// Open opens (creating when needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "runlog: create directory for %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, migration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "runlog: migrate")
	}
	return &Log{
		db:    db,
		runID: uuid.New().String(),
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunID identifies the invocation that owns the entries written by l.
func (l *Log) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Close closes the database.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Start records the beginning of a stage and returns its ID.
func (l *Log) Start(ctx context.Context, stage string) (string, error) {
	if l == nil {
		return "", nil
	}
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO stages (id, run_id, stage, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, l.runID, stage, string(StatusRunning), l.now(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s", stage)
	}
	return id, nil
}

// Complete marks a stage as completed.
func (l *Log) Complete(ctx context.Context, id string, result *Result) error {
	if l == nil {
		return nil
	}
	var rows int64
	var meta any
	if result != nil {
		rows = result.Rows
		if result.Metadata != nil {
			b, err := json.Marshal(result.Metadata)
			if err != nil {
				return eris.Wrap(err, "runlog: marshal metadata")
			}
			meta = string(b)
		}
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE stages SET status = ?, completed_at = ?, rows = ?, metadata = ? WHERE id = ?`,
		string(StatusComplete), l.now(), rows, meta, id,
	)
	return eris.Wrapf(err, "runlog: complete %s", id)
}

// Fail marks a stage as failed with the error message.
func (l *Log) Fail(ctx context.Context, id string, stageErr error) error {
	if l == nil {
		return nil
	}
	msg := ""
	if stageErr != nil {
		msg = stageErr.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE stages SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(StatusFailed), l.now(), msg, id,
	)
	return eris.Wrapf(err, "runlog: fail %s", id)
}

// Track runs fn as a stage, recording its start and outcome. Failures to
// write the log are ignored; fn's error is returned unchanged.
func (l *Log) Track(ctx context.Context, stage string, fn func() (*Result, error)) error {
	id, startErr := l.Start(ctx, stage)
	res, err := fn()
	if startErr != nil {
		return err
	}
	if err != nil {
		_ = l.Fail(ctx, id, err)
		return err
	}
	_ = l.Complete(ctx, id, res)
	return nil
}

// List returns the most recent entries first. A non-positive limit returns
// every entry.
func (l *Log) List(ctx context.Context, limit int) ([]Entry, error) {
	if l == nil {
		return nil, nil
	}
	query := `SELECT id, run_id, stage, status, started_at, completed_at, rows, error, metadata
		FROM stages ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			status      string
			completedAt sql.NullTime
			errStr      sql.NullString
			meta        sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stage, &status, &e.StartedAt, &completedAt, &e.Rows, &errStr, &meta); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.Status = Status(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		if meta.Valid && meta.String != "" {
			_ = json.Unmarshal([]byte(meta.String), &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: iterate entries")
}
