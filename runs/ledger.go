// Package runs records training requests and their outcome in a SQLite ledger.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// Status of a training run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one training request.
type Run struct {
	ID         string          `json:"id"`
	Dataset    string          `json:"dataset"`
	Model      string          `json:"model"`
	Status     Status          `json:"status"`
	Artifact   string          `json:"artifact_name,omitempty"`
	Metrics    json.RawMessage `json:"metrics,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	dataset     TEXT NOT NULL,
	model       TEXT NOT NULL,
	status      TEXT NOT NULL,
	artifact    TEXT NOT NULL DEFAULT '',
	metrics     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT ''
)`

// Ledger is the history of training requests kept in SQLite. It is safe for
// concurrent use.
type Ledger struct {
	db     *sql.DB
	now    func() time.Time
	logger log.Logger
}

// Open opens the database at path, creating it and its directory if needed,
// and applies the schema.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open run ledger %s", path)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma journal_mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create runs table")
	}
	return &Ledger{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.GetLoggerWithName("runs"),
	}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// Start records a new running run and returns its id.
func (l *Ledger) Start(ctx context.Context, dataset, model string) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, model, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, dataset, model, string(StatusRunning), l.now().Format(time.RFC3339Nano))
	if err != nil {
		return "", errors.Wrap(err, "insert run")
	}
	l.logger.Debug("Run started", log.RunIDKey, id, log.DatasetNameKey, dataset, log.ModelNameKey, model)
	return id, nil
}

// Finish marks a run as succeeded. metrics is stored as JSON.
func (l *Ledger) Finish(ctx context.Context, id, artifact string, metrics any) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return errors.Wrap(err, "encode metrics")
	}
	return l.finish(ctx, id, StatusSucceeded, artifact, string(raw), "")
}

// Fail marks a run as failed with the error message of cause.
func (l *Ledger) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.finish(ctx, id, StatusFailed, "", "", msg)
}

func (l *Ledger) finish(ctx context.Context, id string, status Status, artifact, metrics, msg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, artifact = ?, metrics = ?, error = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(status), artifact, metrics, msg, l.now().Format(time.RFC3339Nano), id, string(StatusRunning))
	if err != nil {
		return errors.Wrap(err, "update run")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update run")
	}
	if n == 0 {
		if _, err := l.Get(ctx, id); err != nil {
			return err
		}
		return errors.NewStateError("Ledger.finish", "run "+id+" is already finished")
	}
	l.logger.Debug("Run finished", log.RunIDKey, id, "status", string(status))
	return nil
}

const selectRun = `SELECT id, dataset, model, status, artifact, metrics, error, started_at, finished_at FROM runs`

// Get returns one run. An unknown id is a NotFoundError.
func (l *Ledger) Get(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.NewNotFoundError("run", id)
	}
	return r, err
}

// List returns at most limit runs, newest first. limit <= 0 returns all runs.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, selectRun+` ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                   Run
		status, metrics     string
		started, finishedAt string
	)
	if err := s.Scan(&r.ID, &r.Dataset, &r.Model, &status, &r.Artifact, &metrics, &r.Error, &started, &finishedAt); err != nil {
		return Run{}, err
	}
	r.Status = Status(status)
	if metrics != "" {
		r.Metrics = json.RawMessage(metrics)
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, errors.Wrap(err, "parse started_at")
	}
	r.StartedAt = t
	if finishedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, finishedAt)
		if err != nil {
			return Run{}, errors.Wrap(err, "parse finished_at")
		}
		r.FinishedAt = &t
	}
	return r, nil
}
