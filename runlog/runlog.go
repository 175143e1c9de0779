// Package runlog keeps a ledger of job runs in SQLite, one row per run,
// so `legisync runs` can show what was synced and how it went.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/legisync/errors"
	"github.com/teranos/legisync/etl"
	"github.com/teranos/legisync/logger"
)

// Run is one ledger row
type Run struct {
	ID           string            `json:"id" db:"id"`
	Job          string            `json:"job" db:"job"`
	Period       int               `json:"period" db:"period"`
	Destination  string            `json:"destination" db:"destination"`
	DryRun       bool              `json:"dry_run" db:"dry_run"`
	State        string            `json:"state" db:"state"`
	FailedState  string            `json:"failed_state,omitempty" db:"failed_state"`
	Loaded       int64             `json:"loaded" db:"loaded"`
	Failed       int64             `json:"failed" db:"failed"`
	FailedChunks int               `json:"failed_chunks" db:"failed_chunks"`
	Stats        etl.StatsSnapshot `json:"stats" db:"stats"`
	Error        string            `json:"error,omitempty" db:"error"`
	StartedAt    time.Time         `json:"started_at" db:"started_at"`
	FinishedAt   time.Time         `json:"finished_at" db:"finished_at"`
	DurationMS   int64             `json:"duration_ms" db:"duration_ms"`
}

// FromReport flattens a run report into a ledger row
func FromReport(r *etl.Report) Run {
	id := r.RunID
	if id == "" {
		id = uuid.New().String()
	}
	s := r.Stats
	return Run{
		ID:           id,
		Job:          r.Job,
		Period:       r.Period,
		Destination:  string(r.Destination),
		DryRun:       r.DryRun,
		State:        string(r.State),
		FailedState:  string(r.FailedState),
		Loaded:       s.Load.Succeeded,
		Failed:       s.Extract.Failed + s.Transform.Failed + s.Load.Failed,
		FailedChunks: r.FailedChunks,
		Stats:        s,
		Error:        r.Error,
		StartedAt:    r.StartedAt.UTC(),
		FinishedAt:   r.FinishedAt.UTC(),
		DurationMS:   r.Duration().Milliseconds(),
	}
}

// Store reads and writes the ledger
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore wraps an open, migrated database
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = logger.ComponentLogger("runlog")
	}
	return &Store{db: db, logger: log}
}

// Record inserts the report of a finished run
func (s *Store) Record(ctx context.Context, r *etl.Report) (Run, error) {
	run := FromReport(r)
	stats, err := json.Marshal(run.Stats)
	if err != nil {
		return run, errors.Wrap(err, "encode run stats")
	}

	query := `
		INSERT INTO sync_runs (
			id, job, period, destination, dry_run, state, failed_state,
			loaded, failed, failed_chunks, stats, error,
			started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.Job, run.Period, run.Destination, run.DryRun, run.State, run.FailedState,
		run.Loaded, run.Failed, run.FailedChunks, string(stats), run.Error,
		run.StartedAt, run.FinishedAt, run.DurationMS,
	)
	if err != nil {
		return run, errors.Wrapf(err, "record run %s", run.ID)
	}

	s.logger.Debugw("Run recorded", logger.FieldRunID, run.ID, logger.FieldJob, run.Job, logger.FieldState, run.State)
	return run, nil
}

// RecordQuietly records r and only logs a failure; the ledger never fails a run
func (s *Store) RecordQuietly(ctx context.Context, r *etl.Report) {
	if _, err := s.Record(ctx, r); err != nil {
		s.logger.Warnw("Run not recorded in ledger", logger.FieldRunID, r.RunID, logger.FieldError, err.Error())
	}
}

const selectRuns = `
	SELECT id, job, period, destination, dry_run, state, failed_state,
		loaded, failed, failed_chunks, stats, error,
		started_at, finished_at, duration_ms
	FROM sync_runs`

// List returns the latest runs, newest first. limit <= 0 means 20.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

// Latest returns the newest run of job for period
func (s *Store) Latest(ctx context.Context, job string, period int) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE job = ? AND period = ? ORDER BY started_at DESC LIMIT 1`, job, period)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.Mark(errors.Newf("no run of %s for legislature %d", job, period), errors.ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run   Run
		stats string
	)
	err := row.Scan(
		&run.ID, &run.Job, &run.Period, &run.Destination, &run.DryRun, &run.State, &run.FailedState,
		&run.Loaded, &run.Failed, &run.FailedChunks, &stats, &run.Error,
		&run.StartedAt, &run.FinishedAt, &run.DurationMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, errors.Wrap(err, "scan run")
	}
	if stats != "" {
		if err := json.Unmarshal([]byte(stats), &run.Stats); err != nil {
			return run, errors.Wrapf(err, "decode stats of run %s", run.ID)
		}
	}
	return run, nil
}
