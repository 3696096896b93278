package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Outcome classifies a recorded run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeDegraded marks a completed run with merge or deletion failures.
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailed   Outcome = "failed"
)

// Run is one persisted run summary.
type Run struct {
	ID             int64
	RunID          string
	VideoRoot      string
	StartedAt      time.Time
	FinishedAt     time.Time
	Outcome        Outcome
	DryRun         bool
	Merged         int
	Orphaned       int
	Failed         int
	OrphansDeleted int
	DeleteFailures int
	ErrorMessage   string
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

const runColumns = "id, run_id, video_root, started_at, finished_at, outcome, dry_run, merged, orphaned, failed, orphans_deleted, delete_failures, error_message"

// Record inserts a run summary and returns the stored row id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	if run.RunID == "" {
		return 0, errors.New("run id is required")
	}
	if run.Outcome == "" {
		run.Outcome = OutcomeCompleted
	}
	ctx = ensureContext(ctx)

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO runs (
                run_id, video_root, started_at, finished_at, outcome, dry_run,
                merged, orphaned, failed, orphans_deleted, delete_failures, error_message
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID,
			run.VideoRoot,
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			string(run.Outcome),
			boolToInt(run.DryRun),
			run.Merged,
			run.Orphaned,
			run.Failed,
			run.OrphansDeleted,
			run.DeleteFailures,
			nullableString(run.ErrorMessage),
		)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first. A limit <= 0 returns all
// runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var runs []Run
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		runs = runs[:0]
		for rows.Next() {
			run, scanErr := scanRun(rows)
			if scanErr != nil {
				return scanErr
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Latest returns the newest run for root, or nil when none is recorded.
func (s *Store) Latest(ctx context.Context, root string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE video_root = ? ORDER BY started_at DESC, id DESC LIMIT 1`,
		root,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// Prune deletes runs that started before cutoff and returns the number
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw string
		outcome     string
		dryRun      int64
		errorMsg    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.VideoRoot,
		&startedRaw,
		&finishedRaw,
		&outcome,
		&dryRun,
		&run.Merged,
		&run.Orphaned,
		&run.Failed,
		&run.OrphansDeleted,
		&run.DeleteFailures,
		&errorMsg,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	run.Outcome = Outcome(outcome)
	run.DryRun = dryRun != 0
	if errorMsg.Valid {
		run.ErrorMessage = errorMsg.String
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
