package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

func (d *DB) StartRun(ctx context.Context, run Run) error {
	if run.StartedAt == 0 {
		run.StartedAt = time.Now().Unix()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (id, repo, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Repo, run.Mode, run.Status, run.StartedAt)
	return err
}

// FinishRun stores the final counters and status of run.
func (d *DB) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt == 0 {
		run.FinishedAt = time.Now().Unix()
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, finished_at = ?, materialized = ?, removed = ?, failed = ?, untracked = ?, pr_url = ?, error = ?
		WHERE id = ?
	`, run.Status, run.FinishedAt, run.Materialized, run.Removed, run.Failed, run.Untracked, run.PRURL, run.Error, run.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.NewAppError(utils.NewCLIError(utils.ErrCodeFileNotFound, "run "+run.ID+" not found").Build())
	}
	return nil
}

func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, repo, mode, status, started_at, finished_at, materialized, removed, failed, untracked, pr_url, error
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeFileNotFound, "run "+id+" not found").Build())
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the newest runs first.
func (d *DB) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, repo, mode, status, started_at, finished_at, materialized, removed, failed, untracked, pr_url, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var finished sql.NullInt64
	var prURL, errText sql.NullString
	if err := row.Scan(&run.ID, &run.Repo, &run.Mode, &run.Status, &run.StartedAt, &finished,
		&run.Materialized, &run.Removed, &run.Failed, &run.Untracked, &prURL, &errText); err != nil {
		return Run{}, err
	}
	run.FinishedAt = finished.Int64
	run.PRURL = prURL.String
	run.Error = errText.String
	return run, nil
}
