package ledger

import (
	"context"

	"github.com/dl-alexandre/drivemirror/internal/types"
)

// RecordUntracked stores the outcome of every untracked item of one fork in a
// single transaction.
func (d *DB) RecordUntracked(ctx context.Context, runID, forkFolderID string, items []types.UntrackedItem) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO untracked_items (
			run_id, fork_folder_id, item_id, path, owner_email, resolution, transfer_requested, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, fork_folder_id, item_id) DO UPDATE SET
			path=excluded.path,
			owner_email=excluded.owner_email,
			resolution=excluded.resolution,
			transfer_requested=excluded.transfer_requested,
			error=excluded.error
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err = stmt.ExecContext(ctx, runID, forkFolderID, item.ID, item.Path, item.OwnerEmail,
			item.Resolution, boolToInt(item.OwnershipTransferRequested), item.Error); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListUntracked(ctx context.Context, runID string) (records []UntrackedRecord, err error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id, fork_folder_id, item_id, path, owner_email, resolution, transfer_requested, error
		FROM untracked_items WHERE run_id = ? ORDER BY fork_folder_id, path, item_id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var rec UntrackedRecord
		var requested int
		if err := rows.Scan(&rec.RunID, &rec.ForkFolderID, &rec.ItemID, &rec.Path, &rec.OwnerEmail,
			&rec.Resolution, &requested, &rec.Error); err != nil {
			return nil, err
		}
		rec.TransferRequested = requested != 0
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
