// Package ledger keeps an audit log of runs in SQLite. Reconciliation never
// reads it; the working tree is the only sync state.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	instance := &DB{db: db}
	if err := instance.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return instance, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, schemaSQL)
	return err
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	repo TEXT NOT NULL,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	materialized INTEGER NOT NULL DEFAULT 0,
	removed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	untracked INTEGER NOT NULL DEFAULT 0,
	pr_url TEXT,
	error TEXT
);

CREATE TABLE IF NOT EXISTS untracked_items (
	run_id TEXT NOT NULL,
	fork_folder_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	path TEXT,
	owner_email TEXT,
	resolution TEXT,
	transfer_requested INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	PRIMARY KEY (run_id, fork_folder_id, item_id),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_untracked_item ON untracked_items(item_id);
`
