package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.StartRun(ctx, Run{ID: "r1", Repo: "acme/docs", Mode: "sync", StartedAt: 100}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if err := db.StartRun(ctx, Run{ID: "r2", Repo: "acme/docs", Mode: "plan", StartedAt: 200}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	got, err := db.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != StatusRunning || got.FinishedAt != 0 {
		t.Errorf("new run = %+v, want running and unfinished", got)
	}

	err = db.FinishRun(ctx, Run{
		ID: "r1", Status: StatusSucceeded, FinishedAt: 150,
		Materialized: 3, Removed: 1, Untracked: 2, PRURL: "https://github.com/acme/docs/pull/7",
	})
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := db.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r2" {
		t.Fatalf("ListRuns = %+v, want r2 first", runs)
	}
	r1 := runs[1]
	if r1.Status != StatusSucceeded || r1.Materialized != 3 || r1.Removed != 1 || r1.PRURL == "" {
		t.Errorf("finished run = %+v", r1)
	}
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.GetRun(ctx, "missing"); !utils.IsNotFound(err) {
		t.Errorf("GetRun missing: got %v, want not found", err)
	}
	if err := db.FinishRun(ctx, Run{ID: "missing", Status: StatusFailed}); !utils.IsNotFound(err) {
		t.Errorf("FinishRun missing: got %v, want not found", err)
	}
}

func TestRecordUntracked(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.StartRun(ctx, Run{ID: "r1", Repo: "acme/docs", Mode: "sync"}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	items := []types.UntrackedItem{
		{ID: "U2", Path: "b.pdf", OwnerEmail: "bob@example.com", Resolution: types.ResolutionFailed, Error: "forbidden"},
		{ID: "U1", Path: "a.pdf", OwnerEmail: "alice@example.com", Resolution: types.ResolutionRequested, OwnershipTransferRequested: true},
	}
	if err := db.RecordUntracked(ctx, "r1", "F1", items); err != nil {
		t.Fatalf("RecordUntracked: %v", err)
	}
	// Recording again updates in place.
	items[0].Resolution = types.ResolutionResolved
	if err := db.RecordUntracked(ctx, "r1", "F1", items); err != nil {
		t.Fatalf("RecordUntracked again: %v", err)
	}

	records, err := db.ListUntracked(ctx, "r1")
	if err != nil {
		t.Fatalf("ListUntracked: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ItemID != "U1" || !records[0].TransferRequested {
		t.Errorf("first record = %+v", records[0])
	}
	if records[1].Resolution != types.ResolutionResolved {
		t.Errorf("second record resolution = %s, want resolved", records[1].Resolution)
	}
}
