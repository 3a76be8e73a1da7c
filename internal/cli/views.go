package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dl-alexandre/drivemirror/internal/sync"
	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/sync/ledger"
)

// PlanView renders a plan as one row per change or untracked item.
type PlanView struct {
	Plan *sync.Plan `json:"plan"`
}

func (v PlanView) Headers() []string {
	return []string{"Fork", "Action", "Path", "Reason"}
}

func (v PlanView) Rows() [][]string {
	var rows [][]string
	for _, fp := range v.Plan.Forks {
		for _, a := range fp.Result.Changes() {
			rows = append(rows, []string{fp.Fork.Path, string(a.Type), truncate(a.Path, 80), a.Reason})
		}
		for _, u := range fp.Result.Untracked {
			rows = append(rows, []string{fp.Fork.Path, "untracked:" + string(fp.Fork.OnUntrack), truncate(u.Path, 80), u.OwnerEmail})
		}
		for _, f := range fp.Failures {
			rows = append(rows, []string{fp.Fork.Path, "skipped", truncate(f.Path, 80), f.Error})
		}
	}
	return rows
}

func (v PlanView) EmptyMessage() string {
	return "Mirror is up to date"
}

// SyncView renders the per-fork totals of an applied run.
type SyncView struct {
	Report      *sync.Report `json:"report"`
	PullRequest string       `json:"pullRequest,omitempty"`
	Published   string       `json:"published"`
}

func (v SyncView) Headers() []string {
	return []string{"Fork", "Materialized", "Removed", "Failed", "Skipped", "Untracked"}
}

func (v SyncView) Rows() [][]string {
	var rows [][]string
	for _, fr := range v.Report.Forks {
		s := fr.Outcome.Summary
		rows = append(rows, []string{
			fr.Fork.Path,
			strconv.Itoa(s.Materialized),
			strconv.Itoa(s.Removed),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(len(fr.Untracked)),
		})
	}
	return rows
}

func (v SyncView) EmptyMessage() string {
	return "No forks configured"
}

// HistoryView lists ledger runs, newest first.
type HistoryView struct {
	Runs []ledger.Run `json:"runs"`
}

func (v HistoryView) Headers() []string {
	return []string{"Run", "Started", "Status", "Materialized", "Removed", "Failed", "Untracked", "Pull Request"}
}

func (v HistoryView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Runs))
	for _, r := range v.Runs {
		rows = append(rows, []string{
			r.ID[:min(8, len(r.ID))],
			time.Unix(r.StartedAt, 0).UTC().Format(time.RFC3339),
			r.Status,
			strconv.Itoa(r.Materialized),
			strconv.Itoa(r.Removed),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Untracked),
			r.PRURL,
		})
	}
	return rows
}

func (v HistoryView) EmptyMessage() string {
	return "No runs recorded"
}

func describeSummary(s diff.Summary) string {
	return fmt.Sprintf("%d to materialize, %d to remove, %d unchanged", s.Materialize, s.Remove, s.NoOp)
}
