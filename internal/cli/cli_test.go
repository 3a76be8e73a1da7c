package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivemirror/internal/config"
	"github.com/dl-alexandre/drivemirror/internal/publish"
	"github.com/dl-alexandre/drivemirror/internal/sync"
	"github.com/dl-alexandre/drivemirror/internal/sync/diff"
	"github.com/dl-alexandre/drivemirror/internal/sync/executor"
	"github.com/dl-alexandre/drivemirror/internal/sync/ledger"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

func samplePlan() *sync.Plan {
	return &sync.Plan{Forks: []sync.ForkPlan{{
		Fork: config.ForkConfig{Path: "docs", OnUntrack: config.UntrackRequest},
		Result: diff.Result{
			Actions: []diff.Action{
				{Type: diff.ActionMaterialize, Path: "Plan--D1.gdoc.link.json", Reason: diff.ReasonNew},
				{Type: diff.ActionNoOp, Path: "Brief--P1.pdf.link.json", Reason: diff.ReasonUnchanged},
				{Type: diff.ActionRemove, Path: "old--X9.link.json", Reason: diff.ReasonGone},
			},
			Untracked: []types.UntrackedItem{{ID: "U1", Path: "theirs.pdf", OwnerEmail: "alice@example.com"}},
		},
		Failures: []types.ItemFailure{{ID: "B1", Path: "broken", Op: "permissions", Error: "boom"}},
	}}}
}

func TestPlanView_Rows(t *testing.T) {
	want := [][]string{
		{"docs", "materialize", "Plan--D1.gdoc.link.json", "new"},
		{"docs", "remove", "old--X9.link.json", "gone"},
		{"docs", "untracked:request", "theirs.pdf", "alice@example.com"},
		{"docs", "skipped", "broken", "boom"},
	}
	if diff := cmp.Diff(want, PlanView{Plan: samplePlan()}.Rows()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanView_EmptyPlanPrintsMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutputWriter(types.OutputFormatTable, false, false)
	w.writer = &buf

	require.NoError(t, w.WriteSuccess("plan", PlanView{Plan: &sync.Plan{}}))
	assert.Equal(t, "Mirror is up to date\n", buf.String())
}

func TestSyncView_Rows(t *testing.T) {
	report := &sync.Report{Forks: []sync.ForkReport{{
		Fork:      config.ForkConfig{Path: "docs"},
		Untracked: []types.UntrackedItem{{ID: "U1"}},
		Outcome:   executor.Outcome{Summary: executor.Summary{Materialized: 2, Removed: 1, Failed: 1, Skipped: 3}},
	}}}

	assert.Equal(t, [][]string{{"docs", "2", "1", "1", "3", "1"}}, SyncView{Report: report}.Rows())
}

func TestHistoryView_Rows(t *testing.T) {
	runs := []ledger.Run{{
		ID:           "0123456789abcdef",
		StartedAt:    0,
		Status:       ledger.StatusSucceeded,
		Materialized: 4,
		PRURL:        "https://github.com/acme/docs/pull/7",
	}}

	rows := HistoryView{Runs: runs}.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"01234567", "1970-01-01T00:00:00Z", "succeeded", "4", "0", "0", "0", "https://github.com/acme/docs/pull/7"}, rows[0])
}

func TestForkReports(t *testing.T) {
	changes := []diff.Action{{Type: diff.ActionMaterialize, Path: "a--A1.link.json"}}
	report := &sync.Report{Forks: []sync.ForkReport{{
		Fork:     config.ForkConfig{Path: "docs", DriveURL: "https://drive.google.com/drive/folders/F1"},
		Changes:  changes,
		Failures: []types.ItemFailure{{ID: "B1", Op: "materialize"}},
	}}}

	got := forkReports(report)
	want := []publish.ForkReport{{
		Path:     "docs",
		DriveURL: "https://drive.google.com/drive/folders/F1",
		Changes:  changes,
		Failures: []types.ItemFailure{{ID: "B1", Op: "materialize"}},
	}}
	assert.Equal(t, want, got)
}

func TestPublishState(t *testing.T) {
	tests := []struct {
		name    string
		outcome *publish.Outcome
		want    string
	}{
		{"nil outcome", nil, "clean"},
		{"clean tree", &publish.Outcome{}, "clean"},
		{"pushed without result", &publish.Outcome{Committed: true}, "pushed"},
		{"created", &publish.Outcome{Committed: true, Result: &publish.Result{State: publish.StateDone, Created: true}}, "created"},
		{"updated", &publish.Outcome{Committed: true, Result: &publish.Result{State: publish.StateDone}}, "updated"},
		{"no changes", &publish.Outcome{Committed: true, Result: &publish.Result{State: publish.StateNoChanges}}, "no_changes"},
		{"clean tree with open pull request", &publish.Outcome{Result: &publish.Result{State: publish.StateDone}}, "updated"},
		{"clean tree, branch already merged", &publish.Outcome{Result: &publish.Result{State: publish.StateNoChanges}}, "no_changes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publishState(tt.outcome))
		})
	}
}

func TestApplySetting(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		check   func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{name: "concurrency", key: "concurrency", value: "8", check: func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 8, cfg.Concurrency)
		}},
		{name: "case insensitive key", key: "LedgerPath", value: "/tmp/ledger.db", check: func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, "/tmp/ledger.db", cfg.LedgerPath)
		}},
		{name: "requests per second", key: "requestsPerSecond", value: "2.5", check: func(t *testing.T, cfg *config.Config) {
			assert.Equal(t, 2.5, cfg.RequestsPerSecond)
		}},
		{name: "bool", key: "colorOutput", value: "off", check: func(t *testing.T, cfg *config.Config) {
			assert.False(t, cfg.ColorOutput)
		}},
		{name: "not a number", key: "maxRetries", value: "many", wantErr: true},
		{name: "out of range", key: "concurrency", value: "500", wantErr: true},
		{name: "bad log level", key: "logLevel", value: "chatty", wantErr: true},
		{name: "bad output format", key: "defaultOutputFormat", value: "xml", wantErr: true},
		{name: "unknown key", key: "defaultProfile", value: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			err := applySetting(cfg, tt.key, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, utils.IsValidation(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestOutputWriter_FailWritesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutputWriter(types.OutputFormatJSON, false, false)
	w.writer = &buf

	cause := utils.NewValidationError(utils.ErrCodeInvalidConfig, "source.repo is required")
	err := w.Fail("validate", cause)
	assert.Same(t, cause, err)

	var env types.CLIOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "validate", env.Command)
	assert.Nil(t, env.Data)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, utils.ErrCodeInvalidConfig, env.Errors[0].Code)
	assert.Equal(t, utils.ExitInvalidConfig, utils.ExitCodeFor(err))
}

func TestOutputWriter_FailPlainErrorInTableMode(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutputWriter(types.OutputFormatTable, false, false)
	w.writer = &buf

	cause := errors.New("boom")
	assert.Equal(t, cause, w.Fail("sync", cause))
	assert.Empty(t, buf.String())
}

func TestOutputWriter_JSONSuccess(t *testing.T) {
	var buf bytes.Buffer
	w := NewOutputWriter(types.OutputFormatJSON, false, false)
	w.writer = &buf
	w.AddWarning("SCAN_SKIPPED", "docs: some items could not be scanned", "warning")

	require.NoError(t, w.WriteSuccess("plan", PlanView{Plan: samplePlan()}))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"schemaVersion": "`+utils.SchemaVersion+`"`), out)
	assert.Contains(t, out, `"SCAN_SKIPPED"`)
	assert.Contains(t, out, `"Plan--D1.gdoc.link.json"`)
}

func TestValidateGlobalFlags(t *testing.T) {
	saved := globalFlags
	t.Cleanup(func() { globalFlags = saved })

	globalFlags = GlobalFlags{OutputFormat: types.OutputFormatTable, JSON: true}
	require.NoError(t, validateGlobalFlags())
	assert.Equal(t, types.OutputFormatJSON, globalFlags.OutputFormat)

	globalFlags = GlobalFlags{OutputFormat: "yaml"}
	assert.True(t, utils.IsValidation(validateGlobalFlags()))

	globalFlags = GlobalFlags{OutputFormat: types.OutputFormatTable, Concurrency: 65}
	assert.Error(t, validateGlobalFlags())
}
