package diff

import (
	"github.com/dl-alexandre/drivemirror/internal/sync/classify"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

type ActionType string

const (
	ActionMaterialize ActionType = "materialize"
	ActionRemove      ActionType = "remove"
	ActionNoOp        ActionType = "noop"
)

// Materialize reasons
const (
	ReasonNew             = "new"
	ReasonMetadataChanged = "metadata_changed"
	ReasonContentMissing  = "content_missing"
	ReasonContentChanged  = "content_changed"
	ReasonModified        = "modified"
	ReasonMoved           = "moved"
	ReasonGone            = "gone"
	ReasonUnchanged       = "unchanged"
	ReasonUntracked       = "untracked"
)

// Action is one reconciliation decision. Path is the sidecar path for
// materialize and noop actions and the artifact being deleted for remove.
// Paths are relative to the fork root.
type Action struct {
	Type        ActionType        `json:"type"`
	Path        string            `json:"path"`
	ContentPath string            `json:"contentPath,omitempty"`
	Remote      *types.RemoteItem `json:"remote,omitempty"`
	Strategy    classify.Strategy `json:"strategy"`
	Replaces    []string          `json:"replaces,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

// Targets lists every local path the action writes or deletes.
func (a Action) Targets() []string {
	targets := []string{a.Path}
	if a.ContentPath != "" {
		targets = append(targets, a.ContentPath)
	}
	return append(targets, a.Replaces...)
}

// Result is the outcome of one reconciliation.
type Result struct {
	Actions   []Action              `json:"actions"`
	Untracked []types.UntrackedItem `json:"untracked"`
}

// Summary counts actions by type.
type Summary struct {
	Materialize int `json:"materialize"`
	Remove      int `json:"remove"`
	NoOp        int `json:"noop"`
}

func (r Result) Summary() Summary {
	var s Summary
	for _, a := range r.Actions {
		switch a.Type {
		case ActionMaterialize:
			s.Materialize++
		case ActionRemove:
			s.Remove++
		case ActionNoOp:
			s.NoOp++
		}
	}
	return s
}

// Changes returns the actions with side effects.
func (r Result) Changes() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Type != ActionNoOp {
			out = append(out, a)
		}
	}
	return out
}
