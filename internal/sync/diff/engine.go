package diff

import (
	"path"
	"sort"
	"strings"

	"github.com/dl-alexandre/drivemirror/internal/sync/classify"
	"github.com/dl-alexandre/drivemirror/internal/sync/sidecar"
	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Snapshot is the input of one reconciliation for a single fork root.
type Snapshot struct {
	// Remote files keyed by id.
	Remote map[string]types.RemoteItem
	// Local files keyed by path relative to the fork root.
	Local map[string]types.LocalItem
	// Sidecars found under the fork root, keyed by path.
	Sidecars map[string]sidecar.Record
	// Owned reports whether the service identity owns a remote file. Files
	// it does not own are still mirrored and are listed in Result.Untracked
	// for the untracked policy. nil treats every file as owned.
	Owned func(types.RemoteItem) bool
	// HoldUntracked keeps files that are not owned out of materialization
	// and leaves their existing artifacts as they are. Set when the policy
	// trashes untracked files.
	HoldUntracked bool
	// Unlisted are remote folder paths whose listing failed. Local artifacts
	// under them are never removed.
	Unlisted []string
	// Unresolved are ids the scan saw but could not enrich. Their artifacts
	// are left untouched.
	Unresolved map[string]bool
}

// Compute reconciles the snapshot. The result depends only on the snapshot
// contents, never on map iteration order.
func Compute(s Snapshot) Result {
	owned := s.Owned
	if owned == nil {
		owned = func(types.RemoteItem) bool { return true }
	}
	artifacts := indexArtifacts(s)

	ids := make([]string, 0, len(s.Remote))
	for id := range s.Remote {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := Result{Actions: []Action{}, Untracked: []types.UntrackedItem{}}

	for _, id := range ids {
		item := s.Remote[id]
		existing := artifacts[id]

		if !owned(item) {
			result.Untracked = append(result.Untracked, types.UntrackedItem{
				ID:         item.ID,
				Path:       item.Path,
				URL:        item.ViewURL,
				Name:       item.Name,
				OwnerEmail: item.OwnerEmail,
			})
		}
		if !owned(item) && s.HoldUntracked {
			for _, p := range existing.all() {
				result.Actions = append(result.Actions, Action{
					Type:   ActionNoOp,
					Path:   p,
					Remote: itemPtr(item),
					Reason: ReasonUntracked,
				})
			}
			continue
		}

		strategy := classify.Classify(item.ContentType)
		names := classify.ArtifactNames(item.Name, item.ID, item.ContentType)
		dir := path.Dir(item.Path)
		sidecarPath := joinDir(dir, names.Sidecar)
		contentPath := ""
		if names.Content != "" {
			contentPath = joinDir(dir, names.Content)
		}

		replaces := staleArtifacts(existing, sidecarPath, contentPath)
		reason := materializeReason(s, item, strategy, sidecarPath, contentPath)
		if reason == ReasonNew && len(replaces) > 0 {
			reason = ReasonMoved
		}
		if reason == "" && len(replaces) > 0 {
			reason = ReasonMoved
		}

		action := Action{
			Type:        ActionMaterialize,
			Path:        sidecarPath,
			ContentPath: contentPath,
			Remote:      itemPtr(item),
			Strategy:    strategy,
			Replaces:    replaces,
			Reason:      reason,
		}
		if reason == "" {
			action.Type = ActionNoOp
			action.Reason = ReasonUnchanged
		}
		result.Actions = append(result.Actions, action)
	}

	goneIDs := make([]string, 0)
	for id := range artifacts {
		if _, ok := s.Remote[id]; !ok && !s.Unresolved[id] {
			goneIDs = append(goneIDs, id)
		}
	}
	sort.Strings(goneIDs)
	for _, id := range goneIDs {
		for _, p := range artifacts[id].all() {
			if underAny(p, s.Unlisted) {
				continue
			}
			result.Actions = append(result.Actions, Action{
				Type:   ActionRemove,
				Path:   p,
				Reason: ReasonGone,
			})
		}
	}

	sortActions(result.Actions)
	return result
}

// materializeReason returns why item must be materialized, or "" when the
// artifacts on disk are current.
func materializeReason(s Snapshot, item types.RemoteItem, strategy classify.Strategy, sidecarPath, contentPath string) string {
	rec, ok := s.Sidecars[sidecarPath]
	if !ok {
		return ReasonNew
	}
	want := sidecar.Record{ID: item.ID, ContentType: item.ContentType, Name: item.Name}
	if !rec.SameIdentity(want) {
		return ReasonMetadataChanged
	}

	if strategy.HasContent() {
		local, ok := s.Local[contentPath]
		if !ok || rec.ContentFile != path.Base(contentPath) {
			return ReasonContentMissing
		}
		if strategy.Kind == classify.DirectDownload && item.Hashable() && local.Hash != item.ContentHash {
			return ReasonContentChanged
		}
	}

	if item.Hashable() {
		if rec.ContentHash != item.ContentHash {
			return ReasonContentChanged
		}
		return ""
	}
	if rec.ModifiedAt != item.ModifiedAt {
		return ReasonModified
	}
	return ""
}

func sortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].Path != actions[j].Path {
			return actions[i].Path < actions[j].Path
		}
		return actions[i].Type < actions[j].Type
	})
}

func itemPtr(item types.RemoteItem) *types.RemoteItem {
	return &item
}

// underAny reports whether p lies inside one of the folder paths in dirs.
// The empty path is the fork root.
func underAny(p string, dirs []string) bool {
	for _, d := range dirs {
		if d == "" || d == "." || strings.HasPrefix(p, d+"/") {
			return true
		}
	}
	return false
}
