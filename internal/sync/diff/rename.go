package diff

import (
	"path"
	"sort"

	"github.com/dl-alexandre/drivemirror/internal/sync/classify"
	"github.com/dl-alexandre/drivemirror/internal/sync/sidecar"
)

// artifactSet is every local file attributed to one remote id.
type artifactSet struct {
	sidecars []string
	contents []string
}

func (a *artifactSet) all() []string {
	if a == nil {
		return nil
	}
	out := append([]string{}, a.sidecars...)
	return append(out, a.contents...)
}

// indexArtifacts attributes sidecars and the content files they name to
// remote ids. Sidecars are visited in path order and each file is claimed at
// most once, so two sidecars naming the same content file cannot both own it.
// Content files no sidecar claims fall back to the id in their name.
func indexArtifacts(s Snapshot) map[string]*artifactSet {
	paths := make([]string, 0, len(s.Sidecars))
	for p := range s.Sidecars {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	claimed := make(map[string]bool)
	index := make(map[string]*artifactSet)
	setFor := func(id string) *artifactSet {
		set := index[id]
		if set == nil {
			set = &artifactSet{}
			index[id] = set
		}
		return set
	}
	for _, p := range paths {
		rec := s.Sidecars[p]
		set := setFor(rec.ID)
		set.sidecars = append(set.sidecars, p)
		claimed[p] = true

		if rec.ContentFile == "" {
			continue
		}
		content := joinDir(path.Dir(p), rec.ContentFile)
		if _, ok := s.Local[content]; !ok || claimed[content] {
			continue
		}
		claimed[content] = true
		set.contents = append(set.contents, content)
	}

	orphans := make([]string, 0)
	for p := range s.Local {
		if !claimed[p] && !sidecar.IsSidecar(p) && classify.IsContentName(path.Base(p)) {
			orphans = append(orphans, p)
		}
	}
	sort.Strings(orphans)
	known := func(id string) bool {
		_, ok := s.Remote[id]
		return ok
	}
	for _, p := range orphans {
		id, ok := sidecar.ParseName(p, known)
		if !ok {
			continue
		}
		set := setFor(id)
		set.contents = append(set.contents, p)
	}
	return index
}

// staleArtifacts returns the artifacts of one id that are not at the
// expected locations; materializing the item moves it in place of them.
func staleArtifacts(set *artifactSet, keep ...string) []string {
	var stale []string
	for _, p := range set.all() {
		if !contains(keep, p) {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)
	return stale
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v != "" && v == s {
			return true
		}
	}
	return false
}

func joinDir(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}
