package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

const minimalYAML = `
source:
  repo: acme/handbook
targets:
  forks:
    - drive_url: https://drive.google.com/drive/folders/1AbC_dEf-9
      on_untrack: request
      path: docs/drive
`

func TestParseSyncConfig_YAMLDefaults(t *testing.T) {
	cfg, err := ParseSyncConfig([]byte(minimalYAML), ".yaml")
	require.NoError(t, err)

	require.Len(t, cfg.Targets.Forks, 1)
	fork := cfg.Targets.Forks[0]
	assert.Equal(t, "1AbC_dEf-9", fork.DriveFolderID)
	assert.Equal(t, UntrackRequest, fork.OnUntrack)
	assert.Equal(t, "docs/drive", fork.Path)

	assert.Equal(t, DefaultBranch, cfg.Publish.Branch)
	assert.Equal(t, DefaultBase, cfg.Publish.Base)
	assert.Equal(t, DefaultTitle, cfg.Publish.Title)
	assert.Equal(t, DefaultAuthorEmail, cfg.Publish.AuthorEmail)
	assert.Equal(t, DefaultResolution, cfg.Render.Resolution)
	assert.Equal(t, "acme", cfg.Owner())
	assert.Equal(t, "handbook", cfg.RepoName())
	assert.Equal(t, []string{"docs/drive"}, cfg.ForkPaths())
}

func TestParseSyncConfig_FolderIDFillsURL(t *testing.T) {
	doc := `
source: {repo: acme/handbook}
targets:
  forks:
    - drive_folder_id: F0
`
	cfg, err := ParseSyncConfig([]byte(doc), ".yml")
	require.NoError(t, err)
	fork := cfg.Targets.Forks[0]
	assert.Equal(t, "https://drive.google.com/drive/folders/F0", fork.DriveURL)
	assert.Equal(t, UntrackIgnore, fork.OnUntrack)
	assert.Equal(t, ".", fork.Path)
}

func TestParseSyncConfig_JSON(t *testing.T) {
	doc := `{
  "source": {"repo": "acme/handbook"},
  "ignore": ["*.tmp"],
  "targets": {"forks": [{"drive_folder_id": "F0", "on_untrack": "remove", "path": "./mirror/"}]},
  "publish": {"branch": "mirror"}
}`
	cfg, err := ParseSyncConfig([]byte(doc), ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"*.tmp"}, cfg.Ignore)
	assert.Equal(t, "mirror", cfg.Targets.Forks[0].Path)
	assert.Equal(t, UntrackRemove, cfg.Targets.Forks[0].OnUntrack)
	assert.Equal(t, "mirror", cfg.Publish.Branch)
}

func TestParseSyncConfig_TOML(t *testing.T) {
	doc := `
ignore = ["build/**"]

[source]
repo = "acme/handbook"

[[targets.forks]]
drive_folder_id = "F0"
path = "drive"

[render]
enabled = true
resolution = 150
`
	cfg, err := ParseSyncConfig([]byte(doc), ".toml")
	require.NoError(t, err)
	assert.True(t, cfg.Render.Enabled)
	assert.Equal(t, 150, cfg.Render.Resolution)
	assert.Equal(t, "drive", cfg.Targets.Forks[0].Path)
}

func TestParseSyncConfig_ExpandsEnv(t *testing.T) {
	t.Setenv("MIRROR_FOLDER", "EnvFolder1")
	doc := `
source: {repo: acme/handbook}
targets:
  forks:
    - drive_folder_id: ${MIRROR_FOLDER}
`
	cfg, err := ParseSyncConfig([]byte(doc), ".yaml")
	require.NoError(t, err)
	assert.Equal(t, "EnvFolder1", cfg.Targets.Forks[0].DriveFolderID)
}

func TestParseSyncConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ext  string
	}{
		{name: "empty document", doc: "", ext: ".yaml"},
		{name: "unknown yaml field", doc: "source: {repo: a/b}\nsurprise: 1\n", ext: ".yaml"},
		{name: "unknown json field", doc: `{"source":{"repo":"a/b"},"extra":true}`, ext: ".json"},
		{name: "bad repo", doc: "source: {repo: nope}\ntargets: {forks: [{drive_folder_id: F}]}\n", ext: ".yaml"},
		{name: "no forks", doc: "source: {repo: a/b}\n", ext: ".yaml"},
		{name: "missing folder", doc: "source: {repo: a/b}\ntargets: {forks: [{path: x}]}\n", ext: ".yaml"},
		{name: "bad policy", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F, on_untrack: shred}]}\n", ext: ".yaml"},
		{name: "escaping path", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F, path: ../out}]}\n", ext: ".yaml"},
		{name: "duplicate path", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F, path: x}, {drive_folder_id: G, path: x/}]}\n", ext: ".yaml"},
		{name: "nested path", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F, path: x}, {drive_folder_id: G, path: x/y}]}\n", ext: ".yaml"},
		{name: "root overlaps", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F}, {drive_folder_id: G, path: y}]}\n", ext: ".yaml"},
		{name: "resolution out of range", doc: "source: {repo: a/b}\ntargets: {forks: [{drive_folder_id: F}]}\nrender: {enabled: true, resolution: 5}\n", ext: ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSyncConfig([]byte(tt.doc), tt.ext)
			require.Error(t, err)
			assert.True(t, utils.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestLoadSyncConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drivemirror.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := LoadSyncConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "acme/handbook", cfg.Source.Repo)

	_, err = LoadSyncConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, utils.IsValidation(err))
}
