package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// UntrackPolicy decides what happens to remote items outside the tracking rules.
type UntrackPolicy string

const (
	UntrackIgnore  UntrackPolicy = "ignore"
	UntrackRemove  UntrackPolicy = "remove"
	UntrackRequest UntrackPolicy = "request"
)

// Defaults for the optional publish and render sections.
const (
	DefaultBranch        = "drive-sync"
	DefaultBase          = "main"
	DefaultTitle         = "Sync from Google Drive"
	DefaultCommitMessage = "Sync from Google Drive"
	DefaultAuthorName    = "drivemirror"
	DefaultAuthorEmail   = "drivemirror@users.noreply.github.com"
	DefaultResolution    = 110
)

// SyncConfig is the per-repository sync document.
type SyncConfig struct {
	Source  SourceConfig  `yaml:"source" json:"source" toml:"source"`
	Ignore  []string      `yaml:"ignore" json:"ignore" toml:"ignore"`
	Targets TargetsConfig `yaml:"targets" json:"targets" toml:"targets"`
	Publish PublishConfig `yaml:"publish" json:"publish" toml:"publish"`
	Render  RenderConfig  `yaml:"render" json:"render" toml:"render"`
}

// SourceConfig names the repository the mirror is published to.
type SourceConfig struct {
	Repo string `yaml:"repo" json:"repo" toml:"repo"`
}

type TargetsConfig struct {
	Forks []ForkConfig `yaml:"forks" json:"forks" toml:"forks"`
}

// ForkConfig maps one Drive folder onto a local subdirectory.
type ForkConfig struct {
	DriveFolderID string        `yaml:"drive_folder_id" json:"drive_folder_id" toml:"drive_folder_id"`
	DriveURL      string        `yaml:"drive_url" json:"drive_url" toml:"drive_url"`
	OnUntrack     UntrackPolicy `yaml:"on_untrack" json:"on_untrack" toml:"on_untrack"`
	Path          string        `yaml:"path" json:"path" toml:"path"`
}

type PublishConfig struct {
	Branch        string `yaml:"branch" json:"branch" toml:"branch"`
	Base          string `yaml:"base" json:"base" toml:"base"`
	Title         string `yaml:"title" json:"title" toml:"title"`
	CommitMessage string `yaml:"commit_message" json:"commit_message" toml:"commit_message"`
	AuthorName    string `yaml:"author_name" json:"author_name" toml:"author_name"`
	AuthorEmail   string `yaml:"author_email" json:"author_email" toml:"author_email"`
}

type RenderConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled" toml:"enabled"`
	Resolution int  `yaml:"resolution" json:"resolution" toml:"resolution"`
}

var (
	repoPattern      = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	folderURLPattern = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
)

// LoadSyncConfig reads, decodes and validates a sync document. The format is
// chosen by extension: .yaml/.yml (default), .json or .toml. Environment
// variables in the document are expanded before decoding.
func LoadSyncConfig(filePath string) (SyncConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return SyncConfig{}, utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("read sync config %s: %v", filePath, err))
	}
	return ParseSyncConfig(data, filepath.Ext(filePath))
}

// ParseSyncConfig decodes a sync document of the given extension.
func ParseSyncConfig(data []byte, ext string) (SyncConfig, error) {
	var cfg SyncConfig
	expanded := []byte(os.ExpandEnv(string(data)))

	var err error
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(expanded))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(expanded)).DisallowUnknownFields().Decode(&cfg)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = errors.New("document is empty")
		}
	}
	if err != nil {
		return SyncConfig{}, utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("decode sync config: %v", err))
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return SyncConfig{}, err
	}
	return cfg, nil
}

func (c *SyncConfig) applyDefaults() {
	for i := range c.Targets.Forks {
		f := &c.Targets.Forks[i]
		if f.DriveFolderID == "" && f.DriveURL != "" {
			if m := folderURLPattern.FindStringSubmatch(f.DriveURL); m != nil {
				f.DriveFolderID = m[1]
			}
		}
		if f.DriveURL == "" && f.DriveFolderID != "" {
			f.DriveURL = "https://drive.google.com/drive/folders/" + f.DriveFolderID
		}
		if f.OnUntrack == "" {
			f.OnUntrack = UntrackIgnore
		}
		if f.Path == "" {
			f.Path = "."
		} else {
			f.Path = path.Clean(filepath.ToSlash(f.Path))
		}
	}

	p := &c.Publish
	if p.Branch == "" {
		p.Branch = DefaultBranch
	}
	if p.Base == "" {
		p.Base = DefaultBase
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.CommitMessage == "" {
		p.CommitMessage = DefaultCommitMessage
	}
	if p.AuthorName == "" {
		p.AuthorName = DefaultAuthorName
	}
	if p.AuthorEmail == "" {
		p.AuthorEmail = DefaultAuthorEmail
	}
	if c.Render.Resolution == 0 {
		c.Render.Resolution = DefaultResolution
	}
}

// Validate rejects documents that cannot drive a run.
func (c SyncConfig) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return utils.NewValidationError(utils.ErrCodeInvalidConfig, fmt.Sprintf(format, args...))
	}

	if !repoPattern.MatchString(c.Source.Repo) {
		return invalid("source.repo must be owner/name, got %q", c.Source.Repo)
	}
	if len(c.Targets.Forks) == 0 {
		return invalid("targets.forks must list at least one drive folder")
	}

	seen := make(map[string]int)
	for i, f := range c.Targets.Forks {
		if f.DriveFolderID == "" {
			return invalid("targets.forks[%d].drive_folder_id is required", i)
		}
		switch f.OnUntrack {
		case UntrackIgnore, UntrackRemove, UntrackRequest:
		default:
			return invalid("targets.forks[%d].on_untrack must be ignore, remove or request, got %q", i, f.OnUntrack)
		}
		if path.IsAbs(f.Path) || f.Path == ".." || strings.HasPrefix(f.Path, "../") {
			return invalid("targets.forks[%d].path must stay inside the repository, got %q", i, f.Path)
		}
		if j, ok := seen[f.Path]; ok {
			return invalid("targets.forks[%d] and [%d] share path %q", j, i, f.Path)
		}
		seen[f.Path] = i
	}
	for a := range seen {
		for b := range seen {
			if a != b && nested(a, b) {
				return invalid("fork paths %q and %q overlap", a, b)
			}
		}
	}

	if c.Render.Enabled && (c.Render.Resolution < 30 || c.Render.Resolution > 600) {
		return invalid("render.resolution must be between 30 and 600, got %d", c.Render.Resolution)
	}
	return nil
}

// nested reports whether child lies inside parent.
func nested(parent, child string) bool {
	if parent == "." {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}

// Owner returns the owner half of source.repo.
func (c SyncConfig) Owner() string {
	owner, _, _ := strings.Cut(c.Source.Repo, "/")
	return owner
}

// RepoName returns the name half of source.repo.
func (c SyncConfig) RepoName() string {
	_, name, _ := strings.Cut(c.Source.Repo, "/")
	return name
}

// ForkPaths returns every fork's local path in config order.
func (c SyncConfig) ForkPaths() []string {
	paths := make([]string, 0, len(c.Targets.Forks))
	for _, f := range c.Targets.Forks {
		paths = append(paths, f.Path)
	}
	return paths
}
