// Package sidecar reads and writes the metadata files that stand in for
// remote items on disk.
package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/dl-alexandre/drivemirror/internal/sync/classify"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// Record is the body of a sidecar file.
type Record struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Name        string `json:"name"`
	ModifiedAt  string `json:"modified_at,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	ViewURL     string `json:"view_url,omitempty"`
	ContentFile string `json:"content_file,omitempty"`
}

// FromRemote builds the record for item. contentHash is the hash of the
// content file written alongside, or "" when there is none.
func FromRemote(item types.RemoteItem, contentFile, contentHash string) Record {
	return Record{
		ID:          item.ID,
		ContentType: item.ContentType,
		Name:        item.Name,
		ModifiedAt:  item.ModifiedAt,
		ContentHash: contentHash,
		ViewURL:     item.ViewURL,
		ContentFile: contentFile,
	}
}

// SameIdentity reports whether id, content type and name agree.
func (r Record) SameIdentity(other Record) bool {
	return r.ID == other.ID && r.ContentType == other.ContentType && r.Name == other.Name
}

// Encode renders r as indented JSON with a trailing newline.
func Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a sidecar body. A body without an id is invalid.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, utils.NewValidationError(utils.ErrCodeInvalidArgument, fmt.Sprintf("invalid sidecar: %v", err))
	}
	if r.ID == "" {
		return Record{}, utils.NewValidationError(utils.ErrCodeInvalidArgument, "invalid sidecar: missing id")
	}
	return r, nil
}

// Read decodes the sidecar at p.
func Read(fsys afero.Fs, p string) (Record, error) {
	data, err := afero.ReadFile(fsys, p)
	if err != nil {
		return Record{}, err
	}
	return Decode(data)
}

// Write stores r at p atomically.
func Write(fsys afero.Fs, p string, r Record) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	return WriteFileAtomic(fsys, p, data)
}

// WriteFileAtomic writes data next to p and renames it into place, creating
// parent directories. Readers see the old file or the new one, never a
// partial write.
func WriteFileAtomic(fsys afero.Fs, p string, data []byte) error {
	if err := fsys.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, 0o644); err != nil {
		return err
	}
	if err := fsys.Rename(tmp, p); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return nil
}

// IsSidecar reports whether name is a sidecar file name.
func IsSidecar(name string) bool {
	return strings.HasSuffix(name, classify.GenericSuffix)
}

// ParseName recovers the id embedded in a sidecar or content file name such
// as "brief--P1.pdf.link.json" or "brief--P1.pdf". The id runs from a
// separator to the next dot. Display names and ids may both contain the
// separator, so every split is a candidate: the first one known accepts wins,
// otherwise the split at the last separator. known may be nil. The sidecar
// body stays authoritative.
func ParseName(name string, known func(id string) bool) (id string, ok bool) {
	candidates := CandidateIDs(name)
	if len(candidates) == 0 {
		return "", false
	}
	if known != nil {
		for _, c := range candidates {
			if known(c) {
				return c, true
			}
		}
	}
	return candidates[len(candidates)-1], true
}

// CandidateIDs lists the ids name could embed, from the first separator to
// the last.
func CandidateIDs(name string) []string {
	name = path.Base(name)
	name = strings.TrimSuffix(name, classify.GenericSuffix)
	var out []string
	for i := 1; i < len(name); i++ {
		if !strings.HasPrefix(name[i:], classify.IDSeparator) {
			continue
		}
		id := name[i+len(classify.IDSeparator):]
		if dot := strings.IndexByte(id, '.'); dot >= 0 {
			id = id[:dot]
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
