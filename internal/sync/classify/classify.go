// Package classify maps remote content types to materialization strategies
// and local artifact names.
package classify

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// Kind selects how a remote item is materialized.
type Kind int

const (
	// LinkOnly writes only the sidecar.
	LinkOnly Kind = iota
	// DirectExport exports a native document to ExportType.
	DirectExport
	// DirectDownload copies the stored bytes.
	DirectDownload
	// ConvertThenExport copies the item as IntermediateType, exports the copy
	// to ExportType and deletes the copy.
	ConvertThenExport
)

func (k Kind) String() string {
	switch k {
	case DirectExport:
		return "export"
	case DirectDownload:
		return "download"
	case ConvertThenExport:
		return "convert"
	default:
		return "link"
	}
}

// MarshalText lets Kind print by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Strategy is the result of classifying one content type.
type Strategy struct {
	Kind             Kind   `json:"kind"`
	ExportType       string `json:"exportType,omitempty"`
	IntermediateType string `json:"intermediateType,omitempty"`
}

// HasContent reports whether the strategy produces a content file.
func (s Strategy) HasContent() bool {
	return s.Kind != LinkOnly
}

// ExportTarget is the interchange format every exported document lands in.
const ExportTarget = utils.MimeTypePDF

// GenericSuffix is the sidecar suffix for unmapped content types.
const GenericSuffix = ".link.json"

var nativeExports = map[string]bool{
	utils.MimeTypeDocument:     true,
	utils.MimeTypeSpreadsheet:  true,
	utils.MimeTypePresentation: true,
	utils.MimeTypeDrawing:      true,
}

var conversions = map[string]string{
	utils.MimeTypeDOC:  utils.MimeTypeDocument,
	utils.MimeTypeDOCX: utils.MimeTypeDocument,
	utils.MimeTypeODT:  utils.MimeTypeDocument,
	utils.MimeTypeRTF:  utils.MimeTypeDocument,
	utils.MimeTypeXLS:  utils.MimeTypeSpreadsheet,
	utils.MimeTypeXLSX: utils.MimeTypeSpreadsheet,
	utils.MimeTypeODS:  utils.MimeTypeSpreadsheet,
	utils.MimeTypeCSV:  utils.MimeTypeSpreadsheet,
	utils.MimeTypePPT:  utils.MimeTypePresentation,
	utils.MimeTypePPTX: utils.MimeTypePresentation,
	utils.MimeTypeODP:  utils.MimeTypePresentation,
}

var extensions = map[string]string{
	utils.MimeTypeDocument:     "gdoc",
	utils.MimeTypeSpreadsheet:  "gsheet",
	utils.MimeTypePresentation: "gslides",
	utils.MimeTypeDrawing:      "gdraw",
	utils.MimeTypeForm:         "gform",
	utils.MimeTypeScript:       "gscript",
	utils.MimeTypeSite:         "gsite",
	utils.MimeTypeMap:          "gmap",
	utils.MimeTypeShortcut:     "gshortcut",
	utils.MimeTypePDF:          "pdf",
	utils.MimeTypeDOC:          "doc",
	utils.MimeTypeDOCX:         "docx",
	utils.MimeTypeODT:          "odt",
	utils.MimeTypeRTF:          "rtf",
	utils.MimeTypeXLS:          "xls",
	utils.MimeTypeXLSX:         "xlsx",
	utils.MimeTypeODS:          "ods",
	utils.MimeTypeCSV:          "csv",
	utils.MimeTypePPT:          "ppt",
	utils.MimeTypePPTX:         "pptx",
	utils.MimeTypeODP:          "odp",
	"text/plain":               "txt",
	"text/markdown":            "md",
	"application/json":         "json",
	"application/zip":          "zip",
	"image/png":                "png",
	"image/jpeg":               "jpg",
	"image/gif":                "gif",
	"image/svg+xml":            "svg",
	"video/mp4":                "mp4",
	"audio/mpeg":               "mp3",
}

// Classify returns the strategy for contentType.
func Classify(contentType string) Strategy {
	contentType = normalize(contentType)
	switch {
	case nativeExports[contentType]:
		return Strategy{Kind: DirectExport, ExportType: ExportTarget}
	case contentType == ExportTarget:
		return Strategy{Kind: DirectDownload}
	}
	if intermediate, ok := conversions[contentType]; ok {
		return Strategy{Kind: ConvertThenExport, ExportType: ExportTarget, IntermediateType: intermediate}
	}
	return Strategy{Kind: LinkOnly}
}

// Extension returns the short extension for contentType without a dot, or ""
// when the type is unknown. The fixed table wins; other registered types fall
// back to the mimetype database.
func Extension(contentType string) string {
	contentType = normalize(contentType)
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	if m := mimetype.Lookup(contentType); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return ""
}

// Suffix is the sidecar suffix for contentType.
func Suffix(contentType string) string {
	if ext := Extension(contentType); ext != "" {
		return "." + ext + GenericSuffix
	}
	return GenericSuffix
}

// ContentExtension is the extension of the content file the strategy writes,
// or "" for LinkOnly.
func ContentExtension(s Strategy, contentType string) string {
	switch s.Kind {
	case DirectExport, ConvertThenExport:
		return Extension(s.ExportType)
	case DirectDownload:
		return Extension(contentType)
	default:
		return ""
	}
}

// Artifacts are the local file names of one remote item, relative to its
// parent folder.
type Artifacts struct {
	Sidecar string
	Content string
}

// ArtifactNames builds "<base>--<id><suffix>" and, when the strategy writes
// content, "<base>--<id>.<ext>". base is name with its mapped extension
// removed.
func ArtifactNames(name, id, contentType string) Artifacts {
	base := baseName(name, contentType)
	stem := base + IDSeparator + id
	a := Artifacts{Sidecar: stem + Suffix(contentType)}
	if ext := ContentExtension(Classify(contentType), contentType); ext != "" {
		a.Content = stem + "." + ext
	}
	return a
}

// IsContentName reports whether name has the extension every content file is
// written with.
func IsContentName(name string) bool {
	return strings.HasSuffix(name, "."+Extension(ExportTarget))
}

// IDSeparator joins the display name and the id in artifact names.
const IDSeparator = "--"

func baseName(name, contentType string) string {
	ext := Extension(contentType)
	if ext == "" {
		return name
	}
	cut := len(name) - len(ext) - 1
	if cut > 0 && strings.EqualFold(name[cut:], "."+ext) {
		return name[:cut]
	}
	return name
}

func normalize(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
