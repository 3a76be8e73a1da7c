package utils

// OAuth scopes
const (
	ScopeDrive         = "https://www.googleapis.com/auth/drive"
	ScopeDriveReadonly = "https://www.googleapis.com/auth/drive.readonly"
)

// ScopesMirror is the scope set requested for the service identity.
// Full drive scope is required for trash, copy and permission updates.
var ScopesMirror = []string{ScopeDrive}

// Retry configuration
const (
	DefaultMaxRetries   = 3
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Publish retry configuration
const (
	DefaultPublishAttempts       = 3
	DefaultPublishInitialDelayMs = 5000
)

// Remote listing
const (
	ListPageSize       = 1000
	PermissionPageSize = 100
)

// Schema version
const SchemaVersion = "1.0"

// Google Workspace MIME types
const (
	MimeTypeDocument     = "application/vnd.google-apps.document"
	MimeTypeSpreadsheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypePresentation = "application/vnd.google-apps.presentation"
	MimeTypeDrawing      = "application/vnd.google-apps.drawing"
	MimeTypeForm         = "application/vnd.google-apps.form"
	MimeTypeScript       = "application/vnd.google-apps.script"
	MimeTypeSite         = "application/vnd.google-apps.site"
	MimeTypeMap          = "application/vnd.google-apps.map"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
	MimeTypeShortcut     = "application/vnd.google-apps.shortcut"
)

// Interchange and foreign office MIME types
const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOC  = "application/msword"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTypeODT  = "application/vnd.oasis.opendocument.text"
	MimeTypeRTF  = "application/rtf"
	MimeTypeXLS  = "application/vnd.ms-excel"
	MimeTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeTypeODS  = "application/vnd.oasis.opendocument.spreadsheet"
	MimeTypeCSV  = "text/csv"
	MimeTypePPT  = "application/vnd.ms-powerpoint"
	MimeTypePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeTypeODP  = "application/vnd.oasis.opendocument.presentation"
)

// IsWorkspaceMimeType checks if a MIME type is a Google Workspace type
func IsWorkspaceMimeType(mimeType string) bool {
	switch mimeType {
	case MimeTypeDocument, MimeTypeSpreadsheet, MimeTypePresentation,
		MimeTypeDrawing, MimeTypeForm, MimeTypeScript, MimeTypeSite, MimeTypeMap:
		return true
	}
	return false
}
