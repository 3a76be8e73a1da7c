package scanner

import (
	"context"

	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Lister is the slice of the remote storage client the scanner needs.
type Lister interface {
	ListChildren(ctx context.Context, folderID, pageToken string) (types.RemotePage, error)
	ListPermissions(ctx context.Context, itemID string) ([]types.Permission, error)
}

// Tree is one traversal of a remote folder. Files and Folders are keyed by id.
type Tree struct {
	Files    map[string]types.RemoteItem
	Folders  map[string]types.RemoteItem
	Failures []types.ItemFailure
}

// Per-item failure operations
const (
	OpList        = "list"
	OpPermissions = "permissions"
	OpValidate    = "validate"
)
