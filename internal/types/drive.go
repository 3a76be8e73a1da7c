package types

// RemoteItem represents one node of a remote folder tree.
// Built fresh on every traversal and never mutated afterwards.
type RemoteItem struct {
	ID                     string       `json:"id"`
	Name                   string       `json:"name"`
	Path                   string       `json:"path"`
	ContentType            string       `json:"contentType"`
	ContentHash            string       `json:"contentHash,omitempty"`
	ModifiedAt             string       `json:"modifiedAt"`
	OwnedByServiceIdentity bool         `json:"ownedByServiceIdentity"`
	OwnerEmail             string       `json:"ownerEmail,omitempty"`
	Permissions            []Permission `json:"permissions,omitempty"`
	ViewURL                string       `json:"viewUrl,omitempty"`
	IsFolder               bool         `json:"isFolder,omitempty"`
}

// Hashable reports whether the remote system supplied a content hash.
func (r RemoteItem) Hashable() bool {
	return r.ContentHash != ""
}

// Permission is one grant on a remote item.
type Permission struct {
	ID              string `json:"id,omitempty"`
	Principal       string `json:"principal"`
	Role            string `json:"role"`
	PendingTransfer bool   `json:"pendingTransfer,omitempty"`
}

// RemotePage is one page of a folder listing.
type RemotePage struct {
	Items         []RemoteItem
	NextPageToken string
}

// LocalItem is one regular file under a scan root.
type LocalItem struct {
	RelativePath string `json:"relativePath"`
	Hash         string `json:"hash"`
}

// Untracked item resolutions
const (
	ResolutionIgnored   = "ignored"
	ResolutionResolved  = "resolved"
	ResolutionRequested = "requested"
	ResolutionFailed    = "failed"
	ResolutionSkipped   = "skipped"
)

// UntrackedItem is a remote item outside this run's tracking rules.
// OwnershipTransferRequested is only set after a transfer request succeeded.
type UntrackedItem struct {
	ID                         string `json:"id"`
	Path                       string `json:"path"`
	URL                        string `json:"url,omitempty"`
	Name                       string `json:"name"`
	OwnerEmail                 string `json:"ownerEmail,omitempty"`
	OwnershipTransferRequested bool   `json:"ownershipTransferRequested"`
	Resolution                 string `json:"resolution,omitempty"`
	Error                      string `json:"error,omitempty"`
}

// ItemFailure records a per-item failure that did not abort the run.
type ItemFailure struct {
	ID    string `json:"id,omitempty"`
	Path  string `json:"path,omitempty"`
	Op    string `json:"op"`
	Error string `json:"error"`
}
