package ledger

// Run statuses
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type Run struct {
	ID           string `json:"id"`
	Repo         string `json:"repo"`
	Mode         string `json:"mode"`
	Status       string `json:"status"`
	StartedAt    int64  `json:"startedAt"`
	FinishedAt   int64  `json:"finishedAt,omitempty"`
	Materialized int    `json:"materialized"`
	Removed      int    `json:"removed"`
	Failed       int    `json:"failed"`
	Untracked    int    `json:"untracked"`
	PRURL        string `json:"prUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

type UntrackedRecord struct {
	RunID             string `json:"runId"`
	ForkFolderID      string `json:"forkFolderId"`
	ItemID            string `json:"itemId"`
	Path              string `json:"path"`
	OwnerEmail        string `json:"ownerEmail,omitempty"`
	Resolution        string `json:"resolution"`
	TransferRequested bool   `json:"transferRequested"`
	Error             string `json:"error,omitempty"`
}
