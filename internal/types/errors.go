package types

// CLIError is the structured error surfaced to users and logs.
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Operation  string                 `json:"operation,omitempty"`
	HTTPStatus int                    `json:"httpStatus,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// CLIWarning is a non-fatal notice attached to command output.
type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// RequestType categorizes remote calls for logging and error context.
type RequestType string

const (
	RequestTypeListOrSearch     RequestType = "list"
	RequestTypePermissionOp     RequestType = "permission"
	RequestTypeDownloadOrExport RequestType = "download"
	RequestTypeMutation         RequestType = "mutation"
	RequestTypeCodeHost         RequestType = "codehost"
)

// RequestContext carries correlation data for one remote call.
type RequestContext struct {
	TraceID     string
	RequestType RequestType
	ItemIDs     []string
}
