package utils

import (
	"errors"
	"fmt"

	"github.com/dl-alexandre/drivemirror/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthRequired = 10
	ExitAuthExpired  = 11
	// Remote item errors (20-29)
	ExitFileNotFound     = 20
	ExitPermissionDenied = 21
	ExitQuotaExceeded    = 22
	// Network errors (30-39)
	ExitNetworkError = 30
	ExitTimeout      = 31
	ExitRateLimited  = 32
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitInvalidConfig   = 41
	// Publish errors (50-59)
	ExitConflict      = 50
	ExitPublishFailed = 51
	ExitVCSFailed     = 52
	// Partial failures
	ExitBatchPartialFailure = 60
	ExitCancelled           = 70
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeAuthExpired         = "AUTH_EXPIRED"
	ErrCodeFileNotFound        = "FILE_NOT_FOUND"
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeNetworkError        = "NETWORK_ERROR"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeInvalidConfig       = "INVALID_CONFIG"
	ErrCodePublishFailed       = "PUBLISH_FAILED"
	ErrCodeVCSFailed           = "VCS_FAILED"
	ErrCodeBatchPartialFailure = "BATCH_PARTIAL_FAILURE"
	ErrCodeCancelled           = "CANCELLED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeUnknown             = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithReason(reason string) *CLIErrorBuilder {
	b.err.Reason = reason
	return b
}

func (b *CLIErrorBuilder) WithOperation(op string) *CLIErrorBuilder {
	b.err.Operation = op
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeAuthRequired:        ExitAuthRequired,
		ErrCodeAuthExpired:         ExitAuthExpired,
		ErrCodeFileNotFound:        ExitFileNotFound,
		ErrCodePermissionDenied:    ExitPermissionDenied,
		ErrCodeQuotaExceeded:       ExitQuotaExceeded,
		ErrCodeNetworkError:        ExitNetworkError,
		ErrCodeTimeout:             ExitTimeout,
		ErrCodeRateLimited:         ExitRateLimited,
		ErrCodeConflict:            ExitConflict,
		ErrCodeInvalidArgument:     ExitInvalidArgument,
		ErrCodeInvalidConfig:       ExitInvalidConfig,
		ErrCodePublishFailed:       ExitPublishFailed,
		ErrCodeVCSFailed:           ExitVCSFailed,
		ErrCodeBatchPartialFailure: ExitBatchPartialFailure,
		ErrCodeCancelled:           ExitCancelled,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	Cause    error
}

func (e *AppError) Error() string {
	if e.CLIError.Operation != "" {
		return fmt.Sprintf("%s: %s: %s", e.CLIError.Operation, e.CLIError.Code, e.CLIError.Message)
	}
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that keeps the upstream error for errors.Is/As.
func WrapAppError(cliErr types.CLIError, cause error) *AppError {
	return &AppError{CLIError: cliErr, Cause: cause}
}

// NewValidationError reports malformed config, credentials or item fields.
func NewValidationError(code, message string) *AppError {
	return NewAppError(NewCLIError(code, message).Build())
}

// AsAppError extracts the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the upstream HTTP status carried by err, or 0.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.CLIError.HTTPStatus
	}
	return 0
}

func hasCode(err error, codes ...string) bool {
	appErr, ok := AsAppError(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if appErr.CLIError.Code == c {
			return true
		}
	}
	return false
}

// IsNotFound reports a NotFoundError.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeFileNotFound)
}

// IsPermissionDenied reports a PermissionError.
func IsPermissionDenied(err error) bool {
	return hasCode(err, ErrCodePermissionDenied)
}

// IsConflict reports a ConflictError (HTTP 422).
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsValidation reports a ValidationError.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeInvalidArgument, ErrCodeInvalidConfig)
}

// IsTransient reports a TransientRemoteError.
func IsTransient(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.CLIError.Retryable
	}
	return false
}

// ExitCodeFor maps any error to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if appErr, ok := AsAppError(err); ok {
		return GetExitCode(appErr.CLIError.Code)
	}
	return ExitUnknown
}
