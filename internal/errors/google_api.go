package errors

import (
	"context"
	stderrors "errors"

	"google.golang.org/api/googleapi"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// ClassifyGoogleAPIError maps a Drive client error onto the tool's error codes.
// Non-API errors are treated as transient network failures, except context
// cancellation and deadlines.
func ClassifyGoogleAPIError(operation string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	if err == nil {
		return nil
	}
	if _, ok := utils.AsAppError(err); ok {
		return err
	}
	if reqCtx == nil {
		reqCtx = &types.RequestContext{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	var apiErr *googleapi.Error
	if !stderrors.As(err, &apiErr) {
		return classifyTransportError(operation, err, reqCtx, logger)
	}

	var code string
	var retryable bool

	switch apiErr.Code {
	case 400:
		code = utils.ErrCodeInvalidArgument
		for _, e := range apiErr.Errors {
			if e.Reason == "teamDriveFileLimitExceeded" {
				code = utils.ErrCodeQuotaExceeded
			}
		}
	case 401:
		code = utils.ErrCodeAuthExpired
	case 403:
		code = utils.ErrCodePermissionDenied
		for _, e := range apiErr.Errors {
			switch e.Reason {
			case "storageQuotaExceeded":
				code = utils.ErrCodeQuotaExceeded
			case "sharingRateLimitExceeded", "userRateLimitExceeded", "rateLimitExceeded":
				code = utils.ErrCodeRateLimited
				retryable = true
			case "dailyLimitExceeded":
				code = utils.ErrCodeRateLimited
			}
		}
	case 404:
		code = utils.ErrCodeFileNotFound
	case 409, 412:
		code = utils.ErrCodeConflict
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	default:
		code = utils.ErrCodeUnknown
		retryable = apiErr.Code >= 500
	}

	logger.Debug("Drive error classified",
		logging.F("operation", operation),
		logging.F("httpStatus", apiErr.Code),
		logging.F("errorCode", code),
		logging.F("retryable", retryable),
		logging.F("message", apiErr.Message),
		logging.F("traceId", reqCtx.TraceID),
	)

	builder := utils.NewCLIError(code, apiErr.Message).
		WithOperation(operation).
		WithHTTPStatus(apiErr.Code).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID).
		WithContext("requestType", string(reqCtx.RequestType))

	if len(reqCtx.ItemIDs) > 0 {
		builder.WithContext("itemIds", reqCtx.ItemIDs)
	}

	if len(apiErr.Errors) > 0 {
		reason := apiErr.Errors[0].Reason
		builder.WithReason(reason)
		switch reason {
		case "storageQuotaExceeded":
			builder.WithContext("suggestedAction", "free up space in the service account's Drive")
		case "dailyLimitExceeded":
			builder.WithContext("suggestedAction", "quota will reset in 24 hours")
		case "insufficientFilePermissions":
			builder.WithContext("capability", "write_access_required")
		}
	}

	switch code {
	case utils.ErrCodeAuthExpired:
		builder.WithContext("suggestedAction", "check the service account key and its Drive API access")
	case utils.ErrCodeFileNotFound:
		builder.WithContext("suggestedAction", "verify the folder is shared with the service account")
	case utils.ErrCodeRateLimited:
		builder.WithContext("suggestedAction", "rate limit exceeded, retrying with backoff")
	}

	if apiErr.Code >= 500 && apiErr.Code <= 504 {
		builder.WithContext("serverError", true)
	}

	return utils.WrapAppError(builder.Build(), err)
}

func classifyTransportError(operation string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	builder := utils.NewCLIError(utils.ErrCodeNetworkError, err.Error()).
		WithOperation(operation).
		WithContext("traceId", reqCtx.TraceID)

	switch {
	case stderrors.Is(err, context.Canceled):
		builder = utils.NewCLIError(utils.ErrCodeCancelled, err.Error()).WithOperation(operation)
	case stderrors.Is(err, context.DeadlineExceeded):
		builder = utils.NewCLIError(utils.ErrCodeTimeout, err.Error()).
			WithOperation(operation).
			WithRetryable(true)
	default:
		builder.WithRetryable(true)
	}

	logger.Debug("Non-API error",
		logging.F("operation", operation),
		logging.F("error", err.Error()),
		logging.F("traceId", reqCtx.TraceID),
	)
	return utils.WrapAppError(builder.Build(), err)
}
