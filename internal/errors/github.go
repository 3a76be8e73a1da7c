package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// ClassifyGitHubError maps a go-github error onto the tool's error codes. The
// upstream message and every nested validation message are kept verbatim so
// callers can match on them.
func ClassifyGitHubError(operation string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	if err == nil {
		return nil
	}
	if _, ok := utils.AsAppError(err); ok {
		return err
	}
	if reqCtx == nil {
		reqCtx = &types.RequestContext{RequestType: types.RequestTypeCodeHost}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	var rateErr *gh.RateLimitError
	if stderrors.As(err, &rateErr) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeRateLimited, rateErr.Message).
			WithOperation(operation).
			WithHTTPStatus(statusOf(rateErr.Response)).
			WithRetryable(true).
			WithContext("resetAt", rateErr.Rate.Reset.Time).
			Build(), err)
	}
	var abuseErr *gh.AbuseRateLimitError
	if stderrors.As(err, &abuseErr) {
		return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeRateLimited, abuseErr.Message).
			WithOperation(operation).
			WithHTTPStatus(statusOf(abuseErr.Response)).
			WithRetryable(true).
			Build(), err)
	}

	var respErr *gh.ErrorResponse
	if !stderrors.As(err, &respErr) {
		return classifyTransportError(operation, err, reqCtx, logger)
	}

	status := statusOf(respErr.Response)
	message := ErrorResponseMessage(respErr)

	var code string
	var retryable bool
	switch status {
	case 401:
		code = utils.ErrCodeAuthRequired
	case 403:
		code = utils.ErrCodePermissionDenied
	case 404:
		code = utils.ErrCodeFileNotFound
	case 409, 422:
		code = utils.ErrCodeConflict
	case 429:
		code = utils.ErrCodeRateLimited
		retryable = true
	case 500, 502, 503, 504:
		code = utils.ErrCodeNetworkError
		retryable = true
	default:
		code = utils.ErrCodeUnknown
	}

	logger.Debug("GitHub error classified",
		logging.F("operation", operation),
		logging.F("httpStatus", status),
		logging.F("errorCode", code),
		logging.F("message", message),
		logging.F("traceId", reqCtx.TraceID),
	)

	builder := utils.NewCLIError(code, message).
		WithOperation(operation).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithContext("traceId", reqCtx.TraceID)
	if code == utils.ErrCodeAuthRequired {
		builder.WithContext("suggestedAction", "run 'drivemirror auth set-github-token' or set GITHUB_TOKEN")
	}
	return utils.WrapAppError(builder.Build(), err)
}

// ErrorResponseMessage joins the top-level message with the nested
// validation messages GitHub returns on 422.
func ErrorResponseMessage(respErr *gh.ErrorResponse) string {
	parts := []string{}
	if respErr.Message != "" {
		parts = append(parts, respErr.Message)
	}
	for _, e := range respErr.Errors {
		if e.Message != "" {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, ": ")
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
