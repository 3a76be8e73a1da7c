package api

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"strconv"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/dl-alexandre/drivemirror/internal/errors"
	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/types"
	"github.com/dl-alexandre/drivemirror/internal/utils"
)

// ClientOptions tunes retries, pacing and per-call timeouts.
type ClientOptions struct {
	MaxRetries        int
	RetryDelay        time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// DefaultClientOptions mirrors config.DefaultConfig.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		MaxRetries:        utils.DefaultMaxRetries,
		RetryDelay:        time.Duration(utils.DefaultRetryDelayMs) * time.Millisecond,
		RequestTimeout:    60 * time.Second,
		RequestsPerSecond: 10,
	}
}

// Client wraps the Drive API with retry logic, pacing and resource keys.
type Client struct {
	service        *drive.Service
	resourceKeyMgr *ResourceKeyManager
	limiter        *rate.Limiter
	maxRetries     int
	retryDelay     time.Duration
	timeout        time.Duration
	logger         logging.Logger
	sleep          func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Drive API client
func NewClient(service *drive.Service, opts ClientOptions, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := int(math.Ceil(opts.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		service:        service,
		resourceKeyMgr: NewResourceKeyManager(),
		limiter:        limiter,
		maxRetries:     opts.MaxRetries,
		retryDelay:     opts.RetryDelay,
		timeout:        opts.RequestTimeout,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// NewRequestContext creates a new request context, reusing the trace id
// carried by ctx when there is one.
func NewRequestContext(ctx context.Context, requestType types.RequestType, itemIDs ...string) *types.RequestContext {
	traceID := logging.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = logging.NewTraceID()
	}
	return &types.RequestContext{
		TraceID:     traceID,
		RequestType: requestType,
		ItemIDs:     itemIDs,
	}
}

// ExecuteWithRetry runs fn with pacing, a per-attempt timeout and exponential
// backoff on transient Drive errors. Permission and not-found errors are never
// retried. The returned error is always classified.
func ExecuteWithRetry[T any](ctx context.Context, client *Client, operation string, reqCtx *types.RequestContext, fn func(ctx context.Context) (T, error)) (T, error) {
	result, release, err := execute(ctx, client, operation, reqCtx, fn)
	release()
	return result, err
}

// execute is the retry loop. On success the attempt's context stays alive
// until release is called so streamed bodies can still be read.
func execute[T any](ctx context.Context, client *Client, operation string, reqCtx *types.RequestContext, fn func(ctx context.Context) (T, error)) (T, context.CancelFunc, error) {
	var result T
	var lastErr error
	noop := func() {}

	logger := client.logger.WithTraceID(reqCtx.TraceID)
	logger.Debug("API operation starting",
		logging.F("operation", operation),
		logging.F("requestType", reqCtx.RequestType),
	)

	start := time.Now()

	for attempt := 0; attempt <= client.maxRetries; attempt++ {
		if err := client.limiter.Wait(ctx); err != nil {
			return result, noop, classifyError(operation, err, reqCtx, client.logger)
		}

		var release context.CancelFunc
		result, release, lastErr = runAttempt(ctx, client, fn)
		if lastErr == nil {
			logger.Debug("API operation completed",
				logging.F("operation", operation),
				logging.F("duration_ms", time.Since(start).Milliseconds()),
				logging.F("attempts", attempt+1),
			)
			return result, release, nil
		}
		release()

		if !isRetryable(lastErr) || ctx.Err() != nil {
			logger.Debug("API operation failed (non-retryable)",
				logging.F("operation", operation),
				logging.F("error", lastErr.Error()),
				logging.F("attempts", attempt+1),
			)
			return result, noop, classifyError(operation, lastErr, reqCtx, client.logger)
		}

		if attempt < client.maxRetries {
			delay := calculateBackoff(client.retryDelay, attempt, lastErr)
			logger.Warn("API operation failed (retryable)",
				logging.F("operation", operation),
				logging.F("attempt", attempt+1),
				logging.F("delay_ms", delay.Milliseconds()),
				logging.F("error", lastErr.Error()),
			)
			if err := client.sleep(ctx, delay); err != nil {
				return result, noop, classifyError(operation, err, reqCtx, client.logger)
			}
		}
	}

	logger.Error("API operation failed after max retries",
		logging.F("operation", operation),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
		logging.F("attempts", client.maxRetries+1),
		logging.F("error", lastErr.Error()),
	)

	return result, noop, classifyError(operation, lastErr, reqCtx, client.logger)
}

// runAttempt bounds one call by the client's request timeout.
func runAttempt[T any](ctx context.Context, client *Client, fn func(ctx context.Context) (T, error)) (T, context.CancelFunc, error) {
	if client.timeout <= 0 {
		result, err := fn(ctx)
		return result, func() {}, err
	}
	callCtx, cancel := context.WithTimeout(ctx, client.timeout)
	result, err := fn(callCtx)
	return result, cancel, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable reports whether a raw Drive error is worth another attempt.
func isRetryable(err error) bool {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.Code {
		case 429, 500, 502, 503, 504:
			return true
		case 403:
			for _, e := range apiErr.Errors {
				switch e.Reason {
				case "userRateLimitExceeded", "rateLimitExceeded", "sharingRateLimitExceeded":
					return true
				}
			}
		}
		return false
	}
	return stderrors.Is(err, context.DeadlineExceeded)
}

// calculateBackoff calculates the retry delay with exponential backoff
func calculateBackoff(baseDelay time.Duration, attempt int, err error) time.Duration {
	maxDelay := time.Duration(utils.MaxRetryDelayMs) * time.Millisecond

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) && apiErr.Header != nil {
		if retryAfter := apiErr.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				delay := time.Duration(seconds) * time.Second
				if delay > maxDelay {
					return maxDelay
				}
				return delay
			}
		}
	}

	delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}

	// ±25% jitter
	jitterRange := delay / 4
	if jitterRange > 0 {
		jitter := time.Duration(rand.Int63n(int64(jitterRange*2))) - jitterRange
		delay += jitter
	}
	if delay < 0 {
		delay = baseDelay
	}
	return delay
}

func classifyError(operation string, err error, reqCtx *types.RequestContext, logger logging.Logger) error {
	return errors.ClassifyGoogleAPIError(operation, err, reqCtx, logger)
}

// Service returns the underlying Drive service
func (c *Client) Service() *drive.Service {
	return c.service
}

// ResourceKeys returns the resource key manager
func (c *Client) ResourceKeys() *ResourceKeyManager {
	return c.resourceKeyMgr
}
