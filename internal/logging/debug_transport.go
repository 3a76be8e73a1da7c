package logging

import (
	"net/http"
	"time"
)

// DebugTransport logs method, URL, status and latency of each HTTP request.
// Headers and bodies are never logged.
type DebugTransport struct {
	base   http.RoundTripper
	logger Logger
}

// NewDebugTransport wraps base (http.DefaultTransport when nil).
func NewDebugTransport(base http.RoundTripper, logger Logger) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &DebugTransport{base: base, logger: logger}
}

// Wrap returns a copy of t that delegates to base.
func (t *DebugTransport) Wrap(base http.RoundTripper) *DebugTransport {
	return NewDebugTransport(base, t.logger)
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	logger := t.logger.WithContext(req.Context())

	resp, err := t.base.RoundTrip(req)
	fields := []Field{
		F("method", req.Method),
		F("url", req.URL.Redacted()),
		F("duration_ms", time.Since(start).Milliseconds()),
	}
	if err != nil {
		logger.Debug("HTTP request failed", append(fields, F("error", err.Error()))...)
		return nil, err
	}
	logger.Debug("HTTP request", append(fields, F("status", resp.StatusCode))...)
	return resp, nil
}
