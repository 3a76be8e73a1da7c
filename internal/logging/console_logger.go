package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// ConsoleLogger writes one human-readable line per entry:
//
//	15:04:05 WARN  [1b2c3d4e] Item failed op=materialize id=D1 path="team/Q3 plan"
//
// The bracketed prefix is the first eight characters of the run id.
type ConsoleLogger struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     LogLevel
	traceID   string
	color     bool
	timestamp bool
	redact    bool
}

// ConsoleLoggerConfig contains configuration for console logger
type ConsoleLoggerConfig struct {
	Writer           io.Writer
	Level            LogLevel
	ColorEnabled     bool
	TimestampEnabled bool
	RedactSensitive  bool
}

func NewConsoleLogger(config ConsoleLoggerConfig) *ConsoleLogger {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	return &ConsoleLogger{
		mu:        &sync.Mutex{},
		writer:    config.Writer,
		level:     config.Level,
		color:     config.ColorEnabled,
		timestamp: config.TimestampEnabled,
		redact:    config.RedactSensitive,
	}
}

var (
	bearerTokenPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`)
	oauthTokenPattern  = regexp.MustCompile(`(access_token|refresh_token|id_token)["']?\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]+=*`)
	authHeaderPattern  = regexp.MustCompile(`(?i)authorization["']?\s*[:=]\s*["']?[^\s"']+`)
	// GitHub classic, fine-grained and app tokens
	githubTokenPattern = regexp.MustCompile(`\b(gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,})`)
	// service account key material
	privateKeyPattern = regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[^-]*-----END [A-Z ]*PRIVATE KEY-----`)
)

// redactSensitiveData masks credentials in messages and field values.
func redactSensitiveData(s string) string {
	s = bearerTokenPattern.ReplaceAllString(s, "Bearer [REDACTED]")
	s = oauthTokenPattern.ReplaceAllString(s, "$1=[REDACTED]")
	s = authHeaderPattern.ReplaceAllString(s, "Authorization: [REDACTED]")
	s = githubTokenPattern.ReplaceAllString(s, "[REDACTED]")
	s = privateKeyPattern.ReplaceAllString(s, "[REDACTED PRIVATE KEY]")
	return s
}

func levelColor(level LogLevel) string {
	switch level {
	case DEBUG:
		return colorBlue
	case WARN:
		return colorYellow
	case ERROR:
		return colorRed
	}
	return ""
}

func (l *ConsoleLogger) paint(color, s string) string {
	if !l.color || color == "" {
		return s
	}
	return color + s + colorReset
}

// formatValue renders a field value; strings with spaces, quotes or '=' are
// quoted so paths stay readable and the line stays splittable.
func (l *ConsoleLogger) formatValue(v interface{}) string {
	var s string
	switch val := v.(type) {
	case error:
		s = val.Error()
	case string:
		s = val
	default:
		s = fmt.Sprintf("%v", val)
	}
	if l.redact {
		s = redactSensitiveData(s)
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (l *ConsoleLogger) formatMessage(level LogLevel, msg string, fields ...Field) string {
	var sb strings.Builder

	if l.timestamp {
		sb.WriteString(l.paint(colorGray, time.Now().Format("2006-01-02 15:04:05")))
		sb.WriteByte(' ')
	}
	sb.WriteString(l.paint(levelColor(level), fmt.Sprintf("%-5s", level.String())))
	sb.WriteByte(' ')
	if l.traceID != "" {
		sb.WriteString(l.paint(colorGray, "["+shortTraceID(l.traceID)+"]"))
		sb.WriteByte(' ')
	}

	if l.redact {
		msg = redactSensitiveData(msg)
	}
	sb.WriteString(msg)

	for _, field := range fields {
		sb.WriteByte(' ')
		sb.WriteString(field.Key)
		sb.WriteByte('=')
		sb.WriteString(l.formatValue(field.Value))
	}
	return sb.String()
}

func (l *ConsoleLogger) log(level LogLevel, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	_, _ = fmt.Fprintln(l.writer, l.formatMessage(level, msg, fields...))
}

func (l *ConsoleLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields...) }
func (l *ConsoleLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields...) }
func (l *ConsoleLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields...) }
func (l *ConsoleLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields...) }

// WithTraceID returns a logger sharing the writer and lock.
func (l *ConsoleLogger) WithTraceID(traceID string) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := *l
	clone.traceID = traceID
	return &clone
}

func (l *ConsoleLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

func (l *ConsoleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close is a no-op; the writer is owned by the caller.
func (l *ConsoleLogger) Close() error {
	return nil
}

func shortTraceID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
