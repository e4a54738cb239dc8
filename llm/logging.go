package llm

import (
	"log/slog"
	"strings"
	"time"
)

// RequestLogger writes structured request/response audit events
type RequestLogger struct {
	logger     *slog.Logger
	auditLevel string
}

// NewRequestLogger creates a new request logger
func NewRequestLogger(logger *slog.Logger, auditLevel string) *RequestLogger {
	return &RequestLogger{
		logger:     logger,
		auditLevel: auditLevel,
	}
}

// LogRequest logs request details according to audit level
func (l *RequestLogger) LogRequest(requestID string, request map[string]interface{}, level string) {
	if !l.enabled(level) {
		return
	}

	attrs := []any{"request_id", requestID, "level", level}
	for k, v := range request {
		if isSecretKey(k) {
			v = "[REDACTED]"
		}
		attrs = append(attrs, k, v)
	}
	l.logger.Debug("classifier request", attrs...)
}

// LogResponse logs response details according to audit level
func (l *RequestLogger) LogResponse(requestID string, response map[string]interface{}, duration time.Duration, level string) {
	if !l.enabled(level) {
		l.logger.Debug("classifier request completed", "request_id", requestID, "duration_ms", duration.Milliseconds())
		return
	}

	attrs := []any{"request_id", requestID, "level", level, "duration_ms", duration.Milliseconds()}
	for k, v := range response {
		attrs = append(attrs, k, v)
	}
	l.logger.Debug("classifier response", attrs...)
}

// enabled reports whether an event of level is logged at the configured audit level
func (l *RequestLogger) enabled(level string) bool {
	return auditRank(level) <= auditRank(l.auditLevel)
}

func auditRank(level string) int {
	switch level {
	case "minimal":
		return 0
	case "verbose":
		return 2
	}
	return 1
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "key") || strings.Contains(k, "token") ||
		strings.Contains(k, "password") || strings.Contains(k, "secret")
}
