package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrorCategory groups gateway failures for logging and metrics
type ErrorCategory string

const (
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryRateLimit      ErrorCategory = "rate_limit"
	ErrorCategorySystem         ErrorCategory = "system"
	ErrorCategoryTimeout        ErrorCategory = "timeout"
	ErrorCategoryNetwork        ErrorCategory = "network"
	ErrorCategoryModel          ErrorCategory = "model"
)

// GatewayError wraps a failed classifier call
type GatewayError struct {
	Category    ErrorCategory
	Capability  string
	OriginalErr error
	RequestID   string
	Timestamp   time.Time
	Details     map[string]interface{}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (request: %s)", e.Category, e.Capability, e.OriginalErr.Error(), e.RequestID)
}

func (e *GatewayError) Unwrap() error {
	return e.OriginalErr
}

func newGatewayError(category ErrorCategory, capability string, err error, requestID string, details map[string]interface{}) *GatewayError {
	return &GatewayError{
		Category:    category,
		Capability:  capability,
		OriginalErr: err,
		RequestID:   requestID,
		Timestamp:   time.Now(),
		Details:     details,
	}
}

// ErrorReporter logs gateway errors in a structured form
type ErrorReporter struct {
	logger *slog.Logger
}

// NewErrorReporter creates a new error reporter
func NewErrorReporter(logger *slog.Logger) *ErrorReporter {
	return &ErrorReporter{logger: logger}
}

// ReportError logs err; classifier failures are never returned to callers
func (e *ErrorReporter) ReportError(err error) {
	attrs := []any{"error", err.Error()}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		attrs = append(attrs,
			"category", string(gwErr.Category),
			"capability", gwErr.Capability,
			"request_id", gwErr.RequestID)
		for k, v := range gwErr.Details {
			attrs = append(attrs, k, v)
		}
	}

	e.logger.Warn("classifier call failed", attrs...)
}

// categorizeError categorizes an error from its type or message
func categorizeError(err error) ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "authentication"):
		return ErrorCategoryAuthentication
	case strings.Contains(errStr, "rate limit") || strings.Contains(errStr, "too many requests"):
		return ErrorCategoryRateLimit
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "eof"):
		return ErrorCategoryNetwork
	case strings.Contains(errStr, "invalid") || strings.Contains(errStr, "validation"):
		return ErrorCategoryValidation
	}
	return ErrorCategorySystem
}
