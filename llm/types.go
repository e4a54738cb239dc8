package llm

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Capabilities exposed by the classifier tool
const (
	CapabilityClassify = "classify_field"
	CapabilityReview   = "review_record"
)

// GatewayConfig holds configuration for classifier calls over MCP
type GatewayConfig struct {
	ServerPath   string                 // MCP server executable; discovered when empty
	ToolName     string                 // The MCP tool name to call
	Model        string                 // Model name passed through to the tool
	Temperature  float64                // Controls randomness (0.0-1.0)
	MaxTokens    int                    // Maximum tokens to generate
	ExtraParams  map[string]interface{} // Any additional model parameters
	Timeout      time.Duration          // Per-call timeout
	RetryCount   int                    // Number of retries on failure
	RetryBackoff time.Duration          // Backoff before the first retry, doubled each time

	MaxConcurrent     int    // Calls in flight at once
	RequestsPerMinute int    // Rate limit; zero disables it
	RateLimitKey      string // Key shared by every gateway using the same limiter
	AuditLevel        string // "minimal", "standard" or "verbose"

	Response ResponseValidation
}

// ResponseValidation bounds what the tool may return
type ResponseValidation struct {
	MaxLength int // Maximum response length in bytes; zero disables the check
}

// Message is one chat message sent to the tool
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCaller is the part of an MCP client the gateway uses
type ToolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Observer receives call instrumentation; outcome is "ok", "empty" or an ErrorCategory
type Observer interface {
	ObserveCall(capability, outcome string, duration time.Duration)
}

// classification is the expected JSON object for a field classification
type classification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// reviewItem is one entry of the expected JSON array for a record review
type reviewItem struct {
	Field      string `json:"field"`
	Issue      string `json:"issue"`
	Severity   string `json:"severity"`
	Suggestion string `json:"suggestion"`
	Type       string `json:"type,omitempty"`
}
