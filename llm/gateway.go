package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/semaphore"

	"github.com/SamuelRCrider/dqe-go/core"
)

// MCPGateway implements core.Classifier by calling a tool on an MCP server.
// Every failure is logged and reported as "no result".
type MCPGateway struct {
	caller ToolCaller
	closer func() error
	config GatewayConfig

	sem           *semaphore.Weighted
	limiter       Limiter
	requestLog    *RequestLogger
	validator     *ResponseValidator
	errorReporter *ErrorReporter
	observer      Observer
	logger        *slog.Logger
}

var _ core.Classifier = (*MCPGateway)(nil)

// GatewayOption configures an MCPGateway
type GatewayOption func(*MCPGateway)

// WithLimiter replaces the in-process rate limiter, e.g. with a RedisRateLimiter
func WithLimiter(l Limiter) GatewayOption {
	return func(g *MCPGateway) { g.limiter = l }
}

// WithObserver sets the call instrumentation sink
func WithObserver(o Observer) GatewayOption {
	return func(g *MCPGateway) { g.observer = o }
}

// WithGatewayLogger sets the logger
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *MCPGateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewMCPGateway creates a gateway over an existing tool caller
func NewMCPGateway(caller ToolCaller, config GatewayConfig, opts ...GatewayOption) *MCPGateway {
	config = LoadGatewayConfig(&config)

	g := &MCPGateway{
		caller:    caller,
		config:    config,
		sem:       semaphore.NewWeighted(int64(config.MaxConcurrent)),
		validator: NewResponseValidator(config.Response),
		logger:    slog.Default(),
	}
	if config.RequestsPerMinute > 0 {
		g.limiter = NewRateLimiter(config.RequestsPerMinute, time.Minute)
	}
	for _, opt := range opts {
		opt(g)
	}

	g.logger = g.logger.With("component", "classifier_gateway")
	g.requestLog = NewRequestLogger(g.logger, config.AuditLevel)
	g.errorReporter = NewErrorReporter(g.logger)
	return g
}

// Dial starts the configured MCP server over stdio and initializes the session
func Dial(ctx context.Context, config GatewayConfig, opts ...GatewayOption) (*MCPGateway, error) {
	config = LoadGatewayConfig(&config)

	server, err := GetMCPServerConfig(config.ServerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to configure MCP server: %w", err)
	}

	mcpClient, err := client.NewStdioMCPClient(server.Path, server.Env, server.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP stdio client: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "dqe", Version: "1.0.0"}
	if _, err := mcpClient.Initialize(initCtx, initRequest); err != nil {
		mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	g := NewMCPGateway(mcpClient, config, opts...)
	g.closer = mcpClient.Close
	g.logger.Info("classifier gateway connected",
		"server", server.Path, "tool", config.ToolName, "max_concurrent", config.MaxConcurrent,
		"requests_per_minute", config.RequestsPerMinute)
	return g, nil
}

// Close shuts down the MCP session when the gateway owns it
func (g *MCPGateway) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// ClassifyField asks the tool for a single PII classification
func (g *MCPGateway) ClassifyField(ctx context.Context, fieldName, value string) *core.PIIType {
	start := time.Now()
	payload, err := g.call(ctx, CapabilityClassify, classifyPrompt(fieldName, value))
	if err != nil {
		g.fail(CapabilityClassify, err, start)
		return nil
	}

	result, err := parseClassification(payload)
	if err != nil {
		g.fail(CapabilityClassify, newGatewayError(ErrorCategoryValidation, CapabilityClassify, err, "", nil), start)
		return nil
	}
	if result == nil {
		g.observe(CapabilityClassify, "empty", start)
		return nil
	}

	g.observe(CapabilityClassify, "ok", start)
	return result
}

// ReviewRecord asks the tool for quality issues on a whole record
func (g *MCPGateway) ReviewRecord(ctx context.Context, record core.Record) []core.ValidationIssue {
	start := time.Now()
	payload, err := g.call(ctx, CapabilityReview, reviewPrompt(record))
	if err != nil {
		g.fail(CapabilityReview, err, start)
		return nil
	}

	issues, err := parseReview(payload)
	if err != nil {
		g.fail(CapabilityReview, newGatewayError(ErrorCategoryValidation, CapabilityReview, err, "", nil), start)
		return nil
	}
	if len(issues) == 0 {
		g.observe(CapabilityReview, "empty", start)
		return nil
	}

	g.observe(CapabilityReview, "ok", start)
	return issues
}

// call sends one prompt and returns the validated JSON payload
func (g *MCPGateway) call(ctx context.Context, capability, prompt string) (string, error) {
	requestID := generateRequestID()
	startTime := time.Now()

	g.requestLog.LogRequest(requestID, map[string]interface{}{
		"capability":     capability,
		"prompt_chars":   len(prompt),
		"prompt_tokens":  estimateTokens(prompt),
		"tool":           g.config.ToolName,
		"rate_limit_key": g.config.RateLimitKey,
	}, "standard")

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", newGatewayError(ErrorCategoryTimeout, capability,
			fmt.Errorf("waiting for a free classifier slot: %w", err), requestID, nil)
	}
	defer g.sem.Release(1)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.config.RateLimitKey); err != nil {
			return "", newGatewayError(ErrorCategoryRateLimit, capability, err, requestID,
				map[string]interface{}{"limit": g.config.RequestsPerMinute})
		}
	}

	params := map[string]interface{}{
		"messages":    []Message{{Role: "user", Content: prompt}},
		"capability":  capability,
		"model":       g.config.Model,
		"temperature": g.config.Temperature,
		"max_tokens":  g.config.MaxTokens,
		"request_id":  requestID,
	}
	for k, v := range g.config.ExtraParams {
		params[k] = v
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = g.config.ToolName
	request.Params.Arguments = params

	var result *mcp.CallToolResult
	var err error
	for attempt := 0; attempt <= g.config.RetryCount; attempt++ {
		if attempt > 0 {
			backoff := g.config.RetryBackoff * time.Duration(1<<(attempt-1))
			g.requestLog.LogRequest(requestID, map[string]interface{}{
				"retry_attempt":  attempt,
				"backoff_ms":     backoff.Milliseconds(),
				"previous_error": err.Error(),
			}, "verbose")
			if sleepErr := sleepUntil(ctx, time.Now().Add(backoff)); sleepErr != nil {
				break
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
		result, err = g.caller.CallTool(callCtx, request)
		cancel()

		if err == nil {
			break
		}
		if ctx.Err() != nil {
			// the caller gave up; retrying cannot succeed
			break
		}
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", newGatewayError(ErrorCategoryTimeout, capability,
				fmt.Errorf("MCP call timeout or canceled: %w", err), requestID, nil)
		}
		return "", newGatewayError(categorizeError(err), capability,
			fmt.Errorf("MCP call failed after %d attempts: %w", g.config.RetryCount+1, err), requestID, nil)
	}

	output := resultText(result)
	if result.IsError {
		return "", newGatewayError(ErrorCategoryModel, capability,
			fmt.Errorf("MCP tool returned an error: %s", truncate(output, 200)), requestID, nil)
	}

	payload, err := g.validator.Extract(output)
	if err != nil {
		return "", newGatewayError(ErrorCategoryValidation, capability, err, requestID,
			map[string]interface{}{"output_chars": len(output)})
	}

	g.requestLog.LogResponse(requestID, map[string]interface{}{
		"capability":   capability,
		"output_chars": len(output),
	}, time.Since(startTime), "standard")

	return payload, nil
}

func resultText(result *mcp.CallToolResult) string {
	var b strings.Builder
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			b.WriteString(c.Text)
		case *mcp.TextContent:
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

func (g *MCPGateway) fail(capability string, err error, start time.Time) {
	g.errorReporter.ReportError(err)

	outcome := string(ErrorCategorySystem)
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		outcome = string(gwErr.Category)
	}
	g.observe(capability, outcome, start)
}

func (g *MCPGateway) observe(capability, outcome string, start time.Time) {
	if g.observer != nil {
		g.observer.ObserveCall(capability, outcome, time.Since(start))
	}
}
