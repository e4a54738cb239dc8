package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by LoadGatewayConfig and DiscoverMCPServers
const (
	EnvServerPath = "DQE_MCP_SERVER_PATH"
	EnvServers    = "DQE_MCP_SERVERS"
	EnvToolName   = "DQE_MCP_TOOL_NAME"
	EnvModel      = "DQE_MCP_MODEL"
	EnvRPM        = "DQE_MCP_REQUESTS_PER_MINUTE"
)

// MCPServerConfig holds configuration for connecting to an MCP server
type MCPServerConfig struct {
	// Path to the MCP server executable
	Path string

	// Arguments passed to the executable
	Args []string

	// Environment entries ("KEY=value") for the server process
	Env []string
}

// DefaultGatewayConfig returns conservative defaults
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ToolName:          "dqe.classify",
		Model:             "default",
		Temperature:       0,
		MaxTokens:         512,
		Timeout:           15 * time.Second,
		RetryCount:        2,
		RetryBackoff:      500 * time.Millisecond,
		MaxConcurrent:     4,
		RequestsPerMinute: 60,
		RateLimitKey:      "classifier",
		AuditLevel:        "standard",
		Response:          ResponseValidation{MaxLength: 65536},
	}
}

// LoadGatewayConfig fills unset fields of config from the environment and defaults
func LoadGatewayConfig(config *GatewayConfig) GatewayConfig {
	defaults := DefaultGatewayConfig()
	if config == nil {
		config = &defaults
	}
	cfg := *config

	if cfg.ServerPath == "" {
		cfg.ServerPath = os.Getenv(EnvServerPath)
	}
	if cfg.ToolName == "" {
		cfg.ToolName = envOr(EnvToolName, defaults.ToolName)
	}
	if cfg.Model == "" {
		cfg.Model = envOr(EnvModel, defaults.Model)
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.RequestsPerMinute == 0 {
		if v, err := strconv.Atoi(os.Getenv(EnvRPM)); err == nil {
			cfg.RequestsPerMinute = v
		}
	}
	if cfg.RateLimitKey == "" {
		cfg.RateLimitKey = defaults.RateLimitKey
	}
	if cfg.AuditLevel == "" {
		cfg.AuditLevel = defaults.AuditLevel
	}
	if cfg.Response.MaxLength == 0 {
		cfg.Response.MaxLength = defaults.Response.MaxLength
	}
	return cfg
}

// DiscoverMCPServers looks for classifier servers in the environment and common locations
func DiscoverMCPServers() ([]MCPServerConfig, error) {
	servers := []MCPServerConfig{}

	if path := os.Getenv(EnvServerPath); path != "" {
		servers = append(servers, parseServerSpec(path))
	}

	if list := os.Getenv(EnvServers); list != "" {
		for _, spec := range strings.Split(list, ",") {
			if spec = strings.TrimSpace(spec); spec != "" {
				servers = append(servers, parseServerSpec(spec))
			}
		}
	}

	commonPaths := []string{
		"./dqe-classifier",
		filepath.Join(os.Getenv("HOME"), ".local/bin/dqe-classifier"),
		"/usr/local/bin/dqe-classifier",
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			servers = append(servers, MCPServerConfig{Path: path})
		}
	}

	if len(servers) == 0 {
		return nil, fmt.Errorf("no MCP servers discovered; set %s or %s", EnvServerPath, EnvServers)
	}
	return servers, nil
}

// GetMCPServerConfig returns the server for serverPath, or the first discovered one
func GetMCPServerConfig(serverPath string) (*MCPServerConfig, error) {
	if serverPath != "" {
		cfg := parseServerSpec(serverPath)
		return &cfg, nil
	}

	servers, err := DiscoverMCPServers()
	if err != nil {
		return nil, err
	}
	return &servers[0], nil
}

// parseServerSpec splits "path arg1 arg2" into a server configuration
func parseServerSpec(spec string) MCPServerConfig {
	parts := strings.Fields(spec)
	if len(parts) == 0 {
		return MCPServerConfig{}
	}
	return MCPServerConfig{Path: parts[0], Args: parts[1:]}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
