package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SamuelRCrider/dqe-go"
	"github.com/SamuelRCrider/dqe-go/core"
	"github.com/SamuelRCrider/dqe-go/llm"
	"github.com/SamuelRCrider/dqe-go/metrics"
	"github.com/SamuelRCrider/dqe-go/store"
)

// runtime holds everything built from flags; close releases it
type runtime struct {
	engine    *dqe.Engine
	store     *store.Store
	collector *metrics.Collector
	registry  *prometheus.Registry
	closers   []func() error
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			slog.Warn("failed to release resource", "error", err)
		}
	}
}

// addEngineFlags registers the flags shared by validate and serve
func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "engine configuration YAML (defaults when empty)")
	cmd.Flags().String("db", "", "issue database DSN: sqlite path or postgres URL")
	cmd.Flags().String("issues-log", "", "append issues as JSON lines to this file")
	cmd.Flags().Int64("issues-log-rotate-bytes", 0, "rotate the issues log at this size")
	cmd.Flags().Int("issues-log-retention-days", 0, "delete rotated issue logs older than this")
	cmd.Flags().String("mcp-server", "", "classifier MCP server executable; enables AI validation")
	cmd.Flags().String("redis-addr", "", "share the classifier rate limit through this Redis")
	cmd.Flags().Int("concurrency", 0, "records validated in parallel (default from config)")
	cmd.Flags().Bool("strict", false, "raise medium format issues to high")
}

var engineFlags = []string{
	"config", "db", "issues-log", "issues-log-rotate-bytes", "issues-log-retention-days",
	"mcp-server", "redis-addr", "concurrency", "strict",
}

// bindEngineFlags binds the running command's flags; validate and serve
// share keys, so binding happens per invocation rather than in init.
func bindEngineFlags(cmd *cobra.Command) error {
	for _, name := range engineFlags {
		if err := viper.BindPFlag(viperKey(name), cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// buildRuntime wires configuration, persistence, metrics and the classifier
func buildRuntime(ctx context.Context) (_ *runtime, err error) {
	rt := &runtime{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	cfg := core.DefaultConfig()
	if path := viper.GetString("config"); path != "" {
		cfg, err = core.LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if viper.GetBool("strict") {
		cfg.Validation.StrictMode = true
	}

	rt.collector, err = metrics.NewCollector(rt.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var writers core.MultiIssueWriter
	if dsn := viper.GetString("db"); dsn != "" {
		rt.store, err = store.Open(dsn)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, rt.store.Close)
		writers = append(writers, rt.store)
	}
	if path := viper.GetString("issues_log"); path != "" {
		issueLog, err := core.OpenIssueLog(path, core.IssueLogOptions{
			RotationSize:  viper.GetInt64("issues_log_rotate_bytes"),
			RetentionDays: viper.GetInt("issues_log_retention_days"),
		})
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, issueLog.Close)
		writers = append(writers, issueLog)
	}

	opts := dqe.Options{
		Config:      cfg,
		Recorder:    rt.collector,
		Concurrency: viper.GetInt("concurrency"),
		Logger:      slog.Default(),
	}
	if len(writers) > 0 {
		opts.IssueWriter = writers
	}

	if server := viper.GetString("mcp_server"); server != "" {
		gatewayOpts := []llm.GatewayOption{llm.WithObserver(rt.collector)}

		gwConfig := llm.LoadGatewayConfig(&llm.GatewayConfig{ServerPath: server})
		if addr := viper.GetString("redis_addr"); addr != "" {
			limiter, err := llm.DialRedisRateLimiter(ctx, addr, "", 0, gwConfig.RequestsPerMinute, time.Minute)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, limiter.Close)
			gatewayOpts = append(gatewayOpts, llm.WithLimiter(limiter))
		}

		gateway, err := llm.Dial(ctx, gwConfig, gatewayOpts...)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, gateway.Close)
		opts.Classifier = gateway
		cfg.Validation.EnableAIValidation = true
	}

	rt.engine, err = dqe.NewEngine(opts)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
