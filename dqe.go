package dqe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/SamuelRCrider/dqe-go/core"
	"github.com/SamuelRCrider/dqe-go/llm"
)

// ConfigureMCPServer sets the classifier MCP server used when none is configured explicitly
func ConfigureMCPServer(serverPath string) {
	os.Setenv(llm.EnvServerPath, serverPath)
}

// Options configures an Engine. Config takes precedence over ConfigPath;
// with neither, core.DefaultConfig is used.
type Options struct {
	Config     *core.EngineConfig
	ConfigPath string

	Classifier  core.Classifier
	IssueWriter core.IssueWriter
	Recorder    core.Recorder
	Progress    core.ProgressObserver
	Concurrency int
	Logger      *slog.Logger
}

// Engine bundles a validator and batch runner built from one configuration
type Engine struct {
	validator *core.Validator
	runner    *core.BatchRunner
}

// NewEngine builds an engine; configuration problems are returned as *core.ConfigError
func NewEngine(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil && opts.ConfigPath != "" {
		loaded, err := core.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	validator, err := core.NewValidator(cfg,
		core.WithAIClassifier(opts.Classifier),
		core.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	runner, err := core.NewBatchRunner(validator,
		core.WithConcurrency(opts.Concurrency),
		core.WithProgress(opts.Progress),
		core.WithIssueWriter(opts.IssueWriter),
		core.WithRecorder(opts.Recorder),
		core.WithBatchLogger(logger))
	if err != nil {
		return nil, err
	}

	return &Engine{validator: validator, runner: runner}, nil
}

// Config returns the active configuration
func (e *Engine) Config() *core.EngineConfig { return e.validator.Config() }

// ValidateRecord assesses one record against priorRecords
func (e *Engine) ValidateRecord(ctx context.Context, record core.Record, priorRecords []core.Record) core.RecordResult {
	return e.validator.Validate(ctx, record, priorRecords)
}

// RunBatch validates records in input order against a growing unique pool
func (e *Engine) RunBatch(ctx context.Context, records []core.Record) (*core.BatchResult, error) {
	return e.runner.Run(ctx, records)
}

// RunBatch runs a batch with the configuration at configPath (defaults when empty)
func RunBatch(ctx context.Context, configPath string, records []core.Record) (*core.BatchResult, error) {
	engine, err := NewEngine(Options{ConfigPath: configPath})
	if err != nil {
		return nil, err
	}
	return engine.RunBatch(ctx, records)
}

// RunBatchWithClassifier runs a batch with the external classifier enabled.
// The MCP server at mcpServerPath (or a discovered one) is started for the run.
func RunBatchWithClassifier(ctx context.Context, configPath, mcpServerPath string, gwConfig *llm.GatewayConfig, records []core.Record) (*core.BatchResult, error) {
	var gc llm.GatewayConfig
	if gwConfig != nil {
		gc = *gwConfig
	}
	if mcpServerPath != "" {
		gc.ServerPath = mcpServerPath
	}

	gateway, err := llm.Dial(ctx, gc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize classifier gateway: %w", err)
	}
	defer gateway.Close()

	engine, err := NewEngine(Options{ConfigPath: configPath, Classifier: gateway})
	if err != nil {
		return nil, err
	}
	return engine.RunBatch(ctx, records)
}

// LoadRecords reads a JSON array of records from path
func LoadRecords(path string) ([]core.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}
	return ParseRecords(data)
}

// ParseRecords decodes a JSON array of records
func ParseRecords(data []byte) ([]core.Record, error) {
	var records []core.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	return records, nil
}
