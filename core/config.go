package core

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every configuration error
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a configuration problem detected before a run starts
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidConfig) hold for every ConfigError
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// ConfigMetadata contains information about the configuration file
type ConfigMetadata struct {
	// Version of the configuration
	Version string `yaml:"version"`

	// Description of the configuration
	Description string `yaml:"description,omitempty"`

	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`

	// Hash of the file content for integrity verification
	Hash string `yaml:"hash,omitempty"`
}

// DeduplicationConfig controls duplicate detection
type DeduplicationConfig struct {
	// Minimum similarity (0-100) for a field match and for a duplicate verdict
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" json:"fuzzyThreshold"`

	// Fields compared at full weight
	KeyFields []string `yaml:"key_fields" json:"keyFields"`

	// Fields that veto a duplicate when their normalized values differ
	ExactMatchFields []string `yaml:"exact_match_fields" json:"exactMatchFields"`

	// Fields never compared or indexed
	SkipFields []string `yaml:"skip_fields" json:"skipFields"`

	// Unique pool size at which the batch switches to the fuzzy index
	IndexThreshold int `yaml:"index_threshold" json:"indexThreshold"`

	// Maximum normalized edit distance (0-1) for an index hit
	IndexDistanceThreshold float64 `yaml:"index_distance_threshold" json:"indexDistanceThreshold"`

	// Candidates scored exactly per index query after trigram filtering
	IndexMaxCandidates int `yaml:"index_max_candidates" json:"indexMaxCandidates"`
}

// ValidationConfig controls which validation steps run
type ValidationConfig struct {
	EnablePIIDetection  bool `yaml:"enable_pii_detection" json:"enablePIIDetection"`
	EnableDeduplication bool `yaml:"enable_deduplication" json:"enableDeduplication"`
	EnableAIValidation  bool `yaml:"enable_ai_validation" json:"enableAIValidation"`

	// StrictMode raises medium format and data quality issues to high
	StrictMode bool `yaml:"strict_mode" json:"strictMode"`

	RequiredFields []string         `yaml:"required_fields" json:"requiredFields"`
	CustomRules    []ValidationRule `yaml:"custom_rules" json:"customRules"`
}

// PIIConfig tunes the PII detector chain
type PIIConfig struct {
	CustomPatterns     []CustomPattern `yaml:"custom_patterns,omitempty"`
	DisabledCategories []PIICategory   `yaml:"disabled_categories,omitempty"`

	// Field-name fragments that make a field eligible for external classification
	SensitiveKeywords []string `yaml:"sensitive_keywords,omitempty"`
}

// BatchConfig controls batch execution
type BatchConfig struct {
	// Records evaluated in parallel; zero selects the number of CPUs
	Concurrency int `yaml:"concurrency"`
}

// EngineConfig is the complete engine configuration
type EngineConfig struct {
	Metadata      ConfigMetadata      `yaml:"metadata"`
	Deduplication DeduplicationConfig `yaml:"deduplication"`
	Validation    ValidationConfig    `yaml:"validation"`
	PII           PIIConfig           `yaml:"pii"`
	Batch         BatchConfig         `yaml:"batch"`
}

const (
	DefaultFuzzyThreshold         = 85
	DefaultIndexThreshold         = 100
	DefaultIndexDistanceThreshold = 0.3
	DefaultIndexMaxCandidates     = 32
)

// DefaultConfig returns a configuration with PII detection and
// deduplication enabled
func DefaultConfig() *EngineConfig {
	now := time.Now()
	return &EngineConfig{
		Metadata: ConfigMetadata{
			Version:     "1.0.0",
			Description: "Default record quality configuration",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		Deduplication: DeduplicationConfig{
			FuzzyThreshold:         DefaultFuzzyThreshold,
			IndexThreshold:         DefaultIndexThreshold,
			IndexDistanceThreshold: DefaultIndexDistanceThreshold,
			IndexMaxCandidates:     DefaultIndexMaxCandidates,
		},
		Validation: ValidationConfig{
			EnablePIIDetection:  true,
			EnableDeduplication: true,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and validates it
func LoadConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.Metadata.Hash = calculateConfigHash(data)
	return cfg, nil
}

// ParseConfig decodes YAML over the defaults and validates the result
func ParseConfig(data []byte) (*EngineConfig, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ConfigError{Field: "file", Reason: "malformed yaml", Err: err}
	}

	for i := range cfg.Validation.CustomRules {
		if cfg.Validation.CustomRules[i].ID == "" {
			cfg.Validation.CustomRules[i].ID = fmt.Sprintf("rule-%d", i+1)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration with an updated hash
func SaveConfig(cfg *EngineConfig, path string) error {
	cfg.Metadata.UpdatedAt = time.Now()
	cfg.Metadata.Hash = ""

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	cfg.Metadata.Hash = calculateConfigHash(data)

	data, err = yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to re-serialize config with hash: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks ranges and compiles every rule and pattern
func (c *EngineConfig) Validate() error {
	d := c.Deduplication
	if d.FuzzyThreshold < 0 || d.FuzzyThreshold > 100 {
		return &ConfigError{Field: "deduplication.fuzzy_threshold", Reason: "must be between 0 and 100"}
	}
	if d.IndexThreshold < 0 {
		return &ConfigError{Field: "deduplication.index_threshold", Reason: "must not be negative"}
	}
	if d.IndexDistanceThreshold < 0 || d.IndexDistanceThreshold > 1 {
		return &ConfigError{Field: "deduplication.index_distance_threshold", Reason: "must be between 0 and 1"}
	}
	if d.IndexMaxCandidates < 0 {
		return &ConfigError{Field: "deduplication.index_max_candidates", Reason: "must not be negative"}
	}
	if c.Batch.Concurrency < 0 {
		return &ConfigError{Field: "batch.concurrency", Reason: "must not be negative"}
	}

	for i, f := range c.Validation.RequiredFields {
		if f == "" {
			return &ConfigError{Field: fmt.Sprintf("validation.required_fields[%d]", i), Reason: "empty field name"}
		}
	}

	if _, err := CompileRules(c.Validation.CustomRules); err != nil {
		return err
	}

	for _, cat := range c.PII.DisabledCategories {
		if !IsKnownPIICategory(string(cat)) {
			return &ConfigError{Field: "pii.disabled_categories", Reason: fmt.Sprintf("unknown category %q", cat)}
		}
	}
	if _, err := NewPIIScanner(c.ScannerConfig()); err != nil {
		return &ConfigError{Field: "pii.custom_patterns", Reason: "invalid pattern", Err: err}
	}

	return nil
}

// ScannerConfig derives the pattern scanner configuration
func (c *EngineConfig) ScannerConfig() ScannerConfig {
	return ScannerConfig{
		CustomPatterns:     c.PII.CustomPatterns,
		DisabledCategories: c.PII.DisabledCategories,
	}
}

// calculateConfigHash generates a hash of the content for integrity checking
func calculateConfigHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
