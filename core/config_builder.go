package core

import "time"

// ConfigBuilder provides a fluent interface for creating engine configurations
type ConfigBuilder struct {
	config *EngineConfig
}

// NewConfigBuilder starts from DefaultConfig
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: DefaultConfig()}
}

// WithMetadata sets the version and description
func (b *ConfigBuilder) WithMetadata(version, description string) *ConfigBuilder {
	b.config.Metadata.Version = version
	b.config.Metadata.Description = description
	return b
}

// WithFuzzyThreshold sets the duplicate similarity threshold
func (b *ConfigBuilder) WithFuzzyThreshold(threshold float64) *ConfigBuilder {
	b.config.Deduplication.FuzzyThreshold = threshold
	return b
}

// WithKeyFields sets the fields compared at full weight
func (b *ConfigBuilder) WithKeyFields(fields ...string) *ConfigBuilder {
	b.config.Deduplication.KeyFields = fields
	return b
}

// WithExactMatchFields sets the veto fields
func (b *ConfigBuilder) WithExactMatchFields(fields ...string) *ConfigBuilder {
	b.config.Deduplication.ExactMatchFields = fields
	return b
}

// WithSkipFields sets the fields ignored by deduplication
func (b *ConfigBuilder) WithSkipFields(fields ...string) *ConfigBuilder {
	b.config.Deduplication.SkipFields = fields
	return b
}

// WithIndex tunes the approximate search used for large unique pools
func (b *ConfigBuilder) WithIndex(threshold int, maxDistance float64) *ConfigBuilder {
	b.config.Deduplication.IndexThreshold = threshold
	b.config.Deduplication.IndexDistanceThreshold = maxDistance
	return b
}

// WithRequiredFields sets the fields that must be present and non-blank
func (b *ConfigBuilder) WithRequiredFields(fields ...string) *ConfigBuilder {
	b.config.Validation.RequiredFields = fields
	return b
}

// EnablePII toggles PII detection
func (b *ConfigBuilder) EnablePII(enabled bool) *ConfigBuilder {
	b.config.Validation.EnablePIIDetection = enabled
	return b
}

// EnableDeduplication toggles duplicate detection
func (b *ConfigBuilder) EnableDeduplication(enabled bool) *ConfigBuilder {
	b.config.Validation.EnableDeduplication = enabled
	return b
}

// EnableAI toggles classifier review of whole records
func (b *ConfigBuilder) EnableAI(enabled bool) *ConfigBuilder {
	b.config.Validation.EnableAIValidation = enabled
	return b
}

// Strict toggles strict mode
func (b *ConfigBuilder) Strict(strict bool) *ConfigBuilder {
	b.config.Validation.StrictMode = strict
	return b
}

// WithConcurrency sets the number of records evaluated in parallel
func (b *ConfigBuilder) WithConcurrency(n int) *ConfigBuilder {
	b.config.Batch.Concurrency = n
	return b
}

// AddCustomPattern registers an extra PII pattern reported as custom
func (b *ConfigBuilder) AddCustomPattern(name, pattern string, confidence float64) *ConfigBuilder {
	b.config.PII.CustomPatterns = append(b.config.PII.CustomPatterns, CustomPattern{
		Name:       name,
		Pattern:    pattern,
		Confidence: confidence,
	})
	return b
}

// AddRegexRule adds a rule requiring field to match pattern
func (b *ConfigBuilder) AddRegexRule(id, field, pattern, message string) *ConfigBuilder {
	return b.addRule(ValidationRule{ID: id, Field: field, Type: RuleRegex, Pattern: pattern, Message: message})
}

// AddLengthRule adds a rule bounding the length of field
func (b *ConfigBuilder) AddLengthRule(id, field string, min, max int, message string) *ConfigBuilder {
	return b.addRule(ValidationRule{ID: id, Field: field, Type: RuleLength, MinLength: min, MaxLength: max, Message: message})
}

// AddExpressionRule adds a custom rule from a Go function body
func (b *ConfigBuilder) AddExpressionRule(id, field, expression, message string) *ConfigBuilder {
	return b.addRule(ValidationRule{ID: id, Field: field, Type: RuleCustom, Expression: expression, Message: message})
}

// AddPredicateRule adds a custom rule implemented in Go
func (b *ConfigBuilder) AddPredicateRule(id, field string, predicate PredicateFunc, message string) *ConfigBuilder {
	return b.addRule(ValidationRule{ID: id, Field: field, Type: RuleCustom, Predicate: predicate, Message: message})
}

func (b *ConfigBuilder) addRule(rule ValidationRule) *ConfigBuilder {
	b.config.Validation.CustomRules = append(b.config.Validation.CustomRules, rule)
	return b
}

// Build validates and returns the configuration
func (b *ConfigBuilder) Build() (*EngineConfig, error) {
	b.config.Metadata.UpdatedAt = time.Now()
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}
