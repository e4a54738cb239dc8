package core

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

var (
	emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneShapeRe = regexp.MustCompile(`^\+?[\d\s().-]{7,20}$`)
)

const minPhoneDigits = 7

// Validator assesses one record at a time
type Validator struct {
	cfg        *EngineConfig
	dedup      *Deduplicator
	detector   *PIIDetector
	rules      []*CompiledRule
	classifier Classifier
	logger     *slog.Logger
}

// ValidatorOption configures a Validator
type ValidatorOption func(*validatorOptions)

type validatorOptions struct {
	classifier Classifier
	logger     *slog.Logger
}

// WithAIClassifier sets the classifier used for PII gaps and record review
func WithAIClassifier(c Classifier) ValidatorOption {
	return func(o *validatorOptions) { o.classifier = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) ValidatorOption {
	return func(o *validatorOptions) { o.logger = l }
}

// NewValidator validates cfg and builds the detector chain
func NewValidator(cfg *EngineConfig, opts ...ValidatorOption) (*Validator, error) {
	if cfg == nil {
		return nil, &ConfigError{Field: "config", Reason: "missing configuration"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := validatorOptions{classifier: NopClassifier{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.classifier == nil {
		o.classifier = NopClassifier{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	rules, err := CompileRules(cfg.Validation.CustomRules)
	if err != nil {
		return nil, err
	}

	scanner, err := NewPIIScanner(cfg.ScannerConfig())
	if err != nil {
		return nil, &ConfigError{Field: "pii.custom_patterns", Reason: "invalid pattern", Err: err}
	}

	detectorOpts := []DetectorOption{WithClassifier(o.classifier), WithDetectorLogger(o.logger)}
	if len(cfg.PII.SensitiveKeywords) > 0 {
		detectorOpts = append(detectorOpts, WithSensitiveKeywords(cfg.PII.SensitiveKeywords))
	}

	return &Validator{
		cfg:        cfg,
		dedup:      NewDeduplicator(cfg.Deduplication),
		detector:   NewPIIDetector(scanner, NewEntityDetector(nil), detectorOpts...),
		rules:      rules,
		classifier: o.classifier,
		logger:     o.logger,
	}, nil
}

// Config returns the engine configuration
func (v *Validator) Config() *EngineConfig { return v.cfg }

// Deduplicator returns the deduplicator shared by every record
func (v *Validator) Deduplicator() *Deduplicator { return v.dedup }

// Validate assesses record, comparing it pairwise against priorRecords
func (v *Validator) Validate(ctx context.Context, record Record, priorRecords []Record) RecordResult {
	var duplicates []DuplicateCandidate
	if v.cfg.Validation.EnableDeduplication && len(priorRecords) > 0 {
		pool := make([]*Record, len(priorRecords))
		for i := range priorRecords {
			pool[i] = &priorRecords[i]
		}
		duplicates = v.dedup.DetectDuplicates(&record, pool)
	}
	return v.Assess(ctx, record, duplicates)
}

// Assess runs every validation step given already computed duplicates
func (v *Validator) Assess(ctx context.Context, record Record, duplicates []DuplicateCandidate) RecordResult {
	result := RecordResult{
		RecordID:    record.RecordID,
		Issues:      []ValidationIssue{},
		Duplicates:  []DuplicateCandidate{},
		PIIFindings: []PIIFinding{},
	}

	result.Issues = append(result.Issues, v.basicChecks(record)...)
	result.Issues = append(result.Issues, v.customRules(record)...)

	if v.cfg.Validation.EnableDeduplication && len(duplicates) > 0 {
		result.Duplicates = duplicates
		result.Issues = append(result.Issues, duplicateIssue(duplicates[0]))
	}

	if v.cfg.Validation.EnablePIIDetection {
		findings, issues := v.piiChecks(ctx, record)
		result.PIIFindings = findings
		result.Issues = append(result.Issues, issues...)
	}

	if v.cfg.Validation.EnableAIValidation {
		result.Issues = append(result.Issues, v.aiReview(ctx, record)...)
	}

	if v.cfg.Validation.StrictMode {
		escalate(result.Issues)
	}

	result.QualityMetrics = ComputeMetrics(record, result.Issues, result.Duplicates)
	result.OverallScore = OverallScore(result.QualityMetrics, result.Issues)
	result.Recommendations = Recommendations(result.QualityMetrics, result.Issues)
	return result
}

func (v *Validator) basicChecks(record Record) []ValidationIssue {
	var issues []ValidationIssue

	for _, name := range v.cfg.Validation.RequiredFields {
		value, ok := record.Get(name)
		if !ok || value.IsBlank() {
			issues = append(issues, ValidationIssue{
				Type:       IssueMissingRequired,
				Field:      name,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("Required field '%s' is missing", name),
				Suggestion: fmt.Sprintf("Provide a value for '%s'", name),
			})
		}
	}

	for _, f := range record.Fields {
		if f.Value.IsBlank() {
			continue
		}
		if msg, ok := formatProblem(f); !ok {
			issues = append(issues, ValidationIssue{
				Type:       IssueInvalidFormat,
				Field:      f.Name,
				Severity:   SeverityMedium,
				Message:    msg,
				Suggestion: fmt.Sprintf("Correct the format of '%s'", f.Name),
			})
		}
	}

	return issues
}

// formatProblem applies the field-name keyed format heuristics
func formatProblem(f Field) (string, bool) {
	name := strings.ToLower(f.Name)
	text := strings.TrimSpace(f.Value.Text())

	if strings.Contains(name, "email") && !emailShapeRe.MatchString(text) {
		return fmt.Sprintf("Field '%s' is not a valid email address", f.Name), false
	}
	if strings.Contains(name, "phone") || strings.Contains(name, "tel") {
		if !phoneShapeRe.MatchString(text) || len(digitsOnly(text)) < minPhoneDigits {
			return fmt.Sprintf("Field '%s' is not a valid phone number", f.Name), false
		}
	}
	if strings.Contains(name, "date") && f.Value.Kind() != KindDate {
		if _, err := cast.ToTimeE(text); err != nil {
			return fmt.Sprintf("Field '%s' is not a valid date", f.Name), false
		}
	}
	return "", true
}

func (v *Validator) customRules(record Record) []ValidationIssue {
	if len(v.rules) == 0 {
		return nil
	}

	fields := make(map[string]string, len(record.Fields))
	for _, f := range record.Fields {
		fields[f.Name] = f.Value.Text()
	}

	var issues []ValidationIssue
	for _, rule := range v.rules {
		ok, err := rule.Evaluate(record, fields)
		if err != nil {
			v.logger.Warn("custom rule failed to evaluate",
				"rule", rule.Rule.ID, "record_id", record.RecordID, "error", err)
		}
		if ok {
			continue
		}
		issues = append(issues, ValidationIssue{
			Type:       IssueDataQuality,
			Field:      rule.Rule.Field,
			Severity:   SeverityMedium,
			Message:    rule.Rule.Message,
			Suggestion: fmt.Sprintf("Review '%s' against rule %s", rule.Rule.Field, rule.Rule.ID),
		})
	}
	return issues
}

func duplicateIssue(top DuplicateCandidate) ValidationIssue {
	severity := SeverityHigh
	if top.Confidence > 95 {
		severity = SeverityCritical
	}

	matched := ""
	if top.MatchedRecord != nil {
		matched = top.MatchedRecord.RecordID
	}
	return ValidationIssue{
		Type:       IssueDuplication,
		Field:      strings.Join(top.MatchingFields, ","),
		Severity:   severity,
		Message:    fmt.Sprintf("Possible duplicate of record '%s' (%.1f%% confidence)", matched, top.Confidence),
		Suggestion: fmt.Sprintf("Review and merge with record '%s'", matched),
	}
}

func (v *Validator) piiChecks(ctx context.Context, record Record) ([]PIIFinding, []ValidationIssue) {
	findings := []PIIFinding{}
	var issues []ValidationIssue

	for _, f := range record.Fields {
		if f.Value.IsBlank() {
			continue
		}
		finding := v.detector.Analyze(ctx, f.Name, f.Value)
		if len(finding.PIITypes) == 0 {
			continue
		}
		findings = append(findings, finding)

		if finding.Confidence < classifierMinConfidence {
			continue
		}
		severity := SeverityHigh
		if finding.Confidence >= 90 {
			severity = SeverityCritical
		}
		top := strongest(finding.PIITypes)
		issues = append(issues, ValidationIssue{
			Type:       IssuePIIRisk,
			Field:      f.Name,
			Severity:   severity,
			Message:    fmt.Sprintf("Field '%s' contains %s (%.0f%% confidence)", f.Name, top.Type, finding.Confidence),
			Suggestion: finding.Suggestion,
		})
	}
	return findings, issues
}

func (v *Validator) aiReview(ctx context.Context, record Record) []ValidationIssue {
	reviewed := v.classifier.ReviewRecord(ctx, record)
	issues := make([]ValidationIssue, 0, len(reviewed))
	for _, issue := range reviewed {
		if issue.Message == "" {
			continue
		}
		if issue.Type == "" {
			issue.Type = IssueDataQuality
		}
		issue.Severity = ParseSeverity(string(issue.Severity))
		issue.AIGenerated = true
		issues = append(issues, issue)
	}
	return issues
}

// escalate raises medium format and data quality issues to high
func escalate(issues []ValidationIssue) {
	for i := range issues {
		if issues[i].Severity != SeverityMedium {
			continue
		}
		if issues[i].Type == IssueInvalidFormat || issues[i].Type == IssueDataQuality {
			issues[i].Severity = SeverityHigh
		}
	}
}

// FailedResult is the result recorded for a record whose evaluation failed
func FailedResult(record Record, cause error) RecordResult {
	issues := []ValidationIssue{{
		Type:       IssueDataQuality,
		Severity:   SeverityCritical,
		Message:    fmt.Sprintf("Record could not be validated: %v", cause),
		Suggestion: "Inspect the record for malformed values and re-run validation",
	}}
	m := QualityMetrics{}
	return RecordResult{
		RecordID:        record.RecordID,
		OverallScore:    0,
		Issues:          issues,
		Duplicates:      []DuplicateCandidate{},
		PIIFindings:     []PIIFinding{},
		QualityMetrics:  m,
		Recommendations: Recommendations(m, issues),
	}
}
