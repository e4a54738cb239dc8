package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

const (
	// MaskThreshold is the finding confidence at which a value must be masked
	MaskThreshold = 80

	// classifierMinConfidence is the lowest external classification that is kept
	classifierMinConfidence = 70

	// minOpaqueValueLen is the length above which mixed values are treated as sensitive
	minOpaqueValueLen = 5
)

// DefaultSensitiveKeywords are field-name fragments that justify asking the classifier
func DefaultSensitiveKeywords() []string {
	return []string{
		"id", "number", "account", "card", "tax", "license", "passport", "secret",
		"token", "key", "password", "personal", "private", "national", "iban",
	}
}

// PIIDetector runs the full PII chain for a single field:
// pattern table, entity heuristics, then the external classifier for gaps.
type PIIDetector struct {
	scanner    *PIIScanner
	entities   *EntityDetector
	classifier Classifier
	sensitive  []string
	logger     *slog.Logger
}

// DetectorOption configures a PIIDetector
type DetectorOption func(*PIIDetector)

// WithClassifier sets the external classifier consulted for sensitive gaps
func WithClassifier(c Classifier) DetectorOption {
	return func(d *PIIDetector) {
		if c != nil {
			d.classifier = c
		}
	}
}

// WithSensitiveKeywords replaces the field-name keywords that mark a field as sensitive
func WithSensitiveKeywords(keywords []string) DetectorOption {
	return func(d *PIIDetector) {
		d.sensitive = keywords
	}
}

// WithDetectorLogger sets the logger
func WithDetectorLogger(l *slog.Logger) DetectorOption {
	return func(d *PIIDetector) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewPIIDetector creates a detector over a scanner and entity detector
func NewPIIDetector(scanner *PIIScanner, entities *EntityDetector, opts ...DetectorOption) *PIIDetector {
	d := &PIIDetector{
		scanner:    scanner,
		entities:   entities,
		classifier: NopClassifier{},
		sensitive:  DefaultSensitiveKeywords(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze classifies one field value
func (d *PIIDetector) Analyze(ctx context.Context, fieldName string, value Value) PIIFinding {
	text := value.Text()
	finding := PIIFinding{
		FieldName: fieldName,
		Value:     text,
		PIITypes:  []PIIType{},
	}

	candidates := d.scanner.Candidates(text)
	if d.entities != nil {
		candidates = append(candidates, d.entities.Detect(fieldName, text)...)
	}

	if len(candidates) == 0 && d.looksSensitive(fieldName, text) {
		if hit := d.classifier.ClassifyField(ctx, fieldName, text); hit != nil {
			if hit.Confidence >= classifierMinConfidence && IsKnownPIICategory(string(hit.Type)) {
				candidates = append(candidates, PIIType{
					Type:       hit.Type,
					Confidence: clampScore(hit.Confidence),
					Pattern:    "classifier",
				})
			} else {
				d.logger.Debug("classifier result below threshold",
					"field", fieldName, "type", hit.Type, "confidence", hit.Confidence)
			}
		}
	}

	finding.PIITypes = candidates
	if len(candidates) == 0 {
		finding.Suggestion = "No PII detected"
		return finding
	}

	top := strongest(candidates)
	finding.Confidence = top.Confidence
	finding.Suggestion = suggestionFor(top)
	if finding.Confidence >= MaskThreshold {
		finding.ShouldMask = true
		finding.MaskedValue = MaskValue(top.Type, text)
	}

	return finding
}

// looksSensitive decides whether a field with no deterministic signal is
// worth an external classification
func (d *PIIDetector) looksSensitive(fieldName, value string) bool {
	name := strings.ToLower(fieldName)
	for _, kw := range d.sensitive {
		if strings.Contains(name, kw) {
			return true
		}
	}

	if len([]rune(value)) <= minOpaqueValueLen {
		return false
	}
	var letters, others bool
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			letters = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			others = true
		}
	}
	return letters && others
}

// strongest returns the highest-confidence candidate; ties keep the earlier one
func strongest(candidates []PIIType) PIIType {
	top := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > top.Confidence {
			top = c
		}
	}
	return top
}

func suggestionFor(top PIIType) string {
	switch {
	case top.Confidence >= MaskThreshold:
		return fmt.Sprintf("Mask or encrypt this %s value before storing it", top.Type)
	case top.Confidence >= classifierMinConfidence:
		return fmt.Sprintf("Review whether this value is a %s and restrict access", top.Type)
	default:
		return fmt.Sprintf("Possible %s, low confidence", top.Type)
	}
}
