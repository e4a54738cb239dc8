package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClassifier returns a fixed classification and records how often it was asked
type stubClassifier struct {
	result *PIIType
	review []ValidationIssue
	calls  int
}

func (s *stubClassifier) ClassifyField(ctx context.Context, fieldName, value string) *PIIType {
	s.calls++
	return s.result
}

func (s *stubClassifier) ReviewRecord(ctx context.Context, record Record) []ValidationIssue {
	return s.review
}

func newTestDetector(t *testing.T, opts ...DetectorOption) *PIIDetector {
	t.Helper()
	scanner, err := NewPIIScanner(ScannerConfig{})
	require.NoError(t, err)
	return NewPIIDetector(scanner, NewEntityDetector(nil), opts...)
}

func TestAnalyzeMasksStrongFindings(t *testing.T) {
	d := newTestDetector(t)

	finding := d.Analyze(context.Background(), "email", String("jane.doe@example.com"))
	assert.Equal(t, 95.0, finding.Confidence)
	assert.True(t, finding.ShouldMask)
	assert.Equal(t, "j***@example.com", finding.MaskedValue)
	assert.Contains(t, finding.Suggestion, "Mask or encrypt")
}

func TestAnalyzeShouldMaskThreshold(t *testing.T) {
	d := newTestDetector(t)
	ctx := context.Background()

	for _, tc := range []struct {
		field string
		value string
	}{
		{"email", "jane.doe@example.com"},
		{"notes", "ABC 1234"},
		{"ref", "12345678"},
		{"card", "4111111111111111"},
		{"city", "Paris"},
	} {
		finding := d.Analyze(ctx, tc.field, String(tc.value))
		assert.Equal(t, finding.Confidence >= MaskThreshold, finding.ShouldMask, "field %s", tc.field)
		if finding.ShouldMask {
			assert.NotEmpty(t, finding.MaskedValue)
			assert.NotEqual(t, tc.value, finding.MaskedValue)
		} else {
			assert.Empty(t, finding.MaskedValue)
		}
	}
}

func TestAnalyzeNoPII(t *testing.T) {
	d := newTestDetector(t)

	finding := d.Analyze(context.Background(), "status", String("active"))
	assert.NotNil(t, finding.PIITypes)
	assert.Empty(t, finding.PIITypes)
	assert.Equal(t, "No PII detected", finding.Suggestion)
	assert.False(t, finding.ShouldMask)
}

func TestAnalyzeConsultsClassifierForSensitiveGaps(t *testing.T) {
	stub := &stubClassifier{result: &PIIType{Type: PIIBankAccount, Confidence: 75}}
	d := newTestDetector(t, WithClassifier(stub))

	finding := d.Analyze(context.Background(), "customer_ref_id", String("zz"))
	assert.Equal(t, 1, stub.calls)
	require.Len(t, finding.PIITypes, 1)
	assert.Equal(t, PIIBankAccount, finding.PIITypes[0].Type)
	assert.Equal(t, "classifier", finding.PIITypes[0].Pattern)
	assert.False(t, finding.ShouldMask)

	// deterministic signal means no classifier call
	d.Analyze(context.Background(), "customer_ref_id", String("jane@example.com"))
	assert.Equal(t, 1, stub.calls)

	// not sensitive by name and too short to look opaque
	d.Analyze(context.Background(), "status", String("open"))
	assert.Equal(t, 1, stub.calls)
}

func TestAnalyzeDropsWeakClassifications(t *testing.T) {
	stub := &stubClassifier{result: &PIIType{Type: PIIPassport, Confidence: 60}}
	d := newTestDetector(t, WithClassifier(stub))

	finding := d.Analyze(context.Background(), "document_number", String("zz"))
	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, finding.PIITypes)

	stub.result = &PIIType{Type: "favourite_colour", Confidence: 99}
	finding = d.Analyze(context.Background(), "document_number", String("zz"))
	assert.Empty(t, finding.PIITypes)
}

func TestLooksSensitive(t *testing.T) {
	d := newTestDetector(t)

	assert.True(t, d.looksSensitive("api_token", ""))
	assert.True(t, d.looksSensitive("notes", "AB-99/XK"))
	assert.False(t, d.looksSensitive("notes", "hello world"))
	assert.False(t, d.looksSensitive("notes", "A-1"))

	custom := newTestDetector(t, WithSensitiveKeywords([]string{"nhs"}))
	assert.True(t, custom.looksSensitive("nhs_no", ""))
	assert.False(t, custom.looksSensitive("api_token", ""))
}
