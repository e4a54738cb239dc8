package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SamuelRCrider/dqe-go/core"
)

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *core.PIIType
		wantErr bool
	}{
		{name: "empty object", payload: `{}`},
		{name: "percent", payload: `{"type": "ssn", "confidence": 75}`, want: &core.PIIType{Type: core.PIISSN, Confidence: 75}},
		{name: "fraction", payload: `{"type": "name", "confidence": 0.5}`, want: &core.PIIType{Type: core.PIIName, Confidence: 50}},
		{name: "zero confidence", payload: `{"type": "address", "confidence": 0}`, want: &core.PIIType{Type: core.PIIAddress}},
		{name: "unknown type", payload: `{"type": "favorite_color", "confidence": 80}`, wantErr: true},
		{name: "missing type", payload: `{"confidence": 80}`, wantErr: true},
		{name: "out of range", payload: `{"type": "email", "confidence": 140}`, wantErr: true},
		{name: "negative", payload: `{"type": "email", "confidence": -3}`, wantErr: true},
		{name: "array", payload: `[]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClassification(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReviewRejectsNonArray(t *testing.T) {
	_, err := parseReview(`{"issue": "x"}`)
	assert.Error(t, err)
}

func TestParseReviewKeepsKnownTypes(t *testing.T) {
	issues, err := parseReview(`[
		{"field": "ssn", "issue": "exposed", "severity": "critical", "type": "pii_risk"},
		{"field": "id", "issue": "dup", "severity": "low", "type": "duplication"}
	]`)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, core.IssuePIIRisk, issues[0].Type)
	assert.Equal(t, core.SeverityCritical, issues[0].Severity)
	assert.Equal(t, core.IssueDataQuality, issues[1].Type, "duplication is reported by the engine, not the reviewer")
}

func TestClassifyPromptTruncatesLongValues(t *testing.T) {
	prompt := classifyPrompt("notes", strings.Repeat("x", 1000))
	assert.Contains(t, prompt, "Field name: notes")
	assert.Contains(t, prompt, strings.Repeat("x", maxPromptValueLen)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", maxPromptValueLen+1))
	assert.Contains(t, prompt, string(core.PIICreditCard))
}

func TestReviewPromptListsFields(t *testing.T) {
	record := core.NewRecord("r1", "email", "a@b.co", "age", 42)
	record.ObjectType = "contact"

	prompt := reviewPrompt(record)
	assert.Contains(t, prompt, "Review this contact record")
	assert.Contains(t, prompt, "- email: a@b.co\n")
	assert.Contains(t, prompt, "- age: 42\n")
}

func TestResponseValidatorExtract(t *testing.T) {
	v := NewResponseValidator(ResponseValidation{MaxLength: 64})

	payload, err := v.Extract("  {\"type\": \"email\"}  ")
	require.NoError(t, err)
	assert.Equal(t, `{"type": "email"}`, payload)

	payload, err = v.Extract("```\n[1, 2]\n```")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2]", payload)

	_, err = v.Extract("   ")
	assert.Error(t, err)

	_, err = v.Extract("{broken")
	assert.Error(t, err)

	_, err = v.Extract(`{"pad": "` + strings.Repeat("a", 80) + `"}`)
	assert.ErrorContains(t, err, "maximum length")
}
