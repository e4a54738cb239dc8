package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SamuelRCrider/dqe-go/core"
)

// maxPromptValueLen caps how much of a value is quoted into a prompt
const maxPromptValueLen = 256

func classifyPrompt(fieldName, value string) string {
	categories := make([]string, len(core.KnownPIICategories))
	for i, c := range core.KnownPIICategories {
		categories[i] = string(c)
	}

	return fmt.Sprintf(`Classify whether this field contains personally identifiable information.
Field name: %s
Field value: %s
Allowed types: %s
Answer with a single JSON object {"type": "<type>", "confidence": <0-100>}.
Answer {} when the value is not PII.`,
		fieldName, truncate(value, maxPromptValueLen), strings.Join(categories, ", "))
}

func reviewPrompt(record core.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this %s record for data quality problems.\n", orDefault(record.ObjectType, "source"))
	for _, f := range record.Fields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, truncate(f.Value.Text(), maxPromptValueLen))
	}
	b.WriteString(`Answer with a JSON array of objects {"field": "<name>", "issue": "<problem>", ` +
		`"severity": "low|medium|high|critical", "suggestion": "<fix>"}. Answer [] when there are no problems.`)
	return b.String()
}

// parseClassification decodes a classification object. An empty object
// means no PII; anything else that does not name a known type is rejected.
func parseClassification(payload string) (*core.PIIType, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("classification is not a JSON object: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var c classification
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("invalid classification: %w", err)
	}
	if !core.IsKnownPIICategory(c.Type) {
		return nil, fmt.Errorf("invalid classification type %q", c.Type)
	}

	confidence := c.Confidence
	if confidence > 0 && confidence <= 1 {
		// fractional confidences are scaled to 0-100
		confidence *= 100
	}
	if confidence < 0 || confidence > 100 {
		return nil, fmt.Errorf("invalid classification confidence %v", c.Confidence)
	}

	return &core.PIIType{Type: core.PIICategory(c.Type), Confidence: confidence}, nil
}

// parseReview decodes a review array into issues, dropping entries without an issue text
func parseReview(payload string) ([]core.ValidationIssue, error) {
	var items []reviewItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("review is not a JSON array of issues: %w", err)
	}

	issues := make([]core.ValidationIssue, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.Issue) == "" {
			continue
		}
		issueType := core.IssueDataQuality
		switch core.IssueType(item.Type) {
		case core.IssueInvalidFormat, core.IssueCompliance, core.IssuePIIRisk:
			issueType = core.IssueType(item.Type)
		}
		issues = append(issues, core.ValidationIssue{
			Type:        issueType,
			Field:       item.Field,
			Severity:    core.ParseSeverity(strings.ToLower(item.Severity)),
			Message:     item.Issue,
			Suggestion:  item.Suggestion,
			AIGenerated: true,
		})
	}
	return issues, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
