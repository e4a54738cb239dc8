package core

import "fmt"

// Dimension weights of the overall score
const (
	weightCompleteness = 0.20
	weightAccuracy     = 0.25
	weightConsistency  = 0.20
	weightCompliance   = 0.20
	weightUniqueness   = 0.15

	criticalPenalty = 15
	highPenalty     = 8

	// metricHintThreshold is the metric value below which an improvement hint is given
	metricHintThreshold = 80
)

// ComputeMetrics derives the five quality dimensions for a record.
// Uniqueness uses only the top-ranked duplicate.
func ComputeMetrics(record Record, issues []ValidationIssue, duplicates []DuplicateCandidate) QualityMetrics {
	total := float64(len(record.Fields))
	var filled float64
	for _, f := range record.Fields {
		if !f.Value.IsBlank() {
			filled++
		}
	}

	var formatIssues, qualityIssues, complianceIssues float64
	for _, issue := range issues {
		switch issue.Type {
		case IssueInvalidFormat:
			formatIssues++
		case IssueDataQuality:
			qualityIssues++
		case IssueCompliance, IssuePIIRisk:
			complianceIssues++
		}
	}

	m := QualityMetrics{
		Accuracy:    100,
		Consistency: 100,
		Compliance:  100,
		Uniqueness:  100,
	}
	if total > 0 {
		m.Completeness = filled / total * 100
		m.Accuracy = floor0(100 - formatIssues/total*100)
		m.Consistency = floor0(100 - qualityIssues/total*50)
	}
	if complianceIssues > 0 {
		m.Compliance = floor0(100 - complianceIssues*25)
	}
	if len(duplicates) > 0 {
		m.Uniqueness = floor0(100 - duplicates[0].Confidence)
	}
	return m
}

// OverallScore weights the metrics and subtracts severity penalties, clamped to [0,100]
func OverallScore(m QualityMetrics, issues []ValidationIssue) float64 {
	score := m.Completeness*weightCompleteness +
		m.Accuracy*weightAccuracy +
		m.Consistency*weightConsistency +
		m.Compliance*weightCompliance +
		m.Uniqueness*weightUniqueness

	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			score -= criticalPenalty
		case SeverityHigh:
			score -= highPenalty
		}
	}
	return clampScore(score)
}

// Recommendations lists guidance in priority order without repeats
func Recommendations(m QualityMetrics, issues []ValidationIssue) []string {
	var critical int
	present := make(map[IssueType]bool)
	for _, issue := range issues {
		present[issue.Type] = true
		if issue.Severity == SeverityCritical {
			critical++
		}
	}

	var recs []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			recs = append(recs, s)
		}
	}

	if critical > 0 {
		add(fmt.Sprintf("Resolve %d critical issue(s) before loading this record", critical))
	}
	if present[IssuePIIRisk] {
		add("Mask or encrypt PII fields before storing or sharing this record")
	}
	if present[IssueDuplication] {
		add("Review the potential duplicates and merge records where appropriate")
	}
	if present[IssueMissingRequired] {
		add("Populate all required fields")
	}
	if m.Completeness < metricHintThreshold {
		add("Fill in empty fields to improve completeness")
	}
	if m.Accuracy < metricHintThreshold {
		add("Correct field formats such as email, phone and date to improve accuracy")
	}
	if m.Consistency < metricHintThreshold {
		add("Fix values that break data quality rules to improve consistency")
	}
	if m.Compliance < metricHintThreshold {
		add("Address compliance findings before the record is shared")
	}
	if m.Uniqueness < metricHintThreshold {
		add("Deduplicate this record against existing data")
	}

	if recs == nil {
		recs = []string{}
	}
	return recs
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func floor0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
