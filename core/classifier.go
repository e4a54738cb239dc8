package core

import "context"

// Classifier is the external classification capability. Implementations
// swallow their own failures: a nil or empty return means "no result".
type Classifier interface {
	// ClassifyField returns at most one PII classification for a field
	ClassifyField(ctx context.Context, fieldName, value string) *PIIType

	// ReviewRecord returns quality issues found by an external reviewer
	ReviewRecord(ctx context.Context, record Record) []ValidationIssue
}

// NopClassifier never returns a result
type NopClassifier struct{}

func (NopClassifier) ClassifyField(context.Context, string, string) *PIIType { return nil }

func (NopClassifier) ReviewRecord(context.Context, Record) []ValidationIssue { return nil }
