package utils

// MatchResult is a single pattern hit inside a field value
type MatchResult struct {
	// Match location information
	StartIndex int
	EndIndex   int
	Value      string

	// Classification information
	Type       string  // PII category the pattern belongs to
	Pattern    string  // Name of the pattern that produced the hit
	Confidence float64 // Confidence after checksum/length adjustments (0-100)

	// Adjustment records why Confidence differs from the pattern's base value
	Adjustment string
}
