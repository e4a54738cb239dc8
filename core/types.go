package core

// PIICategory is the kind of personal data a value carries
type PIICategory string

const (
	PIIEmail        PIICategory = "email"
	PIIPhone        PIICategory = "phone"
	PIISSN          PIICategory = "ssn"
	PIICreditCard   PIICategory = "credit_card"
	PIIIPAddress    PIICategory = "ip_address"
	PIIDateOfBirth  PIICategory = "date_of_birth"
	PIIName         PIICategory = "name"
	PIIAddress      PIICategory = "address"
	PIIPassport     PIICategory = "passport"
	PIILicensePlate PIICategory = "license_plate"
	PIIBankAccount  PIICategory = "bank_account"
	PIICustom       PIICategory = "custom"
)

// KnownPIICategories lists every category the engine can report
var KnownPIICategories = []PIICategory{
	PIIEmail, PIIPhone, PIISSN, PIICreditCard, PIIIPAddress, PIIDateOfBirth,
	PIIName, PIIAddress, PIIPassport, PIILicensePlate, PIIBankAccount, PIICustom,
}

// IsKnownPIICategory reports whether s names a supported category
func IsKnownPIICategory(s string) bool {
	for _, c := range KnownPIICategories {
		if string(c) == s {
			return true
		}
	}
	return false
}

// PIIType is one classification candidate for a field value
type PIIType struct {
	Type       PIICategory `json:"type"`
	Confidence float64     `json:"confidence"`
	Pattern    string      `json:"pattern,omitempty"`
}

// PIIFinding is the PII assessment of a single field
type PIIFinding struct {
	FieldName   string    `json:"fieldName"`
	Value       string    `json:"value"`
	PIITypes    []PIIType `json:"piiTypes"`
	Confidence  float64   `json:"confidence"`
	Suggestion  string    `json:"suggestion"`
	ShouldMask  bool      `json:"shouldMask"`
	MaskedValue string    `json:"maskedValue,omitempty"`
}

// IssueType classifies a validation issue
type IssueType string

const (
	IssueMissingRequired IssueType = "missing_required"
	IssueInvalidFormat   IssueType = "invalid_format"
	IssueDataQuality     IssueType = "data_quality"
	IssueCompliance      IssueType = "compliance"
	IssueDuplication     IssueType = "duplication"
	IssuePIIRisk         IssueType = "pii_risk"
)

// Severity ranks how urgent an issue is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free text onto a Severity, falling back to medium
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s)
	}
	return SeverityMedium
}

// ValidationIssue is a single problem found on a record
type ValidationIssue struct {
	Type        IssueType `json:"type"`
	Field       string    `json:"field"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Suggestion  string    `json:"suggestion,omitempty"`
	AIGenerated bool      `json:"aiGenerated"`
}

// DuplicateCandidate is the outcome of comparing two records
type DuplicateCandidate struct {
	IsDuplicate    bool     `json:"isDuplicate"`
	Confidence     float64  `json:"confidence"`
	MatchedRecord  *Record  `json:"matchedRecord,omitempty"`
	MatchingFields []string `json:"matchingFields"`
	Reason         string   `json:"reason"`
}

// QualityMetrics are the five 0-100 quality dimensions
type QualityMetrics struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Compliance   float64 `json:"compliance"`
	Uniqueness   float64 `json:"uniqueness"`
}

// RecordResult is the full assessment of one record
type RecordResult struct {
	RecordID        string               `json:"recordId"`
	OverallScore    float64              `json:"overallScore"`
	Issues          []ValidationIssue    `json:"issues"`
	Duplicates      []DuplicateCandidate `json:"duplicates"`
	PIIFindings     []PIIFinding         `json:"piiFindings"`
	QualityMetrics  QualityMetrics       `json:"qualityMetrics"`
	Recommendations []string             `json:"recommendations"`
}

// HasIssue reports whether any issue of the given type is present
func (r RecordResult) HasIssue(t IssueType) bool {
	for _, issue := range r.Issues {
		if issue.Type == t {
			return true
		}
	}
	return false
}
