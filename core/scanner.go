package core

import (
	"fmt"
	"regexp"

	"github.com/SamuelRCrider/dqe-go/utils"
)

const (
	// luhnFailedConfidence replaces the credit card base confidence when the checksum fails
	luhnFailedConfidence = 50

	// shortAccountConfidence replaces the bank account base confidence for short digit runs
	shortAccountConfidence = 40

	// minAccountDigits is the shortest digit run treated as a full bank account number
	minAccountDigits = 10
)

// PatternInfo stores metadata about a PII pattern
type PatternInfo struct {
	Name        string
	Category    PIICategory
	Regex       *regexp.Regexp
	Confidence  float64
	Description string
}

// CustomPattern is a user supplied pattern reported as the custom category
type CustomPattern struct {
	Name       string  `yaml:"name" json:"name"`
	Pattern    string  `yaml:"pattern" json:"pattern"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// DefaultPIIPatterns returns the built-in pattern table. Order is significant:
// ties on confidence resolve to the earlier entry.
func DefaultPIIPatterns() []PatternInfo {
	return []PatternInfo{
		{
			Name:        "email",
			Category:    PIIEmail,
			Regex:       regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			Confidence:  95,
			Description: "Email address",
		},
		{
			Name:        "ssn_us",
			Category:    PIISSN,
			Regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Confidence:  95,
			Description: "US Social Security Number",
		},
		{
			Name:        "credit_card",
			Category:    PIICreditCard,
			Regex:       regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
			Confidence:  90,
			Description: "Credit card number",
		},
		{
			Name:        "phone",
			Category:    PIIPhone,
			Regex:       regexp.MustCompile(`(?:\+?1[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]?\d{3}[\s.-]?\d{4}\b`),
			Confidence:  85,
			Description: "Phone number",
		},
		{
			Name:        "ip_address",
			Category:    PIIIPAddress,
			Regex:       regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`),
			Confidence:  80,
			Description: "IPv4 address",
		},
		{
			Name:        "bank_account",
			Category:    PIIBankAccount,
			Regex:       regexp.MustCompile(`\b\d{8,17}\b`),
			Confidence:  75,
			Description: "Bank account number",
		},
		{
			Name:        "passport",
			Category:    PIIPassport,
			Regex:       regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`),
			Confidence:  65,
			Description: "Passport number",
		},
		{
			Name:     "date_of_birth",
			Category: PIIDateOfBirth,
			Regex: regexp.MustCompile(`\b(?:19|20)\d{2}[-/](?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])\b|` +
				`\b(?:0[1-9]|1[0-2])[-/](?:0[1-9]|[12]\d|3[01])[-/](?:19|20)\d{2}\b`),
			Confidence:  60,
			Description: "Date that may be a date of birth",
		},
		{
			Name:        "license_plate",
			Category:    PIILicensePlate,
			Regex:       regexp.MustCompile(`\b[A-Z]{2,3}[- ]?\d{3,4}\b`),
			Confidence:  45,
			Description: "Vehicle license plate",
		},
	}
}

// ScannerConfig defines configuration for pattern scanning
type ScannerConfig struct {
	// Patterns replaces the built-in table when non-nil
	Patterns []PatternInfo

	// CustomPatterns are appended after the built-in table
	CustomPatterns []CustomPattern

	// DisabledCategories are skipped entirely
	DisabledCategories []PIICategory
}

// PIIScanner classifies a single field value against an ordered pattern table
type PIIScanner struct {
	patterns []PatternInfo
}

// NewPIIScanner creates a scanner with the built-in table plus any custom patterns
func NewPIIScanner(config ScannerConfig) (*PIIScanner, error) {
	base := config.Patterns
	if base == nil {
		base = DefaultPIIPatterns()
	}

	disabled := make(map[PIICategory]bool, len(config.DisabledCategories))
	for _, c := range config.DisabledCategories {
		disabled[c] = true
	}

	patterns := make([]PatternInfo, 0, len(base)+len(config.CustomPatterns))
	for _, p := range base {
		if !disabled[p.Category] {
			patterns = append(patterns, p)
		}
	}

	if !disabled[PIICustom] {
		for _, cp := range config.CustomPatterns {
			re, err := regexp.Compile(cp.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid custom pattern '%s': %w", cp.Name, err)
			}
			confidence := cp.Confidence
			if confidence <= 0 {
				confidence = 70
			}
			patterns = append(patterns, PatternInfo{
				Name:        cp.Name,
				Category:    PIICustom,
				Regex:       re,
				Confidence:  clampScore(confidence),
				Description: fmt.Sprintf("Custom pattern: %s", cp.Name),
			})
		}
	}

	return &PIIScanner{patterns: patterns}, nil
}

// Patterns returns the active pattern table in evaluation order
func (s *PIIScanner) Patterns() []PatternInfo {
	out := make([]PatternInfo, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// ScanValue returns every pattern hit with its adjusted confidence
func (s *PIIScanner) ScanValue(value string) []utils.MatchResult {
	var matches []utils.MatchResult
	if value == "" {
		return matches
	}

	for _, info := range s.patterns {
		for _, loc := range info.Regex.FindAllStringIndex(value, -1) {
			hit := value[loc[0]:loc[1]]
			confidence, adjustment := adjustConfidence(info, hit)
			matches = append(matches, utils.MatchResult{
				StartIndex: loc[0],
				EndIndex:   loc[1],
				Value:      hit,
				Type:       string(info.Category),
				Pattern:    info.Name,
				Confidence: confidence,
				Adjustment: adjustment,
			})
		}
	}

	return matches
}

// Candidates returns one PIIType per matching pattern, in table order
func (s *PIIScanner) Candidates(value string) []PIIType {
	var out []PIIType
	index := make(map[string]int)

	for _, m := range s.ScanValue(value) {
		if i, seen := index[m.Pattern]; seen {
			// a pattern can hit several times; keep its strongest hit
			if m.Confidence > out[i].Confidence {
				out[i].Confidence = m.Confidence
			}
			continue
		}
		index[m.Pattern] = len(out)
		out = append(out, PIIType{
			Type:       PIICategory(m.Type),
			Confidence: m.Confidence,
			Pattern:    m.Pattern,
		})
	}

	return out
}

// adjustConfidence applies per-category checksum and length rules
func adjustConfidence(info PatternInfo, hit string) (float64, string) {
	switch info.Category {
	case PIICreditCard:
		if !LuhnValid(digitsOnly(hit)) {
			return luhnFailedConfidence, "luhn_failed"
		}
	case PIIBankAccount:
		if len(digitsOnly(hit)) < minAccountDigits {
			return shortAccountConfidence, "short_account_number"
		}
	}
	return info.Confidence, ""
}

// LuhnValid runs the Luhn checksum over a digit string
func LuhnValid(digits string) bool {
	if len(digits) < 2 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
