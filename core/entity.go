package core

import (
	"regexp"
	"strings"
)

const (
	personNameConfidence = 85
	placeConfidence      = 75
)

// FieldKeyword maps a field-name fragment to the category it implies
type FieldKeyword struct {
	Keyword    string
	Category   PIICategory
	Confidence float64
}

// DefaultFieldKeywords is evaluated in order; the first keyword per category wins
func DefaultFieldKeywords() []FieldKeyword {
	return []FieldKeyword{
		{Keyword: "email", Category: PIIEmail, Confidence: 95},
		{Keyword: "e_mail", Category: PIIEmail, Confidence: 95},
		{Keyword: "ssn", Category: PIISSN, Confidence: 95},
		{Keyword: "social", Category: PIISSN, Confidence: 95},
		{Keyword: "phone", Category: PIIPhone, Confidence: 90},
		{Keyword: "mobile", Category: PIIPhone, Confidence: 90},
		{Keyword: "tel", Category: PIIPhone, Confidence: 90},
		{Keyword: "birth", Category: PIIDateOfBirth, Confidence: 90},
		{Keyword: "dob", Category: PIIDateOfBirth, Confidence: 90},
		{Keyword: "passport", Category: PIIPassport, Confidence: 90},
		{Keyword: "first_name", Category: PIIName, Confidence: 85},
		{Keyword: "firstname", Category: PIIName, Confidence: 85},
		{Keyword: "last_name", Category: PIIName, Confidence: 85},
		{Keyword: "lastname", Category: PIIName, Confidence: 85},
		{Keyword: "full_name", Category: PIIName, Confidence: 85},
		{Keyword: "fullname", Category: PIIName, Confidence: 85},
		{Keyword: "surname", Category: PIIName, Confidence: 85},
		{Keyword: "address", Category: PIIAddress, Confidence: 85},
		{Keyword: "street", Category: PIIAddress, Confidence: 85},
		{Keyword: "city", Category: PIIAddress, Confidence: 85},
		{Keyword: "zip", Category: PIIAddress, Confidence: 85},
		{Keyword: "postal", Category: PIIAddress, Confidence: 85},
	}
}

var (
	nameTokenRe     = regexp.MustCompile(`^[A-Z][a-z]+(?:[-'][A-Z]?[a-z]+)*\.?$`)
	streetAddressRe = regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[A-Za-z0-9.'-]+\s+){1,5}` +
		`(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl|terrace|parkway|pkwy|highway|hwy)\b\.?`)
)

// knownPlaces is a small gazetteer of place names that look like person names
var knownPlaces = map[string]bool{
	"new york": true, "los angeles": true, "san francisco": true, "san diego": true,
	"las vegas": true, "new jersey": true, "new mexico": true, "north carolina": true,
	"south carolina": true, "north dakota": true, "south dakota": true, "west virginia": true,
	"rhode island": true, "new hampshire": true, "hong kong": true, "new delhi": true,
	"buenos aires": true, "rio de janeiro": true, "mexico city": true, "cape town": true,
	"tel aviv": true, "kuala lumpur": true, "united states": true, "united kingdom": true,
	"new zealand": true, "south africa": true, "saudi arabia": true, "costa rica": true,
	"salt lake city": true, "st louis": true, "san jose": true, "san antonio": true,
	"london": true, "paris": true, "berlin": true, "tokyo": true, "chicago": true,
	"boston": true, "seattle": true, "toronto": true, "sydney": true, "madrid": true,
}

// EntityDetector adds deterministic name, place and field-name signal.
// It performs no I/O.
type EntityDetector struct {
	keywords []FieldKeyword
	places   map[string]bool
}

// NewEntityDetector creates a detector; nil keywords selects the defaults
func NewEntityDetector(keywords []FieldKeyword) *EntityDetector {
	if keywords == nil {
		keywords = DefaultFieldKeywords()
	}
	return &EntityDetector{keywords: keywords, places: knownPlaces}
}

// Detect returns additional candidates for a field
func (d *EntityDetector) Detect(fieldName, value string) []PIIType {
	var out []PIIType

	trimmed := strings.TrimSpace(value)
	if trimmed != "" {
		if d.isPlace(trimmed) {
			out = append(out, PIIType{Type: PIIAddress, Confidence: placeConfidence, Pattern: "entity:place"})
		} else if isPersonName(trimmed) {
			out = append(out, PIIType{Type: PIIName, Confidence: personNameConfidence, Pattern: "entity:person"})
		}
	}

	name := strings.ToLower(fieldName)
	seen := make(map[PIICategory]bool)
	for _, kw := range d.keywords {
		if seen[kw.Category] || !strings.Contains(name, kw.Keyword) {
			continue
		}
		seen[kw.Category] = true
		out = append(out, PIIType{Type: kw.Category, Confidence: kw.Confidence, Pattern: "field:" + kw.Keyword})
	}

	return out
}

func (d *EntityDetector) isPlace(value string) bool {
	if streetAddressRe.MatchString(value) {
		return true
	}
	return d.places[Normalize(value)]
}

// isPersonName accepts two or three capitalised alphabetic tokens
func isPersonName(value string) bool {
	tokens := strings.Fields(value)
	if len(tokens) < 2 || len(tokens) > 3 {
		return false
	}
	for _, t := range tokens {
		if !nameTokenRe.MatchString(t) {
			return false
		}
	}
	return true
}
