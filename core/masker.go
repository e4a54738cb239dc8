package core

import (
	"strings"
	"unicode"
)

const (
	maskedSSN     = "XXX-XX-XXXX"
	maskedGeneric = "***MASKED***"
)

// MaskValue applies the format-preserving mask for a category.
// The result is never empty and never equal to the input.
func MaskValue(category PIICategory, value string) string {
	var masked string
	switch category {
	case PIIEmail:
		masked = maskEmail(value)
	case PIIPhone:
		masked = maskPhone(value)
	case PIISSN:
		masked = maskedSSN
	case PIICreditCard:
		masked = maskCard(value)
	case PIIName:
		masked = maskName(value)
	default:
		masked = maskedGeneric
	}

	if masked == "" || masked == value {
		return maskedGeneric
	}
	return masked
}

// maskEmail keeps the first character of the local part and the domain
func maskEmail(value string) string {
	v := strings.TrimSpace(value)
	at := strings.LastIndex(v, "@")
	if at <= 0 || at == len(v)-1 {
		return maskedGeneric
	}
	first := []rune(v[:at])[0]
	return string(first) + "***" + v[at:]
}

// maskPhone keeps the area code and the last four digits
func maskPhone(value string) string {
	digits := digitsOnly(value)
	if len(digits) < 10 {
		return maskedGeneric
	}
	national := digits[len(digits)-10:]
	return "(" + national[:3] + ") ***-" + national[6:]
}

// maskCard replaces every digit except the last four, keeping separators
func maskCard(value string) string {
	total := len(digitsOnly(value))
	if total <= 4 {
		return maskedGeneric
	}

	var b strings.Builder
	seen := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			seen++
			if seen <= total-4 {
				b.WriteByte('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// maskName keeps the first letter of each token
func maskName(value string) string {
	tokens := strings.Fields(value)
	if len(tokens) == 0 {
		return maskedGeneric
	}

	masked := make([]string, 0, len(tokens))
	for _, t := range tokens {
		runes := []rune(t)
		var b strings.Builder
		for i, r := range runes {
			if i == 0 || !unicode.IsLetter(r) {
				b.WriteRune(r)
				continue
			}
			b.WriteByte('*')
		}
		masked = append(masked, b.String())
	}
	return strings.Join(masked, " ")
}
