package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResponseValidator checks tool output before it is parsed
type ResponseValidator struct {
	config ResponseValidation
}

// NewResponseValidator creates a new response validator
func NewResponseValidator(config ResponseValidation) *ResponseValidator {
	return &ResponseValidator{config: config}
}

// Extract validates the raw output and returns the JSON payload inside it.
// Markdown code fences around the payload are removed.
func (v *ResponseValidator) Extract(output string) (string, error) {
	if v.config.MaxLength > 0 && len(output) > v.config.MaxLength {
		return "", fmt.Errorf("response exceeds maximum length of %d bytes", v.config.MaxLength)
	}

	payload := strings.TrimSpace(stripCodeFence(output))
	if payload == "" {
		return "", fmt.Errorf("empty response")
	}
	if !json.Valid([]byte(payload)) {
		return "", fmt.Errorf("invalid JSON response")
	}
	return payload, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
