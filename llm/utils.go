package llm

import (
	"github.com/google/uuid"
)

// generateRequestID creates a unique ID for request tracking
func generateRequestID() string {
	return uuid.NewString()
}

// estimateTokens provides a rough estimate of tokens in a prompt
func estimateTokens(s string) int {
	// roughly 4 characters per token for English text
	return len(s) / 4
}
