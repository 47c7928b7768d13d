package mode

import "strings"

// Mode is the retrieval strategy of a plan.
type Mode string

// Search mode constants.
const (
	// Lexical relies on backend full-text relevance only.
	Lexical Mode = "lexical"
	// Hybrid ranks by vector similarity blended with recency.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Lexical || m == Hybrid
}

// Parse maps loose spellings onto a mode. Unknown values report false.
func Parse(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "keyword", "bm25":
		return Lexical, true
	case "hybrid", "semantic", "vector":
		return Hybrid, true
	default:
		return "", false
	}
}
