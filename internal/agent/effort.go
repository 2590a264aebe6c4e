package agent

import "strings"

// ReasoningEffort controls how much thinking budget a model call gets.
type ReasoningEffort int

const (
	// EffortMinimal disables thinking entirely.
	EffortMinimal ReasoningEffort = iota
	// EffortLow allows a small thinking budget.
	EffortLow
	// EffortMedium is the default.
	EffortMedium
	// EffortHigh allows the largest thinking budget.
	EffortHigh
)

// ParseReasoningEffort maps a caller-supplied string to an effort level.
// Matching is case-insensitive with surrounding whitespace ignored.
// Anything unrecognized, including the empty string, maps to EffortMedium;
// parsing never fails.
func ParseReasoningEffort(s string) ReasoningEffort {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return EffortMinimal
	case "low":
		return EffortLow
	case "high":
		return EffortHigh
	default:
		return EffortMedium
	}
}

// String returns the canonical lowercase name.
func (e ReasoningEffort) String() string {
	switch e {
	case EffortMinimal:
		return "minimal"
	case EffortLow:
		return "low"
	case EffortHigh:
		return "high"
	default:
		return "medium"
	}
}

// thinkingBudget returns the Gemini thinking token budget for this effort.
func (e ReasoningEffort) thinkingBudget() int32 {
	switch e {
	case EffortMinimal:
		return 0
	case EffortLow:
		return 1024
	case EffortHigh:
		return 8192
	default:
		return 2048
	}
}
