package model

// Classifier maps a sampled cell value to the first detection rule it
// violates, in library construction order.
type Classifier interface {
	// FindFirstViolation returns the earliest-constructed rule whose
	// pattern matches value, or ok=false when no rule matches.
	// Empty values never match.
	FindFirstViolation(value string) (RuleMatch, bool)
}
