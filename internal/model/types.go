package model

import (
	"fmt"
	"sort"
	"strings"
)

// ScanTarget identifies one schema location to inspect
type ScanTarget struct {
	Schema string
	Table  string
	Column string
}

func (t ScanTarget) String() string {
	return fmt.Sprintf("%s.%s.%s", t.Schema, t.Table, t.Column)
}

// TargetSet deduplicates scan targets by identity
type TargetSet map[ScanTarget]struct{}

func NewTargetSet(targets ...ScanTarget) TargetSet {
	s := make(TargetSet, len(targets))
	for _, t := range targets {
		s[t] = struct{}{}
	}
	return s
}

func (s TargetSet) Add(t ScanTarget) {
	s[t] = struct{}{}
}

func (s TargetSet) Contains(t ScanTarget) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the targets in deterministic schema.table.column order
func (s TargetSet) Sorted() []ScanTarget {
	out := make([]ScanTarget, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}

// Severity ranks a finding. Order matters: comparisons use the numeric value.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityError:    "error",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ParseSeverity maps a case-insensitive severity name to its rank
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if strings.EqualFold(name, n) {
			return sev, nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown severity %q", name)
}

// RuleMatch is the classifier's answer for a single value
type RuleMatch struct {
	Code        string
	Severity    Severity
	Description string
}

// Violation records one sampled value matching one rule at one target.
// Repeated values at the same target each produce their own Violation.
type Violation struct {
	RuleCode string
	Severity Severity
	Message  string
	Target   ScanTarget
	Sample   string
}
