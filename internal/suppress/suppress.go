// Package suppress filters raw violations against a user-authored
// exception policy of known-acceptable locations.
package suppress

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"deltascan/internal/model"
)

// WildcardKey matches any rule code or any table/column name.
const WildcardKey = "*"

// Location is one suppression pattern pair. Table and Column are exact
// names (case-insensitive), "*", or a trailing-wildcard prefix such as
// "Staging_*".
type Location struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Policy maps a rule code (or "*") to its suppressed locations.
type Policy struct {
	Suppressions map[string][]Location `json:"suppressions"`
}

// Suppressed pairs a violation with the policy entry that silenced it.
type Suppressed struct {
	Violation model.Violation
	Source    string
}

// LoadPolicy reads an exception policy file. A missing or unset path means
// "no policy"; everything stays active.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading exception policy %s: %w", path, err)
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing exception policy %s: %w", path, err)
	}
	return &p, nil
}

// Apply partitions violations into active and suppressed. The function is
// pure: the same inputs always yield the same partition, and the input
// slice is never mutated.
func Apply(violations []model.Violation, policy *Policy) (active []model.Violation, suppressed []Suppressed) {
	active = make([]model.Violation, 0, len(violations))
	suppressed = make([]Suppressed, 0)

	for _, v := range violations {
		if source, ok := match(v, policy); ok {
			suppressed = append(suppressed, Suppressed{Violation: v, Source: source})
		} else {
			active = append(active, v)
		}
	}
	return active, suppressed
}

func match(v model.Violation, policy *Policy) (string, bool) {
	if policy == nil || len(policy.Suppressions) == 0 {
		return "", false
	}

	codeKey := v.RuleCode
	locations, ok := policy.Suppressions[codeKey]
	if !ok {
		codeKey = WildcardKey
		locations, ok = policy.Suppressions[codeKey]
		if !ok {
			return "", false
		}
	}

	for _, loc := range locations {
		if matchesPattern(loc.Table, v.Target.Table) && matchesPattern(loc.Column, v.Target.Column) {
			return fmt.Sprintf("%s[%s.%s]", codeKey, loc.Table, loc.Column), true
		}
	}
	return "", false
}

// matchesPattern reports whether name satisfies pattern: "*", a
// case-insensitive exact name, or a case-insensitive trailing-wildcard
// prefix ("Staging_*").
func matchesPattern(pattern, name string) bool {
	if pattern == WildcardKey {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix)
	}
	return strings.EqualFold(pattern, name)
}
