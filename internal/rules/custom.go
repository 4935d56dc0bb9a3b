package rules

import (
	"encoding/json"
	"fmt"
	"os"

	"deltascan/internal/model"
)

// CustomPattern is one entry from a user-supplied pattern file.
type CustomPattern struct {
	Code        string `json:"code"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Regex       string `json:"regex"`
}

type patternFile struct {
	Patterns []CustomPattern `json:"patterns"`
}

func (cp CustomPattern) toSpec() (spec, error) {
	if cp.Code == "" {
		return spec{}, fmt.Errorf("pattern has no code")
	}
	if cp.Regex == "" {
		return spec{}, fmt.Errorf("pattern %s has no regex", cp.Code)
	}
	severity, err := model.ParseSeverity(cp.Severity)
	if err != nil {
		return spec{}, fmt.Errorf("pattern %s: %w", cp.Code, err)
	}
	return spec{
		code:        cp.Code,
		severity:    severity,
		description: cp.Description,
		regex:       cp.Regex,
		tags:        []string{"custom"},
	}, nil
}

// LoadCustomPatterns reads a pattern file. A missing or unset path means
// "no custom patterns", not an error; a present but unreadable or malformed
// file is an error.
func LoadCustomPatterns(path string) ([]CustomPattern, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pattern file %s: %w", path, err)
	}
	var pf patternFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing pattern file %s: %w", path, err)
	}
	return pf.Patterns, nil
}
