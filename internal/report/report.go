// Package report aggregates scan findings into the compliance artifact and
// maps the outcome to a process exit status.
package report

import (
	"encoding/json"
	"os"
	"time"

	"deltascan/internal/model"
	"deltascan/internal/suppress"
)

// Process exit statuses. CI pipelines key off these.
const (
	ExitSuccess           = 0
	ExitViolationsFound   = 1
	ExitInvalidConfig     = 2
	ExitConnectionFailure = 3
	ExitUnhandledFault    = 4
)

// Result values written to the report summary.
const (
	ResultSuccess      = "SUCCESS"
	ResultBuildFailure = "BUILD_FAILURE"
)

// sampleCap limits how much raw sampled data leaks into the artifact.
const sampleCap = 100

type Summary struct {
	ViolationsFound       int    `json:"violationsFound"`
	ViolationsSuppressed  int    `json:"violationsSuppressed"`
	ActiveViolations      int    `json:"activeViolations"`
	HighestActiveSeverity string `json:"highestActiveSeverity"`
	ScanDurationMs        int64  `json:"scanDurationMs"`
	Result                string `json:"result"`
}

// ForcedContinuation records the audited override: a run with active
// violations that was explicitly allowed to pass. Never silent.
type ForcedContinuation struct {
	Activated bool   `json:"activated"`
	Reason    string `json:"reason"`
}

type ActiveEntry struct {
	ViolationCode string `json:"violationCode"`
	Severity      string `json:"severity"`
	Location      string `json:"location"`
	Message       string `json:"message"`
	Sample        string `json:"sample"`
}

type SuppressionRef struct {
	Source string `json:"source"`
}

type SuppressedEntry struct {
	ViolationCode string         `json:"violationCode"`
	Severity      string         `json:"severity"`
	Location      string         `json:"location"`
	Message       string         `json:"message"`
	Suppression   SuppressionRef `json:"suppression"`
}

type ScanReport struct {
	Summary              Summary             `json:"summary"`
	ForcedContinuation   *ForcedContinuation `json:"forcedContinuation,omitempty"`
	ActiveViolations     []ActiveEntry       `json:"activeViolations"`
	SuppressedViolations []SuppressedEntry   `json:"suppressedViolations"`
}

// Build computes the report and its exit status. With active violations
// and forcedContinue set, the run passes but the override is recorded in
// the artifact for audit.
func Build(active []model.Violation, suppressed []suppress.Suppressed, forcedContinue bool, forcedReason string, duration time.Duration) (*ScanReport, int) {
	r := &ScanReport{
		ActiveViolations:     make([]ActiveEntry, 0, len(active)),
		SuppressedViolations: make([]SuppressedEntry, 0, len(suppressed)),
	}

	highest := model.SeverityInfo
	haveActive := len(active) > 0
	for _, v := range active {
		if v.Severity > highest {
			highest = v.Severity
		}
		r.ActiveViolations = append(r.ActiveViolations, ActiveEntry{
			ViolationCode: v.RuleCode,
			Severity:      v.Severity.String(),
			Location:      v.Target.String(),
			Message:       v.Message,
			Sample:        truncateSample(v.Sample),
		})
	}
	for _, s := range suppressed {
		r.SuppressedViolations = append(r.SuppressedViolations, SuppressedEntry{
			ViolationCode: s.Violation.RuleCode,
			Severity:      s.Violation.Severity.String(),
			Location:      s.Violation.Target.String(),
			Message:       s.Violation.Message,
			Suppression:   SuppressionRef{Source: s.Source},
		})
	}

	r.Summary = Summary{
		ViolationsFound:       len(active) + len(suppressed),
		ViolationsSuppressed:  len(suppressed),
		ActiveViolations:      len(active),
		HighestActiveSeverity: "none",
		ScanDurationMs:        duration.Milliseconds(),
	}

	switch {
	case !haveActive:
		r.Summary.Result = ResultSuccess
		return r, ExitSuccess
	case forcedContinue:
		r.Summary.Result = ResultSuccess
		r.Summary.HighestActiveSeverity = highest.String()
		r.ForcedContinuation = &ForcedContinuation{Activated: true, Reason: forcedReason}
		return r, ExitSuccess
	default:
		r.Summary.Result = ResultBuildFailure
		r.Summary.HighestActiveSeverity = highest.String()
		return r, ExitViolationsFound
	}
}

// Write serializes the artifact exactly once. An empty path writes to
// stdout.
func (r *ScanReport) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return model.NewScanError(model.ErrCodeReportWriteFailed, "serializing report", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		return model.NewScanError(model.ErrCodeReportWriteFailed, "writing report artifact", err)
	}
	return nil
}

func truncateSample(s string) string {
	runes := []rune(s)
	if len(runes) <= sampleCap {
		return s
	}
	return string(runes[:sampleCap]) + "..."
}
