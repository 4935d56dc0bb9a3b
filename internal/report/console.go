package report

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// PrintSummary writes the human-readable outcome to w. The JSON artifact
// is the machine contract; this is the operator's view.
func PrintSummary(w io.Writer, r *ScanReport) {
	if r.Summary.ViolationsFound == 0 {
		fmt.Fprintln(w, color.GreenString("✔ No sensitive data found in scanned columns."))
		return
	}

	for _, v := range r.ActiveViolations {
		fmt.Fprintf(w, "%s: [%s] %s %s\n",
			v.Location, severityColor(v.Severity).Sprint(v.Severity), v.ViolationCode, v.Message)
	}
	for _, v := range r.SuppressedViolations {
		fmt.Fprintf(w, "%s: [suppressed by %s] %s %s\n",
			v.Location, v.Suppression.Source, v.ViolationCode, v.Message)
	}

	fmt.Fprintln(w)
	switch {
	case r.ForcedContinuation != nil:
		fmt.Fprintf(w, "%s %d active violation(s), continuing anyway: %s\n",
			color.YellowString("⚠"), r.Summary.ActiveViolations, r.ForcedContinuation.Reason)
	case r.Summary.Result == ResultBuildFailure:
		fmt.Fprintf(w, "%s %d active violation(s), highest severity %s.\n",
			color.RedString("✘"), r.Summary.ActiveViolations, r.Summary.HighestActiveSeverity)
	default:
		fmt.Fprintf(w, "%s %d violation(s) found, all suppressed by policy.\n",
			color.GreenString("✔"), r.Summary.ViolationsSuppressed)
	}
}

func severityColor(severity string) *color.Color {
	switch severity {
	case "critical":
		return color.New(color.FgRed, color.Bold)
	case "error":
		return color.New(color.FgRed)
	case "warning":
		return color.New(color.FgYellow, color.Bold)
	case "info":
		return color.New(color.FgBlue)
	default:
		return color.New(color.FgWhite)
	}
}
