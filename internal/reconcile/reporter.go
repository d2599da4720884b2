package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"

	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// Format specifies the output format for reports.
type Format string

const (
	// FormatText produces human-readable text output.
	FormatText Format = "text"
	// FormatJSON produces machine-readable JSON output.
	FormatJSON Format = "json"
)

// Reporter formats and writes reports.
type Reporter struct {
	out    io.Writer
	format Format
}

// NewReporter creates a new Reporter.
func NewReporter(out io.Writer, format Format) *Reporter {
	return &Reporter{
		out:    out,
		format: format,
	}
}

// Report writes the report to the output.
func (r *Reporter) Report(rep *Report) error {
	if rep == nil {
		return nil
	}

	switch r.format {
	case FormatJSON:
		return r.reportJSON(rep)
	default:
		return r.reportText(rep)
	}
}

// ReportErrors writes only the error-severity findings: what is left
// unresolved. It backs --quiet, which still itemizes why a run exits non-zero.
func (r *Reporter) ReportErrors(rep *Report) error {
	if rep == nil {
		return nil
	}

	var errs []Finding
	for _, f := range rep.Findings {
		if f.Severity == SeverityError {
			errs = append(errs, f)
		}
	}

	if r.format == FormatJSON {
		if errs == nil {
			errs = []Finding{}
		}
		encoder := json.NewEncoder(r.out)
		encoder.SetIndent("", "  ")
		return errors.Wrap(encoder.Encode(errs), "encoding JSON findings")
	}
	for _, f := range errs {
		r.writeFinding(f)
	}
	return nil
}

func (r *Reporter) reportJSON(rep *Report) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(rep), "encoding JSON report")
}

func (r *Reporter) reportText(rep *Report) error {
	parts := make([]string, 0, len(inventory.Kinds))
	for _, k := range inventory.Kinds {
		parts = append(parts, fmt.Sprintf("%d %s", rep.Components[k], plural(rep.Components[k], string(k))))
	}
	fmt.Fprintf(r.out, "Plugins:  %s (%s)\n", rep.Root, strings.Join(parts, ", "))
	fmt.Fprintf(r.out, "Settings: %s\n\n", rep.Settings)

	for _, c := range rep.Changes {
		where := "settings"
		if c.Source == registry.SourceRemote {
			where = "remote"
		}
		fmt.Fprintf(r.out, "%s %s %s in %s\n", color.GreenString(statusIcon(SeverityPass)), c.Action, c.Key, where)
	}
	if rep.BackupPath != "" {
		fmt.Fprintf(r.out, "  backup: %s\n", rep.BackupPath)
	}
	if len(rep.Changes) > 0 {
		fmt.Fprintln(r.out)
	}

	for _, f := range rep.Findings {
		r.writeFinding(f)
	}
	if len(rep.Findings) > 0 {
		fmt.Fprintln(r.out)
	}

	switch {
	case rep.Mode == ModeValidate && !rep.HasErrors():
		fmt.Fprintln(r.out, color.GreenString("✓ Registries in sync"))
	case rep.Mode == ModeFix && len(rep.Changes) == 0 && !rep.HasErrors():
		fmt.Fprintln(r.out, color.GreenString("✓ Nothing to fix"))
	}

	s := rep.Summary
	if rep.Mode == ModeFix {
		fmt.Fprintf(r.out, "Summary: %d appended, %d remote created, %d remote updated, %d unresolved, %d warnings\n",
			s.Appended, s.Created, s.Updated, s.Errors, s.Warnings)
	} else {
		fmt.Fprintf(r.out, "Summary: %d missing, %d orphaned, %d conflicts, %d anomalies\n",
			s.Missing, s.Orphaned, s.Conflicts, s.Anomalies)
	}

	if rep.Recommendation != "" {
		fmt.Fprintln(r.out, rep.Recommendation)
	}
	return nil
}

func (r *Reporter) writeFinding(f Finding) {
	icon := colorize(f.Severity, statusIcon(f.Severity))
	if f.Source == "" {
		fmt.Fprintf(r.out, "%s [%s] %s\n", icon, f.Category, f.Message)
		return
	}
	fmt.Fprintf(r.out, "%s [%s] %s: %s\n", icon, f.Category, f.Source, f.Message)
}

func statusIcon(s Severity) string {
	switch s {
	case SeverityPass:
		return "✓"
	case SeverityInfo:
		return "ℹ"
	case SeverityWarning:
		return "⚠"
	case SeverityError:
		return "✗"
	default:
		return "?"
	}
}

func colorize(s Severity, text string) string {
	switch s {
	case SeverityPass:
		return color.GreenString(text)
	case SeverityWarning:
		return color.YellowString(text)
	case SeverityError:
		return color.RedString(text)
	default:
		return text
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
