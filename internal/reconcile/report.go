package reconcile

import (
	"github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// Severity indicates the importance level of a finding.
type Severity int

const (
	// SeverityPass indicates a check that found nothing.
	SeverityPass Severity = iota

	// SeverityInfo indicates informational output, not a problem.
	SeverityInfo

	// SeverityWarning indicates an issue that does not affect the exit code.
	SeverityWarning

	// SeverityError indicates drift left unresolved.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityPass:
		return "pass"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Category groups findings.
type Category string

// Finding categories.
const (
	CategoryMissing       Category = "missing"
	CategoryOrphaned      Category = "orphaned"
	CategoryConflict      Category = "conflict"
	CategoryAnomaly       Category = "anomaly"
	CategoryRemote        Category = "remote"
	CategoryUnselected    Category = "unselected"
	CategoryWriteConflict Category = "write-conflict"
)

// Mode is the reconciler mode.
type Mode string

// Reconciler modes.
const (
	ModeValidate Mode = "validate"
	ModeFix      Mode = "fix"
)

// Finding is one itemized result.
type Finding struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	// Source is the registry, or "scan" for scan conflicts.
	Source  string   `json:"source"`
	Plugin  string   `json:"plugin,omitempty"`
	Kind    string   `json:"kind,omitempty"`
	Name    string   `json:"name,omitempty"`
	Key     string   `json:"key,omitempty"`
	Paths   []string `json:"paths,omitempty"`
	Message string   `json:"message"`
}

// Action is what fix did to a registry.
type Action string

// Fix actions.
const (
	ActionAppended Action = "appended"
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
)

// Change is one persisted modification. A change is recorded only after the
// write that carries it succeeded.
type Change struct {
	Source registry.Source `json:"source"`
	Action Action          `json:"action"`
	Key    string          `json:"key"`
	Plugin string          `json:"plugin"`
	Kind   inventory.Kind  `json:"kind"`
	Name   string          `json:"name"`
}

// Summary counts findings and changes.
type Summary struct {
	Missing   int `json:"missing"`
	Orphaned  int `json:"orphaned"`
	Conflicts int `json:"conflicts"`
	Anomalies int `json:"anomalies"`
	Appended  int `json:"appended"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Warnings  int `json:"warnings"`
	Errors    int `json:"errors"`
}

// Report is the result of a validate or fix run.
type Report struct {
	Mode     Mode   `json:"mode"`
	Root     string `json:"root"`
	Settings string `json:"settings"`

	// Components counts the scanned inventory by kind.
	Components map[inventory.Kind]int `json:"components"`

	Findings []Finding `json:"findings"`
	Changes  []Change  `json:"changes"`

	// Skipped maps a registry that was not checked to the reason.
	Skipped map[registry.Source]string `json:"skipped,omitempty"`

	// BackupPath is the backup taken before the settings write.
	BackupPath string `json:"backup,omitempty"`

	// Recommendation is the follow-up the user should run.
	Recommendation string `json:"recommendation,omitempty"`

	Summary Summary `json:"summary"`
}

func newReport(mode Mode, inv *inventory.Result, settings *registry.SettingsFile) *Report {
	r := &Report{
		Mode:       mode,
		Root:       inv.Root,
		Settings:   settings.Path,
		Components: make(map[inventory.Kind]int, len(inventory.Kinds)),
		Findings:   []Finding{},
		Changes:    []Change{},
	}
	for _, k := range inventory.Kinds {
		r.Components[k] = inv.Count(k)
	}
	return r
}

func (r *Report) add(f Finding) {
	r.Findings = append(r.Findings, f)
	switch f.Severity {
	case SeverityWarning:
		r.Summary.Warnings++
	case SeverityError:
		r.Summary.Errors++
	}
	switch f.Category {
	case CategoryMissing, CategoryUnselected:
		r.Summary.Missing++
	case CategoryOrphaned:
		r.Summary.Orphaned++
	case CategoryConflict:
		r.Summary.Conflicts++
	case CategoryAnomaly:
		r.Summary.Anomalies++
	}
}

func (r *Report) record(c Change) {
	r.Changes = append(r.Changes, c)
	switch c.Action {
	case ActionAppended:
		r.Summary.Appended++
	case ActionCreated:
		r.Summary.Created++
	case ActionUpdated:
		r.Summary.Updated++
	}
}

// HasErrors reports whether anything is left unresolved.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// HasWarnings reports whether any finding is a warning.
func (r *Report) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// ExitCode returns errors.ExitDrift when anything is left unresolved and
// errors.ExitSuccess otherwise.
func (r *Report) ExitCode() int {
	if r.HasErrors() {
		return errors.ExitDrift
	}
	return errors.ExitSuccess
}

// Filter returns the findings of the given categories.
func (r *Report) Filter(categories ...Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		for _, c := range categories {
			if f.Category == c {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
