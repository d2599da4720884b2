// Package checker compares an inventory with a registry. It never writes.
package checker

import (
	"context"
	"time"

	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/logging"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// SkipPrefix starts every skipped-registry message.
const SkipPrefix = "remote check skipped: "

// Diff is the comparison of one registry with the inventory.
type Diff struct {
	Source registry.Source `json:"source"`
	// Missing are inventory entries the registry does not know.
	Missing []inventory.Entry `json:"missing"`
	// Orphaned are registry entries with no inventory entry.
	Orphaned  []registry.Entry   `json:"orphaned"`
	Anomalies []registry.Anomaly `json:"anomalies"`
	// Skipped is set when the registry could not be checked.
	Skipped string `json:"skipped,omitempty"`
}

// Skipped returns a Diff for a registry that was not checked.
func Skipped(source registry.Source, reason string) *Diff {
	return &Diff{Source: source, Skipped: reason}
}

// Clean reports whether the registry was checked and matches the inventory.
// Anomalies do not make a diff unclean.
func (d *Diff) Clean() bool {
	return d.Skipped == "" && len(d.Missing) == 0 && len(d.Orphaned) == 0
}

// SkipMessage returns the user-facing line for a skipped registry.
func (d *Diff) SkipMessage() string {
	if d.Skipped == "" {
		return ""
	}
	return SkipPrefix + d.Skipped
}

// CheckLocal diffs the settings permission array against the inventory.
// Only commands and skills are compared; agents are not local permissions.
func CheckLocal(ctx context.Context, inv *inventory.Result, settings *registry.SettingsFile) *Diff {
	logger := logging.FromContext(ctx)
	d := compare(inv, registry.SourceLocal, settings.Entries, registry.LocalKind)
	d.Anomalies = settings.Anomalies
	for _, a := range d.Anomalies {
		logger.Warn("registry anomaly", "source", a.Source, "entry", a.Value, "reason", a.Reason)
	}
	logger.Info("checked local settings",
		"path", settings.Path,
		"missing", len(d.Missing),
		"orphaned", len(d.Orphaned),
		"anomalies", len(d.Anomalies))
	return d
}

// CheckRemote lists the remote registry and diffs it against the inventory
// across all kinds. Any failure, including the timeout, yields a skipped
// diff; it is never an error.
func CheckRemote(ctx context.Context, inv *inventory.Result, remote registry.Remote, timeout time.Duration) *Diff {
	logger := logging.FromContext(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	listing, err := remote.ListEntries(ctx)
	if err != nil {
		d := Skipped(registry.SourceRemote, err.Error())
		logger.Warn(d.SkipMessage())
		return d
	}

	d := compare(inv, registry.SourceRemote, listing.Entries, func(inventory.Kind) bool { return true })
	d.Anomalies = listing.Anomalies
	for _, a := range d.Anomalies {
		logger.Warn("registry anomaly", "source", a.Source, "entry", a.Value, "reason", a.Reason)
	}
	logger.Info("checked remote registry",
		"records", len(listing.Entries),
		"missing", len(d.Missing),
		"orphaned", len(d.Orphaned))
	return d
}

// compare computes missing and orphaned entries for the kinds tracked is true for.
// Registry entries for plugins outside the scan filter are ignored, and an
// orphan listed twice is reported once.
func compare(inv *inventory.Result, source registry.Source, entries []registry.Entry, tracked func(inventory.Kind) bool) *Diff {
	d := &Diff{
		Source:   source,
		Missing:  []inventory.Entry{},
		Orphaned: []registry.Entry{},
	}

	known := make(map[inventory.Triple]bool, len(entries))
	orphaned := make(map[inventory.Triple]bool)
	for _, re := range entries {
		if !tracked(re.Triple.Kind) || !inv.Includes(re.Triple.Plugin) {
			continue
		}
		id := inv.Identity(re.Triple)
		known[id] = true
		if _, ok := inv.Lookup(re.Triple); ok || orphaned[id] {
			continue
		}
		orphaned[id] = true
		d.Orphaned = append(d.Orphaned, re)
	}

	for _, e := range inv.Entries {
		if tracked(e.Kind) && !known[inv.Identity(e.Triple())] {
			d.Missing = append(d.Missing, e)
		}
	}
	return d
}
