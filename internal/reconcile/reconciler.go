package reconcile

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/marketsync/internal/backup"
	"github.com/thoreinstein/marketsync/internal/checker"
	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/logging"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// ValidateRecommendation is printed after every fix that persisted a change.
const ValidateRecommendation = "Run `marketsync validate` to confirm the registries are in sync."

// FixRecommendation is printed by validate when fix can resolve something.
const FixRecommendation = "Run `marketsync fix` to register missing entries."

// sourceScan is the finding source of scan conflicts.
const sourceScan = "scan"

// Input is everything one run reconciles.
type Input struct {
	Inventory *inventory.Result
	Settings  *registry.SettingsFile

	// Remote is nil when the remote registry is not checked. RemoteSkip then
	// holds the reason.
	Remote        registry.Remote
	RemoteSkip    string
	RemoteTimeout time.Duration
}

// Selector chooses which missing local entries fix appends. Entries it does
// not return stay missing.
type Selector func(missing []inventory.Entry) ([]inventory.Entry, error)

// FixOptions configures a fix run.
type FixOptions struct {
	// Select, when set, is asked which missing local entries to append.
	Select Selector
}

// Reconciler validates and fixes registries against an inventory.
type Reconciler struct {
	backups      *backup.Manager
	beforeCommit func() error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBackups sets the backup manager used before writing settings.
func WithBackups(m *backup.Manager) Option {
	return func(r *Reconciler) {
		r.backups = m
	}
}

// WithBeforeCommit sets a hook run after the backup and before the settings
// commit. A hook error aborts the write.
func WithBeforeCommit(fn func() error) Option {
	return func(r *Reconciler) {
		r.beforeCommit = fn
	}
}

// New creates a Reconciler.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{
		backups: backup.NewManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate reports drift without writing anything.
func (r *Reconciler) Validate(ctx context.Context, in Input) *Report {
	local, remote := r.check(ctx, in)

	rep := newReport(ModeValidate, in.Inventory, in.Settings)
	addConflicts(rep, in.Inventory)
	addMissing(rep, local.Source, local.Missing)
	addDrift(rep, local)
	addMissing(rep, remote.Source, remote.Missing)
	addDrift(rep, remote)

	if rep.Summary.Missing > 0 {
		rep.Recommendation = FixRecommendation
	}
	return rep
}

// Fix appends missing local entries and pushes remote-missing entries.
// Orphans are reported, never removed. The returned error is fatal: the
// inputs could not be read, backed up or written. A write conflict is not an
// error; it is reported and leaves the settings file untouched.
func (r *Reconciler) Fix(ctx context.Context, in Input, opts FixOptions) (*Report, error) {
	logger := logging.FromContext(ctx)
	local, remote := r.check(ctx, in)

	rep := newReport(ModeFix, in.Inventory, in.Settings)
	addConflicts(rep, in.Inventory)
	addDrift(rep, local)
	addDrift(rep, remote)

	selected := local.Missing
	if opts.Select != nil && len(local.Missing) > 0 {
		var err error
		selected, err = opts.Select(local.Missing)
		if err != nil {
			return rep, errors.Wrap(err, "selecting entries")
		}
	}
	for _, e := range unselected(local.Missing, selected) {
		f := missingFinding(local.Source, e)
		f.Category = CategoryUnselected
		rep.add(f)
	}

	if len(selected) > 0 {
		err := r.writeLocal(ctx, in.Settings, selected, rep)
		switch {
		case errors.Is(err, mserrors.ErrWriteConflict):
			logger.Warn("settings write aborted", "path", in.Settings.Path, "error", err)
			rep.add(Finding{
				Severity: SeverityError,
				Category: CategoryWriteConflict,
				Source:   string(registry.SourceLocal),
				Message:  err.Error() + "; nothing was written",
			})
			addMissing(rep, local.Source, selected)
			addMissing(rep, remote.Source, remote.Missing)
			return rep, nil
		case err != nil:
			return rep, err
		}
	}

	if remote.Skipped == "" && len(remote.Missing) > 0 {
		r.pushRemote(ctx, in, remote.Missing, rep)
	}

	if len(rep.Changes) > 0 {
		rep.Recommendation = ValidateRecommendation
	}
	return rep, nil
}

func (r *Reconciler) check(ctx context.Context, in Input) (local, remote *checker.Diff) {
	local = checker.CheckLocal(ctx, in.Inventory, in.Settings)
	if in.Remote == nil {
		reason := in.RemoteSkip
		if reason == "" {
			reason = registry.SkipDisabled
		}
		remote = checker.Skipped(registry.SourceRemote, reason)
		logging.FromContext(ctx).Info(remote.SkipMessage())
		return local, remote
	}
	return local, checker.CheckRemote(ctx, in.Inventory, in.Remote, in.RemoteTimeout)
}

// writeLocal appends the keys of entries to the settings file. Order of
// operations: build the new content, confirm the file is unchanged, back it
// up, verify the backup, then commit with the version check repeated just
// before the rename.
func (r *Reconciler) writeLocal(ctx context.Context, s *registry.SettingsFile, entries []inventory.Entry, rep *Report) error {
	logger := logging.FromContext(ctx)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		key, ok := registry.FormatKey(e.Triple())
		if !ok {
			return errors.AssertionFailedf("no local key for %s", e.Triple())
		}
		keys = append(keys, key)
	}

	data, err := s.WithAppended(keys)
	if err != nil {
		return errors.Wrapf(err, "updating %s", s.Path)
	}
	if err := s.CheckUnchanged(); err != nil {
		return err
	}

	b, err := r.backups.Create(s.Path)
	if err != nil {
		return errors.Wrapf(err, "backing up %s", s.Path)
	}
	if err := backup.Verify(b, s.Raw()); err != nil {
		os.Remove(b.Path)
		return errors.Mark(errors.Wrapf(err, "%s changed since it was read", s.Path), mserrors.ErrWriteConflict)
	}
	logger.Info("backed up settings", "backup", b.Path)

	if r.beforeCommit != nil {
		if err := r.beforeCommit(); err != nil {
			os.Remove(b.Path)
			return err
		}
	}

	if err := s.Commit(data); err != nil {
		os.Remove(b.Path)
		return err
	}
	rep.BackupPath = b.Path

	for i, e := range entries {
		rep.record(Change{
			Source: registry.SourceLocal,
			Action: ActionAppended,
			Key:    keys[i],
			Plugin: e.Plugin,
			Kind:   e.Kind,
			Name:   e.Name,
		})
	}
	logger.Info("appended settings entries", "path", s.Path, "count", len(keys))

	removed, err := r.backups.PruneToRetention(s.Path)
	if err != nil {
		logger.Warn("pruning backups failed", "error", err)
	} else if len(removed) > 0 {
		logger.Debug("pruned backups", "count", len(removed))
	}
	return nil
}

// pushRemote upserts entries into the remote registry. Failures are
// reported, never fatal.
func (r *Reconciler) pushRemote(ctx context.Context, in Input, entries []inventory.Entry, rep *Report) {
	logger := logging.FromContext(ctx)
	if in.RemoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.RemoteTimeout)
		defer cancel()
	}

	results, err := in.Remote.Upsert(ctx, entries...)
	pushed := make(map[inventory.Triple]bool, len(results))
	for _, res := range results {
		action := ActionUpdated
		if res.Outcome == registry.OutcomeCreated {
			action = ActionCreated
		}
		pushed[in.Inventory.Identity(res.Entry.Triple())] = true
		rep.record(Change{
			Source: registry.SourceRemote,
			Action: action,
			Key:    registry.RemoteKey(res.Entry.Triple()),
			Plugin: res.Entry.Plugin,
			Kind:   res.Entry.Kind,
			Name:   res.Entry.Name,
		})
	}
	if err == nil {
		logger.Info("pushed remote entries", "count", len(results))
		return
	}

	logger.Warn("remote push failed", "error", err)
	rep.add(Finding{
		Severity: SeverityError,
		Category: CategoryRemote,
		Message:  "remote push failed: " + err.Error(),
	})
	var left []inventory.Entry
	for _, e := range entries {
		if !pushed[in.Inventory.Identity(e.Triple())] {
			left = append(left, e)
		}
	}
	addMissing(rep, registry.SourceRemote, left)
}

func unselected(missing, selected []inventory.Entry) []inventory.Entry {
	chosen := make(map[inventory.Triple]bool, len(selected))
	for _, e := range selected {
		chosen[e.Triple()] = true
	}
	var out []inventory.Entry
	for _, e := range missing {
		if !chosen[e.Triple()] {
			out = append(out, e)
		}
	}
	return out
}

func addConflicts(rep *Report, inv *inventory.Result) {
	for _, c := range inv.Conflicts {
		rep.add(Finding{
			Severity: SeverityError,
			Category: CategoryConflict,
			Source:   sourceScan,
			Plugin:   c.Triple.Plugin,
			Kind:     string(c.Triple.Kind),
			Name:     c.Triple.Name,
			Paths:    c.Paths,
			Message:  fmt.Sprintf("%s (%s)", c.Triple, strings.Join(c.Paths, ", ")),
		})
	}
}

func addMissing(rep *Report, source registry.Source, entries []inventory.Entry) {
	for _, e := range entries {
		rep.add(missingFinding(source, e))
	}
}

// addDrift adds the orphans, anomalies and skip reason of d.
func addDrift(rep *Report, d *checker.Diff) {
	if d.Skipped != "" {
		if rep.Skipped == nil {
			rep.Skipped = make(map[registry.Source]string)
		}
		rep.Skipped[d.Source] = d.Skipped
		rep.add(Finding{
			Severity: SeverityWarning,
			Category: CategoryRemote,
			Message:  d.SkipMessage(),
		})
		return
	}
	for _, o := range d.Orphaned {
		rep.add(Finding{
			Severity: SeverityError,
			Category: CategoryOrphaned,
			Source:   string(d.Source),
			Plugin:   o.Triple.Plugin,
			Kind:     string(o.Triple.Kind),
			Name:     o.Triple.Name,
			Key:      o.Key,
			Message:  fmt.Sprintf("%s (%s)", o.Triple, o.Key),
		})
	}
	for _, a := range d.Anomalies {
		rep.add(Finding{
			Severity: SeverityWarning,
			Category: CategoryAnomaly,
			Source:   string(d.Source),
			Key:      a.Value,
			Message:  fmt.Sprintf("%q: %s", a.Value, a.Reason),
		})
	}
}

func missingFinding(source registry.Source, e inventory.Entry) Finding {
	key := registry.RemoteKey(e.Triple())
	if source == registry.SourceLocal {
		key, _ = registry.FormatKey(e.Triple())
	}
	return Finding{
		Severity: SeverityError,
		Category: CategoryMissing,
		Source:   string(source),
		Plugin:   e.Plugin,
		Kind:     string(e.Kind),
		Name:     e.Name,
		Key:      key,
		Paths:    pathsOf(e),
		Message:  fmt.Sprintf("%s (%s)", e.Triple(), key),
	}
}

func pathsOf(e inventory.Entry) []string {
	if e.Path == "" {
		return nil
	}
	return []string{e.Path}
}
