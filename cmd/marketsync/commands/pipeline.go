package commands

import (
	"context"
	"io"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/marketsync/internal/config"
	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/git"
	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/logging"
	"github.com/thoreinstein/marketsync/internal/paths"
	"github.com/thoreinstein/marketsync/internal/reconcile"
	"github.com/thoreinstein/marketsync/internal/registry"
)

// skipRemoteReason is the skip reason reported for --skip-remote.
const skipRemoteReason = "disabled by --skip-remote"

// scan inventories the configured marketplace, limited to plugins matching
// patterns. Failures are fatal.
func scan(ctx context.Context, cfg *config.Config, patterns []string, extra ...inventory.Option) (*inventory.Result, error) {
	filter, err := inventory.NewFilter(patterns, cfg.Scan.CaseInsensitive)
	if err != nil {
		return nil, mserrors.NewUserError(err, "Check the --plugin glob syntax")
	}

	opts := []inventory.Option{
		inventory.WithLogger(logging.FromContext(ctx)),
		inventory.WithCaseInsensitive(cfg.Scan.CaseInsensitive),
		inventory.WithFilter(filter),
	}
	scanner := inventory.NewScanner(append(opts, extra...)...)
	inv, err := scanner.Scan(marketplaceRoot(ctx, cfg.Root))
	if err != nil {
		return nil, mserrors.NewFatalError(err, "Point --root at a marketplace containing a plugins/ directory")
	}
	return inv, nil
}

// marketplaceRoot resolves the default root. When --root is left at "." and
// the working directory has no plugins/ directory, the top of the enclosing
// git work tree is used instead, so commands work from anywhere inside a
// marketplace checkout.
func marketplaceRoot(ctx context.Context, root string) string {
	if root != "." && root != "" {
		return root
	}
	if info, err := os.Stat(paths.PluginsDir(".")); err == nil && info.IsDir() {
		return "."
	}
	top, err := git.TopLevel(ctx, ".")
	if err != nil {
		logging.FromContext(ctx).Debug("no git work tree for default root", "error", err)
		return "."
	}
	if info, err := os.Stat(paths.PluginsDir(top)); err != nil || !info.IsDir() {
		return "."
	}
	logging.FromContext(ctx).Debug("using git work tree as root", "root", top)
	return top
}

// loadInput runs the read side of validate and fix: scan, read the settings
// file and open the remote registry.
func loadInput(ctx context.Context, patterns []string, skipRemote bool, extra ...inventory.Option) (reconcile.Input, error) {
	cfg := currentConfig()

	inv, err := scan(ctx, cfg, patterns, extra...)
	if err != nil {
		return reconcile.Input{}, err
	}

	settings, err := registry.ReadSettings(cfg.Settings.Path, cfg.Settings.KeyPath)
	if err != nil {
		return reconcile.Input{}, mserrors.NewFatalError(err, "Check --settings or settings.path; nothing was changed")
	}

	in := reconcile.Input{
		Inventory:     inv,
		Settings:      settings,
		RemoteTimeout: cfg.Remote.Timeout,
	}
	if skipRemote {
		in.RemoteSkip = skipRemoteReason
		return in, nil
	}
	in.Remote, in.RemoteSkip = registry.OpenRemote(cfg.Remote, logging.FromContext(ctx))
	return in, nil
}

// finish maps a report to the command result: nil when nothing is left
// unresolved, otherwise a silent drift exit.
func finish(rep *reconcile.Report) error {
	if code := rep.ExitCode(); code != mserrors.ExitSuccess {
		return mserrors.NewExitError(nil, code)
	}
	return nil
}

// printReport writes rep. Under --quiet only unresolved findings are
// printed, so a non-zero exit is still explained.
func printReport(w io.Writer, rep *reconcile.Report, asJSON bool) error {
	r := reconcile.NewReporter(w, reportFormat(asJSON))
	report := r.Report
	if isQuiet() {
		report = r.ReportErrors
	}
	if err := report(rep); err != nil {
		return fatal(err, "")
	}
	return nil
}

// reportFormat returns the reporter format for the --json flag.
func reportFormat(asJSON bool) reconcile.Format {
	if asJSON {
		return reconcile.FormatJSON
	}
	return reconcile.FormatText
}

// fatal wraps err as a fatal exit unless it already carries an exit code.
func fatal(err error, suggestion string) error {
	var exitErr *mserrors.ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return mserrors.NewFatalError(err, suggestion)
}
