package commands

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/marketsync/internal/backup"
	"github.com/thoreinstein/marketsync/internal/inventory"
	"github.com/thoreinstein/marketsync/internal/reconcile"
	"github.com/thoreinstein/marketsync/internal/registry"
)

var (
	fixPlugins    []string
	fixSkipRemote bool
	fixSelect     bool
	fixJSON       bool
)

func init() {
	fixCmd.Flags().StringArrayVar(&fixPlugins, "plugin", nil,
		"only fix plugins matching this glob (repeatable)")
	fixCmd.Flags().BoolVar(&fixSkipRemote, "skip-remote", false,
		"do not check or update the remote registry")
	fixCmd.Flags().BoolVar(&fixSelect, "select", false,
		"choose interactively which missing entries to append")
	fixCmd.Flags().BoolVar(&fixJSON, "json", false,
		"output the report as JSON")
	rootCmd.AddCommand(fixCmd)
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Register missing components",
	Long: `Append every missing component to the settings permission array and
push components missing from the remote registry.

The settings file is backed up to settings.json.backup.<timestamp> first and
replaced atomically. If it changed since it was read, nothing is written.
Orphaned entries are reported but never removed.

Exit codes:
  0 - fix applied or nothing to fix, nothing left unresolved
  1 - something remains: orphans, conflicts, a failed remote push,
      a write conflict or entries left unselected
  2 - inputs unreadable, backup or write failed; nothing was changed`,
	Example: `  # Append everything missing
  marketsync fix

  # Pick entries interactively
  marketsync fix --select

  # Local settings only
  marketsync fix --skip-remote

  See Also: marketsync validate, marketsync backup list`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

func runFix(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := currentConfig()

	// descriptions feed the selection preview
	in, err := loadInput(ctx, fixPlugins, fixSkipRemote, inventory.WithDescriptions(fixSelect))
	if err != nil {
		return err
	}

	r := reconcile.New(reconcile.WithBackups(backup.NewManager(
		backup.WithRetentionCount(cfg.Backup.Retention),
	)))

	var opts reconcile.FixOptions
	if fixSelect {
		opts.Select = selectEntries
	}

	rep, err := r.Fix(ctx, in, opts)
	if err != nil {
		return fatal(err, "Nothing was written; run `marketsync validate` to inspect the current state")
	}

	if err := printReport(cmd.OutOrStdout(), rep, fixJSON); err != nil {
		return err
	}
	return finish(rep)
}

// selectEntries asks the user which missing entries to append. Aborting the
// finder selects nothing.
func selectEntries(missing []inventory.Entry) ([]inventory.Entry, error) {
	idx, err := fuzzyfinder.FindMulti(
		missing,
		func(i int) string {
			key, _ := registry.FormatKey(missing[i].Triple())
			return key
		},
		fuzzyfinder.WithHeader("Tab selects, Enter appends"),
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			e := missing[i]
			var sb strings.Builder
			fmt.Fprintf(&sb, "Plugin: %s\nKind:   %s\nName:   %s\nPath:   %s\n", e.Plugin, e.Kind, e.Name, e.Path)
			if e.Description != "" {
				fmt.Fprintf(&sb, "\nDescription:\n%s\n", e.Description)
			}
			return sb.String()
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "interactive selection failed")
	}

	selected := make([]inventory.Entry, 0, len(idx))
	for _, i := range idx {
		selected = append(selected, missing[i])
	}
	return selected, nil
}
