package commands

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/marketsync/internal/reconcile"
)

var (
	validatePlugins    []string
	validateSkipRemote bool
	validateJSON       bool
)

func init() {
	validateCmd.Flags().StringArrayVar(&validatePlugins, "plugin", nil,
		"only check plugins matching this glob (repeatable)")
	validateCmd.Flags().BoolVar(&validateSkipRemote, "skip-remote", false,
		"do not check the remote registry")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false,
		"output the report as JSON")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report components missing from or orphaned in the registries",
	Long: `Scan the marketplace and compare it with the local settings registry
and, when configured, the remote registry. Nothing is written.

Every missing and orphaned entry is listed with its plugin, kind, name and
registry, together with scan conflicts and malformed registry entries.

Exit codes:
  0 - registries in sync
  1 - drift found
  2 - plugin root or settings file unreadable`,
	Example: `  # Check everything
  marketsync validate

  # Check a subset of plugins, local registry only
  marketsync validate --plugin 'tools-*' --skip-remote

  # Machine-readable report
  marketsync validate --json

  See Also: marketsync fix`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	in, err := loadInput(ctx, validatePlugins, validateSkipRemote)
	if err != nil {
		return err
	}

	rep := reconcile.New().Validate(ctx, in)

	if err := printReport(cmd.OutOrStdout(), rep, validateJSON); err != nil {
		return err
	}
	return finish(rep)
}
