package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
)

var (
	inventoryPlugins []string
	inventoryFormat  string
)

func init() {
	inventoryCmd.Flags().StringArrayVar(&inventoryPlugins, "plugin", nil,
		"only list plugins matching this glob (repeatable)")
	inventoryCmd.Flags().StringVarP(&inventoryFormat, "format", "f", inventory.FormatText,
		"output format: text, json, yaml, toml")
	rootCmd.AddCommand(inventoryCmd)
}

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List the components found in the marketplace",
	Long: `Scan the marketplace and print every command, agent and skill with its
derived identity, including scan conflicts. Registries are not consulted.`,
	Example: `  # Table of components
  marketsync inventory

  # Export for other tools
  marketsync inventory --format yaml

  See Also: marketsync validate`,
	Args: cobra.NoArgs,
	RunE: runInventory,
}

func runInventory(cmd *cobra.Command, _ []string) error {
	format := strings.ToLower(inventoryFormat)
	if format != inventory.FormatText && !slices.Contains(inventory.Formats, format) {
		return mserrors.NewUserError(
			errors.Newf("invalid format %q", inventoryFormat),
			"Use one of: text, "+strings.Join(inventory.Formats, ", "),
		)
	}

	inv, err := scan(cmd.Context(), currentConfig(), inventoryPlugins, inventory.WithDescriptions(true))
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if format == inventory.FormatText {
		return outputInventoryText(w, inv)
	}

	data, err := inv.Export(format)
	if err != nil {
		return fatal(err, "")
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "writing inventory")
}

func outputInventoryText(w io.Writer, inv *inventory.Result) error {
	if len(inv.Entries) == 0 {
		fmt.Fprintf(w, "No components found under %s\n", inv.Root)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tPLUGIN\tNAME\tDESCRIPTION")
	for _, e := range inv.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Kind, e.Plugin, e.Name, truncate(e.Description, 60))
	}
	if err := tw.Flush(); err != nil {
		return errors.Wrap(err, "writing inventory")
	}

	fmt.Fprintf(w, "\n%d commands, %d agents, %d skills in %d plugins\n",
		inv.Count(inventory.KindCommand),
		inv.Count(inventory.KindAgent),
		inv.Count(inventory.KindSkill),
		len(inv.Plugins()))

	for _, c := range inv.Conflicts {
		fmt.Fprintf(w, "✗ conflict: %s (%s)\n", c.Triple, strings.Join(c.Paths, ", "))
	}
	return nil
}
