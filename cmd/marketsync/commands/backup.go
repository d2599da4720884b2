package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/marketsync/internal/backup"
	mserrors "github.com/thoreinstein/marketsync/internal/errors"
)

var (
	backupListJSON bool
	backupKeep     int
)

func init() {
	backupListCmd.Flags().BoolVar(&backupListJSON, "json", false, "Output in JSON format")
	backupPruneCmd.Flags().IntVar(&backupKeep, "keep", -1,
		"number of backups to keep (default: backup.retention)")

	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupPruneCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage settings backups",
	Long: `Manage the settings.json.backup.<timestamp> files fix writes next to the
settings file before changing it.`,
	Example: `  # List backups, newest first
  marketsync backup list

  # Restore one
  marketsync backup restore 20261019T101500

  # Keep the three newest
  marketsync backup prune --keep 3`,
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available backups",
	Long:  `List backups of the settings file, most recent first.`,
	Args:  cobra.NoArgs,
	RunE:  runBackupList,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore the settings file from a backup",
	Long: `Replace the settings file with the content of a backup.

The current settings file is backed up first, so a restore can itself be
undone. The replacement is atomic.`,
	Example: `  marketsync backup restore 20261019T101500

  See Also: marketsync backup list`,
	Args: cobra.ExactArgs(1),
	RunE: runBackupRestore,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old backups",
	Long:  `Remove all but the newest backups of the settings file.`,
	Args:  cobra.NoArgs,
	RunE:  runBackupPrune,
}

// backupInfoOutput represents a single backup in JSON output.
type backupInfoOutput struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Size      int64  `json:"size"`
	Path      string `json:"path"`
}

func runBackupList(cmd *cobra.Command, _ []string) error {
	target := currentConfig().Settings.Path
	mgr := backup.NewManager()

	backups, err := mgr.List(target)
	if err != nil && !errors.Is(err, backup.ErrNoBackupsFound) {
		return fatal(errors.Wrapf(err, "listing backups of %s", target), "")
	}

	if backupListJSON {
		return outputBackupListJSON(cmd.OutOrStdout(), backups)
	}
	return outputBackupListTabular(cmd.OutOrStdout(), target, backups)
}

func outputBackupListJSON(w io.Writer, backups []backup.Backup) error {
	output := make([]backupInfoOutput, len(backups))
	for i, b := range backups {
		output[i] = backupInfoOutput{
			ID:        b.ID,
			CreatedAt: b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			Size:      b.Size,
			Path:      b.Path,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(output), "encoding JSON")
}

func outputBackupListTabular(w io.Writer, target string, backups []backup.Backup) error {
	if len(backups) == 0 {
		fmt.Fprintf(w, "No backups of %s\n", target)
		return nil
	}

	fmt.Fprintf(w, "Backups of %s:\n", target)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tCREATED\tSIZE")
	for _, b := range backups {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"), b.Size)
	}
	return errors.Wrap(tw.Flush(), "writing backup list")
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	target := currentConfig().Settings.Path
	id := args[0]

	safety, err := backup.NewManager().Restore(target, id)
	if err != nil {
		if errors.Is(err, backup.ErrNoBackupsFound) || errors.Is(err, backup.ErrInvalidID) {
			return mserrors.NewUserError(err, "Run: marketsync backup list")
		}
		return fatal(err, "")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Restored %s from backup %s\n", target, id)
	if safety != nil {
		fmt.Fprintf(w, "  previous content saved as backup %s\n", safety.ID)
	}
	return nil
}

func runBackupPrune(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	keep := backupKeep
	if keep < 0 {
		keep = cfg.Backup.Retention
	}

	removed, err := backup.NewManager().Prune(cfg.Settings.Path, keep)
	if err != nil {
		return fatal(err, "")
	}

	w := cmd.OutOrStdout()
	for _, b := range removed {
		fmt.Fprintf(w, "removed %s\n", b.Path)
	}
	fmt.Fprintf(w, "✓ Removed %d backup(s), kept up to %d\n", len(removed), keep)
	return nil
}
