package commands

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/marketsync/internal/config"
	"github.com/thoreinstein/marketsync/internal/editor"
	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/paths"
	"github.com/thoreinstein/marketsync/pkg/fileutil"
)

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false,
		"overwrite an existing config file")

	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage marketsync configuration",
	Long: `Manage marketsync configuration stored in
$XDG_CONFIG_HOME/marketsync/config.yaml.

Every key can also be set with a MARKETSYNC_ environment variable, for
example MARKETSYNC_SETTINGS_PATH. Without a subcommand, lists all values.`,
	Example: `  # List all configuration
  marketsync config

  # Get a specific value
  marketsync config get remote.timeout

  # Write a starter file
  marketsync config init

See Also: marketsync validate`,
	Args: cobra.NoArgs,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	Long:  `List the effective configuration in YAML format. The token is never printed.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Get a single effective configuration value by dotted key.`,
	Example: `  marketsync config get settings.key_path

See Also: marketsync config list`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write the effective configuration, without credentials, to
$XDG_CONFIG_HOME/marketsync/config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in your editor",
	Long: `Open the config file in $EDITOR, falling back to $VISUAL, nano and
then vi. The file must exist; create it first with "marketsync config init".`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	cfg := config.StarterFile(currentConfig())

	data, err := fileutil.MarshalYAML(cfg)
	if err != nil {
		return fatal(err, "")
	}

	w := cmd.OutOrStdout()
	if used := config.Used(); used != "" {
		fmt.Fprintf(w, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(w, "# config file: (none, using defaults)")
	}
	token, _ := config.Get("remote.token")
	fmt.Fprintf(w, "# remote.token: %v\n", token)
	_, err = w.Write(data)
	return errors.Wrap(err, "writing config")
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	val, err := config.Get(args[0])
	if err != nil {
		if errors.Is(err, mserrors.ErrNotFound) {
			return mserrors.NewUserError(err, "Run: marketsync config list")
		}
		return fatal(err, "")
	}

	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := paths.DefaultConfigFile()
	if configFlag != "" {
		path = configFlag
	}

	if _, err := os.Stat(path); err == nil && !configInitForce {
		return mserrors.NewUserError(
			errors.Newf("config file already exists at %s", path),
			"Use --force to overwrite it",
		)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fatal(errors.Wrapf(err, "checking %s", path), "")
	}

	if err := paths.EnsureDir(filepath.Dir(path), 0); err != nil {
		return fatal(errors.Wrap(err, "creating config directory"), "")
	}
	if err := fileutil.AtomicWriteYAML(path, config.StarterFile(currentConfig())); err != nil {
		return fatal(err, "")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	path := config.Used()
	if path == "" {
		path = configFlag
	}
	if path == "" {
		path = paths.DefaultConfigFile()
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mserrors.NewUserError(
				errors.Newf("no config file at %s", path),
				"Run: marketsync config init",
			)
		}
		return fatal(errors.Wrapf(err, "checking %s", path), "")
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Location: %s\n", path)
	err := editor.Open(path, editor.Streams{
		In:  cmd.InOrStdin(),
		Out: cmd.OutOrStdout(),
		Err: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fatal(err, "Set $EDITOR to an installed editor")
	}
	return nil
}
