// Package commands implements the CLI commands for marketsync.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thoreinstein/marketsync/cmd"
	"github.com/thoreinstein/marketsync/internal/config"
	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/logging"
)

// rootFlag holds the value of the --root flag.
var rootFlag string

// settingsFlag holds the value of the --settings flag.
var settingsFlag string

// configFlag holds the value of the --config flag.
var configFlag string

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// loadedConfig and configLoadErr hold the outcome of config loading.
var (
	loadedConfig  *config.Config
	configLoadErr error
)

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlag, "root", "",
		"marketplace root containing plugins/ (default \".\")")
	flags.StringVar(&settingsFlag, "settings", "",
		"settings file holding the permission array (default \"~/.claude/settings.json\")")
	flags.StringVar(&configFlag, "config", "",
		"config file (default: ./config.yaml or $XDG_CONFIG_HOME/marketsync/config.yaml)")
	flags.CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv, -vvv)")
	flags.BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	flags.StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	flags.StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")

	_ = viper.BindPFlag("root", flags.Lookup("root"))
	_ = viper.BindPFlag("settings.path", flags.Lookup("settings"))

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("marketsync version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
}

func initConfig() {
	config.Init()
	loadedConfig, configLoadErr = config.Load(configFlag)
}

var rootCmd = &cobra.Command{
	Use:   "marketsync",
	Short: "Keep a plugin marketplace and its permission registries in sync",
	Long: `marketsync inventories the commands, agents and skills of a plugin
marketplace and checks that every one of them is registered.

The local registry is the permission array of the Claude settings file
(permissions.allow). An optional remote registry lives in an Airtable base
and is checked whenever AIRTABLE_TOKEN and AIRTABLE_BASE_ID are set.

Exit codes:
  0 - registries in sync, or fix left nothing unresolved
  1 - drift found, or fix left something unresolved
  2 - an input could not be read or written`,
	Example: `  # Report drift
  marketsync validate --root ~/src/marketplace

  # Append missing entries
  marketsync fix

  # Check one plugin only
  marketsync validate --plugin 'foo-*'

  See Also: marketsync inventory, marketsync backup, marketsync config`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		return checkConfig(cmd)
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return mserrors.NewUserError(errors.New("cannot use --quiet and --verbose together"), "")
	}

	var level slog.Level
	if quiet {
		level = slog.LevelError
	} else {
		v := verbosity

		// CLI flags take precedence, but if not set, check env var
		if v == 0 {
			if val, ok := os.LookupEnv("MARKETSYNC_DEBUG"); ok {
				switch val {
				case "1", "true":
					v = 2 // Debug
				case "2":
					v = 3 // Trace
				}
			}
		}
		level = logging.LevelFromVerbosity(v)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var primaryHandler slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primaryHandler = slog.NewJSONHandler(cmd.ErrOrStderr(), redacting(opts))
	case logging.FormatText:
		primaryHandler = logging.NewHandler(cmd.ErrOrStderr(), opts)
	default:
		return mserrors.NewUserError(errors.Newf("invalid log format %q", logFormat), "Use --log-format text or --log-format json")
	}

	handlers := []slog.Handler{primaryHandler}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return mserrors.NewUserError(errors.Wrap(err, "opening log file"), "Check the --log-file path")
		}
		// File output uses JSON format
		handlers = append(handlers, slog.NewJSONHandler(f, redacting(&slog.HandlerOptions{
			Level: level,
		})))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = logging.NewMultiHandler(handlers...)
	} else {
		handler = handlers[0]
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// redacting masks secret-looking attributes in JSON log output the same way
// the text handler does.
func redacting(opts *slog.HandlerOptions) *slog.HandlerOptions {
	opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
		if a.Value.Kind() != slog.KindString {
			return a
		}
		if v := a.Value.String(); logging.ShouldMask(a.Key) || logging.LooksLikeToken(v) {
			return slog.String(a.Key, logging.MaskValue(v))
		}
		return a
	}
	return opts
}

// checkConfig reports a config load failure for every command that needs it.
func checkConfig(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "help", "version", "completion":
		return nil
	}
	if configLoadErr == nil {
		return nil
	}
	// "config init" may create the file --config names
	if cmd == configInitCmd && errors.Is(configLoadErr, mserrors.ErrNotFound) {
		return nil
	}
	return mserrors.NewConfigError(configLoadErr)
}

// currentConfig returns the loaded configuration.
func currentConfig() *config.Config {
	if loadedConfig == nil {
		return config.Default()
	}
	return loadedConfig
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Run executes the root command, prints any error with its suggestion and
// returns the process exit code.
func Run() int {
	err := Execute()
	printError(os.Stderr, err)
	return mserrors.Code(err)
}

func printError(w io.Writer, err error) {
	if err == nil {
		return
	}
	var exitErr *mserrors.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Silent() {
			return
		}
		fmt.Fprintf(w, "Error: %v\n", exitErr.Err)
		if exitErr.Suggestion != "" {
			fmt.Fprintf(w, "Suggestion: %s\n", exitErr.Suggestion)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

// isQuiet reports whether normal output is suppressed.
func isQuiet() bool {
	return quiet
}
