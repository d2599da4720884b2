package config

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/paths"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKETSYNC"

// Config represents the full marketsync configuration.
type Config struct {
	Root     string         `mapstructure:"root" yaml:"root"`
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Scan     ScanConfig     `mapstructure:"scan" yaml:"scan"`
	Backup   BackupConfig   `mapstructure:"backup" yaml:"backup"`
	Remote   RemoteConfig   `mapstructure:"remote" yaml:"remote"`
}

// SettingsConfig locates the local permission registry.
type SettingsConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	KeyPath string `mapstructure:"key_path" yaml:"key_path"`
}

// ScanConfig controls inventory key derivation.
type ScanConfig struct {
	CaseInsensitive bool `mapstructure:"case_insensitive" yaml:"case_insensitive"`
}

// BackupConfig controls settings backups taken by fix and restore.
type BackupConfig struct {
	Retention int `mapstructure:"retention" yaml:"retention"`
}

// RemoteConfig configures the Airtable registry.
type RemoteConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	BaseID  string        `mapstructure:"base_id" yaml:"base_id,omitempty"`
	Table   string        `mapstructure:"table" yaml:"table"`
	Token   string        `mapstructure:"token" yaml:"-"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Default values.
const (
	DefaultKeyPath   = "permissions.allow"
	DefaultRetention = 10
	DefaultBaseURL   = "https://api.airtable.com/v0"
	DefaultTable     = "Components"
	DefaultTimeout   = 5 * time.Second
)

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Root: ".",
		Settings: SettingsConfig{
			Path:    paths.DefaultSettingsPath,
			KeyPath: DefaultKeyPath,
		},
		Scan:   ScanConfig{CaseInsensitive: true},
		Backup: BackupConfig{Retention: DefaultRetention},
		Remote: RemoteConfig{
			Enabled: true,
			BaseURL: DefaultBaseURL,
			Table:   DefaultTable,
			Timeout: DefaultTimeout,
		},
	}
}

// Init registers defaults, search paths and env bindings on the global viper
// instance. Call it once at startup before Load.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// with explicit names viper skips the prefix, so list both spellings
	_ = viper.BindEnv("remote.token", EnvPrefix+"_REMOTE_TOKEN", "AIRTABLE_TOKEN")
	_ = viper.BindEnv("remote.base_id", EnvPrefix+"_REMOTE_BASE_ID", "AIRTABLE_BASE_ID")

	d := Default()
	viper.SetDefault("root", d.Root)
	viper.SetDefault("settings.path", d.Settings.Path)
	viper.SetDefault("settings.key_path", d.Settings.KeyPath)
	viper.SetDefault("scan.case_insensitive", d.Scan.CaseInsensitive)
	viper.SetDefault("backup.retention", d.Backup.Retention)
	viper.SetDefault("remote.enabled", d.Remote.Enabled)
	viper.SetDefault("remote.base_url", d.Remote.BaseURL)
	viper.SetDefault("remote.base_id", "")
	viper.SetDefault("remote.table", d.Remote.Table)
	viper.SetDefault("remote.token", "")
	viper.SetDefault("remote.timeout", d.Remote.Timeout.String())
}

// Load reads the configuration file, applies env overrides, expands "~" in
// paths and validates the result. With an empty path the default search
// locations are tried and a missing file is not an error.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// defaults only
		case errors.As(err, &notFound):
			return nil, errors.Mark(errors.Wrapf(err, "config file not found at %s", path), mserrors.ErrNotFound)
		default:
			if path != "" && errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Mark(errors.Wrapf(err, "config file not found at %s", path), mserrors.ErrNotFound)
			}
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Mark(errors.Wrap(errors.Join(errs...), "validating config"), mserrors.ErrInvalidConfig)
	}

	settingsPath, err := paths.ExpandHome(cfg.Settings.Path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding settings.path")
	}
	cfg.Settings.Path = settingsPath

	root, err := paths.ExpandHome(cfg.Root)
	if err != nil {
		return nil, errors.Wrap(err, "expanding root")
	}
	cfg.Root = root

	return &cfg, nil
}

// Used returns the config file viper read, or "" when running on defaults.
func Used() string {
	return viper.ConfigFileUsed()
}

// Keys returns every known config key in sorted order.
func Keys() []string {
	keys := viper.AllKeys()
	slices.Sort(keys)
	return keys
}

// Get returns the effective value of key. The token is reported as set or
// unset, never printed.
func Get(key string) (any, error) {
	key = strings.ToLower(key)
	if !slices.Contains(viper.AllKeys(), key) {
		return nil, errors.Mark(errors.Newf("unknown config key %q", key), mserrors.ErrNotFound)
	}
	if key == "remote.token" {
		if viper.GetString(key) != "" {
			return "(set)", nil
		}
		return "(unset)", nil
	}
	return viper.Get(key), nil
}

// StarterFile returns the config written by "config init": cfg without
// credentials, with the settings path folded back to "~" when it lives under
// the home directory.
func StarterFile(cfg *Config) *Config {
	out := *cfg
	out.Remote.Token = ""
	if home, err := paths.ResolveHome(); err == nil {
		if rel, err := filepath.Rel(home, out.Settings.Path); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") && !filepath.IsAbs(rel) {
			out.Settings.Path = filepath.ToSlash(filepath.Join("~", rel))
		}
	}
	return &out
}

// MarshalYAML renders the timeout as a duration string such as "5s" and
// leaves the token out.
func (r RemoteConfig) MarshalYAML() (any, error) {
	return struct {
		Enabled bool   `yaml:"enabled"`
		BaseURL string `yaml:"base_url"`
		BaseID  string `yaml:"base_id,omitempty"`
		Table   string `yaml:"table"`
		Timeout string `yaml:"timeout"`
	}{
		Enabled: r.Enabled,
		BaseURL: r.BaseURL,
		BaseID:  r.BaseID,
		Table:   r.Table,
		Timeout: r.Timeout.String(),
	}, nil
}
