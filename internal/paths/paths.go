package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
)

// AppName names the config directory under the XDG config home.
const AppName = "marketsync"

// PluginsDirName is the directory under a marketplace root holding plugins.
const PluginsDirName = "plugins"

// Sentinel errors for path resolution.
var (
	// ErrHomeDirNotFound indicates the user's home directory could not be determined.
	ErrHomeDirNotFound = errors.New("home directory not found")

	// ErrInvalidPath indicates the provided path is malformed or invalid.
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultDirPerm is the permission for directories marketsync creates.
const DefaultDirPerm = 0o700

// EnsureDir creates path and any parents. If perm is 0, DefaultDirPerm is used.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = DefaultDirPerm
	}
	return os.MkdirAll(path, perm)
}

// ResolveHome returns the user's home directory.
// Returns ErrHomeDirNotFound if the directory cannot be determined.
func ResolveHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "", errors.Wrapf(ErrHomeDirNotFound, "%v", err)
	}
	return home, nil
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
// Other paths, including "~user/...", are returned cleaned but unchanged.
func ExpandHome(path string) (string, error) {
	if strings.ContainsRune(path, '\x00') {
		return "", errors.Wrapf(ErrInvalidPath, "%q", path)
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		if path == "" {
			return "", nil
		}
		return filepath.Clean(path), nil
	}
	home, err := ResolveHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ConfigHome returns the XDG config home directory.
func ConfigHome() string {
	return xdg.ConfigHome
}

// ConfigDir returns <ConfigHome>/marketsync.
func ConfigDir() string {
	return filepath.Join(ConfigHome(), AppName)
}

// DefaultConfigFile returns the config file path written by "config init".
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultSettingsPath is the unexpanded default location of the Claude
// settings file.
const DefaultSettingsPath = "~/.claude/settings.json"

// PluginsDir returns <root>/plugins.
func PluginsDir(root string) string {
	return filepath.Join(root, PluginsDirName)
}
