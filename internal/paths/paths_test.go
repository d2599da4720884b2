package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ResolveHome()
	require.NoError(t, err)
	assert.Equal(t, home, got)
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{"~", home},
		{"~/.claude/settings.json", filepath.Join(home, ".claude", "settings.json")},
		{"/etc/claude/settings.json", "/etc/claude/settings.json"},
		{"relative/./settings.json", "relative/settings.json"},
		{"~other/settings.json", "~other/settings.json"},
		{"", ""},
	}
	for _, tt := range tests {
		got, err := ExpandHome(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ExpandHome("bad\x00path")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestConfigDir(t *testing.T) {
	assert.Equal(t, xdg.ConfigHome, ConfigHome())
	assert.Equal(t, filepath.Join(xdg.ConfigHome, "marketsync"), ConfigDir())
	assert.Equal(t, filepath.Join(xdg.ConfigHome, "marketsync", "config.yaml"), DefaultConfigFile())
}

func TestPluginsDir(t *testing.T) {
	assert.Equal(t, filepath.Join("market", "plugins"), PluginsDir("market"))
}

func TestEnsureDir(t *testing.T) {
	base := t.TempDir()

	nested := filepath.Join(base, "a", "b")
	require.NoError(t, EnsureDir(nested, 0))
	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(DefaultDirPerm), info.Mode().Perm())

	// idempotent
	require.NoError(t, EnsureDir(nested, 0o755))
}
