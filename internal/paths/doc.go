// Package paths resolves the filesystem locations marketsync works with: the
// user's home, the XDG config directory holding config.yaml, the Claude
// settings file, and the plugins directory of a marketplace root.
//
// XDG lookups go through github.com/adrg/xdg, so on macOS the config home is
// ~/Library/Application Support and on Linux it is $XDG_CONFIG_HOME or
// ~/.config.
package paths
