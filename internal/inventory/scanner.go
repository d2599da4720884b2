package inventory

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/logging"
	"github.com/thoreinstein/marketsync/internal/paths"
	"github.com/thoreinstein/marketsync/pkg/frontmatter"
)

// Scanner walks a marketplace's plugins directory.
type Scanner struct {
	logger       *slog.Logger
	fold         bool
	filter       *Filter
	descriptions bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithCaseInsensitive enables case folding of plugin and component names.
func WithCaseInsensitive(fold bool) Option {
	return func(s *Scanner) {
		s.fold = fold
	}
}

// WithFilter restricts the scan to plugins matching f.
func WithFilter(f *Filter) Option {
	return func(s *Scanner) {
		s.filter = f
	}
}

// WithDescriptions reads the frontmatter description of command and agent
// files. A file whose frontmatter cannot be parsed is still inventoried.
func WithDescriptions(enabled bool) Option {
	return func(s *Scanner) {
		s.descriptions = enabled
	}
}

// NewScanner creates a Scanner. Case folding is on by default.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		logger: logging.NewDiscard(),
		fold:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan inventories root/plugins. Entries come out in os.ReadDir order
// (lexical), plugin by plugin, kinds in the order command, agent, skill, so
// an unchanged tree always scans the same way.
func (s *Scanner) Scan(root string) (*Result, error) {
	pluginsDir := paths.PluginsDir(root)

	plugins, err := os.ReadDir(pluginsDir)
	if err != nil {
		return nil, fatal(err, "reading plugins directory %s", pluginsDir)
	}

	var entries []Entry
	for _, de := range plugins {
		name := de.Name()
		if isHidden(name) {
			continue
		}
		pluginDir := filepath.Join(pluginsDir, name)
		isDir, err := resolvesToDir(pluginDir, de)
		if err != nil {
			return nil, fatal(err, "reading plugin %s", pluginDir)
		}
		if !isDir {
			s.trace("skipping non-directory in plugins", "path", pluginDir)
			continue
		}
		if !s.filter.Match(name) {
			s.logger.Debug("plugin excluded by filter", "plugin", name)
			continue
		}

		found, err := s.scanPlugin(pluginsDir, name)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("scanned plugin", "plugin", name, "entries", len(found))
		entries = append(entries, found...)
	}

	result := NewResult(root, s.fold, s.filter, entries)
	for _, c := range result.Conflicts {
		s.logger.Warn("scan conflict", "component", c.Triple.String(), "paths", strings.Join(c.Paths, ", "))
	}
	s.logger.Info("scan complete",
		"root", root,
		"entries", len(result.Entries),
		"conflicts", len(result.Conflicts))
	return result, nil
}

func (s *Scanner) scanPlugin(pluginsDir, plugin string) ([]Entry, error) {
	pluginDir := filepath.Join(pluginsDir, plugin)

	// an unreadable plugin must fail even if it has no kind directories
	if _, err := os.ReadDir(pluginDir); err != nil {
		return nil, fatal(err, "reading plugin %s", pluginDir)
	}

	var entries []Entry
	for _, kind := range Kinds {
		kindDir := filepath.Join(pluginDir, kind.Dir())
		children, err := os.ReadDir(kindDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fatal(err, "reading %s", kindDir)
		}

		for _, de := range children {
			name := de.Name()
			if isHidden(name) {
				continue
			}
			full := filepath.Join(kindDir, name)
			isDir, err := resolvesToDir(full, de)
			if err != nil {
				return nil, fatal(err, "reading %s", full)
			}
			if isDir != (kind == KindSkill) {
				s.trace("skipping", "path", full, "kind", kind)
				continue
			}

			rel := filepath.Join(plugin, kind.Dir(), name)
			t, err := Derive(rel, s.fold)
			if err != nil {
				s.logger.Warn("ignoring unusable component path", "path", full, "error", err)
				continue
			}

			// entries keep the on-disk spelling; Derive folds it
			display := name
			if kind != KindSkill {
				display = strings.TrimSuffix(name, filepath.Ext(name))
			}
			e := Entry{Plugin: plugin, Kind: t.Kind, Name: display, Path: full}
			if s.descriptions && kind != KindSkill {
				e.Description = s.describe(full)
			}
			s.trace("derived component", "component", t.String(), "path", full)
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *Scanner) describe(path string) string {
	h, err := frontmatter.ReadHeader(path)
	if err != nil {
		s.logger.Warn("could not read frontmatter", "path", path, "error", err)
		return ""
	}
	return h.Description
}

func (s *Scanner) trace(msg string, args ...any) {
	s.logger.Log(context.Background(), logging.LevelTrace, msg, args...)
}

// resolvesToDir reports whether de is a directory, following symlinks.
// A dangling symlink is not a directory and not an error.
func resolvesToDir(path string, de os.DirEntry) (bool, error) {
	if de.Type()&fs.ModeSymlink == 0 {
		return de.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func fatal(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), mserrors.ErrFatalInput)
}
