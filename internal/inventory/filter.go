package inventory

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cockroachdb/errors"
)

// Filter restricts a scan to plugins matching any of a set of doublestar
// globs. A nil or empty Filter matches every plugin.
type Filter struct {
	patterns []string
	fold     bool
}

// NewFilter validates patterns. With fold set matching ignores case.
func NewFilter(patterns []string, fold bool) (*Filter, error) {
	f := &Filter{fold: fold}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, errors.Newf("invalid plugin pattern %q", p)
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// Patterns returns the validated patterns.
func (f *Filter) Patterns() []string {
	if f == nil {
		return nil
	}
	return f.patterns
}

// Active reports whether the filter excludes anything.
func (f *Filter) Active() bool {
	return f != nil && len(f.patterns) > 0
}

// Match reports whether plugin passes the filter.
func (f *Filter) Match(plugin string) bool {
	if !f.Active() {
		return true
	}
	name := plugin
	if f.fold {
		name = strings.ToLower(name)
	}
	for _, p := range f.patterns {
		if f.fold {
			p = strings.ToLower(p)
		}
		// patterns were validated in NewFilter
		if doublestar.MatchUnvalidated(p, name) {
			return true
		}
	}
	return false
}
