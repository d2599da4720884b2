package inventory

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
)

// Kind is the category of a component.
type Kind string

// Component kinds.
const (
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
	KindSkill   Kind = "skill"
)

// Kinds lists every kind in scan order.
var Kinds = []Kind{KindCommand, KindAgent, KindSkill}

// Dir returns the plugin subdirectory holding components of this kind.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds, k)
}

// Title returns the kind capitalised for display, e.g. "Command".
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// ParseKind accepts a kind in any case, singular or plural.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s"))
	if !k.Valid() {
		return "", errors.Newf("unknown component kind %q", s)
	}
	return k, nil
}

// Triple is the identity of a component.
type Triple struct {
	Plugin string `json:"plugin" yaml:"plugin" toml:"plugin"`
	Kind   Kind   `json:"kind" yaml:"kind" toml:"kind"`
	Name   string `json:"name" yaml:"name" toml:"name"`
}

// Normalize returns the triple used for comparisons. With fold set, plugin
// and name are lower-cased.
func (t Triple) Normalize(fold bool) Triple {
	if fold {
		t.Plugin = strings.ToLower(t.Plugin)
		t.Name = strings.ToLower(t.Name)
	}
	return t
}

// String renders the triple as "kind plugin:name".
func (t Triple) String() string {
	return string(t.Kind) + " " + t.Plugin + ":" + t.Name
}

// Entry is one discovered component.
type Entry struct {
	Plugin string `json:"plugin" yaml:"plugin" toml:"plugin"`
	Kind   Kind   `json:"kind" yaml:"kind" toml:"kind"`
	Name   string `json:"name" yaml:"name" toml:"name"`
	// Path is the file or directory the entry was derived from. It is only
	// used in diagnostics.
	Path        string `json:"path" yaml:"path" toml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// Triple returns the entry's identity in on-disk spelling.
func (e Entry) Triple() Triple {
	return Triple{Plugin: e.Plugin, Kind: e.Kind, Name: e.Name}
}

// Conflict records filesystem entries that normalize to the same triple.
// The first path is the one kept in Result.Entries.
type Conflict struct {
	Triple Triple   `json:"triple" yaml:"triple" toml:"triple"`
	Paths  []string `json:"paths" yaml:"paths" toml:"paths"`
}

// Err returns the conflict as an error marked errors.ErrScanConflict.
func (c Conflict) Err() error {
	return errors.Mark(
		errors.Newf("%s is defined more than once: %s", c.Triple, strings.Join(c.Paths, ", ")),
		mserrors.ErrScanConflict,
	)
}

// Result is the output of one scan.
type Result struct {
	Root      string     `json:"root" yaml:"root" toml:"root"`
	Filter    []string   `json:"filter,omitempty" yaml:"filter,omitempty" toml:"filter,omitempty"`
	Entries   []Entry    `json:"entries" yaml:"entries" toml:"entries"`
	Conflicts []Conflict `json:"conflicts" yaml:"conflicts" toml:"conflicts"`

	fold   bool
	filter *Filter
	index  map[Triple]int
}

// NewResult builds a Result from already-derived entries. Entries whose
// normalized triples collide are recorded as conflicts.
func NewResult(root string, fold bool, filter *Filter, entries []Entry) *Result {
	r := &Result{
		Root:      root,
		Entries:   []Entry{},
		Conflicts: []Conflict{},
		fold:      fold,
		filter:    filter,
		index:     make(map[Triple]int, len(entries)),
	}
	if filter != nil {
		r.Filter = filter.Patterns()
	}
	for _, e := range entries {
		r.add(e)
	}
	return r
}

func (r *Result) add(e Entry) {
	id := r.Identity(e.Triple())
	i, dup := r.index[id]
	if !dup {
		r.index[id] = len(r.Entries)
		r.Entries = append(r.Entries, e)
		return
	}
	first := r.Entries[i]
	for ci := range r.Conflicts {
		if r.Identity(r.Conflicts[ci].Triple) == id {
			r.Conflicts[ci].Paths = append(r.Conflicts[ci].Paths, e.Path)
			return
		}
	}
	r.Conflicts = append(r.Conflicts, Conflict{
		Triple: first.Triple(),
		Paths:  []string{first.Path, e.Path},
	})
}

// CaseInsensitive reports whether the scan folded case.
func (r *Result) CaseInsensitive() bool {
	return r.fold
}

// Identity normalizes t with the scan's folding rule.
func (r *Result) Identity(t Triple) Triple {
	return t.Normalize(r.fold)
}

// Lookup finds the entry whose identity matches t.
func (r *Result) Lookup(t Triple) (Entry, bool) {
	i, ok := r.index[r.Identity(t)]
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// Includes reports whether plugin is within the scan's plugin filter.
// Registry entries for excluded plugins are neither missing nor orphaned.
func (r *Result) Includes(plugin string) bool {
	return r.filter.Match(plugin)
}

// Count returns the number of entries of kind k.
func (r *Result) Count(k Kind) int {
	n := 0
	for _, e := range r.Entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Plugins returns the distinct plugin names in scan order.
func (r *Result) Plugins() []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range r.Entries {
		if !seen[e.Plugin] {
			seen[e.Plugin] = true
			out = append(out, e.Plugin)
		}
	}
	return out
}
