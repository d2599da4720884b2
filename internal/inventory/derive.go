package inventory

import (
	"path"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// reservedChars cannot appear in plugin or component names because they
// delimit registry keys.
const reservedChars = ":()"

// ErrNotComponent is the cause of every Derive rejection.
var ErrNotComponent = errors.New("path does not name a component")

// RejectError explains why Derive rejected a path.
type RejectError struct {
	Path   string
	Reason string
}

func (e *RejectError) Error() string {
	return "rejected " + e.Path + ": " + e.Reason
}

func (e *RejectError) Unwrap() error {
	return ErrNotComponent
}

func reject(rel, reason string) error {
	return &RejectError{Path: rel, Reason: reason}
}

// Derive maps a path relative to the plugins directory to a component triple.
//
// Normalization: backslashes become "/", trailing slashes and "." segments
// are dropped, and the ".md" suffix is stripped from command and agent
// files. The path must then be exactly <plugin>/<kind dir>/<name>, where the
// kind dir is "commands", "agents" or "skills". Hidden segments, "..", empty
// names and names containing whitespace or any of ":()" are rejected; the
// latter would make an unparseable registry key. With fold set the plugin
// and name are lower-cased, and a ".MD" suffix is accepted as ".md".
//
// Derive is pure: it never touches the filesystem, so it cannot tell a skill
// directory from a file. The scanner only passes directories for skills.
func Derive(rel string, fold bool) (Triple, error) {
	p := strings.ReplaceAll(rel, `\`, "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return Triple{}, reject(rel, "empty path")
	}
	if strings.HasPrefix(p, "/") {
		return Triple{}, reject(rel, "absolute path")
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return Triple{}, reject(rel, "parent reference")
		}
	}
	p = path.Clean(p)

	parts := strings.Split(p, "/")
	if len(parts) != 3 {
		return Triple{}, reject(rel, "want <plugin>/<kind>/<name>")
	}
	plugin, dir, name := parts[0], parts[1], parts[2]
	if strings.HasPrefix(plugin, ".") || strings.HasPrefix(name, ".") {
		return Triple{}, reject(rel, "hidden entry")
	}

	var kind Kind
	for _, k := range Kinds {
		if dir == k.Dir() {
			kind = k
		}
	}
	if kind == "" {
		return Triple{}, reject(rel, "unknown kind directory "+dir)
	}

	if kind != KindSkill {
		ext := path.Ext(name)
		if ext != ".md" && !(fold && strings.EqualFold(ext, ".md")) {
			return Triple{}, reject(rel, "not a markdown file")
		}
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" {
		return Triple{}, reject(rel, "empty name")
	}
	if strings.ContainsAny(plugin+name, reservedChars) || strings.IndexFunc(plugin+name, unicode.IsSpace) >= 0 {
		return Triple{}, reject(rel, "name contains whitespace or one of "+reservedChars)
	}

	return Triple{Plugin: plugin, Kind: kind, Name: name}.Normalize(fold), nil
}
