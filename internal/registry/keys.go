package registry

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
)

// Source identifies a registry.
type Source string

// Registry sources.
const (
	SourceLocal  Source = "local-settings"
	SourceRemote Source = "remote"
)

// Entry is one component known to a registry.
type Entry struct {
	Key    string           `json:"key"`
	Source Source           `json:"source"`
	Triple inventory.Triple `json:"triple"`
}

// Anomaly is a registry value that looks like one of ours but cannot be
// parsed. Anomalies are excluded from comparison.
type Anomaly struct {
	Source Source `json:"source"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Err returns the anomaly as an error marked errors.ErrRegistryAnomaly.
func (a Anomaly) Err() error {
	return errors.Mark(errors.Newf("%s entry %q: %s", a.Source, a.Value, a.Reason), mserrors.ErrRegistryAnomaly)
}

// ErrUnrecognized is returned by ParseKey for values that are not component
// keys at all, such as Bash(git:*) or a plugin-less SlashCommand(/review).
var ErrUnrecognized = errors.New("unrecognized registry key")

const (
	slashCommandPrefix = "SlashCommand("
	skillPrefix        = "Skill("
	argsWildcard       = ":*"
)

// LocalKind reports whether components of kind k are tracked in the local
// settings registry. Agents are not invokable permissions and only live in
// the remote registry.
func LocalKind(k inventory.Kind) bool {
	return k == inventory.KindCommand || k == inventory.KindSkill
}

// FormatKey returns the local settings key for t. The second result is false
// for kinds the local registry does not track.
func FormatKey(t inventory.Triple) (string, bool) {
	switch t.Kind {
	case inventory.KindCommand:
		return slashCommandPrefix + "/" + t.Plugin + ":" + t.Name + ")", true
	case inventory.KindSkill:
		return skillPrefix + t.Plugin + ":" + t.Name + ")", true
	default:
		return "", false
	}
}

// ParseKey parses a local settings value into a triple.
//
// Values that do not start with SlashCommand( or Skill(, and values of those
// forms without a plugin qualifier, return ErrUnrecognized. A trailing ":*"
// argument wildcard is accepted on commands. Any other malformation is an
// error wrapping ErrRegistryAnomaly whose message is the reason.
func ParseKey(key string) (inventory.Triple, error) {
	var kind inventory.Kind
	var inner string
	switch {
	case strings.HasPrefix(key, slashCommandPrefix):
		kind = inventory.KindCommand
		inner = strings.TrimPrefix(key, slashCommandPrefix)
	case strings.HasPrefix(key, skillPrefix):
		kind = inventory.KindSkill
		inner = strings.TrimPrefix(key, skillPrefix)
	default:
		return inventory.Triple{}, ErrUnrecognized
	}

	if !strings.HasSuffix(inner, ")") {
		return inventory.Triple{}, anomaly("missing closing parenthesis")
	}
	inner = strings.TrimSuffix(inner, ")")

	if kind == inventory.KindCommand {
		if !strings.HasPrefix(inner, "/") {
			return inventory.Triple{}, anomaly("missing leading /")
		}
		inner = strings.TrimSuffix(inner[1:], argsWildcard)
	} else if strings.HasPrefix(inner, "/") {
		return inventory.Triple{}, anomaly("unexpected leading /")
	}

	if strings.ContainsAny(inner, "()") {
		return inventory.Triple{}, anomaly("unbalanced parentheses")
	}
	if strings.IndexFunc(inner, unicode.IsSpace) >= 0 {
		return inventory.Triple{}, anomaly("contains whitespace")
	}

	parts := strings.Split(inner, ":")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return inventory.Triple{}, ErrUnrecognized
	case len(parts) > 2:
		return inventory.Triple{}, anomaly("too many ':' separators")
	case len(parts) == 1 || parts[0] == "" || parts[1] == "":
		return inventory.Triple{}, anomaly("empty plugin or name")
	}

	return inventory.Triple{Plugin: parts[0], Kind: kind, Name: parts[1]}, nil
}

// RemoteKey is the identifier of t in the remote registry: kind:plugin:name.
func RemoteKey(t inventory.Triple) string {
	return string(t.Kind) + ":" + t.Plugin + ":" + t.Name
}

func anomaly(reason string) error {
	return errors.Mark(errors.New(reason), mserrors.ErrRegistryAnomaly)
}
