package registry

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/inventory"
)

func TestFormatKey(t *testing.T) {
	key, ok := FormatKey(inventory.Triple{Plugin: "foo-plugin", Kind: inventory.KindCommand, Name: "foo"})
	require.True(t, ok)
	assert.Equal(t, "SlashCommand(/foo-plugin:foo)", key)

	key, ok = FormatKey(inventory.Triple{Plugin: "docs", Kind: inventory.KindSkill, Name: "pdf"})
	require.True(t, ok)
	assert.Equal(t, "Skill(docs:pdf)", key)

	_, ok = FormatKey(inventory.Triple{Plugin: "docs", Kind: inventory.KindAgent, Name: "writer"})
	assert.False(t, ok)
	assert.False(t, LocalKind(inventory.KindAgent))
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want inventory.Triple
	}{
		{"SlashCommand(/foo-plugin:foo)", inventory.Triple{Plugin: "foo-plugin", Kind: inventory.KindCommand, Name: "foo"}},
		{"SlashCommand(/tools:build:*)", inventory.Triple{Plugin: "tools", Kind: inventory.KindCommand, Name: "build"}},
		{"Skill(docs:pdf-export)", inventory.Triple{Plugin: "docs", Kind: inventory.KindSkill, Name: "pdf-export"}},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got, tt.key)

		// round trip
		key, ok := FormatKey(got)
		require.True(t, ok)
		back, err := ParseKey(key)
		require.NoError(t, err)
		assert.Equal(t, got, back)
	}
}

func TestParseKey_Unrecognized(t *testing.T) {
	for _, key := range []string{
		"Bash(git:*)",
		"Read(//tmp/**)",
		"WebFetch(domain:example.com)",
		"SlashCommand(/review)",
		"SlashCommand(/review-pr:*)",
		"Skill(pdf)",
		"slashcommand(/a:b)",
		"",
	} {
		_, err := ParseKey(key)
		assert.ErrorIs(t, err, ErrUnrecognized, key)
	}
}

func TestParseKey_Anomalies(t *testing.T) {
	tests := []struct {
		key    string
		reason string
	}{
		{"SlashCommand(/foo:bar", "missing closing parenthesis"},
		{"Skill(foo:bar", "missing closing parenthesis"},
		{"SlashCommand(foo:bar)", "missing leading /"},
		{"Skill(/foo:bar)", "unexpected leading /"},
		{"SlashCommand(/foo:bar))", "unbalanced parentheses"},
		{"SlashCommand(/foo:b ar)", "contains whitespace"},
		{"Skill(a:b:c)", "too many ':' separators"},
		{"SlashCommand(/:bar)", "empty plugin or name"},
		{"Skill(foo:)", "empty plugin or name"},
		{"Skill()", "empty plugin or name"},
		{"SlashCommand(/)", "empty plugin or name"},
	}
	for _, tt := range tests {
		_, err := ParseKey(tt.key)
		require.Error(t, err, tt.key)
		assert.True(t, errors.Is(err, mserrors.ErrRegistryAnomaly), tt.key)
		assert.NotErrorIs(t, err, ErrUnrecognized, tt.key)
		assert.Equal(t, tt.reason, err.Error(), tt.key)
	}
}

func TestRemoteKey(t *testing.T) {
	assert.Equal(t, "agent:docs:writer", RemoteKey(inventory.Triple{Plugin: "docs", Kind: inventory.KindAgent, Name: "writer"}))
}

func TestAnomalyErr(t *testing.T) {
	err := Anomaly{Source: SourceLocal, Value: "Skill(", Reason: "missing closing parenthesis"}.Err()
	assert.True(t, errors.Is(err, mserrors.ErrRegistryAnomaly))
	assert.Equal(t, `local-settings entry "Skill(": missing closing parenthesis`, err.Error())
}
