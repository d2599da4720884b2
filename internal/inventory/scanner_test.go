package inventory

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/internal/logging"
)

// writeTree creates files under root. Keys ending in "/" are directories.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func triples(r *Result) []Triple {
	out := make([]Triple, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Triple())
	}
	return out
}

func TestScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/stripe/commands/checkout.md":        "---\ndescription: Add checkout\n---\n",
		"plugins/stripe/commands/notes.txt":          "ignored",
		"plugins/stripe/commands/.draft.md":          "hidden",
		"plugins/stripe/agents/payments-expert.md":   "# no frontmatter",
		"plugins/stripe/skills/webhooks/SKILL.md":    "skill",
		"plugins/stripe/skills/loose-file.md":        "not a skill",
		"plugins/redis/commands/cache.md":            "",
		"plugins/empty/":                             "",
		"plugins/.git/commands/x.md":                 "",
		"plugins/README.md":                          "not a plugin",
		"plugins/stripe/commands/nested/deep.md":     "not direct",
		"plugins/redis/skills/.hidden-skill/SKILL.md": "",
	})

	s := NewScanner(WithLogger(logging.ForTest(t)), WithDescriptions(true))
	res, err := s.Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []Triple{
		{"redis", KindCommand, "cache"},
		{"stripe", KindCommand, "checkout"},
		{"stripe", KindAgent, "payments-expert"},
		{"stripe", KindSkill, "webhooks"},
	}, triples(res))
	assert.Empty(t, res.Conflicts)

	checkout, ok := res.Lookup(Triple{"stripe", KindCommand, "checkout"})
	require.True(t, ok)
	assert.Equal(t, "Add checkout", checkout.Description)
	assert.Equal(t, filepath.Join(root, "plugins", "stripe", "commands", "checkout.md"), checkout.Path)

	assert.Equal(t, 2, res.Count(KindCommand))
	assert.Equal(t, []string{"redis", "stripe"}, res.Plugins())
	assert.True(t, res.CaseInsensitive())
}

func TestScanner_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/b/commands/z.md": "",
		"plugins/b/commands/a.md": "",
		"plugins/a/skills/s1/":    "",
		"plugins/a/agents/x.md":   "",
		"plugins/c/commands/m.md": "",
	})

	s := NewScanner()
	first, err := s.Scan(root)
	require.NoError(t, err)
	second, err := s.Scan(root)
	require.NoError(t, err)

	assert.Equal(t, first.Entries, second.Entries)
	assert.Len(t, first.Entries, 5)
}

func TestScanner_CaseConflict(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/p/commands/build.md": "",
		"plugins/p/commands/BUILD.md": "",
	})
	entries, err := os.ReadDir(filepath.Join(root, "plugins", "p", "commands"))
	require.NoError(t, err)
	if len(entries) != 2 {
		t.Skip("filesystem is case-insensitive")
	}

	res, err := NewScanner(WithCaseInsensitive(true)).Scan(root)
	require.NoError(t, err)

	require.Len(t, res.Entries, 1)
	assert.Equal(t, "BUILD", res.Entries[0].Name, "first spelling in directory order is kept")
	require.Len(t, res.Conflicts, 1)
	c := res.Conflicts[0]
	assert.Equal(t, Triple{"p", KindCommand, "BUILD"}, c.Triple)
	assert.Len(t, c.Paths, 2)
	assert.True(t, errors.Is(c.Err(), mserrors.ErrScanConflict))

	// the case-sensitive scan sees two distinct components
	res, err = NewScanner(WithCaseInsensitive(false)).Scan(root)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
	assert.Empty(t, res.Conflicts)
}

func TestScanner_PluginCaseConflict(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/Tools/skills/pdf/": "",
		"plugins/tools/skills/pdf/": "",
		"plugins/tools/skills/PDF/": "",
	})
	entries, err := os.ReadDir(filepath.Join(root, "plugins"))
	require.NoError(t, err)
	if len(entries) != 2 {
		t.Skip("filesystem is case-insensitive")
	}

	res, err := NewScanner().Scan(root)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	require.Len(t, res.Conflicts, 1)
	assert.Len(t, res.Conflicts[0].Paths, 3)
}

func TestScanner_UpperCaseExtension(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/Ops/commands/Deploy.MD": "---\ndescription: Ship it\n---\n",
		"plugins/Ops/agents/Oncall.md":   "",
	})

	t.Run("folding accepts .MD and keeps the spelling", func(t *testing.T) {
		res, err := NewScanner(WithLogger(logging.ForTest(t)), WithDescriptions(true)).Scan(root)
		require.NoError(t, err)

		assert.Equal(t, []Triple{
			{"Ops", KindCommand, "Deploy"},
			{"Ops", KindAgent, "Oncall"},
		}, triples(res))

		deploy, ok := res.Lookup(Triple{"ops", KindCommand, "deploy"})
		require.True(t, ok)
		assert.Equal(t, "Deploy", deploy.Name)
		assert.Equal(t, "Ship it", deploy.Description)
	})

	t.Run("case-sensitive scan skips .MD", func(t *testing.T) {
		res, err := NewScanner(WithLogger(logging.ForTest(t)), WithCaseInsensitive(false)).Scan(root)
		require.NoError(t, err)

		assert.Equal(t, []Triple{{"Ops", KindAgent, "Oncall"}}, triples(res))
	})
}

func TestScanner_Filter(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/stripe-payments/commands/pay.md": "",
		"plugins/redis/commands/cache.md":         "",
	})

	f, err := NewFilter([]string{"stripe-*"}, true)
	require.NoError(t, err)
	res, err := NewScanner(WithFilter(f)).Scan(root)
	require.NoError(t, err)

	assert.Equal(t, []Triple{{"stripe-payments", KindCommand, "pay"}}, triples(res))
	assert.Equal(t, []string{"stripe-*"}, res.Filter)
	assert.True(t, res.Includes("stripe-other"))
	assert.False(t, res.Includes("redis"))
}

func TestScanner_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	shared := t.TempDir()
	writeTree(t, shared, map[string]string{
		"linked-plugin/commands/hello.md": "",
		"shared-skill/SKILL.md":           "",
	})
	writeTree(t, root, map[string]string{
		"plugins/local/skills/": "",
	})
	require.NoError(t, os.Symlink(filepath.Join(shared, "linked-plugin"), filepath.Join(root, "plugins", "linked")))
	require.NoError(t, os.Symlink(filepath.Join(shared, "shared-skill"), filepath.Join(root, "plugins", "local", "skills", "shared")))
	require.NoError(t, os.Symlink(filepath.Join(shared, "gone"), filepath.Join(root, "plugins", "local", "skills", "dangling")))

	res, err := NewScanner().Scan(root)
	require.NoError(t, err)
	assert.Equal(t, []Triple{
		{"linked", KindCommand, "hello"},
		{"local", KindSkill, "shared"},
	}, triples(res))
}

func TestScanner_FatalInputs(t *testing.T) {
	t.Run("missing plugins directory", func(t *testing.T) {
		_, err := NewScanner().Scan(t.TempDir())
		require.Error(t, err)
		assert.True(t, errors.Is(err, mserrors.ErrFatalInput))
		assert.Contains(t, err.Error(), "reading plugins directory")
	})

	t.Run("plugins is a file", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"plugins": "oops"})
		_, err := NewScanner().Scan(root)
		assert.True(t, errors.Is(err, mserrors.ErrFatalInput))
	})

	t.Run("unreadable plugin", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced")
		}
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"plugins/ok/commands/a.md": "",
			"plugins/locked/":          "",
		})
		locked := filepath.Join(root, "plugins", "locked")
		require.NoError(t, os.Chmod(locked, 0o000))
		t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

		res, err := NewScanner().Scan(root)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, mserrors.ErrFatalInput))
		assert.Contains(t, err.Error(), "reading plugin")
	})

	t.Run("unreadable kind directory", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced")
		}
		root := t.TempDir()
		writeTree(t, root, map[string]string{"plugins/p/skills/x/": ""})
		skills := filepath.Join(root, "plugins", "p", "skills")
		require.NoError(t, os.Chmod(skills, 0o000))
		t.Cleanup(func() { _ = os.Chmod(skills, 0o755) })

		_, err := NewScanner().Scan(root)
		assert.True(t, errors.Is(err, mserrors.ErrFatalInput))
	})
}

func TestScanner_BadFrontmatterIsNotFatal(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"plugins/p/agents/broken.md": "---\ndescription: [oops\n---\n",
	})

	res, err := NewScanner(WithDescriptions(true)).Scan(root)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Empty(t, res.Entries[0].Description)
}
