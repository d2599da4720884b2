package backup

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 10, 19, 10, 15, 0, 0, time.Local)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// stepClock returns a clock advancing by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		t := now
		now = now.Add(step)
		return t
	}
}

func TestCreate_ByteIdentical(t *testing.T) {
	content := "{\n  // keep me\n  \"permissions\": {\"allow\": [\"Bash(ls)\",]},\n}\n"
	target := writeSettings(t, content)
	m := NewManager(WithClock(func() time.Time { return fixed }))

	b, err := m.Create(target)
	require.NoError(t, err)

	assert.Equal(t, "20261019T101500", b.ID)
	assert.Equal(t, target+".backup.20261019T101500", b.Path)
	assert.Equal(t, int64(len(content)), b.Size)

	got, err := os.ReadFile(b.Path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
	require.NoError(t, Verify(b, []byte(content)))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(b.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestCreate_SameSecondNeverCollides(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager(WithClock(func() time.Time { return fixed }))

	ids := make(map[string]bool)
	for range 3 {
		b, err := m.Create(target)
		require.NoError(t, err)
		assert.False(t, ids[b.ID], "duplicate ID %s", b.ID)
		ids[b.ID] = true
	}
	assert.Equal(t, map[string]bool{
		"20261019T101500":   true,
		"20261019T101500-2": true,
		"20261019T101500-3": true,
	}, ids)
}

func TestCreate_MissingTarget(t *testing.T) {
	m := NewManager()
	_, err := m.Create(filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreate_Directory(t *testing.T) {
	m := NewManager()
	_, err := m.Create(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestList(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager(WithClock(stepClock(fixed, 0)))

	_, err := m.List(target)
	require.ErrorIs(t, err, ErrNoBackupsFound)

	first, err := m.Create(target)
	require.NoError(t, err)
	second, err := m.Create(target)
	require.NoError(t, err)

	later := NewManager(WithClock(func() time.Time { return fixed.Add(time.Hour) }))
	third, err := later.Create(target)
	require.NoError(t, err)

	// Noise that must be ignored.
	dir := filepath.Dir(target)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.json.backup.garbage"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json.backup.20261019T101500"), nil, 0o600))

	backups, err := m.List(target)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, third.ID, backups[0].ID)
	assert.Equal(t, second.ID, backups[1].ID)
	assert.Equal(t, first.ID, backups[2].ID)
	assert.Equal(t, int64(2), backups[0].Size)
}

func TestGet(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager(WithClock(func() time.Time { return fixed }))
	created, err := m.Create(target)
	require.NoError(t, err)

	b, err := m.Get(target, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Path, b.Path)
	assert.True(t, fixed.Equal(b.CreatedAt))

	_, err = m.Get(target, "20250101T000000")
	require.ErrorIs(t, err, ErrNoBackupsFound)

	_, err = m.Get(target, "yesterday")
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = m.Get(target, "")
	require.Error(t, err)
}

func TestRestore(t *testing.T) {
	target := writeSettings(t, `{"v":1}`)
	m := NewManager(WithClock(stepClock(fixed, time.Second)))

	b, err := m.Create(target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target, []byte(`{"v":2}`), 0o600))

	safety, err := m.Restore(target, b.ID)
	require.NoError(t, err)
	require.NotNil(t, safety)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))

	saved, err := os.ReadFile(safety.Path)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(saved), "current file is backed up before restore")
}

func TestRestore_MissingTarget(t *testing.T) {
	target := writeSettings(t, `{"v":1}`)
	m := NewManager(WithClock(func() time.Time { return fixed }))
	b, err := m.Create(target)
	require.NoError(t, err)
	require.NoError(t, os.Remove(target))

	safety, err := m.Restore(target, b.ID)
	require.NoError(t, err)
	assert.Nil(t, safety)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
}

func TestRestore_ThroughSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	target := writeSettings(t, `{"v":1}`)
	link := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.Symlink(target, link))

	m := NewManager(WithClock(stepClock(fixed, time.Second)))
	b, err := m.Create(link)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target, []byte(`{"v":2}`), 0o600))

	_, err = m.Restore(link, b.ID)
	require.NoError(t, err)

	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink, "link is preserved")
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
}

func TestRestore_Unknown(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager()
	_, err := m.Restore(target, "20250101T000000")
	require.ErrorIs(t, err, ErrNoBackupsFound)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestPrune(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager(WithClock(stepClock(fixed, time.Second)), WithRetentionCount(2))

	var created []*Backup
	for range 4 {
		b, err := m.Create(target)
		require.NoError(t, err)
		created = append(created, b)
	}

	removed, err := m.PruneToRetention(target)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, created[1].ID, removed[0].ID)
	assert.Equal(t, created[0].ID, removed[1].ID)

	left, err := m.List(target)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, created[3].ID, left[0].ID)

	removed, err = m.Prune(target, 5)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = m.Prune(target, -1)
	require.Error(t, err)
}

func TestPrune_NoBackups(t *testing.T) {
	m := NewManager()
	removed, err := m.Prune(writeSettings(t, "{}"), 1)
	require.NoError(t, err)
	assert.Nil(t, removed)
}

func TestPruneToRetention_Zero(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager(WithRetentionCount(0), WithClock(stepClock(fixed, time.Second)))
	for range 3 {
		_, err := m.Create(target)
		require.NoError(t, err)
	}
	removed, err := m.PruneToRetention(target)
	require.NoError(t, err)
	assert.Nil(t, removed)
	assert.Equal(t, 0, m.RetentionCount())
}

func TestVerify_Mismatch(t *testing.T) {
	target := writeSettings(t, "{}")
	m := NewManager()
	b, err := m.Create(target)
	require.NoError(t, err)

	err = Verify(b, []byte("{ }"))
	require.ErrorIs(t, err, ErrBackupCorrupted)
}

func TestParseID(t *testing.T) {
	tests := []struct {
		id      string
		seq     int
		wantErr bool
	}{
		{"20261019T101500", 1, false},
		{"20261019T101500-2", 2, false},
		{"20261019T101500-12", 12, false},
		{"20261019T101500-1", 0, true},
		{"20261019T101500-x", 0, true},
		{"2026-10-19", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			created, seq, err := ParseID(tt.id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.seq, seq)
			assert.True(t, fixed.Equal(created))
		})
	}
}
