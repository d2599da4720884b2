package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/marketsync/pkg/fileutil"
)

// maxSameSecond bounds the -N counter for backups created within one second.
const maxSameSecond = 1000

// Manager handles backup creation, restoration, and pruning.
type Manager struct {
	retentionCount int
	now            func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithRetentionCount sets the number of backups to retain per file.
// Zero disables pruning.
func WithRetentionCount(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.retentionCount = n
		}
	}
}

// WithClock sets the time source used for backup identifiers.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new backup Manager with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		retentionCount: DefaultRetentionCount,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RetentionCount returns the configured retention.
func (m *Manager) RetentionCount() int {
	return m.retentionCount
}

// Create copies target to a new sibling backup file. The copy keeps the
// target's permissions and its content is byte-identical to target.
func (m *Manager) Create(target string) (*Backup, error) {
	if target == "" {
		return nil, errors.New("target is required")
	}

	src, err := os.Open(target)
	if err != nil {
		return nil, errors.Wrap(err, "opening file to back up")
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat file to back up")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Newf("%s is not a regular file", target)
	}

	created := m.now()
	base := created.Format(IDLayout)
	for seq := 1; seq <= maxSameSecond; seq++ {
		id := base
		if seq > 1 {
			id = base + "-" + strconv.Itoa(seq)
		}
		path := pathFor(target, id)

		dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "creating backup file")
		}

		hash, size, err := copyFile(src, dst)
		if err != nil {
			os.Remove(path)
			return nil, errors.Wrapf(err, "writing backup %s", id)
		}

		return &Backup{
			ID:         id,
			Path:       path,
			Target:     target,
			CreatedAt:  created.Truncate(time.Second),
			Size:       size,
			SHA256Hash: hash,
			seq:        seq,
		}, nil
	}

	return nil, errors.Newf("too many backups of %s created at %s", target, base)
}

// List returns the backups of target, newest first.
// Returns ErrNoBackupsFound when there are none.
func (m *Manager) List(target string) ([]Backup, error) {
	if target == "" {
		return nil, errors.New("target is required")
	}

	dir := filepath.Dir(target)
	prefix := filepath.Base(target) + Infix

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoBackupsFound
		}
		return nil, errors.Wrap(err, "reading backup directory")
	}

	var backups []Backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		id := strings.TrimPrefix(name, prefix)
		created, seq, err := ParseID(id)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			ID:        id,
			Path:      filepath.Join(dir, name),
			Target:    target,
			CreatedAt: created,
			Size:      info.Size(),
			seq:       seq,
		})
	}

	if len(backups) == 0 {
		return nil, ErrNoBackupsFound
	}

	slices.SortFunc(backups, func(a, b Backup) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return b.seq - a.seq
	})

	return backups, nil
}

// Get returns the backup of target with the given identifier.
func (m *Manager) Get(target, id string) (*Backup, error) {
	if id == "" {
		return nil, errors.New("backup ID is required")
	}
	created, seq, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	path := pathFor(target, id)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(ErrNoBackupsFound, "backup %s not found", id)
		}
		return nil, errors.Wrap(err, "stat backup")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Wrapf(ErrBackupCorrupted, "backup %s is not a regular file", id)
	}

	return &Backup{
		ID:        id,
		Path:      path,
		Target:    target,
		CreatedAt: created,
		Size:      info.Size(),
		seq:       seq,
	}, nil
}

// Restore replaces target with the content of backup id. The current target,
// when present, is backed up first and that safety backup is returned.
// The replacement is atomic; a symlinked target is written through.
func (m *Manager) Restore(target, id string) (*Backup, error) {
	b, err := m.Get(target, id)
	if err != nil {
		return nil, err
	}

	data, err := fileutil.ReadFileWithLimit(b.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading backup %s", id)
	}
	if int64(len(data)) != b.Size {
		return nil, errors.Wrapf(ErrBackupCorrupted, "backup %s changed while reading", id)
	}

	info, err := os.Stat(b.Path)
	if err != nil {
		return nil, errors.Wrap(err, "stat backup")
	}
	mode := info.Mode().Perm()

	var safety *Backup
	dest := target
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		dest = resolved
		if current, err := os.Stat(dest); err == nil {
			mode = current.Mode().Perm()
		}
		safety, err = m.Create(target)
		if err != nil {
			return nil, errors.Wrap(err, "backing up current file before restore")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "resolving restore target")
	}

	if err := fileutil.AtomicWriteFile(dest, data, mode, fileutil.WithSync()); err != nil {
		return safety, errors.Wrapf(err, "restoring %s", target)
	}

	return safety, nil
}

// Prune removes the backups of target beyond the newest keep and returns the
// removed backups.
func (m *Manager) Prune(target string, keep int) ([]Backup, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	backups, err := m.List(target)
	if err != nil {
		if errors.Is(err, ErrNoBackupsFound) {
			return nil, nil
		}
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	removed := backups[keep:]
	for _, b := range removed {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "removing backup %s", b.ID)
		}
	}
	return removed, nil
}

// PruneToRetention prunes target to the manager's retention count.
// A retention of zero keeps every backup.
func (m *Manager) PruneToRetention(target string) ([]Backup, error) {
	if m.retentionCount == 0 {
		return nil, nil
	}
	return m.Prune(target, m.retentionCount)
}

// Verify reports whether backup b holds exactly data.
func Verify(b *Backup, data []byte) error {
	hash, err := hashFile(b.Path)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	if hash != hex.EncodeToString(sum[:]) {
		return errors.Wrapf(ErrBackupCorrupted, "backup %s hash mismatch", b.ID)
	}
	return nil
}

// ParseID parses a backup identifier into its timestamp and same-second
// counter.
func ParseID(id string) (time.Time, int, error) {
	stamp, counter, hasCounter := strings.Cut(id, "-")
	created, err := time.ParseInLocation(IDLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, 0, errors.Wrapf(ErrInvalidID, "%q", id)
	}
	seq := 1
	if hasCounter {
		seq, err = strconv.Atoi(counter)
		if err != nil || seq < 2 {
			return time.Time{}, 0, errors.Wrapf(ErrInvalidID, "%q", id)
		}
	}
	return created, seq, nil
}

func pathFor(target, id string) string {
	return target + Infix + id
}

// hashFile computes the SHA256 hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "opening file")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "reading file")
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile copies src into dst, returning the SHA256 hash and byte count.
// dst is synced and closed.
func copyFile(src io.Reader, dst *os.File) (hash string, n int64, err error) {
	h := sha256.New()
	w := io.MultiWriter(dst, h)

	n, err = io.Copy(w, src)
	if err != nil {
		dst.Close()
		return "", 0, errors.Wrap(err, "copying file")
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return "", 0, errors.Wrap(err, "syncing backup")
	}
	if err := dst.Close(); err != nil {
		return "", 0, errors.Wrap(err, "closing backup")
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
