package backup

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Default configuration values.
const (
	// DefaultRetentionCount is the default number of backups kept per file.
	DefaultRetentionCount = 10

	// IDLayout is the time layout of backup identifiers.
	IDLayout = "20060102T150405"

	// Infix separates the protected file name from the backup identifier.
	Infix = ".backup."
)

// Sentinel errors for backup operations.
var (
	// ErrNoBackupsFound indicates no backups exist for the file.
	ErrNoBackupsFound = errors.New("no backups found")

	// ErrBackupCorrupted indicates a backup's content does not match the
	// content it was created from.
	ErrBackupCorrupted = errors.New("backup corrupted")

	// ErrInvalidID indicates a malformed backup identifier.
	ErrInvalidID = errors.New("invalid backup ID")
)

// Backup describes one backup file.
type Backup struct {
	// ID is the identifier, e.g. 20261019T101500 or 20261019T101500-2.
	ID string `json:"id"`

	// Path is the backup file's location.
	Path string `json:"path"`

	// Target is the file the backup was taken from.
	Target string `json:"target"`

	// CreatedAt is parsed from the identifier.
	CreatedAt time.Time `json:"created_at"`

	// Size is the backup size in bytes.
	Size int64 `json:"size"`

	// SHA256Hash is the hex-encoded SHA-256 of the content. It is only
	// populated by Create.
	SHA256Hash string `json:"sha256_hash,omitempty"`

	seq int
}
