// Package fileutil provides file system helpers: atomic replacement of a file
// guarded by an optional precondition, and size-limited reads.
package fileutil

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// TempPattern is the name pattern of the temp file created next to the target
// during an atomic write.
const TempPattern = ".marketsync-atomic-*.tmp"

type writeOptions struct {
	precondition func() error
	sync         bool
}

// WriteOption configures AtomicWriteFile.
type WriteOption func(*writeOptions)

// WithPrecondition runs fn after the temp file is complete and immediately
// before the rename. A non-nil error aborts the write; the target is left
// untouched and the error is returned as is.
func WithPrecondition(fn func() error) WriteOption {
	return func(o *writeOptions) {
		o.precondition = fn
	}
}

// WithSync fsyncs the temp file before it is renamed into place.
func WithSync() WriteOption {
	return func(o *writeOptions) {
		o.sync = true
	}
}

// AtomicWriteFile writes data to path by writing a temp file in the same
// directory and renaming it over path. An interrupted write leaves the
// original intact.
//
// The caller is responsible for ensuring the parent directory exists.
func AtomicWriteFile(path string, data []byte, perm os.FileMode, opts ...WriteOption) error {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}

	// same directory so the rename stays on one filesystem
	tmp, err := os.CreateTemp(filepath.Dir(path), TempPattern)
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.Wrap(err, "setting file permissions")
	}
	if o.sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return errors.Wrap(err, "syncing temp file")
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}

	if o.precondition != nil {
		if err := o.precondition(); err != nil {
			return err
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "renaming temp file")
	}
	renamed = true
	return nil
}

// AtomicWriteYAML marshals v as YAML and writes it atomically with mode 0644.
func AtomicWriteYAML(path string, v any) error {
	data, err := MarshalYAML(v)
	if err != nil {
		return err
	}
	return AtomicWriteFile(path, data, 0o644)
}

// MarshalYAML encodes v with two-space indentation. yaml.v3 panics on some
// unmarshalable types; the panic is returned as an error.
func MarshalYAML(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("marshaling YAML: %v", r)
		}
	}()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "marshaling YAML")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "marshaling YAML")
	}
	return buf.Bytes(), nil
}
