package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tailscale/hujson"

	mserrors "github.com/thoreinstein/marketsync/internal/errors"
	"github.com/thoreinstein/marketsync/pkg/fileutil"
)

// Version identifies the settings file content observed at read time.
type Version struct {
	ModTime time.Time
	Size    int64
	Hash    string
}

// Equal reports whether two versions describe the same file content.
func (v Version) Equal(o Version) bool {
	return v.ModTime.Equal(o.ModTime) && v.Size == o.Size && v.Hash == o.Hash
}

// SettingsFile is a parsed Claude settings file and the permission array
// at its key path.
type SettingsFile struct {
	// Path is the file as configured. Target is Path with symlinks resolved;
	// reads and writes go to Target.
	Path    string
	Target  string
	KeyPath string

	// Present reports whether the key path exists with a non-null value.
	Present bool
	// Values is the number of elements in the permission array.
	Values    int
	Entries   []Entry
	Anomalies []Anomaly
	// Ignored counts values that are not component keys.
	Ignored int

	raw     []byte
	mode    fs.FileMode
	version Version
	jsonc   bool
	// deepest key path prefix that exists, in segments
	existing int
	null     bool
}

// ReadSettings reads path and parses the permission array at keyPath, a
// dotted path such as "permissions.allow". An absent key path reads as an
// empty array. Every failure is marked errors.ErrFatalInput: a missing or
// unreadable file, malformed JSON, a non-object root or intermediate value,
// and a non-array value at the key path.
func ReadSettings(path, keyPath string) (*SettingsFile, error) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, fatalInput(err, "reading settings %s", path)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fatalInput(err, "reading settings %s", path)
	}
	raw, err := fileutil.ReadFileWithLimit(target)
	if err != nil {
		return nil, fatalInput(err, "reading settings %s", path)
	}

	s := &SettingsFile{
		Path:    path,
		Target:  target,
		KeyPath: keyPath,
		raw:     raw,
		mode:    info.Mode().Perm(),
		version: versionOf(info, raw),
	}
	if err := s.parse(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SettingsFile) parse() error {
	root, err := hujson.Parse(s.raw)
	if err != nil {
		return fatalInput(err, "parsing settings %s", s.Path)
	}
	s.jsonc = !root.IsStandard()

	std := root.Clone()
	std.Standardize()
	var doc any
	if err := json.Unmarshal(std.Pack(), &doc); err != nil {
		return fatalInput(err, "parsing settings %s", s.Path)
	}

	segments := strings.Split(s.KeyPath, ".")
	cur := doc
	for i, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			where := "the document root"
			if i > 0 {
				where = strings.Join(segments[:i], ".")
			}
			return fatalInput(errors.Newf("%s is %s, not an object", where, describe(cur)), "settings %s", s.Path)
		}
		next, ok := obj[seg]
		if !ok {
			return nil
		}
		s.existing = i + 1
		cur = next
	}

	if cur == nil {
		s.null = true
		return nil
	}
	arr, ok := cur.([]any)
	if !ok {
		return fatalInput(errors.Newf("%s is %s, not an array", s.KeyPath, describe(cur)), "settings %s", s.Path)
	}

	s.Present = true
	s.Values = len(arr)
	for _, v := range arr {
		str, ok := v.(string)
		if !ok {
			text, _ := json.Marshal(v)
			s.Anomalies = append(s.Anomalies, Anomaly{Source: SourceLocal, Value: string(text), Reason: "not a string"})
			continue
		}
		t, err := ParseKey(str)
		switch {
		case errors.Is(err, ErrUnrecognized):
			s.Ignored++
		case err != nil:
			s.Anomalies = append(s.Anomalies, Anomaly{Source: SourceLocal, Value: str, Reason: err.Error()})
		default:
			s.Entries = append(s.Entries, Entry{Key: str, Source: SourceLocal, Triple: t})
		}
	}
	return nil
}

// Version returns the version captured at read time.
func (s *SettingsFile) Version() Version {
	return s.version
}

// Raw returns the file content as read.
func (s *SettingsFile) Raw() []byte {
	return s.raw
}

// JSONC reports whether the file uses comments or trailing commas.
func (s *SettingsFile) JSONC() bool {
	return s.jsonc
}

// WithAppended returns the document with keys appended to the permission
// array. Existing elements keep their order. A missing array, and any
// missing parent objects, are created; a null value is replaced. Standard
// JSON is re-indented with two spaces; JSONC keeps its comments.
//
// With no keys the original bytes are returned.
func (s *SettingsFile) WithAppended(keys []string) ([]byte, error) {
	if len(keys) == 0 {
		return s.raw, nil
	}

	root, err := hujson.Parse(s.raw)
	if err != nil {
		return nil, errors.Wrap(err, "parsing settings")
	}

	segments := strings.Split(s.KeyPath, ".")
	var ops []map[string]any
	switch {
	case s.Present:
		ptr := pointer(segments) + "/-"
		for _, k := range keys {
			ops = append(ops, map[string]any{"op": "add", "path": ptr, "value": k})
		}
	case s.null:
		ops = append(ops, map[string]any{"op": "replace", "path": pointer(segments), "value": keys})
	default:
		for i := s.existing + 1; i < len(segments); i++ {
			ops = append(ops, map[string]any{"op": "add", "path": pointer(segments[:i]), "value": map[string]any{}})
		}
		ops = append(ops, map[string]any{"op": "add", "path": pointer(segments), "value": keys})
	}

	patch, err := json.Marshal(ops)
	if err != nil {
		return nil, errors.Wrap(err, "encoding settings patch")
	}
	if err := root.Patch(patch); err != nil {
		return nil, errors.Wrap(err, "patching settings")
	}

	if s.jsonc {
		root.Format()
		removeTrailingCommas(&root)
		return root.Pack(), nil
	}

	var buf bytes.Buffer
	// Indent keeps trailing whitespace; the file gets exactly one newline
	if err := json.Indent(&buf, bytes.TrimSpace(root.Pack()), "", "  "); err != nil {
		return nil, errors.Wrap(err, "formatting settings")
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// CheckUnchanged fails with an error marked errors.ErrWriteConflict when the
// file no longer matches the version captured at read time.
func (s *SettingsFile) CheckUnchanged() error {
	info, err := os.Stat(s.Target)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s changed since it was read", s.Path), mserrors.ErrWriteConflict)
	}
	data, err := os.ReadFile(s.Target)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s changed since it was read", s.Path), mserrors.ErrWriteConflict)
	}
	if !versionOf(info, data).Equal(s.version) {
		return errors.Mark(errors.Newf("%s changed since it was read", s.Path), mserrors.ErrWriteConflict)
	}
	return nil
}

// Commit atomically replaces the file with data, keeping its permissions.
// The version check runs again immediately before the rename; if it fails
// the file is untouched and the error is marked errors.ErrWriteConflict.
func (s *SettingsFile) Commit(data []byte) error {
	err := fileutil.AtomicWriteFile(s.Target, data, s.mode,
		fileutil.WithSync(),
		fileutil.WithPrecondition(s.CheckUnchanged),
	)
	if err != nil {
		if errors.Is(err, mserrors.ErrWriteConflict) {
			return err
		}
		return errors.Wrapf(err, "writing settings %s", s.Path)
	}
	return nil
}

func versionOf(info fs.FileInfo, data []byte) Version {
	sum := sha256.Sum256(data)
	return Version{
		ModTime: info.ModTime(),
		Size:    info.Size(),
		Hash:    hex.EncodeToString(sum[:]),
	}
}

// pointer builds an RFC 6901 JSON pointer from key path segments.
func pointer(segments []string) string {
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		sb.WriteString(strings.ReplaceAll(seg, "/", "~1"))
	}
	return sb.String()
}

// removeTrailingCommas drops the trailing commas hujson.Format adds to
// multi-line objects and arrays.
func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Name)
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if len(vv.Members) > 0 {
			vv.Members[len(vv.Members)-1].Value.AfterExtra = nil
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if len(vv.Elements) > 0 {
			vv.Elements[len(vv.Elements)-1].AfterExtra = nil
		}
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	case []any:
		return "an array"
	default:
		return "an object"
	}
}

func fatalInput(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), mserrors.ErrFatalInput)
}
