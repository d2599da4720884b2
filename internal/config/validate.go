package config

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Validation errors for configuration fields.
var (
	// ErrEmptyValue indicates a required value is empty.
	ErrEmptyValue = errors.New("must not be empty")

	// ErrInvalidKeyPath indicates a dotted key path has an empty segment.
	ErrInvalidKeyPath = errors.New("invalid key path")

	// ErrOutOfRange indicates a numeric or duration value is out of range.
	ErrOutOfRange = errors.New("out of range")

	// ErrInvalidURL indicates remote.base_url is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")
)

// FieldError reports a problem with one config key.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Validate checks cfg and returns every problem found, or nil.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error
	add := func(field, value string, err error) {
		errs = append(errs, &FieldError{Field: field, Value: value, Err: err})
	}

	if strings.TrimSpace(cfg.Root) == "" {
		add("root", "", ErrEmptyValue)
	}
	if strings.TrimSpace(cfg.Settings.Path) == "" {
		add("settings.path", "", ErrEmptyValue)
	}
	if err := ValidateKeyPath(cfg.Settings.KeyPath); err != nil {
		add("settings.key_path", cfg.Settings.KeyPath, err)
	}
	if cfg.Backup.Retention < 0 {
		add("backup.retention", "", errors.Wrapf(ErrOutOfRange, "got %d, want >= 0", cfg.Backup.Retention))
	}

	if cfg.Remote.Timeout <= 0 {
		add("remote.timeout", cfg.Remote.Timeout.String(), ErrOutOfRange)
	}
	if err := validateBaseURL(cfg.Remote.BaseURL); err != nil {
		add("remote.base_url", cfg.Remote.BaseURL, err)
	}
	if cfg.Remote.Enabled && strings.TrimSpace(cfg.Remote.Table) == "" {
		add("remote.table", "", ErrEmptyValue)
	}

	return errs
}

// ValidateKeyPath checks a dotted key path such as "permissions.allow".
func ValidateKeyPath(keyPath string) error {
	if strings.TrimSpace(keyPath) == "" {
		return ErrEmptyValue
	}
	for _, seg := range strings.Split(keyPath, ".") {
		if seg == "" {
			return ErrInvalidKeyPath
		}
	}
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
