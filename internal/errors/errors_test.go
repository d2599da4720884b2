package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ExitError
		want string
	}{
		{
			name: "with underlying error",
			err:  NewExitError(ErrNotFound, ExitDrift),
			want: "resource not found",
		},
		{
			name: "with wrapped error",
			err:  NewExitError(fmt.Errorf("loading config: %w", ErrInvalidConfig), ExitFatal),
			want: "loading config: invalid configuration",
		},
		{
			name: "nil underlying error",
			err:  NewExitError(nil, ExitDrift),
			want: "exit code 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("ExitError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	tests := []struct {
		name       string
		err        *ExitError
		wantTarget error
		wantIs     bool
	}{
		{
			name:       "unwrap to sentinel error",
			err:        NewExitError(ErrWriteConflict, ExitDrift),
			wantTarget: ErrWriteConflict,
			wantIs:     true,
		},
		{
			name:       "unwrap through wrapped error",
			err:        NewExitError(fmt.Errorf("reading settings: %w", ErrFatalInput), ExitFatal),
			wantTarget: ErrFatalInput,
			wantIs:     true,
		},
		{
			name:       "no match for different sentinel",
			err:        NewExitError(ErrNotFound, ExitDrift),
			wantTarget: ErrInvalidConfig,
			wantIs:     false,
		},
		{
			name:       "nil underlying error",
			err:        NewExitError(nil, ExitDrift),
			wantTarget: ErrNotFound,
			wantIs:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.wantTarget); got != tt.wantIs {
				t.Errorf("errors.Is() = %v, want %v", got, tt.wantIs)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name           string
		err            *ExitError
		wantCode       int
		wantSuggestion string
	}{
		{"drift", NewDriftError(nil, "Run: marketsync fix"), ExitDrift, "Run: marketsync fix"},
		{"fatal", NewFatalError(ErrFatalInput, "Check --root"), ExitFatal, "Check --root"},
		{"user", NewUserError(errors.New("bad flag"), "See --help"), ExitFatal, "See --help"},
		{"config", NewConfigError(ErrInvalidConfig), ExitFatal, "Run: marketsync config list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Suggestion != tt.wantSuggestion {
				t.Errorf("Suggestion = %q, want %q", tt.err.Suggestion, tt.wantSuggestion)
			}
		})
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"drift", NewDriftError(nil, ""), ExitDrift},
		{"wrapped exit error", fmt.Errorf("running: %w", NewFatalError(ErrFatalInput, "")), ExitFatal},
		{"plain error", errors.New("unknown flag"), ExitFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Silent(t *testing.T) {
	if !NewDriftError(nil, "").Silent() {
		t.Error("drift error without cause should be silent")
	}
	if NewFatalError(ErrFatalInput, "").Silent() {
		t.Error("fatal error with cause should not be silent")
	}
}
