package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sonoweb/internal/media"
	"sonoweb/internal/table"
)

func TestMapError_ImporterTypes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unknown kind", fmt.Errorf("%w: %q", table.ErrUnknownKind, "xml"), "IMP001"},
		{"delimiter mismatch", &table.DelimiterError{Kind: table.KindCSV, Tried: []rune{',', ';'}}, "IMP002"},
		{"read failure", &table.ReadError{Path: "data.csv", Err: errors.New("permission denied")}, "IMP003"},
		{"open failure", &table.OpenError{Path: "data.csv", Err: errors.New("no data in file")}, "IMP004"},
		{"wrapped read failure", fmt.Errorf("import: %w", &table.ReadError{Path: "x", Err: errors.New("boom")}), "IMP003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.code {
				t.Errorf("MapError(%v).Code = %s, want %s", tt.err, got.Code, tt.code)
			}
		})
	}
}

func TestMapError_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"busy", ErrTooManyJobs, "JOB001"},
		{"job not found", fmt.Errorf("%w: abc", ErrJobNotFound), "JOB002"},
		{"cancelled", context.Canceled, "JOB003"},
		{"timed out", context.DeadlineExceeded, "JOB004"},
		{"no file", ErrNoFile, "FILE004"},
		{"media gone", fmt.Errorf("%w: a.wav", media.ErrNotFound), "MED001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.code {
				t.Errorf("MapError(%v).Code = %s, want %s", tt.err, got.Code, tt.code)
			}
		})
	}
}

func TestMapError_Patterns(t *testing.T) {
	tests := []struct {
		errStr string
		code   string
	}{
		{"column not found: \"Flux\"", "IMP005"},
		{"column 5 out of range (table has 2 columns)", "IMP005"},
		{"file too large", "FILE001"},
		{"rate limit exceeded", "RATE001"},
		{"something else entirely", "ERR000"},
	}

	for _, tt := range tests {
		if got := MapError(errors.New(tt.errStr)); got.Code != tt.code {
			t.Errorf("MapError(%q).Code = %s, want %s", tt.errStr, got.Code, tt.code)
		}
	}
}

func TestMapError_Nil(t *testing.T) {
	if got := MapError(nil); got.Code != "" {
		t.Errorf("MapError(nil) = %+v, want zero value", got)
	}
}

func TestFormatUserError(t *testing.T) {
	out := FormatUserError(ErrTooManyJobs)
	if !strings.Contains(out, "JOB001") {
		t.Errorf("FormatUserError missing code: %q", out)
	}
	if !strings.Contains(out, "busy") {
		t.Errorf("FormatUserError missing message: %q", out)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if !IsUserFacing(&table.DelimiterError{Kind: table.KindText, Tried: []rune{'\t', ' '}}) {
		t.Error("delimiter error should be user facing")
	}
	if IsUserFacing(errors.New("pq: internal scribble")) {
		t.Error("unknown error should not be user facing")
	}
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
}
