package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "parse error",
			category:   CategoryParse,
			code:       CodeHeaderNotFound,
			message:    "no header",
			cause:      nil,
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AppError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.ExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.ExitCode())
			}
			if err.Error() != tt.message {
				t.Errorf("expected error string %s, got %s", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a captured stack trace")
			}
		})
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/path/to/file").
		WithContext("line", 42).
		WithSuggestion("check file path")

	if err.Context["file"] != "/path/to/file" {
		t.Errorf("expected file context '/path/to/file', got %v", err.Context["file"])
	}
	if err.Context["line"] != 42 {
		t.Errorf("expected line context 42, got %v", err.Context["line"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestIngestionErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       ErrorCode
		fileScoped bool
	}{
		{"decoding", DecodingError("/tmp/a.csv", []string{"gbk", "utf-8"}, nil), CodeDecoding, true},
		{"header", HeaderNotFoundError("/tmp/a.csv", []string{"交易时间"}), CodeHeaderNotFound, true},
		{"amount", MalformedAmountError("/tmp/a.csv", 7, "abc", errors.New("bad")), CodeMalformedAmount, true},
		{"timestamp", InvalidTimestampError("/tmp/a.csv", 8, "yesterday"), CodeInvalidDate, true},
		{"schema", SchemaValidationError([]string{"amount"}, ""), CodeSchemaValidation, false},
		{"no data", NoDataError(0), CodeNoData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if IsFileScoped(tt.err) != tt.fileScoped {
				t.Errorf("expected IsFileScoped=%v for %s", tt.fileScoped, tt.code)
			}
			wrapped := fmt.Errorf("loading: %w", tt.err)
			if !IsCode(wrapped, tt.code) {
				t.Errorf("expected IsCode to see %s through wrapping", tt.code)
			}
		})
	}

	schema := SchemaValidationError([]string{"amount", "category"}, "")
	if !strings.Contains(schema.Message, "amount, category") {
		t.Errorf("expected missing columns in message, got %s", schema.Message)
	}
}

func TestIsFileScopedPlainError(t *testing.T) {
	if IsFileScoped(errors.New("plain")) {
		t.Error("plain errors must not be treated as file scoped")
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*AppError{
		DecodingError("a.csv", []string{"gbk"}, nil),
		DecodingError("b.csv", []string{"gbk"}, nil),
		HeaderNotFoundError("c.csv", []string{"交易时间"}),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 3 {
		t.Errorf("expected total 3, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryParse] != 3 {
		t.Errorf("expected 3 parse errors, got %d", summary.ByCategory[CategoryParse])
	}
	if !summary.HasCode(CodeHeaderNotFound) {
		t.Error("expected to have header_not_found code")
	}
	if summary.HasCode(CodeNoData) {
		t.Error("expected not to have no_data code")
	}
	expected := "3 errors occurred (decoding_error: 2, header_not_found: 1)"
	if summary.Error() != expected {
		t.Errorf("expected %q, got %q", expected, summary.Error())
	}

	empty := NewErrorSummary(nil)
	if empty.Error() != "no errors" || empty.Errors == nil {
		t.Errorf("unexpected empty summary: %+v", empty)
	}
}

func TestWrapIfNeeded(t *testing.T) {
	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("expected nil for nil error")
	}

	original := NoDataError(2)
	if got := WrapIfNeeded(fmt.Errorf("ctx: %w", original), CategoryInternal, CodeUnexpectedError, "x"); got != original {
		t.Errorf("expected the existing AppError to be returned, got %v", got)
	}

	plain := WrapIfNeeded(errors.New("boom"), CategoryInternal, CodeUnexpectedError, "wrapped")
	if plain.Code != CodeUnexpectedError || plain.Cause == nil {
		t.Errorf("expected plain error to be wrapped, got %+v", plain)
	}
}
