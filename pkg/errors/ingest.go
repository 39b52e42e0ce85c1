package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DecodingError reports that none of the candidate encodings could decode a file
func DecodingError(file string, tried []string, err error) *AppError {
	return build(err, CategoryParse, CodeDecoding,
		fmt.Sprintf("cannot decode %s with any of [%s]", filepath.Base(file), strings.Join(tried, ", "))).
		WithSuggestion("re-export the bill from the payment app without converting it").
		WithContext("file", file).
		WithContext("encodings", tried)
}

// HeaderNotFoundError reports that no line of the file carries the header markers
func HeaderNotFoundError(file string, markers []string) *AppError {
	return New(CategoryParse, CodeHeaderNotFound,
		fmt.Sprintf("no header row containing %s in %s", strings.Join(markers, " + "), filepath.Base(file))).
		WithSuggestion("make sure the file is an unmodified bill export").
		WithContext("file", file).
		WithContext("markers", markers)
}

// MalformedAmountError reports an amount cell that is not numeric after cleaning
func MalformedAmountError(file string, line int, value string, err error) *AppError {
	return build(err, CategoryParse, CodeMalformedAmount,
		fmt.Sprintf("malformed amount %q in %s at line %d", value, filepath.Base(file), line)).
		WithSuggestion("amounts must be decimal numbers, optionally prefixed with a currency sign").
		WithContext("file", file).
		WithContext("line", line).
		WithContext("value", value)
}

// InvalidTimestampError reports a transaction time that matches no known layout
func InvalidTimestampError(file string, line int, value string) *AppError {
	return New(CategoryParse, CodeInvalidDate,
		fmt.Sprintf("invalid transaction time %q in %s at line %d", value, filepath.Base(file), line)).
		WithSuggestion("use YYYY-MM-DD HH:MM:SS timestamps").
		WithContext("file", file).
		WithContext("line", line).
		WithContext("value", value)
}

// SchemaValidationError reports canonical columns missing from the merged table
func SchemaValidationError(missing []string, detail string) *AppError {
	message := fmt.Sprintf("canonical table is missing required columns: %s", strings.Join(missing, ", "))
	if len(missing) == 0 {
		message = fmt.Sprintf("canonical table failed validation: %s", detail)
	}
	return New(CategoryValidation, CodeSchemaValidation, message).
		WithSuggestion("re-upload valid bill exports").
		WithContext("missing_columns", missing)
}

// NoDataError reports that a session file set produced no usable rows
func NoDataError(files int) *AppError {
	return New(CategoryValidation, CodeNoData,
		fmt.Sprintf("no bill data found in %d file(s)", files)).
		WithSuggestion("upload at least one Alipay or WeChat Pay bill export").
		WithContext("files", files)
}

// IsFileScoped reports whether err only invalidates the file that produced it,
// so a multi-file load may skip that file and continue.
func IsFileScoped(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeDecoding, CodeHeaderNotFound, CodeMalformedAmount, CodeInvalidDate,
		CodeFileRead, CodeFileNotFound, CodeUnsupportedFormat:
		return true
	}
	return false
}
