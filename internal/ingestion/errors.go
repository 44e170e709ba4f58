package ingestion

import (
	"errors"
	"fmt"
)

// Ingestion errors.
var (
	// ErrMissingColumn is returned when a CSV header lacks a required field under every alias.
	ErrMissingColumn = errors.New("missing required column")

	// ErrEmptyInput is returned for a CSV with no header row.
	ErrEmptyInput = errors.New("empty input")

	// ErrRateLimited is returned when the pricing API keeps answering 429 after all retries.
	ErrRateLimited = errors.New("rate limited by pricing api")
)

// maxValueLen bounds the offending value echoed back in a ValidationError.
const maxValueLen = 100

// ValidationError describes one rejected (or warned-about) field of one row.
// Row is the 1-based CSV line number, or the 0-based record index for API pages.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
}

// Issues collects the errors and warnings raised while validating one record.
type Issues struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether the record passed validation. Warnings do not fail a record.
func (i *Issues) OK() bool {
	return len(i.Errors) == 0
}

func (i *Issues) errorf(row int, field, value, format string, args ...any) {
	i.Errors = append(i.Errors, newValidationError(row, field, value, fmt.Sprintf(format, args...)))
}

func (i *Issues) warnf(row int, field, value, format string, args ...any) {
	i.Warnings = append(i.Warnings, newValidationError(row, field, value, fmt.Sprintf(format, args...)))
}

func newValidationError(row int, field, value, msg string) ValidationError {
	if len(value) > maxValueLen {
		value = value[:maxValueLen]
	}
	return ValidationError{Row: row, Field: field, Value: value, Message: msg}
}
