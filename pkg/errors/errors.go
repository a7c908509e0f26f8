package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryStorage       ErrorCategory = "storage"
	CategoryIngestion     ErrorCategory = "ingestion"
	CategoryChannel       ErrorCategory = "channel"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors
	CodeInvalidFormat       ErrorCode = "invalid_format"
	CodeMissingColumn       ErrorCode = "missing_column"
	CodeInvalidData         ErrorCode = "invalid_data"
	CodeEncodingError       ErrorCode = "encoding_error"
	CodeUnsupportedDocument ErrorCode = "unsupported_document"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Storage errors
	CodeQueryFailed     ErrorCode = "query_failed"
	CodeWriteFailed     ErrorCode = "write_failed"
	CodeMigrationFailed ErrorCode = "migration_failed"
	CodeNotFound        ErrorCode = "not_found"

	// Ingestion errors
	CodeDedupFailed      ErrorCode = "dedup_failed"
	CodeBatchRolledBack  ErrorCode = "batch_rolled_back"
	CodeSettlementFailed ErrorCode = "settlement_failed"

	// Channel errors
	CodeChannelUnavailable ErrorCode = "channel_unavailable"
	CodeChannelMalformed   ErrorCode = "channel_malformed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// IngestError is the base error type for all application errors
type IngestError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *IngestError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *IngestError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryStorage, CategoryIngestion, CategoryInternal:
		return 5
	case CategoryChannel:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *IngestError) WithContext(key string, value interface{}) *IngestError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *IngestError) WithSuggestion(suggestion string) *IngestError {
	e.Suggestion = suggestion
	return e
}

// New creates a new IngestError
func New(category ErrorCategory, code ErrorCode, message string) *IngestError {
	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with IngestError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *IngestError {
	if err == nil {
		return nil
	}

	return &IngestError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *IngestError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// Specific error constructors

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "export the document again from the bank or app"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for an uploaded document
func ParseError(code ErrorCode, document string, line int, column string, value string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in %s at line %d, column '%s': '%s'", document, line, column, value)
		suggestion = "check that the export was not edited by hand"
	case CodeMissingColumn:
		message = fmt.Sprintf("no amount, debit or credit column found in %s", document)
		suggestion = "the header row needs an Amount column or Debit/Credit columns"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s at line %d, column '%s': '%s'", document, line, column, value)
		suggestion = "correct the value or remove the row"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in %s at line %d", document, line)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	case CodeUnsupportedDocument:
		message = fmt.Sprintf("unsupported document type: %s", document)
		suggestion = "use one of csv_export, xlsx_export, ofx_statement, pdf_statement, passbook_photo, app_screenshot"
	default:
		message = fmt.Sprintf("parse error in %s at line %d", document, line)
		suggestion = "check the document format"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("document", document).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be positive, e.g. '1250.50', '₹1,250' or 'Rs.1250'"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use YYYY-MM-DD, DD/MM/YYYY or DD Mon YYYY"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, err).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting with a flag, a config file or an INGESTOR_ environment variable"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings or use default values"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// StorageError creates a ledger store error
func StorageError(code ErrorCode, operation string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeQueryFailed:
		message = fmt.Sprintf("query failed during %s", operation)
		suggestion = "check that the database file is readable"
	case CodeWriteFailed:
		message = fmt.Sprintf("write failed during %s", operation)
		suggestion = "check disk space and that no other process holds a write lock"
	case CodeMigrationFailed:
		message = fmt.Sprintf("schema migration failed during %s", operation)
		suggestion = "restore the database from a backup and retry"
	case CodeNotFound:
		message = fmt.Sprintf("record not found during %s", operation)
		suggestion = "check the transaction id"
	default:
		message = fmt.Sprintf("storage error during %s", operation)
		suggestion = "try again"
	}

	return build(CategoryStorage, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// IngestionError creates a pipeline error
func IngestionError(code ErrorCode, operation string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeDedupFailed:
		message = fmt.Sprintf("duplicate check failed during %s", operation)
		suggestion = "the event was not stored and will be retried on the next poll"
	case CodeBatchRolledBack:
		message = fmt.Sprintf("batch rolled back during %s", operation)
		suggestion = "nothing was imported; fix the cause and import the document again"
	case CodeSettlementFailed:
		message = fmt.Sprintf("platform settlement failed during %s", operation)
		suggestion = "pending orders were left unchanged"
	default:
		message = fmt.Sprintf("ingestion error during %s", operation)
		suggestion = "review the event and try again"
	}

	return build(CategoryIngestion, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ChannelError creates an input channel error
func ChannelError(code ErrorCode, channel string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeChannelUnavailable:
		message = fmt.Sprintf("channel unavailable: %s", channel)
		suggestion = "the next poll will retry"
	case CodeChannelMalformed:
		message = fmt.Sprintf("malformed payload from channel: %s", channel)
		suggestion = "check the exporter that produces this feed"
	default:
		message = fmt.Sprintf("channel error: %s", channel)
		suggestion = "check the channel and try again"
	}

	return build(CategoryChannel, code, message, err).
		WithSuggestion(suggestion).
		WithContext("channel", channel)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *IngestError {
	var message, suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	return build(CategoryInternal, code, message, err).
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*IngestError        `json:"errors"`
	SampleErrors []*IngestError        `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*IngestError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*IngestError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsIngestError checks if an error is an IngestError
func IsIngestError(err error) bool {
	_, ok := err.(*IngestError)
	return ok
}

// AsIngestError extracts an IngestError from an error chain
func AsIngestError(err error) (*IngestError, bool) {
	var ingestErr *IngestError
	if errors.As(err, &ingestErr) {
		return ingestErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	ingestErr, ok := AsIngestError(err)
	return ok && ingestErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already an IngestError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *IngestError {
	if err == nil {
		return nil
	}

	if ingestErr, ok := AsIngestError(err); ok {
		return ingestErr
	}

	return Wrap(err, category, code, message)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
