package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIngestError(t *testing.T) {
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
			code:       CodeInvalidFormat,
			message:    "invalid format",
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
		{
			name:       "storage error",
			category:   CategoryStorage,
			code:       CodeWriteFailed,
			message:    "write failed",
			cause:      nil,
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *IngestError
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
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}

			want := tt.message
			if tt.cause != nil {
				want = fmt.Sprintf("%s: %v", tt.message, tt.cause)
			}
			if err.Error() != want {
				t.Errorf("expected error string %q, got %q", want, err.Error())
			}

			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestIngestErrorWithContext(t *testing.T) {
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

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/statement.csv", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Context["file_path"] != "/test/statement.csv" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Suggestion == "" {
			t.Error("expected suggestion to be set")
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeMissingColumn, "csv_export", 1, "", "", nil)

		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["document"] != "csv_export" {
			t.Errorf("expected document context, got %v", err.Context["document"])
		}
		if !strings.Contains(err.Message, "no amount, debit or credit column") {
			t.Errorf("unexpected message %q", err.Message)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeInvalidAmount, "amount", "-5", nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "amount" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
	})

	t.Run("StorageError", func(t *testing.T) {
		cause := errors.New("database is locked")
		err := StorageError(CodeWriteFailed, "insert transaction", cause)

		if err.Category != CategoryStorage {
			t.Errorf("expected storage category, got %s", err.Category)
		}
		if err.Context["operation"] != "insert transaction" {
			t.Errorf("expected operation context, got %v", err.Context["operation"])
		}
		if !errors.Is(err, cause) {
			t.Error("expected errors.Is to find the cause")
		}
	})

	t.Run("IngestionError", func(t *testing.T) {
		err := IngestionError(CodeBatchRolledBack, "bulk import", errors.New("constraint failed"))

		if err.Category != CategoryIngestion {
			t.Errorf("expected ingestion category, got %s", err.Category)
		}
		if err.GetExitCode() != 5 {
			t.Errorf("expected exit code 5, got %d", err.GetExitCode())
		}
	})

	t.Run("ChannelError", func(t *testing.T) {
		err := ChannelError(CodeChannelUnavailable, "notification", nil)

		if err.Category != CategoryChannel {
			t.Errorf("expected channel category, got %s", err.Category)
		}
		if err.GetExitCode() != 6 {
			t.Errorf("expected exit code 6, got %d", err.GetExitCode())
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*IngestError{
		New(CategoryFile, CodeFileNotFound, "error 1"),
		New(CategoryFile, CodeFilePermission, "error 2"),
		New(CategoryParse, CodeInvalidFormat, "error 3"),
		New(CategoryParse, CodeInvalidData, "error 4"),
		New(CategoryChannel, CodeChannelMalformed, "error 5"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 5 {
		t.Errorf("expected total 5, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryFile] != 2 {
		t.Errorf("expected 2 file errors, got %d", summary.ByCategory[CategoryFile])
	}
	if summary.ByCategory[CategoryParse] != 2 {
		t.Errorf("expected 2 parse errors, got %d", summary.ByCategory[CategoryParse])
	}
	if !summary.HasCode(CodeChannelMalformed) {
		t.Error("expected to have channel_malformed code")
	}
	if summary.HasCategory(CategoryStorage) {
		t.Error("expected not to have storage category")
	}
	if len(summary.SampleErrors) != 5 {
		t.Errorf("expected 5 sample errors, got %d", len(summary.SampleErrors))
	}
	if summary.GetExitCode() != 6 {
		t.Errorf("expected exit code 6, got %d", summary.GetExitCode())
	}
	if !strings.Contains(summary.Error(), "5 errors occurred") {
		t.Errorf("unexpected summary string %q", summary.Error())
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestAsIngestError(t *testing.T) {
	ingestErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")
	wrapped := fmt.Errorf("outer: %w", ingestErr)

	if extracted, ok := AsIngestError(ingestErr); !ok || extracted != ingestErr {
		t.Error("expected AsIngestError to extract IngestError")
	}
	if extracted, ok := AsIngestError(wrapped); !ok || extracted != ingestErr {
		t.Error("expected AsIngestError to walk the chain")
	}
	if _, ok := AsIngestError(genericErr); ok {
		t.Error("expected AsIngestError to return false for generic error")
	}
	if _, ok := AsIngestError(nil); ok {
		t.Error("expected AsIngestError to return false for nil")
	}
	if !IsIngestError(ingestErr) || IsIngestError(genericErr) {
		t.Error("IsIngestError mismatch")
	}
	if !HasCode(wrapped, CodeFileNotFound) || HasCode(genericErr, CodeFileNotFound) {
		t.Error("HasCode mismatch")
	}
}

func TestWrapIfNeeded(t *testing.T) {
	ingestErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(ingestErr, CategoryParse, CodeInvalidFormat, "wrapped") != ingestErr {
		t.Error("expected WrapIfNeeded to return original IngestError")
	}

	result := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if result.Cause != genericErr {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}
	if result.Category != CategoryParse {
		t.Error("expected wrapped error to have correct category")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		category     ErrorCategory
		expectedCode int
	}{
		{CategoryFile, 2},
		{CategoryParse, 3},
		{CategoryValidation, 3},
		{CategoryConfiguration, 4},
		{CategoryStorage, 5},
		{CategoryIngestion, 5},
		{CategoryInternal, 5},
		{CategoryChannel, 6},
		{ErrorCategory("other"), 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := New(tt.category, "test_code", "test message")
			if err.GetExitCode() != tt.expectedCode {
				t.Errorf("expected exit code %d for category %s, got %d",
					tt.expectedCode, tt.category, err.GetExitCode())
			}
		})
	}
}

func TestRowError(t *testing.T) {
	err := RowAmountError("csv_export", 7, "amount", "abc")

	if err.Code != CodeInvalidAmount {
		t.Errorf("expected invalid_amount, got %s", err.Code)
	}
	if !err.Recoverable {
		t.Error("expected row errors to be recoverable")
	}
	if !strings.Contains(err.Error(), "at csv_export row 7 column 'amount'") {
		t.Errorf("unexpected error string %q", err.Error())
	}

	detail := err.GetDetailedError()
	for _, want := range []string{"Document: csv_export", "Row: 7", "Value: 'abc'", "Examples:"} {
		if !strings.Contains(detail, want) {
			t.Errorf("expected detail to contain %q, got:\n%s", want, detail)
		}
	}
}

func TestRowErrorCollector(t *testing.T) {
	collector := NewRowErrorCollector(3)

	if collector.HasErrors() {
		t.Error("new collector should be empty")
	}
	if !collector.Add(nil) {
		t.Error("adding nil should continue")
	}
	if !collector.Add(RowDateError("csv_export", 2, "date", "yesterday")) {
		t.Error("expected to continue after first error")
	}
	if !collector.Add(RowSkippedError("passbook_photo", 3, "BALANCE B/F")) {
		t.Error("expected to continue after second error")
	}
	if collector.Add(RowAmountError("csv_export", 4, "amount", "x")) {
		t.Error("expected to stop at the limit")
	}
	if collector.Add(RowAmountError("csv_export", 5, "amount", "y")) {
		t.Error("expected to stay stopped past the limit")
	}

	if got := len(collector.GetErrors()); got != 3 {
		t.Errorf("expected 3 errors, got %d", got)
	}

	summary := collector.GetSummary()
	if summary.ByCode[CodeInvalidDate] != 1 || summary.ByCode[CodeInvalidAmount] != 1 {
		t.Errorf("unexpected code counts %v", summary.ByCode)
	}

	out := FormatRowErrorsForUser(collector.GetErrors())
	if !strings.HasPrefix(out, "Skipped 3 rows:") {
		t.Errorf("unexpected formatted output:\n%s", out)
	}
}
