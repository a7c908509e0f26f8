package errors

import (
	"fmt"
	"strings"
)

// RowContext locates a problem inside an imported document
type RowContext struct {
	Document string `json:"document"`
	Row      int    `json:"row"`
	Column   string `json:"column,omitempty"`
	Value    string `json:"value,omitempty"`
	Expected string `json:"expected,omitempty"`
}

// RowError is a recoverable problem with a single document row.
// Rows that fail are skipped; the rest of the batch still imports.
type RowError struct {
	*IngestError
	Row         *RowContext `json:"row"`
	Recoverable bool        `json:"recoverable"`
	RawLine     string      `json:"raw_line,omitempty"`
	Examples    []string    `json:"examples,omitempty"`
}

// Error implements the error interface with the row location appended
func (e *RowError) Error() string {
	if e.Row == nil {
		return e.IngestError.Error()
	}
	location := fmt.Sprintf("at %s row %d", e.Row.Document, e.Row.Row)
	if e.Row.Column != "" {
		location += fmt.Sprintf(" column '%s'", e.Row.Column)
	}
	return e.IngestError.Error() + " " + location
}

// GetDetailedError returns a detailed multi-line error description
func (e *RowError) GetDetailedError() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("ERROR: %s", e.Message))

	if e.Row != nil {
		lines = append(lines, fmt.Sprintf("  → Document: %s", e.Row.Document))
		lines = append(lines, fmt.Sprintf("  → Row: %d", e.Row.Row))
		if e.Row.Column != "" {
			lines = append(lines, fmt.Sprintf("  → Column: %s", e.Row.Column))
		}
		if e.Row.Value != "" {
			lines = append(lines, fmt.Sprintf("  → Value: '%s'", e.Row.Value))
		}
		if e.Row.Expected != "" {
			lines = append(lines, fmt.Sprintf("  → Expected: %s", e.Row.Expected))
		}
	}

	if e.RawLine != "" {
		lines = append(lines, fmt.Sprintf("  → Content: %s", e.RawLine))
	}

	if e.Suggestion != "" {
		lines = append(lines, fmt.Sprintf("  → Suggestion: %s", e.Suggestion))
	}

	if len(e.Examples) > 0 {
		lines = append(lines, "  → Examples:")
		for _, example := range e.Examples {
			lines = append(lines, fmt.Sprintf("    • %s", example))
		}
	}

	return strings.Join(lines, "\n")
}

// NewRowError creates a new row error
func NewRowError(code ErrorCode, row *RowContext, message string, cause error) *RowError {
	base := build(CategoryParse, code, message, cause)

	if row != nil {
		base.WithContext("document", row.Document).
			WithContext("row", row.Row).
			WithContext("column", row.Column).
			WithContext("value", row.Value)
	}

	return &RowError{
		IngestError: base,
		Row:         row,
		Recoverable: true,
	}
}

// WithRawLine attaches the offending source line
func (e *RowError) WithRawLine(line string) *RowError {
	e.RawLine = line
	return e
}

// WithExamples adds example values to help fix the error
func (e *RowError) WithExamples(examples ...string) *RowError {
	e.Examples = examples
	return e
}

// WithSuggestion adds a suggestion and returns the RowError
func (e *RowError) WithSuggestion(suggestion string) *RowError {
	e.IngestError.WithSuggestion(suggestion)
	return e
}

// RowAmountError reports an amount cell that could not be read
func RowAmountError(document string, row int, column string, value string) *RowError {
	ctx := &RowContext{
		Document: document,
		Row:      row,
		Column:   column,
		Value:    value,
		Expected: "positive amount",
	}

	return NewRowError(CodeInvalidAmount, ctx, "invalid amount", nil).
		WithExamples("1250.50", "₹1,250", "Rs. 499", "INR 12,34,567.00").
		WithSuggestion("amounts may carry ₹, Rs or INR and Indian digit grouping")
}

// RowDateError reports a date cell in an unsupported layout
func RowDateError(document string, row int, column string, value string) *RowError {
	ctx := &RowContext{
		Document: document,
		Row:      row,
		Column:   column,
		Value:    value,
		Expected: "YYYY-MM-DD, DD/MM/YYYY or DD Mon YYYY",
	}

	return NewRowError(CodeInvalidDate, ctx, "invalid date", nil).
		WithExamples("2025-01-15", "15/01/2025", "15 Jan 2025").
		WithSuggestion("the row was imported with today's date; correct it if needed")
}

// RowSkippedError reports a row with no usable transaction in it
func RowSkippedError(document string, row int, line string) *RowError {
	ctx := &RowContext{
		Document: document,
		Row:      row,
	}

	return NewRowError(CodeInvalidData, ctx, "row has no transaction amount", nil).
		WithRawLine(line).
		WithSuggestion("header, balance and blank rows are skipped")
}

// RowErrorCollector collects row problems while a document is parsed
type RowErrorCollector struct {
	errors    []*RowError
	maxErrors int
}

// NewRowErrorCollector creates a collector that stops accepting after maxErrors
func NewRowErrorCollector(maxErrors int) *RowErrorCollector {
	return &RowErrorCollector{
		errors:    make([]*RowError, 0),
		maxErrors: maxErrors,
	}
}

// Add records an error and reports whether parsing should continue
func (c *RowErrorCollector) Add(err *RowError) bool {
	if err == nil {
		return true
	}

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}
	c.errors = append(c.errors, err)

	if c.maxErrors > 0 && len(c.errors) >= c.maxErrors {
		return false
	}

	return err.Recoverable
}

// HasErrors returns true if any errors have been collected
func (c *RowErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

// GetErrors returns all collected errors
func (c *RowErrorCollector) GetErrors() []*RowError {
	return c.errors
}

// GetSummary returns an error summary for all collected errors
func (c *RowErrorCollector) GetSummary() *ErrorSummary {
	base := make([]*IngestError, len(c.errors))
	for i, err := range c.errors {
		base[i] = err.IngestError
	}
	return NewErrorSummary(base)
}

// FormatRowErrorsForUser formats row problems for the CLI
func FormatRowErrorsForUser(errs []*RowError) string {
	if len(errs) == 0 {
		return "No row errors"
	}

	if len(errs) == 1 {
		return errs[0].GetDetailedError()
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Skipped %d rows:", len(errs)))

	maxDetailed := 3
	for i, err := range errs {
		if i == maxDetailed {
			lines = append(lines, "")
			lines = append(lines, fmt.Sprintf("... and %d more", len(errs)-maxDetailed))
			break
		}
		lines = append(lines, "")
		lines = append(lines, err.GetDetailedError())
	}

	return strings.Join(lines, "\n")
}
