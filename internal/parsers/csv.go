package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// TableConfig holds configuration for reading tabular exports
type TableConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool
	// MaxRowErrors stops parsing after this many bad rows. Zero means no limit.
	MaxRowErrors int
	Location     *time.Location
}

// DefaultTableConfig returns a configuration with sensible defaults
func DefaultTableConfig() *TableConfig {
	return &TableConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000, // 1MB per field
		ValidateEncoding: true,
		MaxRowErrors:     100,
		Location:         time.Local,
	}
}

// Validate checks the configuration
func (c *TableConfig) Validate() error {
	if c.Delimiter == 0 || c.Delimiter == '\n' || c.Delimiter == '\r' || c.Delimiter == '"' {
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}
	if c.MaxFieldSize < 0 {
		return fmt.Errorf("max field size cannot be negative, got %d", c.MaxFieldSize)
	}
	if c.MaxRowErrors < 0 {
		return fmt.Errorf("max row errors cannot be negative, got %d", c.MaxRowErrors)
	}
	return nil
}

// Column roles recognized in export headers
const (
	RoleDate         = "date"
	RoleAmount       = "amount"
	RoleDebit        = "debit"
	RoleCredit       = "credit"
	RoleDescription  = "description"
	RoleReference    = "reference"
	RoleCounterparty = "counterparty"
	RoleType         = "type"
)

var columnRoles = []struct {
	role    string
	pattern *regexp.Regexp
}{
	{RoleDate, regexp.MustCompile(`^(?:date|txn_date|transaction_date|value_date|posting_date|dated)$`)},
	{RoleAmount, regexp.MustCompile(`^(?:amount|txn_amount|transaction_amount|total|value)$`)},
	{RoleDebit, regexp.MustCompile(`^(?:debit|dr|withdrawal|debit_amount|withdrawn)$`)},
	{RoleCredit, regexp.MustCompile(`^(?:credit|cr|deposit|credit_amount|deposited)$`)},
	{RoleDescription, regexp.MustCompile(`^(?:description|particulars|narration|details|remarks|memo|note)$`)},
	{RoleReference, regexp.MustCompile(`^(?:reference|ref|ref_id|reference_id|reference_no|txn_ref|utr|rrn|cheque_no)$`)},
	{RoleCounterparty, regexp.MustCompile(`^(?:counterparty|party|name|customer|payee|payer|beneficiary|merchant)$`)},
	{RoleType, regexp.MustCompile(`^(?:type|txn_type|transaction_type|cr_dr|dr_cr)$`)},
}

var (
	reHeaderJunk = regexp.MustCompile(`[^a-z0-9]+`)
	reTypeDebit  = regexp.MustCompile(`(?i)\b(?:debit|dr|withdrawal|expense|paid|sent)\b`)
	reTypeCredit = regexp.MustCompile(`(?i)\b(?:credit|cr|deposit|income|received)\b`)
	tableMethods = []struct {
		re     *regexp.Regexp
		method models.Method
	}{
		{regexp.MustCompile(`(?i)\bUPI\b`), models.MethodUPI},
		{regexp.MustCompile(`(?i)\bNEFT\b`), models.MethodNEFT},
		{regexp.MustCompile(`(?i)\bIMPS\b`), models.MethodIMPS},
		{regexp.MustCompile(`(?i)\bRTGS\b`), models.MethodRTGS},
		{regexp.MustCompile(`(?i)\bATM\b`), models.MethodATM},
		{regexp.MustCompile(`(?i)\bPOS\b`), models.MethodPOS},
		{regexp.MustCompile(`(?i)\bcash\b`), models.MethodCash},
		{regexp.MustCompile(`(?i)\bcheque?\b`), models.MethodCheque},
	}
)

// NormalizeHeader lowercases a header and collapses everything that is not a
// letter or digit into single underscores.
func NormalizeHeader(h string) string {
	h = reHeaderJunk.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "_")
	return strings.Trim(h, "_")
}

// ColumnMap maps roles to column indexes
type ColumnMap map[string]int

// Has reports whether a role was found
func (m ColumnMap) Has(role string) bool {
	_, ok := m[role]
	return ok
}

// Cell returns the trimmed value for a role, or "" when the role is absent
// or the record is short.
func (m ColumnMap) Cell(record []string, role string) string {
	i, ok := m[role]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// DetectColumns assigns roles to headers. The first header matching a role
// wins.
func DetectColumns(headers []string) ColumnMap {
	m := make(ColumnMap)
	for i, h := range headers {
		name := NormalizeHeader(h)
		for _, cr := range columnRoles {
			if m.Has(cr.role) {
				continue
			}
			if cr.pattern.MatchString(name) {
				m[cr.role] = i
			}
		}
	}
	return m
}

// TableParser reads CSV and spreadsheet exports into candidates
type TableParser struct {
	config *TableConfig
	logger logger.Logger
	now    func() time.Time
}

// NewTableParser creates a TableParser with the given configuration
func NewTableParser(config *TableConfig, log logger.Logger) *TableParser {
	if config == nil {
		config = DefaultTableConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	log = log.WithComponent("table_parser")
	log.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"validate_encoding": config.ValidateEncoding,
		"max_field_size":    config.MaxFieldSize,
	}).Debug("Created table parser")

	return &TableParser{
		config: config,
		logger: log,
		now:    time.Now,
	}
}

// ParseCSVFile opens and parses a CSV export
func (p *TableParser) ParseCSVFile(ctx context.Context, path string) (*Document, error) {
	data, err := readDocument(path)
	if err != nil {
		p.logger.WithError(err).WithField("file_path", path).Error("Failed to open CSV file")
		return nil, err
	}
	return p.parseCSV(ctx, data, path)
}

// ParseCSV parses CSV data. Quoted fields may contain the delimiter.
func (p *TableParser) ParseCSV(ctx context.Context, r io.Reader, name string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, name, err)
	}
	return p.parseCSV(ctx, data, name)
}

func (p *TableParser) parseCSV(ctx context.Context, data []byte, name string) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if p.config.ValidateEncoding {
		if err := validateEncoding(data, name); err != nil {
			p.logger.WithError(err).WithField("document", name).Error("File encoding validation failed")
			return nil, err
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.config.Delimiter
	reader.Comment = p.config.Comment
	reader.TrimLeadingSpace = p.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if pe, ok := err.(*csv.ParseError); ok {
				line = pe.Line
			}
			return nil, errors.ParseError(errors.CodeInvalidFormat, name, line, "", "", err).
				WithSuggestion("Check the file format and ensure it's a valid CSV")
		}
		records = append(records, record)
	}

	return p.parseTable(ctx, records, name)
}

// parseTable maps a header row plus data rows onto candidates. Both the CSV
// and the spreadsheet readers end here.
func (p *TableParser) parseTable(ctx context.Context, records [][]string, name string) (*Document, error) {
	doc := &Document{Name: name}

	header := -1
	for i, record := range records {
		if !isEmptyRecord(record) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
			WithSuggestion("Ensure the file contains header and data rows")
	}

	columns := DetectColumns(records[header])
	p.logger.WithFields(logger.Fields{
		"document": name,
		"headers":  records[header],
		"roles":    columns,
	}).Debug("Detected column roles")

	if !columns.Has(RoleAmount) && !columns.Has(RoleDebit) && !columns.Has(RoleCredit) {
		return nil, errors.ParseError(errors.CodeMissingColumn, name, header+1, "headers", strings.Join(records[header], ", "), nil).
			WithSuggestion("Add an amount column, or separate debit and credit columns")
	}

	collector := errors.NewRowErrorCollector(p.config.MaxRowErrors)
	today := models.StartOfDay(p.now().In(p.location()))

	for i := header + 1; i < len(records); i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "table_parsing", err)
		}

		record := records[i]
		row := i + 1
		if p.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		if err := p.checkFieldSizes(record, name, row); err != nil {
			return nil, err
		}

		c, rowErr := p.parseRecord(record, columns, today, name, row)
		if rowErr != nil {
			if !collector.Add(rowErr.WithRawLine(strings.Join(record, ","))) {
				p.logger.WithFields(logger.Fields{
					"document":   name,
					"row":        row,
					"row_errors": len(collector.GetErrors()),
				}).Warn("Too many bad rows, stopping")
				break
			}
			if rowErr.Code != errors.CodeInvalidDate {
				continue
			}
		}
		doc.Rows = append(doc.Rows, c)
	}

	doc.Skipped = collector.GetErrors()
	p.logger.WithFields(logger.Fields{
		"document": name,
		"rows":     len(doc.Rows),
		"skipped":  len(doc.Skipped),
	}).Info("Parsed tabular document")

	return doc, nil
}

// parseRecord reads one data row. An unreadable date falls back to today and
// is reported alongside the row; a missing amount drops the row.
func (p *TableParser) parseRecord(record []string, columns ColumnMap, today time.Time, name string, row int) (models.Candidate, *errors.RowError) {
	var (
		t      models.TxnType
		amount decimal.Decimal
	)

	if columns.Has(RoleDebit) || columns.Has(RoleCredit) {
		debit := cellAmount(columns.Cell(record, RoleDebit))
		credit := cellAmount(columns.Cell(record, RoleCredit))
		switch {
		case credit.IsPositive() && debit.IsZero():
			t, amount = models.TypeCredit, credit
		case debit.IsPositive():
			t, amount = models.TypeDebit, debit
		case credit.IsPositive():
			t, amount = models.TypeCredit, credit
		}
	} else {
		raw := columns.Cell(record, RoleAmount)
		amount = cellAmount(raw)
		kind := columns.Cell(record, RoleType)
		switch {
		case amount.IsNegative():
			t, amount = models.TypeDebit, amount.Abs()
		case reTypeDebit.MatchString(kind):
			t = models.TypeDebit
		case reTypeCredit.MatchString(kind):
			t = models.TypeCredit
		default:
			t = models.TypeCredit
		}
	}

	if !amount.IsPositive() {
		column := RoleAmount
		value := columns.Cell(record, RoleAmount)
		if !columns.Has(RoleAmount) {
			column = RoleDebit + "/" + RoleCredit
			value = columns.Cell(record, RoleDebit) + "/" + columns.Cell(record, RoleCredit)
		}
		return models.Candidate{}, errors.RowAmountError(name, row, column, value)
	}

	description := columns.Cell(record, RoleDescription)
	reference := columns.Cell(record, RoleReference)

	c := models.NewCandidate(t, amount, tableMethod(description+" "+reference), 0)
	c.Description = description
	c.ReferenceID = reference
	c.Counterparty = columns.Cell(record, RoleCounterparty)

	rawDate := columns.Cell(record, RoleDate)
	date, err := models.ParseIndianDate(rawDate, p.location())
	if err != nil {
		c.TransactionDate = today
		return c, errors.RowDateError(name, row, RoleDate, rawDate)
	}
	c.TransactionDate = date
	return c, nil
}

func (p *TableParser) location() *time.Location {
	if p.config.Location != nil {
		return p.config.Location
	}
	return time.Local
}

func (p *TableParser) checkFieldSizes(record []string, name string, row int) error {
	if p.config.MaxFieldSize <= 0 {
		return nil
	}
	for i, field := range record {
		if len(field) > p.config.MaxFieldSize {
			p.logger.WithFields(logger.Fields{
				"row":        row,
				"column":     i,
				"field_size": len(field),
				"max_size":   p.config.MaxFieldSize,
			}).Warn("Field exceeds maximum size limit")

			return errors.ParseError(
				errors.CodeInvalidData,
				name,
				row,
				fmt.Sprintf("field_%d", i),
				truncate(field, 50)+"...",
				fmt.Errorf("field size limit exceeded"),
			).WithSuggestion(fmt.Sprintf("Reduce field size to under %d bytes", p.config.MaxFieldSize))
		}
	}
	return nil
}

// cellAmount reads a money cell; blanks and junk read as zero
func cellAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := models.ParseSignedAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func tableMethod(text string) models.Method {
	for _, tm := range tableMethods {
		if tm.re.MatchString(text) {
			return tm.method
		}
	}
	return models.MethodOther
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// readDocument loads an uploaded file, mapping OS failures onto file errors
func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	return data, nil
}

// validateEncoding checks that the first 100 lines are valid UTF-8
func validateEncoding(data []byte, name string) error {
	for lineNum, line := range bytes.SplitN(data, []byte("\n"), 101) {
		if lineNum == 100 {
			break
		}
		if !utf8.Valid(line) {
			return errors.ParseError(
				errors.CodeEncodingError,
				name,
				lineNum+1,
				"encoding",
				"",
				fmt.Errorf("invalid UTF-8 encoding detected"),
			).WithSuggestion("Save the file in UTF-8 encoding and try again")
		}
	}
	return nil
}
