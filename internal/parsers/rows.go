package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

// Document is the outcome of reading one uploaded file or OCR text
type Document struct {
	Name    string
	Rows    []models.Candidate
	Skipped []*errors.RowError
}

// Len returns the number of parsed rows
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

var (
	reRowDate      = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	reRowNumber    = regexp.MustCompile(`^\d{1,3}(?:,\d{2,3})*(?:\.\d{1,2})?$|^\d+(?:\.\d{1,2})?$`)
	reColumnSplit  = regexp.MustCompile(`\s{2,}|\t`)
	reRowRef       = regexp.MustCompile(`(?i)(?:UPI[\s/:-]*|ref[\s:]*|txn[\s:]*|chq[\s:]*|cheque[\s:]*)(\d{6,12})`)
	rePassbookCue  = regexp.MustCompile(`(?i)\b(?:cr|credit|deposit|received|by)\b`)
	reStatementCue = regexp.MustCompile(`(?i)\b(?:cr|credit|deposit|received)\b`)
)

// rowDate reads a day-first date token. Two-digit years above 50 belong to
// the 1900s.
func rowDate(m []string, loc *time.Location) (time.Time, bool) {
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if year > 50 {
			year += 1900
		} else {
			year += 2000
		}
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func rowNumber(token string) (decimal.Decimal, bool) {
	token = strings.TrimSpace(token)
	if token == "-" {
		return decimal.Zero, true
	}
	if !reRowNumber.MatchString(token) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(token, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// classifyColumns turns the numbers of a ledger row into a direction and
// amount. Three or more numbers are debit, credit, balance. Fewer are
// amount then balance, and cue decides the direction.
func classifyColumns(nums []decimal.Decimal, description string, cue *regexp.Regexp) (models.TxnType, decimal.Decimal) {
	if len(nums) >= 3 {
		debit, credit := nums[0], nums[1]
		switch {
		case credit.IsPositive() && debit.IsZero():
			return models.TypeCredit, credit
		case debit.IsPositive():
			return models.TypeDebit, debit
		default:
			return models.TypeCredit, credit
		}
	}
	if description != "" && cue.MatchString(description) {
		return models.TypeCredit, nums[0]
	}
	return models.TypeDebit, nums[0]
}

func rowCandidate(t models.TxnType, amount decimal.Decimal, date time.Time, description string) models.Candidate {
	c := models.NewCandidate(t, amount, models.MethodOther, 0)
	c.TransactionDate = date
	c.Description = description
	if m := reRowRef.FindStringSubmatch(description); m != nil {
		c.ReferenceID = m[1]
		c.Method = models.MethodUPI
	}
	return c
}

// ParsePassbookRows reads OCR text of a passbook page. A line needs a date
// token and at least one amount to count as a row.
func ParsePassbookRows(text string, loc *time.Location) *Document {
	doc := &Document{Name: "passbook"}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dm := reRowDate.FindStringSubmatchIndex(line)
		if dm == nil {
			continue
		}
		date, ok := rowDate(submatches(line, dm), loc)
		if !ok {
			doc.Skipped = append(doc.Skipped, errors.RowDateError(doc.Name, i+1, "date", line[dm[0]:dm[1]]))
			continue
		}

		var (
			nums  []decimal.Decimal
			words []string
		)
		for _, token := range strings.Fields(line[dm[1]:]) {
			if reRowDate.MatchString(token) {
				continue
			}
			if n, ok := rowNumber(token); ok {
				if n.GreaterThanOrEqual(decimal.NewFromInt(1)) || n.IsZero() {
					nums = append(nums, n)
				}
				continue
			}
			words = append(words, token)
		}
		if len(nums) == 0 {
			doc.Skipped = append(doc.Skipped, errors.RowSkippedError(doc.Name, i+1, line))
			continue
		}

		description := strings.Join(words, " ")
		t, amount := classifyColumns(nums, description, rePassbookCue)
		if !amount.IsPositive() {
			doc.Skipped = append(doc.Skipped, errors.RowAmountError(doc.Name, i+1, "amount", amount.String()))
			continue
		}
		doc.Rows = append(doc.Rows, rowCandidate(t, amount, date, description))
	}
	return doc
}

// ParseStatementRows reads text extracted from a PDF statement, where
// columns are separated by tabs or runs of spaces.
func ParseStatementRows(text string, loc *time.Location) *Document {
	doc := &Document{Name: "statement"}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !reRowDate.MatchString(line) {
			continue
		}

		var columns []string
		for _, col := range reColumnSplit.Split(line, -1) {
			if col = strings.TrimSpace(col); col != "" {
				columns = append(columns, col)
			}
		}
		if len(columns) < 3 {
			continue
		}

		dateCol := -1
		for j, col := range columns {
			if reRowDate.MatchString(col) {
				dateCol = j
				break
			}
		}
		date, ok := rowDate(reRowDate.FindStringSubmatch(columns[dateCol]), loc)
		if !ok {
			doc.Skipped = append(doc.Skipped, errors.RowDateError(doc.Name, i+1, "date", columns[dateCol]))
			continue
		}

		var (
			nums  []decimal.Decimal
			words []string
		)
		for _, col := range columns[dateCol+1:] {
			if n, ok := rowNumber(col); ok {
				nums = append(nums, n)
				continue
			}
			words = append(words, col)
		}
		if len(nums) == 0 {
			doc.Skipped = append(doc.Skipped, errors.RowSkippedError(doc.Name, i+1, line))
			continue
		}

		description := strings.Join(words, " ")
		t, amount := classifyColumns(nums, description, reStatementCue)
		if !amount.IsPositive() {
			doc.Skipped = append(doc.Skipped, errors.RowAmountError(doc.Name, i+1, "amount", amount.String()))
			continue
		}
		doc.Rows = append(doc.Rows, rowCandidate(t, amount, date, description))
	}
	return doc
}

func submatches(s string, idx []int) []string {
	out := make([]string, len(idx)/2)
	for i := range out {
		if idx[2*i] >= 0 {
			out[i] = s[idx[2*i]:idx[2*i+1]]
		}
	}
	return out
}

// String summarizes the document for logs
func (d *Document) String() string {
	return fmt.Sprintf("%s: %d rows, %d skipped", d.Name, len(d.Rows), len(d.Skipped))
}
