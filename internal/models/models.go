package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date layout used in the ledger
const DateLayout = "2006-01-02"

// TxnType is the direction of money movement
type TxnType string

const (
	// TypeCredit is money coming in
	TypeCredit TxnType = "credit"
	// TypeDebit is money going out
	TypeDebit TxnType = "debit"
)

// String returns the string representation of TxnType
func (t TxnType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid
func (t TxnType) IsValid() bool {
	return t == TypeCredit || t == TypeDebit
}

// ParseTxnType parses a direction from free-form cell text
func ParseTxnType(s string) (TxnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "credit", "cr", "c":
		return TypeCredit, nil
	case "debit", "dr", "d":
		return TypeDebit, nil
	default:
		return "", fmt.Errorf("invalid transaction type '%s': must be credit or debit", s)
	}
}

// Method is the payment rail a transaction moved over
type Method string

const (
	MethodUPI      Method = "UPI"
	MethodNEFT     Method = "NEFT"
	MethodIMPS     Method = "IMPS"
	MethodRTGS     Method = "RTGS"
	MethodATM      Method = "ATM"
	MethodPOS      Method = "POS"
	MethodCash     Method = "CASH"
	MethodCheque   Method = "CHEQUE"
	MethodBank     Method = "BANK"
	MethodWallet   Method = "WALLET"
	MethodCard     Method = "CARD"
	MethodPlatform Method = "PLATFORM"
	MethodOther    Method = "OTHER"
)

var validMethods = map[Method]bool{
	MethodUPI: true, MethodNEFT: true, MethodIMPS: true, MethodRTGS: true,
	MethodATM: true, MethodPOS: true, MethodCash: true, MethodCheque: true,
	MethodBank: true, MethodWallet: true, MethodCard: true, MethodPlatform: true,
	MethodOther: true,
}

// IsValid reports whether m is a known method
func (m Method) IsValid() bool {
	return validMethods[m]
}

// ParseMethod maps stored or user text to a Method, defaulting to OTHER
func ParseMethod(s string) Method {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if m.IsValid() {
		return m
	}
	return MethodOther
}

// Source is the channel a stored transaction arrived through
type Source string

const (
	SourceSMS          Source = "sms"
	SourceNotification Source = "notification"
	SourceForwarded    Source = "forwarded"
	SourceBankImport   Source = "bank_import"
	SourceSystem       Source = "system"
	SourceEOD          Source = "eod"
	SourceManual       Source = "manual"
)

// Candidate is a normalized, not yet stored transaction
type Candidate struct {
	Type            TxnType         `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Counterparty    string          `json:"counterparty,omitempty"`
	CounterpartyID  int64           `json:"counterparty_id,omitempty"`
	Method          Method          `json:"method"`
	ReferenceID     string          `json:"reference_id,omitempty"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     string          `json:"description,omitempty"`
	Confidence      float64         `json:"confidence"`
	Category        string          `json:"category,omitempty"`
	IsSettlement    bool            `json:"is_settlement,omitempty"`
	OrderID         string          `json:"order_id,omitempty"`
	Items           string          `json:"items,omitempty"`
	Account         string          `json:"account,omitempty"`
	Bank            string          `json:"bank,omitempty"`
}

// NewCandidate creates a candidate with the amount rounded to paise
func NewCandidate(txType TxnType, amount decimal.Decimal, method Method, confidence float64) Candidate {
	return Candidate{
		Type:       txType,
		Amount:     amount.Round(2),
		Method:     method,
		Confidence: confidence,
	}
}

// Validate performs basic validation on the Candidate
func (c *Candidate) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", c.Type)
	}

	if !c.Amount.IsPositive() {
		return fmt.Errorf("transaction amount must be positive, got %s", c.Amount.String())
	}

	if !c.Method.IsValid() {
		return fmt.Errorf("invalid method: %s", c.Method)
	}

	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of range [0,1]", c.Confidence)
	}

	return nil
}

// DateKey returns the YYYY-MM-DD calendar date of the candidate
func (c *Candidate) DateKey() string {
	return c.TransactionDate.Format(DateLayout)
}

// String returns a string representation of the Candidate
func (c *Candidate) String() string {
	return fmt.Sprintf("Candidate{%s ₹%s %s, Method: %s, Ref: %s, Date: %s}",
		c.Type, c.Amount.StringFixed(2), c.Counterparty, c.Method, c.ReferenceID, c.DateKey())
}

// MarshalJSON renders the amount as a fixed two-decimal string
func (c Candidate) MarshalJSON() ([]byte, error) {
	type Alias Candidate
	return json.Marshal(&struct {
		Amount          string `json:"amount"`
		TransactionDate string `json:"transaction_date"`
		Alias
	}{
		Amount:          c.Amount.StringFixed(2),
		TransactionDate: c.DateKey(),
		Alias:           Alias(c),
	})
}

// StoredTransaction is a ledger row
type StoredTransaction struct {
	Candidate
	ID              int64     `json:"id"`
	Source          Source    `json:"source"`
	IsConfirmed     bool      `json:"is_confirmed"`
	IsDeleted       bool      `json:"is_deleted"`
	BatchID         string    `json:"batch_id,omitempty"`
	OriginalMessage string    `json:"original_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// String returns a string representation of the StoredTransaction
func (t *StoredTransaction) String() string {
	return fmt.Sprintf("Transaction{ID: %d, %s ₹%s, Source: %s, Confirmed: %t}",
		t.ID, t.Type, t.Amount.StringFixed(2), t.Source, t.IsConfirmed)
}

// MarshalJSON keeps the candidate's amount/date rendering and adds row fields
func (t StoredTransaction) MarshalJSON() ([]byte, error) {
	candidate, err := t.Candidate.MarshalJSON()
	if err != nil {
		return nil, err
	}
	row, err := json.Marshal(struct {
		ID              int64  `json:"id"`
		Source          Source `json:"source"`
		IsConfirmed     bool   `json:"is_confirmed"`
		IsDeleted       bool   `json:"is_deleted"`
		BatchID         string `json:"batch_id,omitempty"`
		OriginalMessage string `json:"original_message,omitempty"`
		CreatedAt       string `json:"created_at"`
		UpdatedAt       string `json:"updated_at"`
	}{
		ID:              t.ID,
		Source:          t.Source,
		IsConfirmed:     t.IsConfirmed,
		IsDeleted:       t.IsDeleted,
		BatchID:         t.BatchID,
		OriginalMessage: t.OriginalMessage,
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       t.UpdatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(candidate, &merged); err != nil {
		return nil, err
	}
	extra := make(map[string]json.RawMessage)
	if err := json.Unmarshal(row, &extra); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Utility functions for type conversion and validation

var (
	currencyPrefix = regexp.MustCompile(`(?i)^(?:rs\.?|inr)\s*`)
	amountCleaner  = strings.NewReplacer("₹", "", "$", "", ",", "", " ", "")
)

// ParseAmount parses a rupee amount such as "₹1,250.50", "Rs. 499" or
// "INR 12,34,567". Zero, negative and unparsable values are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := ParseSignedAmount(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got '%s'", s)
	}
	return d, nil
}

// ParseSignedAmount is ParseAmount without the sign check. A lone "-" reads
// as zero, which is how bank exports mark an empty debit or credit cell.
func ParseSignedAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}
	if s == "-" {
		return decimal.Zero, nil
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, "₹", ""))
	s = currencyPrefix.ReplaceAllString(s, "")
	s = amountCleaner.Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format '%s': %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), nil
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02-01-2006",
	"2-1-2006",
	"02-01-06",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"02 Jan 06",
	"Jan 2, 2006",
}

// ParseIndianDate parses the day-first layouts used by Indian banks as well
// as ISO dates. The result is in loc.
func ParseIndianDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}
	if loc == nil {
		loc = time.Local
	}

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// NormalizeName lowercases and trims a counterparty or contact name
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
