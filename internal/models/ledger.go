package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Categories written by the platform accountant and the importers
const (
	CategoryPlatformPending    = "platform_pending"
	CategoryPlatformSettled    = "platform_settled"
	CategoryPlatformSettlement = "platform_settlement"
	CategoryPlatformCommission = "platform_commission"
	CategoryPlatformReturn     = "platform_return"
)

// NotificationStatus is the outcome recorded in the idempotency log
type NotificationStatus string

const (
	StatusCaptured  NotificationStatus = "captured"
	StatusDuplicate NotificationStatus = "duplicate"
	StatusSkipped   NotificationStatus = "skipped"
	StatusError     NotificationStatus = "error"
)

// NotificationLogEntry is one processed raw event
type NotificationLogEntry struct {
	Hash          string             `json:"hash"`
	Package       string             `json:"package_name"`
	Status        NotificationStatus `json:"status"`
	TransactionID int64              `json:"transaction_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// NotificationStats counts idempotency log outcomes over a window
type NotificationStats struct {
	Captured   int `json:"captured"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// Total returns the number of logged events
func (s NotificationStats) Total() int {
	return s.Captured + s.Duplicates + s.Skipped + s.Errors
}

// DedupEntry is one sighting of a fingerprint
type DedupEntry struct {
	Hash          string `json:"hash"`
	Source        Source `json:"source"`
	TransactionID int64  `json:"transaction_id"`
}

// Contact is a known customer or supplier
type Contact struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// VPAMapping ties a payment identity to a contact
type VPAMapping struct {
	VPA         string `json:"vpa"`
	ContactID   int64  `json:"contact_id"`
	ContactName string `json:"contact_name"`
}

// DailyTotals aggregates active transactions of one calendar date
type DailyTotals struct {
	Credit decimal.Decimal `json:"credit"`
	Debit  decimal.Decimal `json:"debit"`
	Count  int             `json:"count"`
}

// Net returns credits minus debits
func (d DailyTotals) Net() decimal.Decimal {
	return d.Credit.Sub(d.Debit)
}

// Settlement is a platform payout to reconcile against pending orders
type Settlement struct {
	Platform             string
	Net                  decimal.Decimal
	Confidence           float64
	CommissionConfidence float64
	Date                 time.Time
	OriginalMessage      string
}

// SettlementResult reports what a settlement reconciled
type SettlementResult struct {
	SettlementID  int64           `json:"settlement_id"`
	CommissionID  int64           `json:"commission_id,omitempty"`
	OrdersSettled int             `json:"orders_settled"`
	Gross         decimal.Decimal `json:"gross"`
	Net           decimal.Decimal `json:"net"`
	Commission    decimal.Decimal `json:"commission"`
}

// Observation is a note surfaced to the owner later, such as a health
// report or a reconciliation gap
type Observation struct {
	ID         int64                  `json:"id"`
	Type       string                 `json:"type"`
	Content    string                 `json:"content"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Confidence float64                `json:"confidence"`
	Source     string                 `json:"source,omitempty"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	IsResolved bool                   `json:"is_resolved"`
}

// Float reads a numeric property, reporting false when absent
func (o *Observation) Float(key string) (float64, bool) {
	v, ok := o.Properties[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
