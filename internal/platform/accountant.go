// Package platform accounts for marketplace sales, where an order is booked
// as a pending credit and cash arrives later as a net settlement.
//
// A settlement closes every pending order of its platform at once. The
// difference between the pending gross and the cash received is recorded as
// an unconfirmed commission debit for the owner to verify.
package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

const (
	// DefaultSettlementConfidence applies when the parser gave none
	DefaultSettlementConfidence = 0.95

	// CommissionConfidence marks commission as inferred, not observed
	CommissionConfidence = 0.80

	// DefaultSummaryDays is the default summary window
	DefaultSummaryDays = 7
)

// Store is the ledger access the accountant needs
type Store interface {
	InsertTransaction(ctx context.Context, txn models.StoredTransaction) (int64, error)
	SettlePlatform(ctx context.Context, settlement models.Settlement) (models.SettlementResult, error)
	SumByCategory(ctx context.Context, category, prefix string, since time.Time) (decimal.Decimal, error)
}

// Summary aggregates a platform's activity over a window
type Summary struct {
	Platform    string          `json:"platform"`
	Days        int             `json:"days"`
	Pending     decimal.Decimal `json:"pending"`
	Settled     decimal.Decimal `json:"settled"`
	Commission  decimal.Decimal `json:"commission"`
	Returns     decimal.Decimal `json:"returns"`
	NetReceived decimal.Decimal `json:"net_received"`
}

// Accountant books platform orders, settlements and returns
type Accountant struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

// NewAccountant creates an accountant over store
func NewAccountant(store Store, log logger.Logger) *Accountant {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Accountant{
		store:  store,
		logger: log.WithComponent("platform"),
		now:    time.Now,
	}
}

// LogPlatformOrder stores an order notification as an unconfirmed pending
// credit. The order value is not cash yet.
func (a *Accountant) LogPlatformOrder(ctx context.Context, c models.Candidate, platform, original string) (int64, error) {
	if platform == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "platform", "", nil)
	}

	order := models.NewCandidate(models.TypeCredit, c.Amount, models.MethodPlatform, c.Confidence)
	order.Counterparty = fmt.Sprintf("%s Order #%s", platform, c.OrderID)
	order.Category = models.CategoryPlatformPending
	order.ReferenceID = c.OrderID
	order.OrderID = c.OrderID
	order.Items = c.Items
	order.Description = c.Items
	order.TransactionDate = a.dateOf(c)

	id, err := a.store.InsertTransaction(ctx, models.StoredTransaction{
		Candidate:       order,
		Source:          models.SourceNotification,
		OriginalMessage: original,
	})
	if err != nil {
		return 0, err
	}

	a.logger.WithFields(logger.Fields{
		"platform": platform,
		"order_id": c.OrderID,
		"amount":   order.Amount.StringFixed(2),
		"id":       id,
	}).Info("Logged pending platform order")
	return id, nil
}

// LogPlatformSettlement reconciles a payout against every pending order of
// platform. Commission is stored only when positive.
func (a *Accountant) LogPlatformSettlement(ctx context.Context, c models.Candidate, platform, original string) (models.SettlementResult, error) {
	confidence := c.Confidence
	if confidence <= 0 {
		confidence = DefaultSettlementConfidence
	}

	result, err := a.store.SettlePlatform(ctx, models.Settlement{
		Platform:             platform,
		Net:                  c.Amount,
		Confidence:           confidence,
		CommissionConfidence: CommissionConfidence,
		Date:                 a.dateOf(c),
		OriginalMessage:      original,
	})
	if err != nil {
		return result, err
	}

	if result.Commission.IsPositive() {
		implied := ImpliedRate(result.Gross, result.Commission)
		if !WithinBracket(platform, implied) {
			a.logger.WithFields(logger.Fields{
				"platform": platform,
				"rate":     implied.String(),
				"gross":    result.Gross.StringFixed(2),
			}).Warn("Implied commission rate outside usual bracket")
		}
	}
	return result, nil
}

// LogReturn stores a platform return as an unconfirmed debit
func (a *Accountant) LogReturn(ctx context.Context, c models.Candidate, platform, original string) (int64, error) {
	if platform == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "platform", "", nil)
	}

	ret := models.NewCandidate(models.TypeDebit, c.Amount, models.MethodPlatform, c.Confidence)
	ret.Counterparty = fmt.Sprintf("%s Return #%s", platform, c.OrderID)
	ret.Category = models.CategoryPlatformReturn
	ret.ReferenceID = c.OrderID
	ret.OrderID = c.OrderID
	ret.TransactionDate = a.dateOf(c)

	id, err := a.store.InsertTransaction(ctx, models.StoredTransaction{
		Candidate:       ret,
		Source:          models.SourceNotification,
		OriginalMessage: original,
	})
	if err != nil {
		return 0, err
	}

	a.logger.WithFields(logger.Fields{
		"platform": platform,
		"order_id": c.OrderID,
		"amount":   ret.Amount.StringFixed(2),
	}).Info("Logged platform return")
	return id, nil
}

// PlatformSummary totals the last days of activity for platform.
// NetReceived is settled minus commission minus returns.
func (a *Accountant) PlatformSummary(ctx context.Context, platform string, days int) (Summary, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	since := models.StartOfDay(a.now()).AddDate(0, 0, -days)
	summary := Summary{Platform: platform, Days: days}

	sums := []struct {
		category string
		into     *decimal.Decimal
	}{
		{models.CategoryPlatformPending, &summary.Pending},
		{models.CategoryPlatformSettlement, &summary.Settled},
		{models.CategoryPlatformCommission, &summary.Commission},
		{models.CategoryPlatformReturn, &summary.Returns},
	}
	for _, s := range sums {
		total, err := a.store.SumByCategory(ctx, s.category, platform, since)
		if err != nil {
			return summary, err
		}
		*s.into = total
	}

	summary.NetReceived = summary.Settled.Sub(summary.Commission).Sub(summary.Returns)
	return summary, nil
}

func (a *Accountant) dateOf(c models.Candidate) time.Time {
	if c.TransactionDate.IsZero() {
		return a.now()
	}
	return c.TransactionDate
}
