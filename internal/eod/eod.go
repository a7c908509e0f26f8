// Package eod runs the end-of-day check-in: a localized summary of the day
// and a single-turn reading of the owner's reply.
package eod

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/logger"
)

// ObservationType marks gap records that the health checker reads back
const ObservationType = "eod_reconciliation"

// GapPercentageKey is the observation property holding the missed share
const GapPercentageKey = "gap_percentage"

// gapObservationTTL bounds how long a gap keeps influencing health checks
const gapObservationTTL = 7 * 24 * time.Hour

// Action tells the caller what to do after a reply
type Action string

const (
	ActionClosed      Action = "closed"
	ActionGapFound    Action = "gap_found"
	ActionCorrections Action = "corrections"
	ActionAdditional  Action = "additional"
)

// Store is the ledger access the reconciler needs
type Store interface {
	DailyTotals(ctx context.Context, date time.Time) (models.DailyTotals, error)
	AddObservation(ctx context.Context, obs models.Observation) (int64, error)
}

// Summary is the day's totals with the rendered owner message
type Summary struct {
	Date        string          `json:"date"`
	Text        string          `json:"text"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	Net         decimal.Decimal `json:"net"`
	Count       int             `json:"count"`
}

// Outcome is the result of processing a reply. Message is empty for
// ActionAdditional: the caller routes the text through normal ingestion.
type Outcome struct {
	Action      Action          `json:"action"`
	Gap         decimal.Decimal `json:"gap"`
	OwnerTotal  decimal.Decimal `json:"owner_total"`
	Captured    decimal.Decimal `json:"captured"`
	Corrections string          `json:"corrections,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// Reconciler builds summaries and reads replies
type Reconciler struct {
	store   Store
	catalog *i18n.Catalog
	logger  logger.Logger
	now     func() time.Time
}

// NewReconciler creates a reconciler
func NewReconciler(store Store, catalog *i18n.Catalog, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Reconciler{
		store:   store,
		catalog: catalog,
		logger:  log.WithComponent("eod"),
		now:     time.Now,
	}
}

// GenerateSummary totals the active transactions dated date
func (r *Reconciler) GenerateSummary(ctx context.Context, date time.Time, lang string) (Summary, error) {
	totals, err := r.store.DailyTotals(ctx, date)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Date:        date.Format(models.DateLayout),
		TotalCredit: totals.Credit,
		TotalDebit:  totals.Debit,
		Net:         totals.Net(),
		Count:       totals.Count,
	}
	s.Text = r.catalog.Render(lang, "eod.summary", i18n.Vars{
		"credit_total": FormatIndianNumber(s.TotalCredit),
		"debit_total":  FormatIndianNumber(s.TotalDebit),
		"net":          FormatIndianNumber(s.Net),
		"txn_count":    strconv.Itoa(s.Count),
	})
	return s, nil
}

// ProcessReconciliation classifies reply and answers it. A different total
// is compared with the credits captured for date and the gap is recorded as
// an observation.
func (r *Reconciler) ProcessReconciliation(ctx context.Context, reply string, date time.Time, lang string) (Outcome, error) {
	intent := ClassifyResponse(reply)
	log := r.logger.WithFields(logger.Fields{
		"date":   date.Format(models.DateLayout),
		"intent": intent.Kind,
	})

	switch intent.Kind {
	case IntentConfirmed:
		log.Info("Day closed by owner")
		return Outcome{Action: ActionClosed, Message: r.catalog.Text(lang, "eod.closed")}, nil

	case IntentDifferentTotal:
		totals, err := r.store.DailyTotals(ctx, date)
		if err != nil {
			return Outcome{}, err
		}
		gap := intent.Amount.Sub(totals.Credit)
		out := Outcome{
			Action:     ActionGapFound,
			Gap:        gap,
			OwnerTotal: intent.Amount,
			Captured:   totals.Credit,
			Message: r.catalog.Render(lang, "eod.gap", i18n.Vars{
				"gap": FormatIndianNumber(gap.Abs()),
			}),
		}
		if err := r.recordGap(ctx, date, out); err != nil {
			log.WithError(err).Warn("Failed to record reconciliation gap")
		}
		log.WithField("gap", gap.StringFixed(2)).Info("Owner total differs from captured credits")
		return out, nil

	case IntentCorrections:
		log.Info("Owner sent corrections")
		return Outcome{
			Action:      ActionCorrections,
			Corrections: intent.Corrections,
			Message:     r.catalog.Text(lang, "eod.corrections_ack"),
		}, nil

	default:
		return Outcome{Action: ActionAdditional}, nil
	}
}

// GapPercentage is the share of the owner's total that was not captured,
// from 0 to 100
func GapPercentage(ownerTotal, gap decimal.Decimal) float64 {
	if !ownerTotal.IsPositive() || !gap.IsPositive() {
		return 0
	}
	pct, _ := gap.Div(ownerTotal).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	if pct > 100 {
		return 100
	}
	return pct
}

func (r *Reconciler) recordGap(ctx context.Context, date time.Time, out Outcome) error {
	pct := GapPercentage(out.OwnerTotal, out.Gap)
	expires := r.now().Add(gapObservationTTL)
	_, err := r.store.AddObservation(ctx, models.Observation{
		Type: ObservationType,
		Content: fmt.Sprintf("Owner reported %s for %s, captured %s",
			FormatIndianNumber(out.OwnerTotal), date.Format(models.DateLayout), FormatIndianNumber(out.Captured)),
		Properties: map[string]interface{}{
			GapPercentageKey: pct,
			"gap":            out.Gap.StringFixed(2),
			"date":           date.Format(models.DateLayout),
		},
		Confidence: 1.0,
		Source:     string(models.SourceEOD),
		ExpiresAt:  &expires,
	})
	return err
}
