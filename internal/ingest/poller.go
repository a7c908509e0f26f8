// Package ingest runs live events (app notifications, bank SMS and forwarded
// messages) through parsing, identity resolution, platform accounting,
// cross-channel dedup and confidence scoring into the ledger.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/dedup"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/internal/resolver"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// Store is the ledger access the poller needs
type Store interface {
	FindNotification(ctx context.Context, hash string) (*models.NotificationLogEntry, error)
	LogNotification(ctx context.Context, entry models.NotificationLogEntry) (bool, error)
	PruneNotificationLog(ctx context.Context, days int) (int64, error)
	InsertTransaction(ctx context.Context, txn models.StoredTransaction) (int64, error)
}

// Deduplicator decides whether a candidate is already in the ledger
type Deduplicator interface {
	IsDuplicate(ctx context.Context, c models.Candidate, source models.Source) (dedup.Result, error)
	RecordTransaction(ctx context.Context, c models.Candidate, source models.Source, txnID int64) error
}

// ContactResolver maps VPAs to contacts
type ContactResolver interface {
	Resolve(ctx context.Context, vpa string) (resolver.Resolution, bool, error)
	Remember(ctx context.Context, vpa string, contactID int64, name string) error
}

// Accountant books marketplace orders, payouts and returns
type Accountant interface {
	LogPlatformOrder(ctx context.Context, c models.Candidate, platform, original string) (int64, error)
	LogPlatformSettlement(ctx context.Context, c models.Candidate, platform, original string) (models.SettlementResult, error)
	LogReturn(ctx context.Context, c models.Candidate, platform, original string) (int64, error)
}

// Dependencies are the collaborators of a Poller. All are required.
type Dependencies struct {
	Store      Store
	Registry   *parsers.Registry
	Dedup      Deduplicator
	Resolver   ContactResolver
	Accountant Accountant
}

func (d Dependencies) validate() error {
	missing := ""
	switch {
	case d.Store == nil:
		missing = "store"
	case d.Registry == nil:
		missing = "registry"
	case d.Dedup == nil:
		missing = "dedup"
	case d.Resolver == nil:
		missing = "resolver"
	case d.Accountant == nil:
		missing = "accountant"
	}
	if missing != "" {
		return errors.ValidationError(errors.CodeMissingField, missing, nil, nil).
			WithSuggestion("construct every poller dependency before creating the poller")
	}
	return nil
}

// Config holds poller settings
type Config struct {
	// RetentionDays bounds how long idempotency log entries are kept
	RetentionDays int
	// Location is used for event timestamps without a zone
	Location *time.Location
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 30,
		Location:      time.Local,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", c.RetentionDays)
	}
	return nil
}

// StatusAlreadySeen marks an event whose hash is already logged. It is never
// written to the log itself.
const StatusAlreadySeen models.NotificationStatus = "already_seen"

// Reconciliation reports what a platform payout settled
type Reconciliation struct {
	OrdersReconciled int             `json:"orders_reconciled"`
	Commission       decimal.Decimal `json:"commission_amount"`
	CommissionID     int64           `json:"commission_txn_id,omitempty"`
}

// Result is the outcome of one event. TransactionID is zero unless Status
// is captured.
type Result struct {
	TransactionID  int64                     `json:"transaction_id,omitempty"`
	Status         models.NotificationStatus `json:"status"`
	App            string                    `json:"app"`
	Category       string                    `json:"category"`
	Amount         decimal.Decimal           `json:"amount"`
	Type           string                    `json:"type,omitempty"`
	Counterparty   string                    `json:"counterparty,omitempty"`
	OrderID        string                    `json:"order_id,omitempty"`
	Confidence     float64                   `json:"confidence,omitempty"`
	Decision       string                    `json:"decision,omitempty"`
	AlertLevel     parsers.AlertLevel        `json:"alert_level,omitempty"`
	DuplicateOf    int64                     `json:"duplicate_of,omitempty"`
	DuplicateTier  string                    `json:"duplicate_tier,omitempty"`
	Reconciliation *Reconciliation           `json:"reconciliation,omitempty"`
}

// Captured reports whether the event produced a ledger row
func (r Result) Captured() bool {
	return r.Status == models.StatusCaptured
}

// Summary is the outcome of one poll cycle
type Summary struct {
	Timestamp  time.Time `json:"timestamp"`
	Seen       int       `json:"seen"`
	Monitored  int       `json:"monitored"`
	Processed  int       `json:"processed"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Pruned     int64     `json:"pruned,omitempty"`
	Results    []Result  `json:"transactions"`
}

// Immediate returns captured results the owner should hear about now
func (s Summary) Immediate() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.AlertLevel == parsers.AlertImmediate {
			out = append(out, r)
		}
	}
	return out
}

// NeedsConfirmation returns captured results waiting for the owner
func (s Summary) NeedsConfirmation() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Decision == "ask_owner" {
			out = append(out, r)
		}
	}
	return out
}

// Poller processes live events one at a time
type Poller struct {
	deps   Dependencies
	source NotificationSource
	config *Config
	logger logger.Logger
	now    func() time.Time
}

// NewPoller creates a poller reading notifications from source
func NewPoller(deps Dependencies, source NotificationSource, config *Config, log logger.Logger) (*Poller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "poller", config.RetentionDays, err)
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Poller{
		deps:   deps,
		source: source,
		config: config,
		logger: log.WithComponent("poller"),
		now:    time.Now,
	}, nil
}

// Poll reads the current notifications and processes those from monitored
// apps in order. A failed read is logged and yields an empty summary. A
// failure on one event is logged against it and the rest still run.
func (p *Poller) Poll(ctx context.Context) (Summary, error) {
	summary := Summary{Timestamp: p.now()}
	if p.source == nil {
		return summary, nil
	}

	list, err := p.source.Notifications(ctx)
	if err != nil {
		p.logger.WithError(err).Error("Failed to read notifications")
		return summary, nil
	}
	summary.Seen = len(list)

	for _, n := range list {
		if _, ok := p.deps.Registry.Lookup(n.Package); !ok {
			continue
		}
		summary.Monitored++

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res, err := recovered("process_notification", func() (Result, error) {
			return p.ProcessNotification(ctx, n)
		})
		if err != nil {
			p.fail(ctx, hashNotification(n), n.Package, err)
			summary.Errors++
			continue
		}
		summary.Add(res)
	}

	p.prune(ctx, &summary)

	p.logger.WithFields(logger.Fields{
		"seen":       summary.Seen,
		"monitored":  summary.Monitored,
		"captured":   len(summary.Results),
		"duplicates": summary.Duplicates,
		"skipped":    summary.Skipped,
		"errors":     summary.Errors,
	}).Info("Poll complete")

	return summary, nil
}

// ProcessBatchSMS runs a list of inbox messages through ProcessSMS with the
// same per-item isolation as Poll
func (p *Poller) ProcessBatchSMS(ctx context.Context, list []models.SMS) (Summary, error) {
	summary := Summary{Timestamp: p.now(), Seen: len(list), Monitored: len(list)}
	for _, sms := range list {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := recovered("process_sms", func() (Result, error) {
			return p.ProcessSMS(ctx, sms)
		})
		if err != nil {
			p.fail(ctx, hashSMS(sms), sms.Sender, err)
			summary.Errors++
			continue
		}
		summary.Add(res)
	}
	p.prune(ctx, &summary)
	return summary, nil
}

// recovered runs fn and turns a panic into an internal error for that event
func recovered(operation string, fn func() (Result, error)) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.InternalError(errors.CodeUnexpectedError, operation, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

// Add counts r. Events already seen are ignored.
func (s *Summary) Add(r Result) {
	switch r.Status {
	case models.StatusCaptured:
		s.Processed++
		s.Results = append(s.Results, r)
	case models.StatusDuplicate:
		s.Processed++
		s.Duplicates++
	case models.StatusSkipped:
		s.Processed++
		s.Skipped++
	}
}

func (p *Poller) fail(ctx context.Context, hash, channel string, cause error) {
	p.logger.WithError(cause).WithField("channel", channel).Error("Failed to process event")
	// best effort: the event is not retried on the next poll
	if _, err := p.deps.Store.LogNotification(ctx, models.NotificationLogEntry{
		Hash:    hash,
		Package: channel,
		Status:  models.StatusError,
	}); err != nil {
		p.logger.WithError(err).Warn("Failed to log event error")
	}
}

// prune failures are logged and retried on the next cycle
func (p *Poller) prune(ctx context.Context, summary *Summary) {
	_ = logger.TimedOperation("prune_notification_log", p.logger, func() error {
		n, err := p.deps.Store.PruneNotificationLog(ctx, p.config.RetentionDays)
		if err != nil {
			return err
		}
		summary.Pruned = n
		return nil
	})
}
