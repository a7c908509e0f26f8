package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// Store is the part of the ledger store the engine reads and writes
type Store interface {
	FindActiveByReference(ctx context.Context, ref string) (*models.StoredTransaction, error)
	FindDedupByHash(ctx context.Context, hash string) (*models.DedupEntry, error)
	FindFuzzyCandidate(ctx context.Context, amount decimal.Decimal, t models.TxnType, excludeSource models.Source, at time.Time, window time.Duration) (*models.StoredTransaction, error)
	AddDedupEntry(ctx context.Context, entry models.DedupEntry) error
}

// Result reports whether a candidate was already seen
type Result struct {
	IsDupe        bool          `json:"is_dupe"`
	Tier          Tier          `json:"tier,omitempty"`
	MatchedID     int64         `json:"matched_id,omitempty"`
	MatchedSource models.Source `json:"matched_source,omitempty"`
	Confidence    float64       `json:"confidence,omitempty"`
}

// Engine runs the three dedup tiers against the store
type Engine struct {
	store  Store
	config *Config
	logger logger.Logger
	now    func() time.Time
}

// NewEngine creates a dedup engine. A nil config uses DefaultConfig.
func NewEngine(store Store, config *Config, log logger.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		store:  store,
		config: config,
		logger: log.WithComponent("dedup"),
		now:    time.Now,
	}
}

// IsDuplicate checks c, arriving from source, against the ledger
func (e *Engine) IsDuplicate(ctx context.Context, c models.Candidate, source models.Source) (Result, error) {
	if c.ReferenceID != "" {
		match, err := e.store.FindActiveByReference(ctx, c.ReferenceID)
		if err != nil {
			return Result{}, errors.IngestionError(errors.CodeDedupFailed, "reference_match", err)
		}
		if match != nil {
			return e.matched(TierReference, match.ID, match.Source, e.config.ReferenceConfidence, c), nil
		}
	}

	hash := Fingerprint(c, e.now)
	entry, err := e.store.FindDedupByHash(ctx, hash)
	if err != nil {
		return Result{}, errors.IngestionError(errors.CodeDedupFailed, "fingerprint_match", err)
	}
	if entry != nil {
		return e.matched(TierFingerprint, entry.TransactionID, entry.Source, e.config.FingerprintConfidence, c), nil
	}

	at := c.TransactionDate
	if at.IsZero() {
		at = e.now()
	}
	match, err := e.store.FindFuzzyCandidate(ctx, c.Amount, c.Type, source, at, e.config.FuzzyWindow)
	if err != nil {
		return Result{}, errors.IngestionError(errors.CodeDedupFailed, "fuzzy_match", err)
	}
	if match == nil {
		return Result{}, nil
	}

	if c.Counterparty != "" && match.Counterparty != "" {
		similarity := NameSimilarity(c.Counterparty, match.Counterparty)
		if similarity < e.config.NameVetoThreshold {
			e.logger.WithFields(logger.Fields{
				"matched_id":   match.ID,
				"counterparty": c.Counterparty,
				"matched_name": match.Counterparty,
				"similarity":   fmt.Sprintf("%.2f", similarity),
			}).Debug("Fuzzy match vetoed by counterparty name")
			return Result{}, nil
		}
	}

	return e.matched(TierFuzzy, match.ID, match.Source, e.config.FuzzyConfidence, c), nil
}

func (e *Engine) matched(tier Tier, id int64, source models.Source, confidence float64, c models.Candidate) Result {
	e.logger.WithFields(logger.Fields{
		"tier":           tier.String(),
		"matched_id":     id,
		"matched_source": source,
		"amount":         c.Amount.StringFixed(2),
	}).Debug("Duplicate detected")

	return Result{
		IsDupe:        true,
		Tier:          tier,
		MatchedID:     id,
		MatchedSource: source,
		Confidence:    confidence,
	}
}

// RecordTransaction logs the fingerprint of a stored transaction so later
// sightings from any channel match it
func (e *Engine) RecordTransaction(ctx context.Context, c models.Candidate, source models.Source, txnID int64) error {
	err := e.store.AddDedupEntry(ctx, models.DedupEntry{
		Hash:          Fingerprint(c, e.now),
		Source:        source,
		TransactionID: txnID,
	})
	if err != nil {
		return errors.IngestionError(errors.CodeDedupFailed, "record_transaction", err)
	}
	return nil
}

// Fingerprint is the SHA-256 hex of "amount|YYYY-MM-DD|reference" with the
// amount in two fixed decimals. Candidates without a date use today.
func Fingerprint(c models.Candidate, now func() time.Time) string {
	date := c.TransactionDate
	if date.IsZero() {
		date = now()
	}
	raw := strings.Join([]string{
		c.Amount.StringFixed(2),
		date.Format(models.DateLayout),
		c.ReferenceID,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
