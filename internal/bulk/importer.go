// Package bulk imports batches of historical transactions from statements,
// passbook photos, screenshots and file exports.
package bulk

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// Store is the ledger access the importer needs
type Store interface {
	FindActiveByReference(ctx context.Context, ref string) (*models.StoredTransaction, error)
	FindByAmountDateType(ctx context.Context, amount decimal.Decimal, date time.Time, t models.TxnType) (*models.StoredTransaction, error)
	InsertBatch(ctx context.Context, txns []models.StoredTransaction) ([]int64, error)
}

// Config holds import settings
type Config struct {
	Table *parsers.TableConfig
	// LogInterval is how often progress is logged during large batches
	LogInterval time.Duration
}

// DefaultConfig returns the default import configuration
func DefaultConfig() *Config {
	return &Config{
		Table:       parsers.DefaultTableConfig(),
		LogInterval: 5 * time.Second,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Table == nil {
		return fmt.Errorf("table configuration is required")
	}
	if c.LogInterval < 0 {
		return fmt.Errorf("log interval cannot be negative, got %v", c.LogInterval)
	}
	return c.Table.Validate()
}

// DuplicateRow explains why a row of the batch was not imported. MatchedID
// is set for ledger matches, MatchedRow for repeats within the batch.
type DuplicateRow struct {
	Row        int             `json:"row"`
	Reason     DuplicateReason `json:"reason"`
	MatchedID  int64           `json:"matched_id,omitempty"`
	MatchedRow int             `json:"matched_row,omitempty"`
}

// Result summarizes one imported batch
type Result struct {
	BatchID        string         `json:"batch_id"`
	DocumentType   string         `json:"document_type"`
	Total          int            `json:"total"`
	Imported       int            `json:"imported"`
	Duplicates     int            `json:"duplicates"`
	Language       string         `json:"language"`
	TransactionIDs []int64        `json:"transaction_ids,omitempty"`
	DuplicateRows  []DuplicateRow `json:"duplicate_rows,omitempty"`
}

// Importer writes parsed document rows to the ledger
type Importer struct {
	store    Store
	catalog  *i18n.Catalog
	config   *Config
	table    *parsers.TableParser
	logger   logger.Logger
	progress io.Writer
	now      func() time.Time
	newID    func() string
}

// NewImporter creates an importer. A nil config uses DefaultConfig.
func NewImporter(store Store, catalog *i18n.Catalog, config *Config, log logger.Logger) *Importer {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Importer{
		store:   store,
		catalog: catalog,
		config:  config,
		table:   parsers.NewTableParser(config.Table, log),
		logger:  log.WithComponent("bulk"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SetProgressOutput draws a progress bar on w during ImportBatch. Pass nil
// to turn it off.
func (i *Importer) SetProgressOutput(w io.Writer) {
	i.progress = w
}

// ImportBatch stores every row that is not already in the ledger and does
// not repeat an earlier row of the same batch. The rows are written in one
// store transaction: either all of them land or none do.
func (i *Importer) ImportBatch(ctx context.Context, rows []models.Candidate, docType, lang string) (Result, error) {
	result := Result{
		BatchID:      "batch_" + i.newID(),
		DocumentType: docType,
		Total:        len(rows),
		Language:     i18n.Normalize(lang),
	}
	log := i.logger.WithFields(logger.Fields{
		"batch_id":      result.BatchID,
		"document_type": docType,
		"rows":          len(rows),
	})

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "import " + docType,
		Total:       int64(len(rows)),
		LogInterval: i.config.LogInterval,
		Logger:      i.logger,
		BarWriter:   i.progress,
	})

	inBatch := repeats(DetectDuplicates(rows))
	confidence := Confidence(docType)
	today := i.now()

	var pending []models.StoredTransaction
	for idx, row := range rows {
		if err := ctx.Err(); err != nil {
			tracker.CompleteWithError(err)
			return result, err
		}

		if g, ok := inBatch[idx]; ok {
			result.DuplicateRows = append(result.DuplicateRows, DuplicateRow{
				Row: idx, Reason: g.Reason, MatchedRow: g.Rows[0],
			})
			tracker.Increment()
			continue
		}

		if row.TransactionDate.IsZero() {
			row.TransactionDate = today
		}

		dup, err := i.findExisting(ctx, row)
		if err != nil {
			tracker.CompleteWithError(err)
			return result, err
		}
		if dup != nil {
			dup.Row = idx
			result.DuplicateRows = append(result.DuplicateRows, *dup)
			tracker.Increment()
			continue
		}

		if row.Method == "" {
			row.Method = models.MethodOther
		}
		row.Confidence = confidence
		pending = append(pending, models.StoredTransaction{
			Candidate:   row,
			Source:      models.SourceBankImport,
			IsConfirmed: false,
			BatchID:     result.BatchID,
		})
		tracker.Increment()
	}
	result.Duplicates = len(result.DuplicateRows)

	if len(pending) > 0 {
		ids, err := i.store.InsertBatch(ctx, pending)
		if err != nil {
			tracker.CompleteWithError(err)
			log.WithError(err).Error("Batch rolled back")
			return result, errors.IngestionError(errors.CodeBatchRolledBack, "import_batch", err).
				WithContext("batch_id", result.BatchID).
				WithContext("rows", len(pending))
		}
		result.TransactionIDs = ids
		result.Imported = len(ids)
	}
	tracker.Complete()

	log.WithFields(logger.Fields{
		"imported":   result.Imported,
		"duplicates": result.Duplicates,
	}).Info("Batch imported")

	return result, nil
}

// findExisting matches a row against the ledger by reference first, then by
// amount, date and direction
func (i *Importer) findExisting(ctx context.Context, row models.Candidate) (*DuplicateRow, error) {
	if row.ReferenceID != "" {
		match, err := i.store.FindActiveByReference(ctx, row.ReferenceID)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return &DuplicateRow{Reason: ReasonLedgerReference, MatchedID: match.ID}, nil
		}
	}

	match, err := i.store.FindByAmountDateType(ctx, row.Amount, row.TransactionDate, row.Type)
	if err != nil {
		return nil, err
	}
	if match != nil {
		return &DuplicateRow{Reason: ReasonLedgerAmount, MatchedID: match.ID}, nil
	}
	return nil, nil
}

// Message renders the owner-facing summary of an import
func (i *Importer) Message(result Result, lang string) string {
	docType := result.DocumentType
	if docType == "" {
		docType = "document"
	}
	name, ok := i.catalog.Lookup(lang, "import.doc_types."+docType)
	if !ok {
		name = docType
	}
	return i.catalog.Render(lang, "import.result", i18n.Vars{
		"imported": strconv.Itoa(result.Imported),
		"type":     name,
		"dupes":    strconv.Itoa(result.Duplicates),
	})
}
