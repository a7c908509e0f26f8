package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const transactionColumns = `id, type, amount, counterparty_id, counterparty_name, method, source,
	category, description, reference_id, order_id, batch_id, original_message, confidence,
	is_confirmed, is_deleted, transaction_date, occurred_at, created_at, updated_at`

// InsertTransaction stores one transaction and returns its id
func (s *SQLiteStore) InsertTransaction(ctx context.Context, txn models.StoredTransaction) (int64, error) {
	id, err := s.insertTx(ctx, s.db, txn)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(logger.Fields{
		"transaction_id": id,
		"source":         txn.Source,
		"type":           txn.Type,
		"amount":         txn.Amount.StringFixed(2),
	}).Debug("Inserted transaction")

	return id, nil
}

// InsertBatch stores every transaction or none of them
func (s *SQLiteStore) InsertBatch(ctx context.Context, txns []models.StoredTransaction) ([]int64, error) {
	ids := make([]int64, 0, len(txns))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, txn := range txns {
			id, err := s.insertTx(ctx, tx, txn)
			if err != nil {
				if ie, ok := errors.AsIngestError(err); ok {
					ie.WithContext("row", i+1)
				}
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeWriteFailed, "batch insert failed")
	}

	s.logger.WithField("rows", len(ids)).Debug("Inserted batch")
	return ids, nil
}

func (s *SQLiteStore) insertTx(ctx context.Context, q queryer, txn models.StoredTransaction) (int64, error) {
	if err := txn.Candidate.Validate(); err != nil {
		return 0, errors.ValidationError(errors.CodeInvalidData, "transaction", txn.Candidate.String(), err)
	}
	if txn.Source == "" {
		return 0, errors.ValidationError(errors.CodeMissingField, "source", "", nil)
	}

	occurred := txn.TransactionDate
	if occurred.IsZero() {
		occurred = s.now()
	}
	now := s.timestamp()

	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			type, amount, counterparty_id, counterparty_name, method, source,
			category, description, reference_id, order_id, batch_id, original_message,
			confidence, is_confirmed, is_deleted, transaction_date, occurred_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		string(txn.Type),
		txn.Amount.StringFixed(2),
		nullInt(txn.CounterpartyID),
		nullString(txn.Counterparty),
		string(txn.Method),
		string(txn.Source),
		nullString(txn.Category),
		nullString(txn.Description),
		nullString(txn.ReferenceID),
		nullString(txn.OrderID),
		nullString(txn.BatchID),
		nullString(txn.OriginalMessage),
		txn.Confidence,
		boolInt(txn.IsConfirmed),
		occurred.Format(models.DateLayout),
		occurred.UTC().Format(time.RFC3339),
		now,
		now,
	)
	if err != nil {
		return 0, errors.StorageError(errors.CodeWriteFailed, "insert_transaction", err)
	}
	return result.LastInsertId()
}

// GetTransaction loads a transaction by id, including soft-deleted rows
func (s *SQLiteStore) GetTransaction(ctx context.Context, id int64) (*models.StoredTransaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.StorageError(errors.CodeNotFound, "get_transaction", fmt.Errorf("transaction %d", id)).
			WithContext("transaction_id", id)
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "get_transaction", err)
	}
	return txn, nil
}

// FindActiveByReference returns the oldest active transaction carrying ref,
// or nil when there is none
func (s *SQLiteStore) FindActiveByReference(ctx context.Context, ref string) (*models.StoredTransaction, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, nil
	}
	return s.findOne(ctx, "find_by_reference", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE reference_id = ? AND is_deleted = 0
		ORDER BY id LIMIT 1`, ref)
}

// FindByAmountDateType returns an active transaction with the same amount,
// calendar date and direction, or nil
func (s *SQLiteStore) FindByAmountDateType(ctx context.Context, amount decimal.Decimal, date time.Time, t models.TxnType) (*models.StoredTransaction, error) {
	return s.findOne(ctx, "find_by_amount_date_type", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE amount = ? AND transaction_date = ? AND type = ? AND is_deleted = 0
		ORDER BY id LIMIT 1`,
		amount.StringFixed(2), date.Format(models.DateLayout), string(t))
}

// FindFuzzyCandidate returns an active transaction with the same amount and
// direction from another source whose event time is strictly within window
// of at, or nil
func (s *SQLiteStore) FindFuzzyCandidate(ctx context.Context, amount decimal.Decimal, t models.TxnType, excludeSource models.Source, at time.Time, window time.Duration) (*models.StoredTransaction, error) {
	lo := at.Add(-window).UTC().Format(time.RFC3339)
	hi := at.Add(window).UTC().Format(time.RFC3339)
	return s.findOne(ctx, "find_fuzzy", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE amount = ? AND type = ? AND source != ? AND is_deleted = 0
			AND occurred_at > ? AND occurred_at < ?
		ORDER BY id LIMIT 1`,
		amount.StringFixed(2), string(t), string(excludeSource), lo, hi)
}

// ListByDate returns active transactions of one calendar date in event order
func (s *SQLiteStore) ListByDate(ctx context.Context, date time.Time) ([]models.StoredTransaction, error) {
	return s.findAll(ctx, "list_by_date", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE transaction_date = ? AND is_deleted = 0
		ORDER BY occurred_at, id`, date.Format(models.DateLayout))
}

// ListByDateRange returns active transactions with from <= date <= to
func (s *SQLiteStore) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.StoredTransaction, error) {
	return s.findAll(ctx, "list_by_date_range", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE transaction_date >= ? AND transaction_date <= ? AND is_deleted = 0
		ORDER BY transaction_date, occurred_at, id`,
		from.Format(models.DateLayout), to.Format(models.DateLayout))
}

// ListByCounterparty returns the most recent active transactions for a
// counterparty name, matched case-insensitively
func (s *SQLiteStore) ListByCounterparty(ctx context.Context, name string, limit int) ([]models.StoredTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.findAll(ctx, "list_by_counterparty", `
		SELECT `+transactionColumns+` FROM transactions
		WHERE counterparty_name = ? COLLATE NOCASE AND is_deleted = 0
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?`, strings.TrimSpace(name), limit)
}

// DailyTotals sums active credits and debits of one calendar date. Amounts
// are summed as decimals, not in SQL.
func (s *SQLiteStore) DailyTotals(ctx context.Context, date time.Time) (models.DailyTotals, error) {
	totals := models.DailyTotals{Credit: decimal.Zero, Debit: decimal.Zero}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, amount FROM transactions
		WHERE transaction_date = ? AND is_deleted = 0`, date.Format(models.DateLayout))
	if err != nil {
		return totals, errors.StorageError(errors.CodeQueryFailed, "daily_totals", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txType, raw string
		if err := rows.Scan(&txType, &raw); err != nil {
			return totals, errors.StorageError(errors.CodeQueryFailed, "daily_totals", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return totals, errors.StorageError(errors.CodeQueryFailed, "daily_totals", err)
		}
		if models.TxnType(txType) == models.TypeCredit {
			totals.Credit = totals.Credit.Add(amount)
		} else {
			totals.Debit = totals.Debit.Add(amount)
		}
		totals.Count++
	}
	if err := rows.Err(); err != nil {
		return totals, errors.StorageError(errors.CodeQueryFailed, "daily_totals", err)
	}
	return totals, nil
}

// LatestCreatedAt returns when a transaction from source was last stored.
// The bool is false when the source has never produced one.
func (s *SQLiteStore) LatestCreatedAt(ctx context.Context, source models.Source) (time.Time, bool, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM transactions WHERE source = ?`, string(source)).Scan(&latest)
	if err != nil {
		return time.Time{}, false, errors.StorageError(errors.CodeQueryFailed, "latest_created_at", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return parseTimestamp(latest.String), true, nil
}

// SoftDelete flags a transaction as deleted. Rows are never removed.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id int64) error {
	return s.softDeleteTx(ctx, s.db, id)
}

func (s *SQLiteStore) softDeleteTx(ctx context.Context, q queryer, id int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE transactions SET is_deleted = 1, updated_at = ?
		WHERE id = ? AND is_deleted = 0`, s.timestamp(), id)
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "soft_delete", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "soft_delete", err)
	}
	if n == 0 {
		return errors.StorageError(errors.CodeNotFound, "soft_delete", fmt.Errorf("no active transaction %d", id)).
			WithContext("transaction_id", id)
	}
	return nil
}

// CorrectTransaction soft-deletes id and inserts replacement in its place,
// atomically. It returns the new id.
func (s *SQLiteStore) CorrectTransaction(ctx context.Context, id int64, replacement models.StoredTransaction) (int64, error) {
	var newID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.softDeleteTx(ctx, tx, id); err != nil {
			return err
		}
		var err error
		newID, err = s.insertTx(ctx, tx, replacement)
		return err
	})
	if err != nil {
		return 0, errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeWriteFailed, "correction failed")
	}

	s.logger.WithFields(logger.Fields{
		"replaced_id": id,
		"new_id":      newID,
	}).Info("Corrected transaction")

	return newID, nil
}

func (s *SQLiteStore) findOne(ctx context.Context, op, query string, args ...interface{}) (*models.StoredTransaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
	}
	return txn, nil
}

func (s *SQLiteStore) findAll(ctx context.Context, op, query string, args ...interface{}) ([]models.StoredTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
	}
	defer rows.Close()

	var txns []models.StoredTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, op, err)
	}
	return txns, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (*models.StoredTransaction, error) {
	var (
		txn                                               models.StoredTransaction
		txType, amount, method, source                    string
		counterpartyID                                    sql.NullInt64
		counterparty, category, description, ref, orderID sql.NullString
		batchID, original                                 sql.NullString
		confirmed, deleted                                int
		date, occurred, created, updated                  string
	)

	err := row.Scan(
		&txn.ID, &txType, &amount, &counterpartyID, &counterparty, &method, &source,
		&category, &description, &ref, &orderID, &batchID, &original, &txn.Confidence,
		&confirmed, &deleted, &date, &occurred, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}

	txn.Type = models.TxnType(txType)
	txn.Amount = d
	txn.CounterpartyID = counterpartyID.Int64
	txn.Counterparty = counterparty.String
	txn.Method = models.ParseMethod(method)
	txn.Source = models.Source(source)
	txn.Category = category.String
	txn.Description = description.String
	txn.ReferenceID = ref.String
	txn.OrderID = orderID.String
	txn.BatchID = batchID.String
	txn.OriginalMessage = original.String
	txn.IsConfirmed = confirmed == 1
	txn.IsDeleted = deleted == 1
	txn.TransactionDate = parseTimestamp(occurred).Local()
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate, _ = time.ParseInLocation(models.DateLayout, date, time.Local)
	}
	txn.CreatedAt = parseTimestamp(created)
	txn.UpdatedAt = parseTimestamp(updated)
	return &txn, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}
