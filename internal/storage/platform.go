package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// SettlePlatform reconciles a payout against every pending order whose
// counterparty name starts with the platform name, in one transaction:
// pending orders become settled, the payout is stored as a confirmed credit
// and any positive difference is stored as an unconfirmed commission debit.
func (s *SQLiteStore) SettlePlatform(ctx context.Context, settlement models.Settlement) (models.SettlementResult, error) {
	result := models.SettlementResult{Net: settlement.Net, Gross: decimal.Zero, Commission: decimal.Zero}
	if settlement.Platform == "" {
		return result, errors.ValidationError(errors.CodeMissingField, "platform", "", nil)
	}
	if !settlement.Net.IsPositive() {
		return result, errors.ValidationError(errors.CodeInvalidAmount, "settlement", settlement.Net.String(), nil)
	}

	date := settlement.Date
	if date.IsZero() {
		date = s.now()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids, gross, err := s.pendingOrdersTx(ctx, tx, settlement.Platform)
		if err != nil {
			return err
		}
		result.OrdersSettled = len(ids)
		result.Gross = gross
		result.Commission = gross.Sub(settlement.Net)

		now := s.timestamp()
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				UPDATE transactions SET category = ?, is_confirmed = 1, updated_at = ?
				WHERE id = ?`, models.CategoryPlatformSettled, now, id); err != nil {
				return errors.StorageError(errors.CodeWriteFailed, "settle_order", err)
			}
		}

		payout := models.StoredTransaction{
			Candidate:       models.NewCandidate(models.TypeCredit, settlement.Net, models.MethodBank, settlement.Confidence),
			Source:          models.SourceNotification,
			IsConfirmed:     true,
			OriginalMessage: settlement.OriginalMessage,
		}
		payout.Counterparty = settlement.Platform + " Settlement"
		payout.Category = models.CategoryPlatformSettlement
		payout.IsSettlement = true
		payout.TransactionDate = date
		if result.SettlementID, err = s.insertTx(ctx, tx, payout); err != nil {
			return err
		}

		if result.Commission.IsPositive() {
			commission := models.StoredTransaction{
				Candidate: models.NewCandidate(models.TypeDebit, result.Commission, models.MethodPlatform, settlement.CommissionConfidence),
				Source:    models.SourceSystem,
			}
			commission.Counterparty = settlement.Platform + " Commission"
			commission.Category = models.CategoryPlatformCommission
			commission.TransactionDate = date
			if result.CommissionID, err = s.insertTx(ctx, tx, commission); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return result, errors.WrapIfNeeded(err, errors.CategoryIngestion, errors.CodeSettlementFailed, "settlement failed")
	}

	s.logger.WithFields(logger.Fields{
		"platform":       settlement.Platform,
		"orders_settled": result.OrdersSettled,
		"gross":          result.Gross.StringFixed(2),
		"net":            result.Net.StringFixed(2),
		"commission":     result.Commission.StringFixed(2),
	}).Info("Settled platform orders")

	return result, nil
}

func (s *SQLiteStore) pendingOrdersTx(ctx context.Context, tx *sql.Tx, platform string) ([]int64, decimal.Decimal, error) {
	gross := decimal.Zero
	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount FROM transactions
		WHERE category = ? AND counterparty_name LIKE ? ESCAPE '\'
			AND is_confirmed = 0 AND is_deleted = 0
		ORDER BY transaction_date, occurred_at, id`,
		models.CategoryPlatformPending, likeEscape(platform)+"%")
	if err != nil {
		return nil, gross, errors.StorageError(errors.CodeQueryFailed, "pending_orders", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, gross, errors.StorageError(errors.CodeQueryFailed, "pending_orders", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, gross, errors.StorageError(errors.CodeQueryFailed, "pending_orders",
				fmt.Errorf("transaction %d: invalid amount %q", id, raw))
		}
		ids = append(ids, id)
		gross = gross.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, gross, errors.StorageError(errors.CodeQueryFailed, "pending_orders", err)
	}
	return ids, gross, nil
}

// SumByCategory totals active transactions of a category whose counterparty
// name starts with prefix and whose date is on or after since
func (s *SQLiteStore) SumByCategory(ctx context.Context, category, prefix string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE category = ? AND counterparty_name LIKE ? ESCAPE '\'
			AND is_deleted = 0 AND transaction_date >= ?`,
		category, likeEscape(prefix)+"%", since.Format(models.DateLayout))
	if err != nil {
		return total, errors.StorageError(errors.CodeQueryFailed, "sum_by_category", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return total, errors.StorageError(errors.CodeQueryFailed, "sum_by_category", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return total, errors.StorageError(errors.CodeQueryFailed, "sum_by_category", err)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return total, errors.StorageError(errors.CodeQueryFailed, "sum_by_category", err)
	}
	return total, nil
}
