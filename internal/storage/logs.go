package storage

import (
	"context"
	"database/sql"
	"time"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

// AddDedupEntry records a fingerprint sighting. A repeat of the same hash
// and source is ignored.
func (s *SQLiteStore) AddDedupEntry(ctx context.Context, entry models.DedupEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO dedup_log (hash, source, transaction_id, created_at)
		VALUES (?, ?, ?, ?)`,
		entry.Hash, string(entry.Source), entry.TransactionID, s.timestamp())
	if err != nil {
		return errors.StorageError(errors.CodeWriteFailed, "add_dedup_entry", err)
	}
	return nil
}

// FindDedupByHash returns the first sighting of hash, or nil
func (s *SQLiteStore) FindDedupByHash(ctx context.Context, hash string) (*models.DedupEntry, error) {
	var (
		entry  models.DedupEntry
		source string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, source, transaction_id FROM dedup_log
		WHERE hash = ? ORDER BY id LIMIT 1`, hash).Scan(&entry.Hash, &source, &entry.TransactionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "find_dedup_by_hash", err)
	}
	entry.Source = models.Source(source)
	return &entry, nil
}

// LogNotification records the outcome of a raw event unless its hash is
// already logged. It reports whether a row was written.
func (s *SQLiteStore) LogNotification(ctx context.Context, entry models.NotificationLogEntry) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_log (hash, package_name, status, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Hash, entry.Package, string(entry.Status), nullInt(entry.TransactionID), s.timestamp())
	if err != nil {
		return false, errors.StorageError(errors.CodeWriteFailed, "log_notification", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.StorageError(errors.CodeWriteFailed, "log_notification", err)
	}
	return n > 0, nil
}

// FindNotification returns the log entry for hash, or nil
func (s *SQLiteStore) FindNotification(ctx context.Context, hash string) (*models.NotificationLogEntry, error) {
	var (
		entry         models.NotificationLogEntry
		status        string
		transactionID sql.NullInt64
		created       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, package_name, status, transaction_id, created_at
		FROM notification_log WHERE hash = ?`, hash).
		Scan(&entry.Hash, &entry.Package, &status, &transactionID, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "find_notification", err)
	}
	entry.Status = models.NotificationStatus(status)
	entry.TransactionID = transactionID.Int64
	entry.CreatedAt = parseTimestamp(created)
	return &entry, nil
}

// NotificationStats counts log outcomes over the trailing days
func (s *SQLiteStore) NotificationStats(ctx context.Context, days int) (models.NotificationStats, error) {
	var stats models.NotificationStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'captured' THEN 1 END),
			COUNT(CASE WHEN status = 'duplicate' THEN 1 END),
			COUNT(CASE WHEN status = 'skipped' THEN 1 END),
			COUNT(CASE WHEN status = 'error' THEN 1 END)
		FROM notification_log
		WHERE created_at > ?`, s.cutoff(days)).
		Scan(&stats.Captured, &stats.Duplicates, &stats.Skipped, &stats.Errors)
	if err != nil {
		return stats, errors.StorageError(errors.CodeQueryFailed, "notification_stats", err)
	}
	return stats, nil
}

// PruneNotificationLog deletes log entries older than days and returns how
// many were removed
func (s *SQLiteStore) PruneNotificationLog(ctx context.Context, days int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_log WHERE created_at < ?`, s.cutoff(days))
	if err != nil {
		return 0, errors.StorageError(errors.CodeWriteFailed, "prune_notification_log", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.StorageError(errors.CodeWriteFailed, "prune_notification_log", err)
	}
	if n > 0 {
		s.logger.WithField("removed", n).Info("Pruned notification log")
	}
	return n, nil
}

func (s *SQLiteStore) cutoff(days int) string {
	return s.now().Add(-time.Duration(days) * 24 * time.Hour).UTC().Format(time.RFC3339)
}
