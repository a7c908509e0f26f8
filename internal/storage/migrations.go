package storage

import (
	"context"
	"database/sql"
	"fmt"

	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// ExpectedSchemaVersion is the schema version this build writes
const ExpectedSchemaVersion = 3

// Migration is one versioned schema change
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ledger and dedup log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					type TEXT NOT NULL CHECK (type IN ('credit', 'debit')),
					amount TEXT NOT NULL,
					counterparty_id INTEGER,
					counterparty_name TEXT,
					method TEXT NOT NULL DEFAULT 'OTHER',
					source TEXT NOT NULL,
					category TEXT,
					description TEXT,
					reference_id TEXT,
					order_id TEXT,
					batch_id TEXT,
					original_message TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					is_confirmed INTEGER NOT NULL DEFAULT 0,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					transaction_date TEXT NOT NULL,
					occurred_at TEXT NOT NULL,
					created_at TEXT NOT NULL,
					updated_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_txn_reference ON transactions(reference_id) WHERE reference_id IS NOT NULL`,
				`CREATE INDEX IF NOT EXISTS idx_txn_date ON transactions(transaction_date)`,
				`CREATE INDEX IF NOT EXISTS idx_txn_amount_type ON transactions(amount, type)`,
				`CREATE INDEX IF NOT EXISTS idx_txn_source_created ON transactions(source, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_txn_category ON transactions(category)`,

				`CREATE TABLE IF NOT EXISTS dedup_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					hash TEXT NOT NULL,
					source TEXT NOT NULL,
					transaction_id INTEGER NOT NULL,
					created_at TEXT NOT NULL,
					UNIQUE (hash, source)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_dedup_hash ON dedup_log(hash)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Notification log, contacts and VPA map",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS notification_log (
					hash TEXT PRIMARY KEY,
					package_name TEXT NOT NULL,
					status TEXT NOT NULL,
					transaction_id INTEGER,
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_notif_log_status ON notification_log(status, created_at)`,

				`CREATE TABLE IF NOT EXISTS contacts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					name_normalized TEXT NOT NULL,
					phone TEXT,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					created_at TEXT NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_contacts_name ON contacts(name_normalized)`,

				`CREATE TABLE IF NOT EXISTS vpa_map (
					vpa TEXT PRIMARY KEY,
					contact_id INTEGER NOT NULL,
					contact_name TEXT NOT NULL,
					created_at TEXT NOT NULL
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Observations",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS observations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					type TEXT NOT NULL,
					content TEXT NOT NULL,
					properties TEXT NOT NULL DEFAULT '{}',
					confidence REAL NOT NULL DEFAULT 0.5,
					source TEXT,
					expires_at TEXT,
					created_at TEXT NOT NULL,
					is_resolved INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_observations_active ON observations(type, is_resolved, created_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion returns the PRAGMA user_version of the database
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, errors.StorageError(errors.CodeQueryFailed, "schema_version", err)
	}
	return version, nil
}

// Migrate applies every migration newer than the database's user_version
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version))
			return err
		})
		if err != nil {
			return errors.StorageError(errors.CodeMigrationFailed, fmt.Sprintf("migration %d", migration.Version), err)
		}

		s.logger.WithFields(logger.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("Applied migration")
	}

	final, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return errors.StorageError(errors.CodeMigrationFailed, "verify",
			fmt.Errorf("schema version %d, expected %d", final, ExpectedSchemaVersion))
	}
	return nil
}
