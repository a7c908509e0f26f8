package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Config holds store settings
type Config struct {
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"`
}

// DefaultConfig returns the default store configuration
func DefaultConfig() *Config {
	return &Config{
		Path:        "ledger.db",
		BusyTimeout: 5 * time.Second,
	}
}

// Validate checks the store configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "db", c.Path, nil)
	}
	if c.BusyTimeout < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "busy_timeout", c.BusyTimeout, nil)
	}
	return nil
}

// SQLiteStore is the ledger store. It holds a single connection so writes
// are serialized.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logger.Logger
	now    func() time.Time
}

// NewSQLiteStore opens the database at config.Path. Call Migrate before use.
func NewSQLiteStore(config *Config, log logger.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	if config.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0750); err != nil {
			return nil, errors.FileError(errors.CodeFilePermission, filepath.Dir(config.Path), err)
		}
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		config.Path, config.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "open", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.StorageError(errors.CodeQueryFailed, "ping", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   config.Path,
		logger: log.WithComponent("storage"),
		now:    time.Now,
	}, nil
}

// SetClock replaces the clock used for created_at and retention windows
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the database location
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction and commits when it returns nil
func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeEscape escapes LIKE wildcards for use with ESCAPE '\'
func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}
