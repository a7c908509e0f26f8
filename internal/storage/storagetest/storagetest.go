// Package storagetest opens throwaway ledger stores for tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/pkg/logger"
)

// New opens a migrated in-memory store and closes it when the test ends
func New(t testing.TB) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(&storage.Config{Path: storage.MemoryPath}, logger.Discard())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return store
}

// NewAt is New with the store clock fixed at now
func NewAt(t testing.TB, now time.Time) *storage.SQLiteStore {
	t.Helper()
	store := New(t)
	store.SetClock(func() time.Time { return now })
	return store
}

// Candidate builds a valid candidate for amount, which must parse as a decimal
func Candidate(t testing.TB, amount string, txType models.TxnType, at time.Time) models.Candidate {
	t.Helper()
	d, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("bad amount %q: %v", amount, err)
	}
	c := models.NewCandidate(txType, d, models.MethodUPI, 0.9)
	c.TransactionDate = at
	return c
}

// Insert stores c from source and returns the new id
func Insert(t testing.TB, store *storage.SQLiteStore, c models.Candidate, source models.Source) int64 {
	t.Helper()
	id, err := store.InsertTransaction(context.Background(), models.StoredTransaction{
		Candidate: c,
		Source:    source,
	})
	if err != nil {
		t.Fatalf("failed to insert transaction: %v", err)
	}
	return id
}
