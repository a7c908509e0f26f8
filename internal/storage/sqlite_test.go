package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/internal/storage/storagetest"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

var now = time.Date(2026, 2, 20, 10, 30, 0, 0, time.UTC)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, storage.DefaultConfig().Validate())
	assert.Error(t, (&storage.Config{Path: "  "}).Validate())
	assert.Error(t, (&storage.Config{Path: "x.db", BusyTimeout: -time.Second}).Validate())
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := storage.NewSQLiteStore(&storage.Config{Path: path, BusyTimeout: time.Second}, logger.Discard())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)

	// second run is a no-op
	require.NoError(t, store.Migrate(ctx))
	assert.Equal(t, path, store.Path())
}

func TestInsertAndGetTransaction(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	c := storagetest.Candidate(t, "1250.5", models.TypeCredit, now)
	c.Counterparty = "RAJAN KUMAR"
	c.ReferenceID = "412345678901"
	c.Category = "sales"
	c.Description = "UPI from rajan"
	c.CounterpartyID = 7

	id, err := store.InsertTransaction(ctx, models.StoredTransaction{
		Candidate:       c,
		Source:          models.SourceSMS,
		IsConfirmed:     true,
		OriginalMessage: "Rs.1250.50 credited",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, models.TypeCredit, got.Type)
	assert.True(t, got.Amount.Equal(amount("1250.50")))
	assert.Equal(t, "RAJAN KUMAR", got.Counterparty)
	assert.Equal(t, int64(7), got.CounterpartyID)
	assert.Equal(t, "412345678901", got.ReferenceID)
	assert.Equal(t, models.SourceSMS, got.Source)
	assert.Equal(t, models.MethodUPI, got.Method)
	assert.True(t, got.IsConfirmed)
	assert.False(t, got.IsDeleted)
	assert.True(t, got.TransactionDate.Equal(now))
	assert.True(t, got.CreatedAt.Equal(now))
	assert.Equal(t, "Rs.1250.50 credited", got.OriginalMessage)
}

func TestGetTransactionNotFound(t *testing.T) {
	store := storagetest.New(t)
	_, err := store.GetTransaction(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestInsertTransactionValidation(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	zero := models.NewCandidate(models.TypeCredit, decimal.Zero, models.MethodUPI, 0.9)
	_, err := store.InsertTransaction(ctx, models.StoredTransaction{Candidate: zero, Source: models.SourceSMS})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidData))

	valid := storagetest.Candidate(t, "10", models.TypeDebit, now)
	_, err = store.InsertTransaction(ctx, models.StoredTransaction{Candidate: valid})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))
}

func TestInsertBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	good := storagetest.Candidate(t, "100", models.TypeCredit, now)
	bad := models.NewCandidate(models.TypeCredit, amount("-5"), models.MethodOther, 0.9)
	bad.TransactionDate = now

	_, err := store.InsertBatch(ctx, []models.StoredTransaction{
		{Candidate: good, Source: models.SourceBankImport},
		{Candidate: bad, Source: models.SourceBankImport},
	})
	require.Error(t, err)

	rows, err := store.ListByDate(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, rows)

	ids, err := store.InsertBatch(ctx, []models.StoredTransaction{
		{Candidate: good, Source: models.SourceBankImport, BatchID: "batch_1"},
		{Candidate: good, Source: models.SourceBankImport, BatchID: "batch_1"},
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	rows, err = store.ListByDate(ctx, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "batch_1", rows[0].BatchID)
}

func TestFindActiveByReference(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	c := storagetest.Candidate(t, "500", models.TypeCredit, now)
	c.ReferenceID = "REF123"
	id := storagetest.Insert(t, store, c, models.SourceSMS)

	got, err := store.FindActiveByReference(ctx, "REF123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)

	got, err = store.FindActiveByReference(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SoftDelete(ctx, id))
	got, err = store.FindActiveByReference(ctx, "REF123")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.SoftDelete(ctx, id)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestFindByAmountDateType(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	storagetest.Insert(t, store, storagetest.Candidate(t, "750", models.TypeDebit, now), models.SourceSMS)

	got, err := store.FindByAmountDateType(ctx, amount("750.00"), now.Add(-3*time.Hour), models.TypeDebit)
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = store.FindByAmountDateType(ctx, amount("750"), now, models.TypeCredit)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.FindByAmountDateType(ctx, amount("750"), now.AddDate(0, 0, 1), models.TypeDebit)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindFuzzyCandidate(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	window := 10 * time.Minute

	id := storagetest.Insert(t, store, storagetest.Candidate(t, "300", models.TypeCredit, now), models.SourceSMS)

	tests := []struct {
		name   string
		source models.Source
		at     time.Time
		want   bool
	}{
		{"other source inside window", models.SourceNotification, now.Add(4 * time.Minute), true},
		{"other source before event", models.SourceNotification, now.Add(-9 * time.Minute), true},
		{"same source", models.SourceSMS, now.Add(time.Minute), false},
		{"outside window", models.SourceNotification, now.Add(11 * time.Minute), false},
		{"window edge is exclusive", models.SourceNotification, now.Add(window), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindFuzzyCandidate(ctx, amount("300"), models.TypeCredit, tt.source, tt.at, window)
			require.NoError(t, err)
			if tt.want {
				require.NotNil(t, got)
				assert.Equal(t, id, got.ID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestDailyTotalsAndListing(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	a := storagetest.Candidate(t, "1000", models.TypeCredit, now)
	a.Counterparty = "Rajan"
	storagetest.Insert(t, store, a, models.SourceSMS)
	storagetest.Insert(t, store, storagetest.Candidate(t, "250.25", models.TypeCredit, now.Add(time.Hour)), models.SourceNotification)
	storagetest.Insert(t, store, storagetest.Candidate(t, "400", models.TypeDebit, now), models.SourceManual)
	storagetest.Insert(t, store, storagetest.Candidate(t, "999", models.TypeCredit, now.AddDate(0, 0, -1)), models.SourceSMS)
	deleted := storagetest.Insert(t, store, storagetest.Candidate(t, "50", models.TypeCredit, now), models.SourceSMS)
	require.NoError(t, store.SoftDelete(ctx, deleted))

	totals, err := store.DailyTotals(ctx, now)
	require.NoError(t, err)
	assert.True(t, totals.Credit.Equal(amount("1250.25")))
	assert.True(t, totals.Debit.Equal(amount("400")))
	assert.True(t, totals.Net().Equal(amount("850.25")))
	assert.Equal(t, 3, totals.Count)

	rows, err := store.ListByDateRange(ctx, now.AddDate(0, 0, -1), now)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	byName, err := store.ListByCounterparty(ctx, "RAJAN", 0)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Rajan", byName[0].Counterparty)
}

func TestLatestCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	_, ok, err := store.LatestCreatedAt(ctx, models.SourceSMS)
	require.NoError(t, err)
	assert.False(t, ok)

	storagetest.Insert(t, store, storagetest.Candidate(t, "10", models.TypeCredit, now), models.SourceSMS)
	later := now.Add(2 * time.Hour)
	store.SetClock(func() time.Time { return later })
	storagetest.Insert(t, store, storagetest.Candidate(t, "20", models.TypeCredit, now), models.SourceSMS)

	latest, ok, err := store.LatestCreatedAt(ctx, models.SourceSMS)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(later))
}

func TestCorrectTransaction(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	original := storagetest.Candidate(t, "1500", models.TypeCredit, now)
	id := storagetest.Insert(t, store, original, models.SourceEOD)

	fixed := storagetest.Candidate(t, "1050", models.TypeCredit, now)
	newID, err := store.CorrectTransaction(ctx, id, models.StoredTransaction{Candidate: fixed, Source: models.SourceManual, IsConfirmed: true})
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	old, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.True(t, old.IsDeleted)

	replacement, err := store.GetTransaction(ctx, newID)
	require.NoError(t, err)
	assert.True(t, replacement.Amount.Equal(amount("1050")))

	// a failed insert keeps the original active
	_, err = store.CorrectTransaction(ctx, newID, models.StoredTransaction{Candidate: fixed})
	require.Error(t, err)
	still, err := store.GetTransaction(ctx, newID)
	require.NoError(t, err)
	assert.False(t, still.IsDeleted)
}

func TestDedupLog(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	got, err := store.FindDedupByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.AddDedupEntry(ctx, models.DedupEntry{Hash: "abc", Source: models.SourceSMS, TransactionID: 1}))
	require.NoError(t, store.AddDedupEntry(ctx, models.DedupEntry{Hash: "abc", Source: models.SourceSMS, TransactionID: 2}))
	require.NoError(t, store.AddDedupEntry(ctx, models.DedupEntry{Hash: "abc", Source: models.SourceNotification, TransactionID: 3}))

	got, err = store.FindDedupByHash(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.TransactionID)
	assert.Equal(t, models.SourceSMS, got.Source)
}

func TestNotificationLog(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now.AddDate(0, 0, -40))

	inserted, err := store.LogNotification(ctx, models.NotificationLogEntry{Hash: "old", Package: "com.phonepe.app", Status: models.StatusCaptured, TransactionID: 4})
	require.NoError(t, err)
	assert.True(t, inserted)

	store.SetClock(func() time.Time { return now })
	for i, status := range []models.NotificationStatus{models.StatusCaptured, models.StatusDuplicate, models.StatusSkipped, models.StatusError, models.StatusCaptured} {
		_, err := store.LogNotification(ctx, models.NotificationLogEntry{Hash: string(rune('a' + i)), Package: "com.phonepe.app", Status: status})
		require.NoError(t, err)
	}

	inserted, err = store.LogNotification(ctx, models.NotificationLogEntry{Hash: "a", Package: "x", Status: models.StatusError})
	require.NoError(t, err)
	assert.False(t, inserted)

	entry, err := store.FindNotification(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusCaptured, entry.Status)
	assert.Equal(t, "com.phonepe.app", entry.Package)

	old, err := store.FindNotification(ctx, "old")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, int64(4), old.TransactionID)

	stats, err := store.NotificationStats(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.NotificationStats{Captured: 2, Duplicates: 1, Skipped: 1, Errors: 1}, stats)
	assert.Equal(t, 5, stats.Total())

	removed, err := store.PruneNotificationLog(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	old, err = store.FindNotification(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestContactsAndVPAMap(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)

	rajan, err := store.AddContact(ctx, models.Contact{Name: "Rajan Kumar", Phone: "+91 98765 43210"})
	require.NoError(t, err)
	_, err = store.AddContact(ctx, models.Contact{Name: "Sharma Traders"})
	require.NoError(t, err)
	_, err = store.AddContact(ctx, models.Contact{Name: "Sharma Textiles"})
	require.NoError(t, err)

	_, err = store.AddContact(ctx, models.Contact{Name: " "})
	assert.Error(t, err)

	byPhone, err := store.FindContactsByPhoneSuffix(ctx, "9876543210")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, rajan, byPhone[0].ID)
	assert.Equal(t, "919876543210", byPhone[0].Phone)

	byName, err := store.FindContactsByName(ctx, "SHARMA")
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byName, err = store.FindContactsByName(ctx, "rajan")
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	wildcard, err := store.FindContactsByName(ctx, "%")
	require.NoError(t, err)
	assert.Empty(t, wildcard)

	m, err := store.GetVPAMapping(ctx, "rajan@okaxis")
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, store.SaveVPAMapping(ctx, models.VPAMapping{VPA: "rajan@okaxis", ContactID: rajan, ContactName: "Rajan Kumar"}))
	require.NoError(t, store.SaveVPAMapping(ctx, models.VPAMapping{VPA: "rajan@okaxis", ContactID: rajan, ContactName: "Rajan K"}))

	m, err = store.GetVPAMapping(ctx, "rajan@okaxis")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Rajan K", m.ContactName)
}

func TestSettlePlatform(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	order := func(platform, amt string) {
		c := storagetest.Candidate(t, amt, models.TypeCredit, now)
		c.Method = models.MethodPlatform
		c.Counterparty = platform + " Order #1"
		c.Category = models.CategoryPlatformPending
		storagetest.Insert(t, store, c, models.SourceNotification)
	}
	order("Swiggy", "500")
	order("Swiggy", "300")
	order("Zomato", "450")

	result, err := store.SettlePlatform(ctx, models.Settlement{
		Platform:             "Swiggy",
		Net:                  amount("650"),
		Confidence:           0.95,
		CommissionConfidence: 0.80,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.OrdersSettled)
	assert.True(t, result.Gross.Equal(amount("800")))
	assert.True(t, result.Commission.Equal(amount("150")))
	assert.NotZero(t, result.SettlementID)
	require.NotZero(t, result.CommissionID)

	commission, err := store.GetTransaction(ctx, result.CommissionID)
	require.NoError(t, err)
	assert.Equal(t, models.TypeDebit, commission.Type)
	assert.False(t, commission.IsConfirmed)
	assert.Equal(t, models.SourceSystem, commission.Source)
	assert.Equal(t, "Swiggy Commission", commission.Counterparty)

	payout, err := store.GetTransaction(ctx, result.SettlementID)
	require.NoError(t, err)
	assert.True(t, payout.IsConfirmed)
	assert.Equal(t, models.MethodBank, payout.Method)

	settled, err := store.SumByCategory(ctx, models.CategoryPlatformSettled, "Swiggy", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.True(t, settled.Equal(amount("800")))

	pending, err := store.SumByCategory(ctx, models.CategoryPlatformPending, "Zomato", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.True(t, pending.Equal(amount("450")))

	// nothing pending: commission is negative and no commission row is written
	result, err = store.SettlePlatform(ctx, models.Settlement{Platform: "Swiggy", Net: amount("100"), Confidence: 0.95})
	require.NoError(t, err)
	assert.Equal(t, 0, result.OrdersSettled)
	assert.True(t, result.Commission.Equal(amount("-100")))
	assert.Zero(t, result.CommissionID)

	_, err = store.SettlePlatform(ctx, models.Settlement{Platform: "Swiggy", Net: decimal.Zero})
	assert.Error(t, err)
}

func TestObservations(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewAt(t, now)

	got, err := store.LatestObservation(ctx, "eod_reconciliation")
	require.NoError(t, err)
	assert.Nil(t, got)

	expired := now.Add(-time.Hour)
	_, err = store.AddObservation(ctx, models.Observation{Type: "eod_reconciliation", Content: "expired", ExpiresAt: &expired})
	require.NoError(t, err)

	_, err = store.AddObservation(ctx, models.Observation{
		Type:       "eod_reconciliation",
		Content:    "gap",
		Properties: map[string]interface{}{"gap_percentage": 25.5},
		Confidence: 0.7,
		Source:     "eod",
	})
	require.NoError(t, err)

	got, err = store.LatestObservation(ctx, "eod_reconciliation")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "gap", got.Content)
	pct, ok := got.Float("gap_percentage")
	assert.True(t, ok)
	assert.InDelta(t, 25.5, pct, 0.001)

	_, err = store.AddObservation(ctx, models.Observation{Content: "no type"})
	assert.Error(t, err)
}
