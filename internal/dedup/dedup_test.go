package dedup

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/internal/storage/storagetest"
	"golang-ledger-ingestion/pkg/logger"
)

var testNow = time.Date(2026, 2, 20, 10, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func candidate(amount, ref string, at time.Time) models.Candidate {
	c := models.NewCandidate(models.TypeCredit, decimal.RequireFromString(amount), models.MethodUPI, 0.9)
	c.ReferenceID = ref
	c.TransactionDate = at
	return c
}

func TestFingerprintStability(t *testing.T) {
	morning := candidate("1500", "412345678901", time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC))
	evening := candidate("1500.00", "412345678901", time.Date(2026, 2, 20, 21, 45, 0, 0, time.UTC))

	if Fingerprint(morning, fixedNow) != Fingerprint(evening, fixedNow) {
		t.Error("fingerprint changed with time of day")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := candidate("1500", "412345678901", testNow)
	baseHash := Fingerprint(base, fixedNow)

	tests := []struct {
		name   string
		mutate func(c *models.Candidate)
	}{
		{"amount", func(c *models.Candidate) { c.Amount = decimal.RequireFromString("1500.01") }},
		{"reference", func(c *models.Candidate) { c.ReferenceID = "412345678902" }},
		{"no reference", func(c *models.Candidate) { c.ReferenceID = "" }},
		{"date", func(c *models.Candidate) { c.TransactionDate = testNow.AddDate(0, 0, 1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if Fingerprint(c, fixedNow) == baseHash {
				t.Errorf("fingerprint unchanged after changing %s", tt.name)
			}
		})
	}

	if len(baseHash) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(baseHash))
	}
}

func TestFingerprintUndatedUsesToday(t *testing.T) {
	undated := candidate("99", "", time.Time{})
	dated := candidate("99", "", testNow)
	if Fingerprint(undated, fixedNow) != Fingerprint(dated, fixedNow) {
		t.Error("undated candidate should hash with today's date")
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"RAJAN KUMAR", "rajan kumar", 1.0},
		{" Rajan ", "RAJAN", 1.0},
		{"RAJAN KUMAR", "Rajan", 0.8},
		{"", "Rajan", 0.0},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"sharma", "sharmi", 1 - 1.0/6.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NameSimilarity(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}

	if s := NameSimilarity("RAJAN", "SHARMA TRADING CO"); s >= 0.5 {
		t.Errorf("expected dissimilar names below 0.5, got %f", s)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.FuzzyWindow = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero window")
	}

	bad = DefaultConfig()
	bad.FuzzyConfidence = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for confidence above 1")
	}
}

type testEngine struct {
	*Engine
	db *storage.SQLiteStore
}

func newTestEngine(t *testing.T) (*testEngine, context.Context) {
	db := storagetest.NewAt(t, testNow)
	e := NewEngine(db, nil, logger.Discard())
	e.now = fixedNow
	return &testEngine{Engine: e, db: db}, context.Background()
}

// insert stores c and records its fingerprint the way the poller does
func (e *testEngine) insert(t *testing.T, c models.Candidate, source models.Source) int64 {
	t.Helper()
	id := storagetest.Insert(t, e.db, c, source)
	require.NoError(t, e.RecordTransaction(context.Background(), c, source, id))
	return id
}

func TestIsDuplicateNewCandidate(t *testing.T) {
	e, ctx := newTestEngine(t)

	res, err := e.IsDuplicate(ctx, candidate("500", "REF1", testNow), models.SourceSMS)
	require.NoError(t, err)
	assert.False(t, res.IsDupe)
	assert.Equal(t, TierNone, res.Tier)
}

func TestIsDuplicateTierPrecedence(t *testing.T) {
	e, ctx := newTestEngine(t)

	c := candidate("500", "412345678901", testNow)
	id := e.insert(t, c, models.SourceSMS)

	// matches by reference and by fingerprint; reference wins
	res, err := e.IsDuplicate(ctx, c, models.SourceNotification)
	require.NoError(t, err)
	assert.True(t, res.IsDupe)
	assert.Equal(t, TierReference, res.Tier)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, id, res.MatchedID)
	assert.Equal(t, models.SourceSMS, res.MatchedSource)
}

func TestIsDuplicateFingerprint(t *testing.T) {
	e, ctx := newTestEngine(t)

	c := candidate("500", "", testNow)
	id := e.insert(t, c, models.SourceSMS)

	later := candidate("500", "", testNow.Add(3*time.Hour))
	res, err := e.IsDuplicate(ctx, later, models.SourceSMS)
	require.NoError(t, err)
	assert.True(t, res.IsDupe)
	assert.Equal(t, TierFingerprint, res.Tier)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Equal(t, id, res.MatchedID)
}

func TestIsDuplicateFuzzy(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		incoming string
		source   models.Source
		offset   time.Duration
		wantDupe bool
		wantTier Tier
	}{
		{"names contain each other", "RAJAN KUMAR", "Rajan", models.SourceNotification, 4 * time.Minute, true, TierFuzzy},
		{"one side unnamed", "RAJAN KUMAR", "", models.SourceNotification, 2 * time.Minute, true, TierFuzzy},
		{"counterparty veto", "RAJAN", "SHARMA TRADING CO", models.SourceNotification, time.Minute, false, TierNone},
		{"same channel", "RAJAN", "RAJAN", models.SourceSMS, time.Minute, false, TierNone},
		{"outside window", "RAJAN", "RAJAN", models.SourceNotification, 15 * time.Minute, false, TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ctx := newTestEngine(t)

			// different references keep tiers 1 and 2 out of the way
			stored := candidate("300", "SMSREF1", testNow)
			stored.Counterparty = tt.stored
			id := e.insert(t, stored, models.SourceSMS)

			incoming := candidate("300", "NOTIFREF9", testNow.Add(tt.offset))
			incoming.Counterparty = tt.incoming

			res, err := e.IsDuplicate(ctx, incoming, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDupe, res.IsDupe)
			assert.Equal(t, tt.wantTier, res.Tier)
			if tt.wantDupe {
				assert.Equal(t, id, res.MatchedID)
				assert.Equal(t, 0.80, res.Confidence)
			}
		})
	}
}

func TestTierString(t *testing.T) {
	tests := map[Tier]string{
		TierNone:        "none",
		TierReference:   "reference",
		TierFingerprint: "fingerprint",
		TierFuzzy:       "fuzzy",
		Tier(9):         "unknown",
	}
	for tier, want := range tests {
		if got := tier.String(); got != want {
			t.Errorf("Tier(%d).String() = %q, want %q", int(tier), got, want)
		}
	}
}
