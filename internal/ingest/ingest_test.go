package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-ledger-ingestion/internal/confidence"
	"golang-ledger-ingestion/internal/dedup"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/internal/platform"
	"golang-ledger-ingestion/internal/resolver"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/internal/storage/storagetest"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

const (
	pkgGPay    = "com.google.android.apps.nbu.paisa.user"
	pkgPhonePe = "com.phonepe.app"
	pkgBHIM    = "in.org.npci.upiapp"
	pkgSwiggy  = "in.swiggy.partner.app"
)

var pollTime = time.Date(2026, 2, 15, 12, 30, 0, 0, time.UTC)

type fixture struct {
	store *storage.SQLiteStore
	deps  Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storagetest.NewAt(t, pollTime)
	return &fixture{
		store: store,
		deps: Dependencies{
			Store:      store,
			Registry:   parsers.NewRegistry(),
			Dedup:      dedup.NewEngine(store, nil, logger.Discard()),
			Resolver:   resolver.New(store, logger.Discard()),
			Accountant: platform.NewAccountant(store, logger.Discard()),
		},
	}
}

func (f *fixture) poller(t *testing.T, source NotificationSource) *Poller {
	t.Helper()
	p, err := NewPoller(f.deps, source, &Config{RetentionDays: 30, Location: time.UTC}, logger.Discard())
	require.NoError(t, err)
	p.now = func() time.Time { return pollTime }
	return p
}

func (f *fixture) logStatus(t *testing.T, hash string) models.NotificationStatus {
	t.Helper()
	entry, err := f.store.FindNotification(context.Background(), hash)
	require.NoError(t, err)
	require.NotNil(t, entry, "event was not logged")
	return entry.Status
}

func notification(pkg, id, title, content string) models.Notification {
	return models.Notification{
		Package: pkg,
		ID:      id,
		Title:   title,
		Content: content,
		When:    "2026-02-15 12:00:00",
	}
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	gpay := notification(pkgGPay, "1", "Payment received", "₹500 received from Rajan Kumar. UPI Ref: 412345678901")
	source := SliceSource{
		gpay,
		notification("com.whatsapp", "2", "Ramesh", "₹500 bhej diya"),
		notification(pkgPhonePe, "3", "PhonePe", "₹500 transferred from wallet to bank"),
		gpay,
	}
	p := f.poller(t, source)

	summary, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Seen)
	assert.Equal(t, 3, summary.Monitored, "chat apps are not monitored")
	assert.Equal(t, 2, summary.Processed, "the repeated notification is already seen")
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Errors)
	require.Len(t, summary.Results, 1)

	res := summary.Results[0]
	assert.True(t, res.Captured())
	assert.Equal(t, "Google Pay", res.App)
	assert.Equal(t, "Rajan Kumar", res.Counterparty)
	assert.Equal(t, string(models.TypeCredit), res.Type)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, string(confidence.AutoConfirm), res.Decision)

	stored, err := f.store.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.SourceNotification, stored.Source)
	assert.True(t, stored.IsConfirmed)
	assert.Equal(t, "412345678901", stored.ReferenceID)
	assert.Equal(t, "[Google Pay] Payment received: ₹500 received from Rajan Kumar. UPI Ref: 412345678901", stored.OriginalMessage)
	assert.Equal(t, models.StatusCaptured, f.logStatus(t, hashNotification(gpay)))

	again, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Results)
	assert.Zero(t, again.Processed, "every event was handled on the first poll")
}

func TestCrossChannelDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.poller(t, nil)

	sms := models.SMS{
		Sender: "VM-HDFCBK",
		Body:   "Rs.5,000.00 credited to A/c XX1234 on 15-02-26 by UPI ref 412345678901. Avl Bal Rs.20,000",
		Date:   "2026-02-15 12:00:05",
	}
	first, err := p.ProcessSMS(ctx, sms)
	require.NoError(t, err)
	require.True(t, first.Captured())
	assert.Equal(t, "HDFC", first.App)

	n := notification(pkgGPay, "9", "Payment received", "₹5,000 received from Rajan Kumar. UPI Ref: 412345678901")
	second, err := p.ProcessNotification(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDuplicate, second.Status)
	assert.Equal(t, first.TransactionID, second.DuplicateOf)
	assert.Equal(t, dedup.TierReference.String(), second.DuplicateTier)
	assert.Zero(t, second.TransactionID)

	entry, err := f.store.FindNotification(ctx, hashNotification(n))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.StatusDuplicate, entry.Status)
	assert.Equal(t, first.TransactionID, entry.TransactionID)

	replay, err := p.ProcessSMS(ctx, sms)
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadySeen, replay.Status)
}

func TestPlatformSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	source := SliceSource{
		notification(pkgSwiggy, "o1", "Swiggy Partner", "New order! #SW1001 - 2x Biryani - ₹450"),
		notification(pkgSwiggy, "o2", "Swiggy Partner", "New order! #SW1002 - 1x Thali - ₹550"),
	}
	p := f.poller(t, source)

	summary, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 2)
	for _, r := range summary.Results {
		assert.Equal(t, "platform_order", r.Category)
		assert.Equal(t, "pending_credit", r.Type)
		assert.Equal(t, parsers.AlertImmediate, r.AlertLevel)
	}
	assert.Len(t, summary.Immediate(), 2)
	assert.Equal(t, "SW1001", summary.Results[0].OrderID)

	payout := notification(pkgSwiggy, "p1", "Swiggy Partner", "Weekly payout: ₹850 credited")
	res, err := p.ProcessNotification(ctx, payout)
	require.NoError(t, err)
	require.True(t, res.Captured())
	assert.Equal(t, models.CategoryPlatformSettlement, res.Category)
	assert.Equal(t, "Swiggy Settlement", res.Counterparty)
	assert.Equal(t, string(confidence.AutoConfirm), res.Decision)
	require.NotNil(t, res.Reconciliation)
	assert.Equal(t, 2, res.Reconciliation.OrdersReconciled)
	assert.True(t, res.Reconciliation.Commission.Equal(decimal.NewFromInt(150)), "commission = %s", res.Reconciliation.Commission)
	assert.NotZero(t, res.Reconciliation.CommissionID)

	// the same payout seen as a bank credit is already booked
	credit := models.NewCandidate(models.TypeCredit, decimal.NewFromInt(850), models.MethodBank, 0.9)
	credit.TransactionDate = pollTime
	dup, err := f.deps.Dedup.IsDuplicate(ctx, credit, models.SourceSMS)
	require.NoError(t, err)
	assert.True(t, dup.IsDupe)
	assert.Equal(t, res.TransactionID, dup.MatchedID)
}

func TestDailySummaryIsSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.poller(t, nil)

	res, err := p.ProcessNotification(context.Background(),
		notification(pkgSwiggy, "s1", "Swiggy Partner", "Daily summary: 12 orders, ₹5,400"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSkipped, res.Status)
}

func TestPlatformReturn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.poller(t, nil)

	res, err := p.ProcessNotification(ctx,
		notification("com.amazon.sellermobile.android", "r1", "Amazon Seller", "Return requested for order #AMZ-4455 ₹999"))
	require.NoError(t, err)
	require.True(t, res.Captured())
	assert.Equal(t, models.CategoryPlatformReturn, res.Category)
	assert.Equal(t, string(models.TypeDebit), res.Type)
	assert.Equal(t, string(confidence.AskOwner), res.Decision)

	stored, err := f.store.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPlatformReturn, stored.Category)
	assert.False(t, stored.IsConfirmed)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(999)))
}

func TestPollPrunesNotificationLog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.store.SetClock(func() time.Time { return pollTime.AddDate(0, 0, -45) })
	_, err := f.store.LogNotification(ctx, models.NotificationLogEntry{
		Hash: "stale", Package: pkgGPay, Status: models.StatusSkipped,
	})
	require.NoError(t, err)
	f.store.SetClock(func() time.Time { return pollTime })

	summary, err := f.poller(t, SliceSource{}).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Pruned)

	entry, err := f.store.FindNotification(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestVPAResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	contactID, err := f.store.AddContact(ctx, models.Contact{Name: "Ramesh", Phone: "9876543210"})
	require.NoError(t, err)
	p := f.poller(t, nil)

	res, err := p.ProcessNotification(ctx,
		notification(pkgBHIM, "b1", "Money Received", "Received ₹750 from 9876543210@ybl. UPI Ref: 498765432101"))
	require.NoError(t, err)
	require.True(t, res.Captured())
	assert.Equal(t, "Ramesh", res.Counterparty)

	stored, err := f.store.GetTransaction(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, "Ramesh", stored.Counterparty)
	assert.Equal(t, contactID, stored.CounterpartyID)

	mapping, err := f.store.GetVPAMapping(ctx, "9876543210@ybl")
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.Equal(t, contactID, mapping.ContactID)
}

func TestProcessForwarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.poller(t, nil)

	t.Run("generic amount is too weak to record", func(t *testing.T) {
		res, err := p.ProcessForwarded(ctx, "Payment Rs 800 done")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSkipped, res.Status)
		assert.Equal(t, parsers.ForwardedGenericConfidence, res.Confidence)
		assert.Equal(t, string(confidence.Skip), res.Decision)
		assert.Zero(t, res.TransactionID)
	})

	t.Run("forwarded bank sms waits for the owner", func(t *testing.T) {
		text := "---------- Forwarded message ---------\nFrom: HDFC Bank\nRs.2,500 credited to A/c XX9876 by NEFT from KUMAR ENTERPRISES. Ref 123456789"
		res, err := p.ProcessForwarded(ctx, text)
		require.NoError(t, err)
		require.True(t, res.Captured())
		assert.Equal(t, string(confidence.AskOwner), res.Decision)

		stored, err := f.store.GetTransaction(ctx, res.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, models.SourceForwarded, stored.Source)
		assert.False(t, stored.IsConfirmed)

		summary := Summary{Results: []Result{res}}
		assert.Len(t, summary.NeedsConfirmation(), 1)

		again, err := p.ProcessForwarded(ctx, "  "+text+"\n")
		require.NoError(t, err)
		assert.Equal(t, StatusAlreadySeen, again.Status)
	})

	t.Run("chatter", func(t *testing.T) {
		res, err := p.ProcessForwarded(ctx, "hello there, see you tomorrow")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSkipped, res.Status)
	})
}

func TestProcessBatchSMS(t *testing.T) {
	f := newFixture(t)
	p := f.poller(t, nil)

	summary, err := p.ProcessBatchSMS(context.Background(), []models.SMS{
		{Sender: "VM-HDFCBK", Body: "Rs.5,000.00 credited to A/c XX1234 on 15-02-26 by UPI ref 412345678901. Avl Bal Rs.20,000"},
		{Sender: "AD-PROMO", Body: "Your OTP is 123456. Do not share it with anyone."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Seen)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, string(models.TypeCredit), summary.Results[0].Type)
}

type brokenSource struct{}

func (brokenSource) Notifications(context.Context) ([]models.Notification, error) {
	return nil, errors.ChannelError(errors.CodeChannelUnavailable, "termux", fmt.Errorf("exit status 1"))
}

func TestPollSourceFailure(t *testing.T) {
	f := newFixture(t)
	p := f.poller(t, brokenSource{})

	summary, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Seen)
	assert.Empty(t, summary.Results)
}

type failingAccountant struct {
	Accountant
}

func (failingAccountant) LogPlatformOrder(context.Context, models.Candidate, string, string) (int64, error) {
	return 0, fmt.Errorf("disk full")
}

func TestPollIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	f.deps.Accountant = failingAccountant{Accountant: f.deps.Accountant}

	order := notification(pkgSwiggy, "o1", "Swiggy Partner", "New order! #SW1001 - 2x Biryani - ₹450")
	p := f.poller(t, SliceSource{
		order,
		notification(pkgGPay, "1", "Payment received", "₹500 received from Rajan Kumar. UPI Ref: 412345678901"),
	})

	summary, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "Google Pay", summary.Results[0].App)
	assert.Equal(t, models.StatusError, f.logStatus(t, hashNotification(order)))
}

func TestPollRecoversFromPanickingParser(t *testing.T) {
	f := newFixture(t)
	f.deps.Registry.Register("com.example.broken", parsers.Entry{
		Name:     "Broken App",
		Category: parsers.AppUPI,
		Parser: parsers.Parser{{
			Name: "explodes",
			Match: func(parsers.Message) (models.Candidate, parsers.Verdict) {
				panic("index out of range")
			},
		}},
		BaseConfidence: 0.9,
		AlertLevel:     parsers.AlertNormal,
	})

	broken := notification("com.example.broken", "x1", "Broken", "₹100 received")
	p := f.poller(t, SliceSource{
		broken,
		notification(pkgGPay, "1", "Payment received", "₹500 received from Rajan Kumar. UPI Ref: 412345678901"),
	})

	summary, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, "Google Pay", summary.Results[0].App)
	assert.Equal(t, models.StatusError, f.logStatus(t, hashNotification(broken)))
}

func TestRecoveredReturnsInternalError(t *testing.T) {
	_, err := recovered("process_sms", func() (Result, error) {
		var m map[string]int
		m["boom"]++
		return Result{}, nil
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeUnexpectedError))
}

type fingerprintlessDedup struct {
	Deduplicator
}

func (fingerprintlessDedup) RecordTransaction(context.Context, models.Candidate, models.Source, int64) error {
	return fmt.Errorf("database is locked")
}

func TestCaptureSurvivesFingerprintFailure(t *testing.T) {
	f := newFixture(t)
	f.deps.Dedup = fingerprintlessDedup{Deduplicator: f.deps.Dedup}
	p := f.poller(t, nil)

	n := notification(pkgGPay, "1", "Payment received", "₹500 received from Rajan Kumar. UPI Ref: 412345678901")
	res, err := p.ProcessNotification(context.Background(), n)
	require.NoError(t, err)
	require.True(t, res.Captured())
	assert.NotZero(t, res.TransactionID)
	assert.Equal(t, models.StatusCaptured, f.logStatus(t, hashNotification(n)))
}

func TestNewPollerValidation(t *testing.T) {
	f := newFixture(t)

	deps := f.deps
	deps.Resolver = nil
	_, err := NewPoller(deps, nil, nil, logger.Discard())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeMissingField))

	_, err = NewPoller(f.deps, nil, &Config{RetentionDays: 0}, logger.Discard())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
}

func TestDecodeNotifications(t *testing.T) {
	list, err := DecodeNotifications(strings.NewReader(`[{"packageName":"com.phonepe.app","id":"7","title":"PhonePe","content":"Received ₹20","when":"2026-02-15 09:00:00"}]`))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, pkgPhonePe, list[0].Package)

	_, err = DecodeNotifications(strings.NewReader(`{"not":"a list"}`))
	assert.True(t, errors.HasCode(err, errors.CodeChannelMalformed))

	_, err = FileSource{Path: "does/not/exist.json"}.Notifications(context.Background())
	assert.True(t, errors.HasCode(err, errors.CodeFileNotFound))
}

var (
	_ Store           = (*storage.SQLiteStore)(nil)
	_ Deduplicator    = (*dedup.Engine)(nil)
	_ ContactResolver = (*resolver.Resolver)(nil)
	_ Accountant      = (*platform.Accountant)(nil)
)
