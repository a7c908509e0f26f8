package bulk

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/internal/storage/storagetest"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

var importDay = time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)

func newTestImporter(t *testing.T, store Store) *Importer {
	t.Helper()
	config := DefaultConfig()
	config.Table.Location = time.UTC
	imp := NewImporter(store, i18n.MustNew(), config, logger.Discard())
	imp.now = func() time.Time { return importDay }
	imp.newID = func() string { return "test" }
	return imp
}

func row(t *testing.T, amount string, typ models.TxnType, ref string, at time.Time) models.Candidate {
	t.Helper()
	c := storagetest.Candidate(t, amount, typ, at)
	c.ReferenceID = ref
	return c
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		docType string
		want    float64
	}{
		{DocCSVExport, 0.95},
		{DocOFXStatement, 0.95},
		{DocXLSXExport, 0.95},
		{DocPDFStatement, 0.90},
		{DocAppScreenshot, 0.80},
		{DocPassbookPhoto, 0.75},
		{"voice_note", 0.70},
		{"", 0.70},
	}
	for _, tt := range tests {
		if got := Confidence(tt.docType); got != tt.want {
			t.Errorf("Confidence(%q) = %v, want %v", tt.docType, got, tt.want)
		}
	}
}

func TestDetectDuplicates(t *testing.T) {
	day := importDay
	tests := []struct {
		name   string
		rows   []models.Candidate
		groups int
		reason DuplicateReason
		dupes  []int
	}{
		{
			name: "same reference",
			rows: []models.Candidate{
				row(t, "500", models.TypeCredit, "111111", day),
				row(t, "500", models.TypeCredit, "111111", day.AddDate(0, 0, 1)),
			},
			groups: 1, reason: ReasonSameReference, dupes: []int{1},
		},
		{
			name: "same amount date and type without reference",
			rows: []models.Candidate{
				row(t, "500", models.TypeCredit, "111111", day),
				row(t, "250", models.TypeDebit, "", day),
				row(t, "500", models.TypeCredit, "", day),
			},
			groups: 1, reason: ReasonSameAmountDate, dupes: []int{2},
		},
		{
			name: "different references are distinct",
			rows: []models.Candidate{
				row(t, "500", models.TypeCredit, "111111", day),
				row(t, "500", models.TypeCredit, "222222", day),
			},
		},
		{
			name: "direction matters",
			rows: []models.Candidate{
				row(t, "500", models.TypeCredit, "", day),
				row(t, "500", models.TypeDebit, "", day),
			},
		},
		{
			name: "three copies form one group",
			rows: []models.Candidate{
				row(t, "99", models.TypeDebit, "", day),
				row(t, "99", models.TypeDebit, "", day),
				row(t, "99", models.TypeDebit, "", day),
			},
			groups: 1, reason: ReasonSameAmountDate, dupes: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := DetectDuplicates(tt.rows)
			if len(groups) != tt.groups {
				t.Fatalf("got %d groups, want %d: %+v", len(groups), tt.groups, groups)
			}
			if tt.groups == 0 {
				return
			}
			if groups[0].Reason != tt.reason {
				t.Errorf("reason = %s, want %s", groups[0].Reason, tt.reason)
			}
			rep := repeats(groups)
			if len(rep) != len(tt.dupes) {
				t.Fatalf("repeats = %v, want rows %v", rep, tt.dupes)
			}
			for _, i := range tt.dupes {
				if _, ok := rep[i]; !ok {
					t.Errorf("row %d not marked as a repeat", i)
				}
			}
		})
	}
}

func TestImportBatch(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewAt(t, importDay)

	existing := row(t, "1500", models.TypeCredit, "401234567890", importDay)
	existingID := storagetest.Insert(t, db, existing, models.SourceSMS)
	cashID := storagetest.Insert(t, db, row(t, "320", models.TypeDebit, "", importDay), models.SourceManual)

	rows := []models.Candidate{
		row(t, "1500", models.TypeCredit, "401234567890", importDay),
		row(t, "2750.50", models.TypeCredit, "409999999999", importDay),
		row(t, "320", models.TypeDebit, "", importDay),
		row(t, "2750.50", models.TypeCredit, "409999999999", importDay),
	}
	rows[1].Method = ""

	imp := newTestImporter(t, db)
	res, err := imp.ImportBatch(ctx, rows, DocPDFStatement, "hi")
	require.NoError(t, err)

	assert.Equal(t, "batch_test", res.BatchID)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 3, res.Duplicates)
	assert.Equal(t, "hi", res.Language)
	require.Len(t, res.TransactionIDs, 1)

	assert.Equal(t, []DuplicateRow{
		{Row: 0, Reason: ReasonLedgerReference, MatchedID: existingID},
		{Row: 2, Reason: ReasonLedgerAmount, MatchedID: cashID},
		{Row: 3, Reason: ReasonSameReference, MatchedRow: 1},
	}, res.DuplicateRows)

	stored, err := db.GetTransaction(ctx, res.TransactionIDs[0])
	require.NoError(t, err)
	assert.Equal(t, models.SourceBankImport, stored.Source)
	assert.False(t, stored.IsConfirmed)
	assert.Equal(t, "batch_test", stored.BatchID)
	assert.Equal(t, 0.90, stored.Confidence)
	assert.Equal(t, models.MethodOther, stored.Method)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("2750.50")))
}

func TestImportBatchUndatedRowsUseToday(t *testing.T) {
	db := storagetest.NewAt(t, importDay)
	imp := newTestImporter(t, db)

	c := row(t, "75", models.TypeDebit, "", time.Time{})
	res, err := imp.ImportBatch(context.Background(), []models.Candidate{c}, DocPassbookPhoto, "en")
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	day, err := db.ListByDate(context.Background(), importDay)
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, 0.75, day[0].Confidence)
}

func TestImportBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	db := storagetest.NewAt(t, importDay)
	imp := newTestImporter(t, db)

	bad := row(t, "400", models.TypeCredit, "", importDay)
	bad.Amount = decimal.Zero
	rows := []models.Candidate{
		row(t, "100", models.TypeCredit, "", importDay),
		row(t, "200", models.TypeCredit, "", importDay),
		bad,
	}

	_, err := imp.ImportBatch(ctx, rows, DocCSVExport, "en")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeBatchRolledBack), "got %v", err)

	day, err := db.ListByDate(ctx, importDay)
	require.NoError(t, err)
	assert.Empty(t, day, "no row of a failed batch may be stored")
}

func TestImportBatchShowsProgress(t *testing.T) {
	db := storagetest.NewAt(t, importDay)
	imp := newTestImporter(t, db)
	var bar bytes.Buffer
	imp.SetProgressOutput(&bar)

	var rows []models.Candidate
	for i := 1; i <= 5; i++ {
		rows = append(rows, row(t, fmt.Sprintf("%d00", i), models.TypeCredit, "", importDay))
	}
	res, err := imp.ImportBatch(context.Background(), rows, DocCSVExport, "en")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Imported)
	assert.Contains(t, bar.String(), "import csv_export")
}

func TestParseDocumentCSV(t *testing.T) {
	imp := newTestImporter(t, storagetest.New(t))

	csv := strings.Join([]string{
		"Date,Description,Amount,Reference",
		`15/01/2026,"UPI from Ramesh, shop",1500.00,401234567890`,
		"16/01/2026,Rent,-8000,",
	}, "\n")

	doc, err := imp.ParseDocument(context.Background(), DocCSVExport, "export.csv", strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, 2, doc.Len())

	assert.Equal(t, models.TypeCredit, doc.Rows[0].Type)
	assert.Equal(t, "UPI from Ramesh, shop", doc.Rows[0].Description)
	assert.Equal(t, "401234567890", doc.Rows[0].ReferenceID)

	assert.Equal(t, models.TypeDebit, doc.Rows[1].Type)
	assert.True(t, doc.Rows[1].Amount.Equal(decimal.NewFromInt(8000)), "amount %s", doc.Rows[1].Amount)
	assert.Equal(t, "2026-01-16", doc.Rows[1].DateKey())
}

func TestImportNegativeAmountWithoutTypeColumn(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	imp := newTestImporter(t, store)

	doc, err := imp.ParseDocument(ctx, DocCSVExport, "bare.csv",
		strings.NewReader("Date,Amount\n10/01/2026,-1500\n10/01/2026,2500\n"))
	require.NoError(t, err)

	res, err := imp.ImportBatch(ctx, doc.Rows, DocCSVExport, "en")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	stored, err := store.ListByDate(ctx, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byType := map[models.TxnType]decimal.Decimal{}
	for _, txn := range stored {
		byType[txn.Type] = txn.Amount
	}
	assert.True(t, byType[models.TypeDebit].Equal(decimal.NewFromInt(1500)), "debit %s", byType[models.TypeDebit])
	assert.True(t, byType[models.TypeCredit].Equal(decimal.NewFromInt(2500)), "credit %s", byType[models.TypeCredit])
}

type explodingReader struct{}

func (explodingReader) Read([]byte) (int, error) {
	panic("corrupt scan buffer")
}

func TestParseDocumentRecoversPanic(t *testing.T) {
	imp := newTestImporter(t, storagetest.New(t))

	for _, docType := range []string{DocCSVExport, DocPassbookPhoto} {
		t.Run(docType, func(t *testing.T) {
			doc, err := imp.ParseDocument(context.Background(), docType, "scan", explodingReader{})
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.HasCode(err, errors.CodeUnexpectedError))
		})
	}
}

func TestParseDocumentPassbook(t *testing.T) {
	imp := newTestImporter(t, storagetest.New(t))

	text := "12/01/2026 BY CASH DEPOSIT 5,000.00 25,000.00\n13/01/2026 TO ATM WDL 2,000.00 23,000.00\n"
	doc, err := imp.ParseDocument(context.Background(), DocPassbookPhoto, "passbook.jpg", strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, "passbook.jpg", doc.Name)
	require.Equal(t, 2, doc.Len())
	assert.Equal(t, models.TypeCredit, doc.Rows[0].Type)
	assert.Equal(t, models.TypeDebit, doc.Rows[1].Type)
}

func TestParseDocumentUnsupported(t *testing.T) {
	imp := newTestImporter(t, storagetest.New(t))

	_, err := imp.ParseDocument(context.Background(), "voice_note", "memo.txt",
		strings.NewReader("Ramesh 500 udhaar\n\n  Suresh 200 diya  \n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDocument))
	assert.True(t, errors.HasCode(err, errors.CodeUnsupportedDocument))

	var unsupported *UnsupportedDocumentError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "voice_note", unsupported.Type)
	assert.Equal(t, []string{"Ramesh 500 udhaar", "Suresh 200 diya"}, unsupported.Lines)
}

func TestMessage(t *testing.T) {
	imp := newTestImporter(t, storagetest.New(t))
	res := Result{DocumentType: DocPassbookPhoto, Imported: 12, Duplicates: 3}

	assert.Equal(t,
		"Imported 12 transactions from your passbook photo. 3 were already recorded. Please review: say 'sahi hai' to confirm or tell me what's wrong.",
		imp.Message(res, "en"))
	assert.Contains(t, imp.Message(res, "hi"), "Aapke passbook photo se 12 transactions import kiye. 3 pehle se the.")

	res.DocumentType = "voice_note"
	assert.Contains(t, imp.Message(res, "en"), "from your voice_note.")

	res.DocumentType = ""
	assert.Contains(t, imp.Message(res, "en"), "from your document.")
}

var _ Store = (*storage.SQLiteStore)(nil)
