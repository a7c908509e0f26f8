package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/dedup"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// correctionFlags holds the fields the owner wants changed
type correctionFlags struct {
	id           int64
	amount       string
	txnType      string
	counterparty string
	method       string
	date         string
	reference    string
	description  string
}

var correction correctionFlags

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Replace a ledger entry with the owner's correction",
	Long: `Correct soft-deletes a transaction and records a confirmed replacement
carrying the changed fields. Fields not given keep their old values.

Examples:
  ingestor correct --id 42 --amount 500 --method CASH
  ingestor correct --id 17 --counterparty "Ramesh Kirana" --type debit`,
	PreRunE: validateCorrectFlags,
	RunE:    runCorrect,
}

func init() {
	rootCmd.AddCommand(correctCmd)

	flags := correctCmd.Flags()
	flags.Int64Var(&correction.id, "id", 0, "transaction to correct (required)")
	flags.StringVar(&correction.amount, "amount", "", "corrected amount")
	flags.StringVar(&correction.txnType, "type", "", "corrected direction: credit or debit")
	flags.StringVar(&correction.counterparty, "counterparty", "", "corrected counterparty")
	flags.StringVar(&correction.method, "method", "", "corrected method, e.g. UPI, CASH")
	flags.StringVar(&correction.date, "date", "", "corrected date (YYYY-MM-DD or DD/MM/YYYY)")
	flags.StringVar(&correction.reference, "reference", "", "corrected reference id")
	flags.StringVar(&correction.description, "description", "", "corrected description")
	correctCmd.MarkFlagRequired("id")
}

func validateCorrectFlags(cmd *cobra.Command, args []string) error {
	if correction.id <= 0 {
		return errors.ValidationError(errors.CodeOutOfRange, "id", correction.id, nil).
			WithSuggestion("Use the transaction id shown in the poll or import report")
	}
	for _, name := range []string{"amount", "type", "counterparty", "method", "date", "reference", "description"} {
		if cmd.Flags().Changed(name) {
			return nil
		}
	}
	return errors.ValidationError(errors.CodeMissingField, "correction", nil, nil).
		WithSuggestion("Pass at least one field to change, e.g. --amount")
}

// apply overrides the fields for which changed reports true and marks the
// row as a confirmed manual entry
func (c correctionFlags) apply(txn models.StoredTransaction, changed func(string) bool, loc *time.Location) (models.StoredTransaction, error) {
	next := txn
	next.ID = 0

	if changed("amount") {
		amount, err := models.ParseAmount(c.amount)
		if err != nil || !amount.IsPositive() {
			return next, errors.ValidationError(errors.CodeInvalidAmount, "amount", c.amount, err)
		}
		next.Amount = amount.Round(2)
	}
	if changed("type") {
		t, err := models.ParseTxnType(c.txnType)
		if err != nil {
			return next, errors.ValidationError(errors.CodeInvalidData, "type", c.txnType, err)
		}
		next.Type = t
	}
	if changed("counterparty") {
		next.Counterparty = c.counterparty
		next.CounterpartyID = 0
	}
	if changed("method") {
		next.Method = models.ParseMethod(c.method)
	}
	if changed("date") {
		d, err := models.ParseIndianDate(c.date, loc)
		if err != nil {
			return next, errors.ValidationError(errors.CodeInvalidDate, "date", c.date, err)
		}
		next.TransactionDate = d
	}
	if changed("reference") {
		next.ReferenceID = c.reference
	}
	if changed("description") {
		next.Description = c.description
	}

	next.Source = models.SourceManual
	next.IsConfirmed = true
	next.Confidence = 1.0
	return next, nil
}

func runCorrect(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		original, err := a.store.GetTransaction(ctx, correction.id)
		if err != nil {
			return err
		}
		if original.IsDeleted {
			return errors.ValidationError(errors.CodeInvalidData, "id", correction.id, nil).
				WithSuggestion("This entry was already corrected or removed")
		}

		replacement, err := correction.apply(*original, cmd.Flags().Changed, a.config.Location)
		if err != nil {
			return err
		}

		newID, err := a.store.CorrectTransaction(ctx, original.ID, replacement)
		if err != nil {
			return err
		}
		// later sightings of the corrected payment match the replacement too
		if err := dedup.NewEngine(a.store, nil, a.logger).
			RecordTransaction(ctx, replacement.Candidate, models.SourceManual, newID); err != nil {
			a.logger.WithError(err).Warn("Failed to record corrected fingerprint")
		}

		a.logger.WithFields(logger.Fields{
			"old_id": original.ID,
			"new_id": newID,
		}).Info("Transaction corrected")
		fmt.Fprintf(cmd.OutOrStdout(), "Corrected #%d -> #%d: %s ₹%s\n",
			original.ID, newID, replacement.Type, replacement.Amount.StringFixed(2))
		return nil
	})
}
