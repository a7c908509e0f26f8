package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/eod"
	"golang-ledger-ingestion/internal/models"
	"golang-ledger-ingestion/pkg/errors"
)

var (
	eodDate  string
	eodReply string
)

var eodCmd = &cobra.Command{
	Use:   "eod",
	Short: "End-of-day summary and owner reconciliation",
	Long: `Eod sends the day's totals to the owner and reads the reply.

The owner can confirm ("ok", "sahi hai"), give a different total ("total
48000"), list corrections ("galat, 500 was cash") or forward more payments,
which are captured like any forwarded message.

Examples:
  ingestor eod summary --language hi
  ingestor eod reply --text "total 48000"
  ingestor eod reply --date 2026-02-14 --text "ok"`,
}

var eodSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the day's totals as the owner message",
	RunE:  runEODSummary,
}

var eodReplyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Process the owner's reply to the summary",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(eodReply) == "" {
			return errors.ValidationError(errors.CodeMissingField, "text", nil, nil).
				WithSuggestion("Pass the owner's reply with --text")
		}
		return nil
	},
	RunE: runEODReply,
}

func init() {
	rootCmd.AddCommand(eodCmd)
	eodCmd.AddCommand(eodSummaryCmd, eodReplyCmd)

	eodCmd.PersistentFlags().StringVarP(&eodDate, "date", "d", "", "day to reconcile (YYYY-MM-DD, default today)")
	eodReplyCmd.Flags().StringVarP(&eodReply, "text", "t", "", "the owner's reply (required)")
	eodReplyCmd.MarkFlagRequired("text")
}

// parseDay reads a YYYY-MM-DD day in loc, defaulting to today
func parseDay(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		return models.StartOfDay(now.In(loc)), nil
	}
	day, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, errors.ValidationError(errors.CodeInvalidDate, "date", value, err).
			WithSuggestion("Use YYYY-MM-DD, e.g. 2026-02-15")
	}
	return day, nil
}

func runEODSummary(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		day, err := parseDay(eodDate, a.config.Location, time.Now())
		if err != nil {
			return err
		}

		summary, err := eod.NewReconciler(a.store, a.catalog, a.logger).
			GenerateSummary(ctx, day, a.config.Language)
		if err != nil {
			return err
		}
		return a.render(cmd, summary)
	})
}

func runEODReply(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		day, err := parseDay(eodDate, a.config.Location, time.Now())
		if err != nil {
			return err
		}

		outcome, err := eod.NewReconciler(a.store, a.catalog, a.logger).
			ProcessReconciliation(ctx, eodReply, day, a.config.Language)
		if err != nil {
			return err
		}

		if outcome.Action != eod.ActionAdditional {
			return a.render(cmd, outcome)
		}

		// anything else in the reply is treated as a forwarded payment
		summary, err := processForwarded(ctx, a, eodReply)
		if err != nil {
			return err
		}
		if a.console() {
			fmt.Fprintln(cmd.OutOrStdout(), "Reply read as a forwarded message.")
		}
		return a.render(cmd, summary)
	})
}
