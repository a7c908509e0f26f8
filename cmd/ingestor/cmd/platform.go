package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/platform"
	"golang-ledger-ingestion/pkg/errors"
)

var (
	platformName string
	platformDays int
)

var platformCmd = &cobra.Command{
	Use:   "platform",
	Short: "Marketplace orders, payouts and commission",
}

var platformSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals for a delivery or marketplace platform",
	Long: `Summary totals the pending orders, settled payouts, commission and
returns booked for a platform over the last days, and flags a commission
rate outside the platform's usual bracket.

Examples:
  ingestor platform summary --platform Swiggy
  ingestor platform summary --platform Amazon --days 30 --output-format json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if platformDays <= 0 {
			return errors.ValidationError(errors.CodeOutOfRange, "days", platformDays, nil).
				WithSuggestion("Use a positive number of days")
		}
		return nil
	},
	RunE: runPlatformSummary,
}

func init() {
	rootCmd.AddCommand(platformCmd)
	platformCmd.AddCommand(platformSummaryCmd)

	platformSummaryCmd.Flags().StringVarP(&platformName, "platform", "p", "", "platform name, e.g. Swiggy (required)")
	platformSummaryCmd.Flags().IntVar(&platformDays, "days", platform.DefaultSummaryDays, "days to look back")
	platformSummaryCmd.MarkFlagRequired("platform")
}

func runPlatformSummary(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		summary, err := platform.NewAccountant(a.store, a.logger).
			PlatformSummary(ctx, platformName, platformDays)
		if err != nil {
			return err
		}

		if err := a.render(cmd, summary); err != nil {
			return err
		}

		implied := platform.ImpliedRate(summary.Settled.Add(summary.Commission), summary.Commission)
		if summary.Commission.IsPositive() && !platform.WithinBracket(summary.Platform, implied) {
			rate, _ := platform.LookupRate(summary.Platform)
			a.logger.WithField("rate", implied.String()).Warn("Commission outside the usual bracket")
			if a.console() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nWarning: commission %s%% is outside %s's usual %s%%-%s%%\n",
					implied.Shift(2).StringFixed(1), summary.Platform,
					rate.Min.Shift(2).StringFixed(0), rate.Max.Shift(2).StringFixed(0))
			}
		}
		return nil
	})
}
