package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/health"
	"golang-ledger-ingestion/pkg/errors"
)

var (
	healthSave   bool
	healthGapPct float64
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that every capture channel is still working",
	Long: `Health looks for channels that went quiet (no SMS for a day, no app
notification for two days), for SMS and notifications that stopped
overlapping, and for end-of-day gaps showing payments were missed.

Examples:
  ingestor health
  ingestor health --save
  ingestor health --gap-pct 35 --language ta`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if healthGapPct < 0 || healthGapPct > 100 {
			return errors.ValidationError(errors.CodeOutOfRange, "gap-pct", healthGapPct, nil).
				WithSuggestion("Use a percentage between 0 and 100")
		}
		return nil
	},
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().BoolVar(&healthSave, "save", false, "store the findings as an insight for a week")
	healthCmd.Flags().Float64Var(&healthGapPct, "gap-pct", 0, "use this missed share instead of the last end-of-day gap")
}

func runHealth(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		checker := health.NewChecker(a.store, a.catalog, a.logger)
		if cmd.Flags().Changed("gap-pct") {
			checker.SetGapPercentage(healthGapPct)
		}

		check := checker.Check
		if healthSave {
			check = checker.GenerateReport
		}
		issues, err := check(ctx)
		if err != nil {
			return err
		}

		if err := a.render(cmd, issues); err != nil {
			return err
		}
		if a.console() && len(issues) > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
			for _, issue := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", checker.Alert(issue, a.config.Language))
			}
		}
		return nil
	})
}
