package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/pkg/errors"
)

var smsInput string

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Capture payments from bank SMS",
	Long: `Sms reads an exported inbox (a JSON array of messages with sender, body
and date) and records the bank credits and debits it finds. OTPs, balance
alerts and promotions are skipped. A payment already captured from an app
notification is recognised and not counted twice.

Examples:
  termux-sms-list -l 50 > inbox.json
  ingestor sms --input inbox.json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(smsInput, "sms list")
	},
	RunE: runSMS,
}

func init() {
	rootCmd.AddCommand(smsCmd)

	smsCmd.Flags().StringVarP(&smsInput, "input", "i", "", "JSON file of inbox messages (required)")
	smsCmd.MarkFlagRequired("input")
}

func runSMS(cmd *cobra.Command, args []string) error {
	f, err := os.Open(smsInput)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, smsInput, err)
	}
	defer f.Close()

	list, err := ingest.DecodeSMS(f)
	if err != nil {
		return err
	}

	return run(cmd, func(ctx context.Context, a *app) error {
		poller, err := a.newPoller(nil)
		if err != nil {
			return err
		}
		summary, err := poller.ProcessBatchSMS(ctx, list)
		if err != nil {
			return err
		}
		return a.render(cmd, summary)
	})
}
