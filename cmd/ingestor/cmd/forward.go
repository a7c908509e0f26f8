package cmd

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/pkg/errors"
)

var (
	forwardText string
	forwardFile string
)

var forwardCmd = &cobra.Command{
	Use:   "forward",
	Short: "Record a message the owner forwarded",
	Long: `Forward parses a bank SMS or payment message the owner copied into the
chat. Clear bank messages are captured; partial ones are stored and held for
the owner to confirm. Forwarding the same text twice does nothing.

Examples:
  ingestor forward --text "Rs.5000 credited to A/c XX1234 on 15-02-26. UPI Ref 412345678901"
  ingestor forward --file message.txt
  echo "Received ₹750 from Ramesh" | ingestor forward --file -`,
	PreRunE: validateForwardFlags,
	RunE:    runForward,
}

func init() {
	rootCmd.AddCommand(forwardCmd)

	forwardCmd.Flags().StringVarP(&forwardText, "text", "t", "", "message text")
	forwardCmd.Flags().StringVar(&forwardFile, "file", "", "read the message from a file ('-' for stdin)")
	forwardCmd.MarkFlagsMutuallyExclusive("text", "file")
	forwardCmd.MarkFlagsOneRequired("text", "file")
}

func validateForwardFlags(cmd *cobra.Command, args []string) error {
	if forwardFile != "" && forwardFile != "-" {
		return validateFileExists(forwardFile, "message file")
	}
	return nil
}

func readForwarded(cmd *cobra.Command) (string, error) {
	if forwardFile == "" {
		return forwardText, nil
	}

	var r io.Reader = cmd.InOrStdin()
	if forwardFile != "-" {
		f, err := os.Open(forwardFile)
		if err != nil {
			return "", errors.FileError(errors.CodeFilePermission, forwardFile, err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.FileError(errors.CodeFileCorrupted, forwardFile, err)
	}
	return string(data), nil
}

func runForward(cmd *cobra.Command, args []string) error {
	text, err := readForwarded(cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.ValidationError(errors.CodeMissingField, "text", nil, nil).
			WithSuggestion("Paste the full message text")
	}

	return run(cmd, func(ctx context.Context, a *app) error {
		summary, err := processForwarded(ctx, a, text)
		if err != nil {
			return err
		}
		return a.render(cmd, summary)
	})
}

// processForwarded runs text through the live pipeline and wraps the
// result in a one-event summary
func processForwarded(ctx context.Context, a *app, text string) (ingest.Summary, error) {
	poller, err := a.newPoller(nil)
	if err != nil {
		return ingest.Summary{}, err
	}
	res, err := poller.ProcessForwarded(ctx, text)
	if err != nil {
		return ingest.Summary{}, err
	}

	summary := ingest.Summary{Timestamp: time.Now(), Seen: 1, Monitored: 1}
	summary.Add(res)
	if res.Status == ingest.StatusAlreadySeen {
		a.logger.Info("Message was already forwarded")
	}
	return summary, nil
}
