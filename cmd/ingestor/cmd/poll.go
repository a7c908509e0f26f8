package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

var (
	pollInput    string
	pollCommand  string
	pollInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Capture payments from app notifications",
	Long: `Poll reads the notifications currently on the device and records the
payments, orders and payouts announced by monitored apps. Notifications that
were already processed are ignored, so polling repeatedly is safe.

By default the list comes from termux-notification-list. Use --input to
replay a saved list instead.

Examples:
  # One cycle through Termux
  ingestor poll

  # Keep polling every 30 seconds until interrupted
  ingestor poll --interval 30s

  # Replay a saved notification list
  ingestor poll --input notifications.json --output-format json`,
	PreRunE: validatePollFlags,
	RunE:    runPoll,
}

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().StringVarP(&pollInput, "input", "i", "", "read notifications from a JSON file instead of the device")
	pollCmd.Flags().StringVar(&pollCommand, "command", ingest.DefaultCommand, "command printing the notification list")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "poll repeatedly at this interval (0 polls once)")
}

func validatePollFlags(cmd *cobra.Command, args []string) error {
	if pollInterval < 0 {
		return errors.ValidationError(errors.CodeOutOfRange, "interval", pollInterval, nil).
			WithSuggestion("Use a positive interval such as 30s, or 0 to poll once")
	}
	if pollInput != "" {
		return validateFileExists(pollInput, "notification list")
	}
	return nil
}

func notificationSource() ingest.NotificationSource {
	if pollInput != "" {
		return ingest.FileSource{Path: pollInput}
	}
	return ingest.CommandSource{Name: pollCommand}
}

func runPoll(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		poller, err := a.newPoller(notificationSource())
		if err != nil {
			return err
		}

		if pollInterval == 0 {
			summary, err := poller.Poll(ctx)
			if err != nil {
				return err
			}
			return a.render(cmd, summary)
		}

		return pollLoop(ctx, cmd, a, poller)
	})
}

// pollLoop polls every pollInterval until interrupted. Each cycle with
// captured events is reported.
func pollLoop(ctx context.Context, cmd *cobra.Command, a *app, poller *ingest.Poller) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := a.logger.WithComponent("poll").WithField("interval", pollInterval.String())
	log.Info("Polling started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		summary, err := poller.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if summary.Processed > 0 || summary.Errors > 0 {
			if err := a.render(cmd, summary); err != nil {
				log.WithError(err).Warn("Failed to report poll cycle")
			}
		}

		select {
		case <-ctx.Done():
			log.WithFields(logger.Fields{"reason": context.Cause(ctx)}).Info("Polling stopped")
			return nil
		case <-ticker.C:
		}
	}
}
