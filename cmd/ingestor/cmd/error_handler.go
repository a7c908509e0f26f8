package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err for the merchant and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if ingestErr, ok := errors.AsIngestError(err); ok {
		return h.handleIngestError(ingestErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleIngestError(err *errors.IngestError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))

	if h.verbose {
		if err.Cause != nil {
			fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
		}
		SuggestRecoveryActions(h.out, err.Category)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more detail\n")
	}
	return 1
}

func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Check the export has a header row with date, amount and type columns
• Amounts may use Indian grouping (1,50,000.00) and Dr/Cr suffixes
• Save the file as UTF-8 CSV, XLSX or OFX
• Use 'ingestor import --help' for the accepted document types`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• Dates may be YYYY-MM-DD or DD/MM/YYYY
• Amounts must be positive numbers`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and INGESTOR_* environment variables
• Verify configuration file syntax if using --config
• Use 'ingestor --help' to see all available options`

	case errors.CategoryStorage:
		return `Ledger error help:
• Check the --db path points to a writable location
• Make sure no other process holds the ledger open for writing
• Restore the ledger from a backup if it is corrupted`

	case errors.CategoryIngestion:
		return `Ingestion error help:
• Nothing from the failed batch was written; it is safe to retry
• Re-run with --verbose to see which event failed`

	case errors.CategoryChannel:
		return `Channel error help:
• Check that Termux:API is installed and has notification access
• Try 'ingestor poll --input <file>' with a saved notification list
• Exported SMS and notification lists must be JSON arrays`

	default:
		return `For more help:
• Use 'ingestor --help' for general help
• Use 'ingestor <command> --help' for command-specific help`
	}
}

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if errors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatRowErrors lists the rows a document parser skipped
func FormatRowErrors(errs []*errors.RowError) string {
	if len(errs) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Skipped %d row(s):", len(errs)))
	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", len(errs)-10))
			break
		}
	}
	return strings.Join(lines, "\n")
}

// FormatFileError formats file-related errors with helpful information
func FormatFileError(filePath string, err error) string {
	baseName := filepath.Base(filePath)
	dir := filepath.Dir(filePath)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("Error with file '%s':\n", baseName))
	message.WriteString(fmt.Sprintf("  Path: %s\n", filePath))
	message.WriteString(fmt.Sprintf("  Error: %v\n", err))

	if errors.Is(err, os.ErrNotExist) {
		message.WriteString("  Suggestion: Check if the file exists in the specified location\n")

		if entries, dirErr := os.ReadDir(dir); dirErr == nil {
			prefix := strings.ToLower(baseName[:min(len(baseName), 3)])
			var similar []string
			for _, entry := range entries {
				if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), prefix) {
					similar = append(similar, entry.Name())
				}
			}
			if len(similar) > 0 {
				message.WriteString("  Similar files found:\n")
				for _, name := range similar[:min(len(similar), 3)] {
					message.WriteString(fmt.Sprintf("    - %s\n", name))
				}
			}
		}
	} else if errors.Is(err, os.ErrPermission) {
		message.WriteString("  Suggestion: Check file permissions - you may need read access\n")
	}

	return message.String()
}

// SuggestRecoveryActions prints what the merchant can try next
func SuggestRecoveryActions(w io.Writer, category errors.ErrorCategory) {
	fmt.Fprintf(w, "\nRecovery suggestions:\n")

	switch category {
	case errors.CategoryFile:
		fmt.Fprintf(w, "• Verify file paths and permissions\n")
		fmt.Fprintf(w, "• Check available disk space\n")

	case errors.CategoryParse:
		fmt.Fprintf(w, "• Re-export the statement from the bank or app\n")
		fmt.Fprintf(w, "• Remove summary rows above the header\n")

	case errors.CategoryValidation:
		fmt.Fprintf(w, "• Correct the invalid values\n")
		fmt.Fprintf(w, "• Check date and amount formats\n")

	case errors.CategoryConfiguration:
		fmt.Fprintf(w, "• Review command-line arguments\n")
		fmt.Fprintf(w, "• Try with default settings first\n")

	case errors.CategoryStorage, errors.CategoryIngestion:
		fmt.Fprintf(w, "• Retry the command; partial batches are rolled back\n")
		fmt.Fprintf(w, "• Copy the ledger file before repairing it\n")

	case errors.CategoryChannel:
		fmt.Fprintf(w, "• Save the notification list to a file and use --input\n")
	}

	fmt.Fprintf(w, "• Check the log output for the failing component\n")
}
