package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"golang-ledger-ingestion/internal/bulk"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

var (
	importFile     string
	importType     string
	importProgress string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a bank statement or app export",
	Long: `Import reads a statement export and adds every row that is not already
in the ledger. Rows matching an existing transaction by reference, or by
amount, date and direction, are reported as duplicates and left out. The
whole batch is written at once: if anything fails, nothing is imported.

Document types:
  csv_export      CSV export from a bank or payment app
  xlsx_export     Excel export
  ofx_statement   OFX / QFX statement
  pdf_statement   text extracted from a PDF statement
  app_screenshot  OCR text of an app screenshot
  passbook_photo  OCR text of a passbook page

The type is inferred from .csv, .xlsx, .ofx and .qfx extensions when
--type is omitted.

Examples:
  ingestor import --file statement.csv
  ingestor import --file passbook.txt --type passbook_photo --language hi`,
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFile, "file", "", "document to import (required)")
	importCmd.Flags().StringVarP(&importType, "type", "t", "", "document type (inferred from the extension when omitted)")
	importCmd.Flags().StringVar(&importProgress, "progress", "auto", "progress bar: auto, always, never")
	importCmd.MarkFlagRequired("file")
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if err := validateFileExists(importFile, "document"); err != nil {
		return err
	}

	if importType == "" {
		docType, ok := inferDocumentType(importFile)
		if !ok {
			return errors.ValidationError(errors.CodeMissingField, "type", importFile, nil).
				WithSuggestion("Pass --type; one of " + strings.Join(bulk.DocumentTypes, ", "))
		}
		importType = docType
	}

	switch importProgress {
	case "auto", "always", "never":
	default:
		return errors.ValidationError(errors.CodeInvalidData, "progress", importProgress, nil).
			WithSuggestion("Use auto, always or never")
	}
	return nil
}

// inferDocumentType maps a file extension to a document type
func inferDocumentType(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return bulk.DocCSVExport, true
	case ".xlsx":
		return bulk.DocXLSXExport, true
	case ".ofx", ".qfx":
		return bulk.DocOFXStatement, true
	}
	return "", false
}

// showProgress decides whether to draw the progress bar on stderr
func showProgress(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func runImport(cmd *cobra.Command, args []string) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		importer := bulk.NewImporter(a.store, a.catalog, a.config.Import, a.logger)
		if showProgress(importProgress) {
			importer.SetProgressOutput(cmd.ErrOrStderr())
		}

		f, err := os.Open(importFile)
		if err != nil {
			return errors.FileError(errors.CodeFilePermission, importFile, err)
		}
		defer f.Close()

		doc, err := importer.ParseDocument(ctx, importType, filepath.Base(importFile), f)
		if err != nil {
			var unsupported *bulk.UnsupportedDocumentError
			if errors.As(err, &unsupported) {
				printRawLines(cmd, unsupported)
			}
			return err
		}

		if len(doc.Skipped) > 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), FormatRowErrors(doc.Skipped))
		}
		if doc.Len() == 0 {
			return errors.ValidationError(errors.CodeInvalidData, "rows", importFile, nil).
				WithSuggestion("The document had no readable transactions; check the export and --type")
		}

		result, err := importer.ImportBatch(ctx, doc.Rows, importType, a.config.Language)
		if err != nil {
			return err
		}

		a.logger.WithFields(logger.Fields{
			"batch_id":   result.BatchID,
			"imported":   result.Imported,
			"duplicates": result.Duplicates,
		}).Info("Import finished")

		if err := a.render(cmd, result); err != nil {
			return err
		}
		if a.console() {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", importer.Message(result, a.config.Language))
		}
		return nil
	})
}

// printRawLines shows the text of a document nothing could parse, so the
// owner can enter the rows by hand
func printRawLines(cmd *cobra.Command, e *bulk.UnsupportedDocumentError) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "Could not read this %q document. Its text was:\n", e.Type)
	for _, line := range e.Lines {
		fmt.Fprintf(w, "  %s\n", line)
	}
}
