package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang-ledger-ingestion/internal/bulk"
	"golang-ledger-ingestion/internal/eod"
	"golang-ledger-ingestion/internal/health"
	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/internal/platform"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator with error handling
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders any supported result. A failure in JSON or
// CSV is retried as a console report; a failed file write is retried to a
// backup file next to it.
func (srg *SafeReportGenerator) GenerateReportSafely(result interface{}, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
		"result": fmt.Sprintf("%T", result),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	err := srg.generateWithFallback(result, writer)
	if err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}
	return nil
}

// generate dispatches result to the matching report
func (srg *SafeReportGenerator) generate(rg *ReportGenerator, result interface{}, writer io.Writer) error {
	switch r := result.(type) {
	case *ingest.Summary:
		return rg.GeneratePollReport(r, writer)
	case ingest.Summary:
		return rg.GeneratePollReport(&r, writer)
	case *bulk.Result:
		return rg.GenerateImportReport(r, writer)
	case bulk.Result:
		return rg.GenerateImportReport(&r, writer)
	case []health.Issue:
		return rg.GenerateHealthReport(r, writer)
	case *platform.Summary:
		return rg.GeneratePlatformReport(r, writer)
	case platform.Summary:
		return rg.GeneratePlatformReport(&r, writer)
	case *eod.Summary:
		return rg.GenerateEODReport(r, writer)
	case eod.Summary:
		return rg.GenerateEODReport(&r, writer)
	case *eod.Outcome:
		return rg.GenerateOutcomeReport(r, writer)
	case eod.Outcome:
		return rg.GenerateOutcomeReport(&r, writer)
	default:
		return errors.ValidationError(
			errors.CodeInvalidData,
			"result_type",
			fmt.Sprintf("%T", result),
			nil,
		).WithSuggestion("Provide a poll, import, health, platform or end of day result")
	}
}

func (srg *SafeReportGenerator) validateInputs(result interface{}, writer io.Writer) error {
	if result == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"result",
			nil,
			nil,
		).WithSuggestion("Provide a result to report on")
	}

	if writer == nil {
		return errors.ValidationError(
			errors.CodeMissingField,
			"writer",
			nil,
			nil,
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

func (srg *SafeReportGenerator) generateWithFallback(result interface{}, writer io.Writer) error {
	err := srg.generate(srg.ReportGenerator, result, writer)
	if err == nil {
		return nil
	}
	if errors.HasCode(err, errors.CodeInvalidData) {
		return err
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.shouldAttemptOutputFallback(err, writer) {
		return srg.generateWithOutputFallback(result, writer, err)
	}
	if srg.config.Format != FormatConsole {
		return srg.generateWithFormatFallback(result, writer, err)
	}

	return srg.wrapGenerationError(err)
}

func (srg *SafeReportGenerator) generateWithFormatFallback(result interface{}, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := srg.generate(fallbackGenerator, result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}
	return nil
}

func (srg *SafeReportGenerator) shouldAttemptOutputFallback(err error, writer io.Writer) bool {
	if file, ok := writer.(*os.File); ok && file.Name() != "" && file != os.Stdout && file != os.Stderr {
		return isFileError(err)
	}
	return false
}

func (srg *SafeReportGenerator) generateWithOutputFallback(result interface{}, writer io.Writer, originalErr error) error {
	file, ok := writer.(*os.File)
	if !ok {
		return srg.wrapGenerationError(originalErr)
	}

	originalPath := file.Name()
	backupPath := generateBackupPath(originalPath)

	srg.logger.WithFields(logger.Fields{
		"original_file": originalPath,
		"backup_file":   backupPath,
	}).Info("Attempting output fallback")

	backupFile, err := os.Create(backupPath)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}
	defer backupFile.Close()

	if err := srg.generate(srg.ReportGenerator, result, backupFile); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", originalErr, err),
		)
	}

	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", originalPath, backupPath)
	return nil
}

func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if ingestErr, ok := errors.AsIngestError(err); ok {
		return ingestErr
	}

	return errors.InternalError(
		errors.CodeUnexpectedError,
		"report_generation",
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func isFileError(err error) bool {
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

func generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
