package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-ledger-ingestion/cmd/ingestor/config"
	"golang-ledger-ingestion/internal/dedup"
	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/internal/parsers"
	"golang-ledger-ingestion/internal/platform"
	"golang-ledger-ingestion/internal/reporter"
	"golang-ledger-ingestion/internal/resolver"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// app holds the components shared by every command
type app struct {
	config  *config.AppConfig
	logger  logger.Logger
	store   *storage.SQLiteStore
	catalog *i18n.Catalog
	report  *reporter.SafeReportGenerator
}

// openApp loads the configuration, installs the logger and opens the
// migrated ledger. Callers must Close the app.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "logger", cfg.Logger, err)
	}
	logger.SetGlobalLogger(log)

	catalog, err := i18n.New()
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "load_locales", err)
	}

	report, err := reporter.NewSafeReportGenerator(cfg.Report, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStore(cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	log.WithFields(logger.Fields{
		"db":       cfg.Store.Path,
		"language": cfg.Language,
		"timezone": cfg.Location.String(),
	}).Debug("Ledger opened")

	return &app{
		config:  cfg,
		logger:  log,
		store:   store,
		catalog: catalog,
		report:  report,
	}, nil
}

// Close releases the ledger
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close ledger")
	}
}

// newPoller wires the live ingestion pipeline over the app's ledger
func (a *app) newPoller(source ingest.NotificationSource) (*ingest.Poller, error) {
	deps := ingest.Dependencies{
		Store:      a.store,
		Registry:   parsers.NewRegistry(),
		Dedup:      dedup.NewEngine(a.store, nil, a.logger),
		Resolver:   resolver.New(a.store, a.logger),
		Accountant: platform.NewAccountant(a.store, a.logger),
	}
	return ingest.NewPoller(deps, source, a.config.Poller, a.logger)
}

// render writes result in the configured output format to --output-file,
// or the command's output when none is given
func (a *app) render(cmd *cobra.Command, result interface{}) error {
	if outputFile == "" {
		return a.report.GenerateReportSafely(result, cmd.OutOrStdout())
	}

	output, err := os.Create(outputFile)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, outputFile, err)
	}
	defer output.Close()
	return a.report.GenerateReportSafely(result, output)
}

// console reports whether human-readable extras should be printed
func (a *app) console() bool {
	return a.config.Report.Format == reporter.FormatConsole
}

// run opens the app for the duration of fn
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateOutputDir(outputFile); err != nil {
		return err
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ValidationError(errors.CodeMissingField, description, nil, nil).
			WithSuggestion(fmt.Sprintf("Provide the %s path", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithSuggestion(FormatFileError(filePath, err))
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeFileNotFound, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

// validateOutputDir checks the parent directory of an output file exists
func validateOutputDir(outputFile string) error {
	if outputFile == "" {
		return nil
	}
	dir := filepath.Dir(outputFile)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, dir, err).
			WithSuggestion("Create the output directory first")
	}
	return nil
}
