package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"golang-ledger-ingestion/internal/bulk"
	"golang-ledger-ingestion/internal/i18n"
	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/internal/reporter"
	"golang-ledger-ingestion/internal/storage"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

// DefaultTimezone is the zone merchant events are recorded in
const DefaultTimezone = "Asia/Kolkata"

// ist is used when the zone database is not installed
var ist = time.FixedZone("IST", 5*60*60+30*60)

// Keys read from flags, the config file and INGESTOR_* variables
const (
	KeyDB            = "db"
	KeyLanguage      = "language"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyVerbose       = "verbose"
	KeyTimezone      = "timezone"
	KeyRetentionDays = "retention-days"
	KeyOutputFormat  = "output-format"
)

// AppConfig is everything a command needs to build its components
type AppConfig struct {
	Logger   *logger.Config
	Store    *storage.Config
	Poller   *ingest.Config
	Import   *bulk.Config
	Report   *reporter.ReportConfig
	Language string
	Location *time.Location
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDB, storage.DefaultConfig().Path)
	v.SetDefault(KeyLanguage, i18n.DefaultLanguage)
	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
	v.SetDefault(KeyTimezone, DefaultTimezone)
	v.SetDefault(KeyRetentionDays, ingest.DefaultConfig().RetentionDays)
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
}

// Load builds the application configuration from v
func Load(v *viper.Viper) (*AppConfig, error) {
	loc := LoadLocation(v.GetString(KeyTimezone))

	cfg := &AppConfig{
		Logger:   CreateLoggerConfig(v.GetString(KeyLogLevel), v.GetString(KeyLogFormat), v.GetBool(KeyVerbose)),
		Store:    CreateStoreConfig(v.GetString(KeyDB)),
		Poller:   CreatePollerConfig(v.GetInt(KeyRetentionDays), loc),
		Import:   CreateImportConfig(loc),
		Report:   CreateReportConfig(v.GetString(KeyOutputFormat)),
		Language: i18n.Normalize(v.GetString(KeyLanguage)),
		Location: loc,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every part of the configuration
func (c *AppConfig) Validate() error {
	checks := []struct {
		setting string
		value   interface{}
		check   func() error
	}{
		{"logger", c.Logger, c.Logger.Validate},
		{KeyDB, c.Store.Path, c.Store.Validate},
		{KeyRetentionDays, c.Poller.RetentionDays, c.Poller.Validate},
		{"import", c.Import, c.Import.Validate},
		{KeyOutputFormat, c.Report.Format, c.Report.Validate},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			if errors.IsIngestError(err) {
				return err
			}
			return errors.ConfigurationError(errors.CodeInvalidConfig, ch.setting, ch.value, err)
		}
	}

	if !i18n.Supported(c.Language) {
		return errors.ConfigurationError(errors.CodeInvalidConfig, KeyLanguage, c.Language,
			fmt.Errorf("unsupported language")).
			WithSuggestion("Use one of: " + strings.Join(i18n.Languages, ", "))
	}
	return nil
}

// CreateLoggerConfig creates a logger configuration. Verbose forces debug
// level with caller info.
func CreateLoggerConfig(level, format string, verbose bool) *logger.Config {
	config := logger.DefaultConfig()
	if level != "" {
		config.Level = logger.Level(level)
	}
	if format != "" {
		config.Format = logger.Format(format)
	}
	if verbose {
		config.Level = logger.DebugLevel
		config.CallerInfo = true
	}
	return config
}

// CreateStoreConfig creates a ledger store configuration for path
func CreateStoreConfig(path string) *storage.Config {
	config := storage.DefaultConfig()
	config.Path = path
	return config
}

// CreatePollerConfig creates a poller configuration
func CreatePollerConfig(retentionDays int, loc *time.Location) *ingest.Config {
	config := ingest.DefaultConfig()
	config.RetentionDays = retentionDays
	config.Location = loc
	return config
}

// CreateImportConfig creates a bulk import configuration whose undated
// cells are read in loc
func CreateImportConfig(loc *time.Location) *bulk.Config {
	config := bulk.DefaultConfig()
	config.Table.Location = loc
	return config
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)

	switch config.Format {
	case reporter.FormatJSON:
		config.MaxItems = 0
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
		config.MaxItems = 0
	}
	return config
}

// LoadLocation resolves a zone name, falling back to a fixed IST offset
// when the zone database is unavailable
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return ist
	}
	return loc
}
