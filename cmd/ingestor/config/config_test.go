package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"golang-ledger-ingestion/internal/reporter"
	"golang-ledger-ingestion/pkg/errors"
	"golang-ledger-ingestion/pkg/logger"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if cfg.Store.Path != "ledger.db" {
		t.Errorf("expected store path 'ledger.db', got '%s'", cfg.Store.Path)
	}
	if cfg.Language != "en" {
		t.Errorf("expected language 'en', got '%s'", cfg.Language)
	}
	if cfg.Logger.Level != logger.WarnLevel {
		t.Errorf("expected warn log level, got %s", cfg.Logger.Level)
	}
	if cfg.Poller.RetentionDays != 30 {
		t.Errorf("expected retention 30 days, got %d", cfg.Poller.RetentionDays)
	}
	if cfg.Report.Format != reporter.FormatConsole {
		t.Errorf("expected console format, got %s", cfg.Report.Format)
	}
	if cfg.Location == nil {
		t.Fatal("expected a location")
	}
	if cfg.Poller.Location != cfg.Location || cfg.Import.Table.Location != cfg.Location {
		t.Error("expected poller and import to share the configured location")
	}
}

func TestLoadOverrides(t *testing.T) {
	v := newViper()
	v.Set(KeyDB, "/tmp/shop.db")
	v.Set(KeyLanguage, " HI ")
	v.Set(KeyOutputFormat, "json")
	v.Set(KeyRetentionDays, 7)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if cfg.Store.Path != "/tmp/shop.db" {
		t.Errorf("expected overridden path, got '%s'", cfg.Store.Path)
	}
	if cfg.Language != "hi" {
		t.Errorf("expected normalized language 'hi', got '%s'", cfg.Language)
	}
	if cfg.Report.Format != reporter.FormatJSON {
		t.Errorf("expected json format, got %s", cfg.Report.Format)
	}
	if cfg.Poller.RetentionDays != 7 {
		t.Errorf("expected 7 retention days, got %d", cfg.Poller.RetentionDays)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		code  errors.ErrorCode
	}{
		{"unsupported language", KeyLanguage, "fr", errors.CodeInvalidConfig},
		{"invalid output format", KeyOutputFormat, "xml", errors.CodeInvalidConfig},
		{"invalid log level", KeyLogLevel, "chatty", errors.CodeInvalidConfig},
		{"zero retention", KeyRetentionDays, 0, errors.CodeInvalidConfig},
		{"empty database path", KeyDB, "", errors.CodeMissingConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		verbose    bool
		wantLevel  logger.Level
		wantFormat logger.Format
		wantCaller bool
	}{
		{"defaults", "", "", false, logger.InfoLevel, logger.TextFormat, false},
		{"explicit", "error", "json", false, logger.ErrorLevel, logger.JSONFormat, false},
		{"verbose wins", "error", "text", true, logger.DebugLevel, logger.TextFormat, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateLoggerConfig(tt.level, tt.format, tt.verbose)
			if cfg.Level != tt.wantLevel {
				t.Errorf("expected level %s, got %s", tt.wantLevel, cfg.Level)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("expected format %s, got %s", tt.wantFormat, cfg.Format)
			}
			if cfg.CallerInfo != tt.wantCaller {
				t.Errorf("expected caller info %t, got %t", tt.wantCaller, cfg.CallerInfo)
			}
		})
	}
}

func TestCreateReportConfig(t *testing.T) {
	tests := []struct {
		format       string
		expectedType reporter.OutputFormat
		maxItems     int
	}{
		{"console", reporter.FormatConsole, 10},
		{"json", reporter.FormatJSON, 0},
		{"csv", reporter.FormatCSV, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			config := CreateReportConfig(tt.format)
			if config.Format != tt.expectedType {
				t.Errorf("expected format %s, got %s", tt.expectedType, config.Format)
			}
			if config.MaxItems != tt.maxItems {
				t.Errorf("expected max items %d, got %d", tt.maxItems, config.MaxItems)
			}
			if err := config.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
		})
	}
}

func TestLoadLocation(t *testing.T) {
	loc := LoadLocation("")
	at := time.Date(2026, 2, 15, 12, 0, 0, 0, loc)
	if _, offset := at.Zone(); offset != 5*60*60+30*60 {
		t.Errorf("expected +05:30 offset, got %d seconds", offset)
	}

	if got := LoadLocation("UTC"); got != time.UTC {
		t.Errorf("expected UTC, got %v", got)
	}

	fallback := LoadLocation("Nowhere/Invalid")
	if _, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, fallback).Zone(); offset != 5*60*60+30*60 {
		t.Errorf("expected IST fallback, got offset %d", offset)
	}
}
