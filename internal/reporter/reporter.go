// Package reporter renders pipeline results for the terminal and for other
// programs.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: one record per transaction, duplicate row or issue
//
// Report types available:
//   - Poll reports: one cycle of live ingestion
//   - Import reports: one bulk document batch
//   - Health reports: channel capture issues
//   - Platform reports: marketplace pending, settled and commission totals
//   - End of day reports: the day's totals and reconciliation outcomes
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GeneratePollReport(&summary, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-ledger-ingestion/internal/bulk"
	"golang-ledger-ingestion/internal/eod"
	"golang-ledger-ingestion/internal/health"
	"golang-ledger-ingestion/internal/ingest"
	"golang-ledger-ingestion/internal/platform"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	// Output format
	Format OutputFormat `json:"format"`

	// IncludeTransactions lists each captured transaction, not only counts
	IncludeTransactions bool `json:"include_transactions"`

	// IncludeDuplicates lists the rows of a batch that were not imported
	IncludeDuplicates bool `json:"include_duplicates"`

	// MaxItems bounds console lists; 0 means no limit
	MaxItems int `json:"max_items"`

	// SortByAmount orders console lists largest first
	SortByAmount bool `json:"sort_by_amount"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeTransactions: true,
		IncludeDuplicates:   true,
		MaxItems:            10,
		SortByAmount:        false,
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	if c.Format == FormatCSV && c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter must be set")
	}
	return nil
}

// ReportGenerator renders results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GeneratePollReport writes the outcome of one poll cycle
func (rg *ReportGenerator) GeneratePollReport(summary *ingest.Summary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("poll summary cannot be nil")
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(summary, writer)
	case FormatCSV:
		return rg.writeCSV(writer, pollHeaders, pollRecords(summary.Results))
	default:
		rg.printPoll(summary, writer)
		return nil
	}
}

// GenerateImportReport writes the outcome of one imported batch
func (rg *ReportGenerator) GenerateImportReport(result *bulk.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("import result cannot be nil")
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(result, writer)
	case FormatCSV:
		return rg.writeCSV(writer, importHeaders, importRecords(result))
	default:
		rg.printImport(result, writer)
		return nil
	}
}

// GenerateHealthReport writes detected channel issues
func (rg *ReportGenerator) GenerateHealthReport(issues []health.Issue, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		if issues == nil {
			issues = []health.Issue{}
		}
		return rg.writeJSON(map[string]interface{}{"issues": issues, "healthy": len(issues) == 0}, writer)
	case FormatCSV:
		return rg.writeCSV(writer, healthHeaders, healthRecords(issues))
	default:
		rg.printHealth(issues, writer)
		return nil
	}
}

// GeneratePlatformReport writes a platform's activity over its window
func (rg *ReportGenerator) GeneratePlatformReport(summary *platform.Summary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("platform summary cannot be nil")
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(summary, writer)
	case FormatCSV:
		return rg.writeCSV(writer, platformHeaders, [][]string{{
			summary.Platform,
			strconv.Itoa(summary.Days),
			summary.Pending.StringFixed(2),
			summary.Settled.StringFixed(2),
			summary.Commission.StringFixed(2),
			summary.Returns.StringFixed(2),
			summary.NetReceived.StringFixed(2),
		}})
	default:
		rg.printPlatform(summary, writer)
		return nil
	}
}

// GenerateEODReport writes the day's totals
func (rg *ReportGenerator) GenerateEODReport(summary *eod.Summary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("end of day summary cannot be nil")
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(summary, writer)
	case FormatCSV:
		return rg.writeCSV(writer, eodHeaders, [][]string{{
			summary.Date,
			strconv.Itoa(summary.Count),
			summary.TotalCredit.StringFixed(2),
			summary.TotalDebit.StringFixed(2),
			summary.Net.StringFixed(2),
		}})
	default:
		fmt.Fprintf(writer, "END OF DAY %s\n\n", summary.Date)
		fmt.Fprintf(writer, "%s\n", summary.Text)
		return nil
	}
}

// GenerateOutcomeReport writes the answer to an end of day reply
func (rg *ReportGenerator) GenerateOutcomeReport(outcome *eod.Outcome, writer io.Writer) error {
	if outcome == nil {
		return fmt.Errorf("reconciliation outcome cannot be nil")
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(outcome, writer)
	case FormatCSV:
		return rg.writeCSV(writer, outcomeHeaders, [][]string{{
			string(outcome.Action),
			outcome.OwnerTotal.StringFixed(2),
			outcome.Captured.StringFixed(2),
			outcome.Gap.StringFixed(2),
			outcome.Corrections,
		}})
	default:
		fmt.Fprintf(writer, "Action: %s\n", outcome.Action)
		if outcome.Action == eod.ActionGapFound {
			fmt.Fprintf(writer, "Owner Total: %s\n", rupees(outcome.OwnerTotal))
			fmt.Fprintf(writer, "Captured:    %s\n", rupees(outcome.Captured))
			fmt.Fprintf(writer, "Gap:         %s\n", rupees(outcome.Gap))
		}
		if outcome.Message != "" {
			fmt.Fprintf(writer, "\n%s\n", outcome.Message)
		}
		return nil
	}
}

func (rg *ReportGenerator) writeJSON(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func (rg *ReportGenerator) writeCSV(writer io.Writer, headers []string, records [][]string) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, record := range records {
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

var (
	pollHeaders     = []string{"Status", "Transaction_ID", "App", "Category", "Type", "Amount", "Counterparty", "Order_ID", "Confidence", "Decision", "Alert_Level"}
	importHeaders   = []string{"Batch_ID", "Document_Type", "Row", "Reason", "Matched_ID", "Matched_Row"}
	healthHeaders   = []string{"Channel", "Severity", "Suggestion", "Message"}
	platformHeaders = []string{"Platform", "Days", "Pending", "Settled", "Commission", "Returns", "Net_Received"}
	eodHeaders      = []string{"Date", "Count", "Total_Credit", "Total_Debit", "Net"}
	outcomeHeaders  = []string{"Action", "Owner_Total", "Captured", "Gap", "Corrections"}
)

func pollRecords(results []ingest.Result) [][]string {
	records := make([][]string, 0, len(results))
	for _, r := range results {
		records = append(records, []string{
			string(r.Status),
			formatID(r.TransactionID),
			r.App,
			r.Category,
			r.Type,
			r.Amount.StringFixed(2),
			r.Counterparty,
			r.OrderID,
			fmt.Sprintf("%.2f", r.Confidence),
			r.Decision,
			string(r.AlertLevel),
		})
	}
	return records
}

func importRecords(result *bulk.Result) [][]string {
	records := make([][]string, 0, len(result.DuplicateRows))
	for _, d := range result.DuplicateRows {
		matchedRow := ""
		if d.MatchedID == 0 {
			matchedRow = strconv.Itoa(d.MatchedRow)
		}
		records = append(records, []string{
			result.BatchID,
			result.DocumentType,
			strconv.Itoa(d.Row),
			string(d.Reason),
			formatID(d.MatchedID),
			matchedRow,
		})
	}
	return records
}

func healthRecords(issues []health.Issue) [][]string {
	records := make([][]string, 0, len(issues))
	for _, issue := range issues {
		records = append(records, []string{issue.Channel, string(issue.Severity), issue.Suggestion, issue.Message})
	}
	return records
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printPoll(summary *ingest.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "POLL REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", summary.Timestamp.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Seen:       %d\n", summary.Seen)
	fmt.Fprintf(writer, "Monitored:  %d\n", summary.Monitored)
	fmt.Fprintf(writer, "Processed:  %d\n", summary.Processed)
	fmt.Fprintf(writer, "Captured:   %d (%.1f%%)\n", len(summary.Results), calculatePercentage(len(summary.Results), summary.Processed))
	fmt.Fprintf(writer, "Duplicates: %d\n", summary.Duplicates)
	fmt.Fprintf(writer, "Skipped:    %d\n", summary.Skipped)
	if summary.Errors > 0 {
		fmt.Fprintf(writer, "Errors:     %d\n", summary.Errors)
	}

	if !rg.config.IncludeTransactions || len(summary.Results) == 0 {
		return
	}

	if immediate := summary.Immediate(); len(immediate) > 0 {
		fmt.Fprintf(writer, "\n=== NEEDS ATTENTION NOW ===\n")
		rg.printResults(immediate, writer)
	}
	if pending := summary.NeedsConfirmation(); len(pending) > 0 {
		fmt.Fprintf(writer, "\n=== WAITING FOR CONFIRMATION ===\n")
		rg.printResults(pending, writer)
	}
	fmt.Fprintf(writer, "\n=== CAPTURED ===\n")
	rg.printResults(summary.Results, writer)
}

func (rg *ReportGenerator) printResults(results []ingest.Result, writer io.Writer) {
	if rg.config.SortByAmount {
		sorted := make([]ingest.Result, len(results))
		copy(sorted, results)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Amount.GreaterThan(sorted[j].Amount)
		})
		results = sorted
	}

	for i, r := range results {
		if rg.limitReached(i, len(results), writer) {
			break
		}
		line := fmt.Sprintf("  %d. [%s] %s %s", i+1, r.App, r.Type, rupees(r.Amount))
		if r.Counterparty != "" {
			line += " " + r.Counterparty
		}
		if r.OrderID != "" {
			line += " #" + r.OrderID
		}
		fmt.Fprintf(writer, "%s (%s, %.2f)\n", line, r.Decision, r.Confidence)
		if rec := r.Reconciliation; rec != nil {
			fmt.Fprintf(writer, "     settled %d order(s), commission %s\n", rec.OrdersReconciled, rupees(rec.Commission))
		}
	}
}

func (rg *ReportGenerator) printImport(result *bulk.Result, writer io.Writer) {
	fmt.Fprintf(writer, "IMPORT REPORT\n")
	fmt.Fprintf(writer, "Batch: %s\n", result.BatchID)
	fmt.Fprintf(writer, "Document: %s\n\n", result.DocumentType)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Rows:       %d\n", result.Total)
	fmt.Fprintf(writer, "Imported:   %d (%.1f%%)\n", result.Imported, calculatePercentage(result.Imported, result.Total))
	fmt.Fprintf(writer, "Duplicates: %d (%.1f%%)\n", result.Duplicates, calculatePercentage(result.Duplicates, result.Total))

	if !rg.config.IncludeDuplicates || len(result.DuplicateRows) == 0 {
		return
	}
	fmt.Fprintf(writer, "\n=== DUPLICATE ROWS ===\n")
	for i, d := range result.DuplicateRows {
		if rg.limitReached(i, len(result.DuplicateRows), writer) {
			break
		}
		if d.MatchedID != 0 {
			fmt.Fprintf(writer, "  Row %d: %s (ledger #%d)\n", d.Row+1, d.Reason, d.MatchedID)
		} else {
			fmt.Fprintf(writer, "  Row %d: %s (row %d)\n", d.Row+1, d.Reason, d.MatchedRow+1)
		}
	}
}

func (rg *ReportGenerator) printHealth(issues []health.Issue, writer io.Writer) {
	fmt.Fprintf(writer, "DATA HEALTH\n\n")
	if len(issues) == 0 {
		fmt.Fprintf(writer, "All channels healthy\n")
		return
	}

	fmt.Fprintf(writer, "Issues Found: %d\n\n", len(issues))
	for _, severity := range []health.Severity{health.SeverityWarning, health.SeverityInfo} {
		for _, issue := range issues {
			if issue.Severity != severity {
				continue
			}
			fmt.Fprintf(writer, "  [%s] %s: %s\n", strings.ToUpper(string(issue.Severity)), issue.Channel, issue.Message)
			fmt.Fprintf(writer, "      suggestion: %s\n", issue.Suggestion)
		}
	}
}

func (rg *ReportGenerator) printPlatform(summary *platform.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "PLATFORM REPORT: %s (last %d days)\n\n", summary.Platform, summary.Days)
	fmt.Fprintf(writer, "Pending:      %s\n", rupees(summary.Pending))
	fmt.Fprintf(writer, "Settled:      %s\n", rupees(summary.Settled))
	fmt.Fprintf(writer, "Commission:   %s\n", rupees(summary.Commission))
	fmt.Fprintf(writer, "Returns:      %s\n", rupees(summary.Returns))
	fmt.Fprintf(writer, "Net Received: %s\n", rupees(summary.NetReceived))

	gross := summary.Settled.Add(summary.Commission)
	if gross.IsPositive() && summary.Commission.IsPositive() {
		rate := summary.Commission.Div(gross).Mul(decimal.NewFromInt(100))
		fmt.Fprintf(writer, "Effective Commission Rate: %s%%\n", rate.StringFixed(1))
	}
}

// limitReached prints the truncation notice once index i passes MaxItems
func (rg *ReportGenerator) limitReached(i, total int, writer io.Writer) bool {
	if rg.config.MaxItems == 0 || i < rg.config.MaxItems {
		return false
	}
	fmt.Fprintf(writer, "  ... and %d more\n", total-rg.config.MaxItems)
	return true
}

// Helper methods

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func rupees(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-₹" + eod.FormatIndianNumber(d.Abs())
	}
	return "₹" + eod.FormatIndianNumber(d)
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}
	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
