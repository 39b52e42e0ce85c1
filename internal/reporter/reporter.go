// Package reporter renders load reports, analytic results and the canonical
// ledger.
//
// Supported output formats:
//   - Console: styled tables for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: comma-separated rows for spreadsheet applications
//
// Analytic results without a tabular shape have no CSV form; console output
// renders them as indented JSON inside a box.
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	err = generator.GenerateResult("categories", result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/ingest"
	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
	apperrors "bill-analytics-service/pkg/errors"
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
	Format OutputFormat `json:"format"`

	// Console formatting options
	UseColors bool `json:"use_colors"`
	MaxRows   int  `json:"max_rows"`
	CellWidth int  `json:"cell_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatJSON,
		UseColors:    true,
		MaxRows:      50,
		CellWidth:    24,
		CSVDelimiter: ',',
		CSVHeaders:   true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxRows < 1 {
		return fmt.Errorf("max rows must be positive, got %d", c.MaxRows)
	}
	if c.CellWidth < 8 {
		return fmt.Errorf("cell width must be at least 8 characters, got %d", c.CellWidth)
	}
	if c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' || c.CSVDelimiter == 0 {
		return fmt.Errorf("invalid csv delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator renders reports in the configured format
type ReportGenerator struct {
	config *ReportConfig
	styles palette
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config, styles: newPalette(config.UseColors)}, nil
}

// Config returns the current configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateLoadReport writes the outcome of one ingestion pass
func (rg *ReportGenerator) GenerateLoadReport(report *ingest.LoadReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("load report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.consoleLoadReport(report, writer)
	case FormatJSON:
		return writeJSON(writer, report)
	case FormatCSV:
		return rg.csvLoadReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateResult writes the result of the named analytic
func (rg *ReportGenerator) GenerateResult(name string, result interface{}, writer io.Writer) error {
	switch rg.config.Format {
	case FormatConsole:
		return rg.consoleResult(name, result, writer)
	case FormatJSON:
		return writeJSON(writer, map[string]interface{}{
			"analytic": name,
			"result":   result,
		})
	case FormatCSV:
		return rg.csvResult(name, result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// ExportLedger writes every row of the canonical table as CSV, oldest first.
// The configured format is ignored.
func (rg *ReportGenerator) ExportLedger(table *models.Table, writer io.Writer) error {
	w := rg.csvWriter(writer)
	if rg.config.CSVHeaders {
		if err := w.Write(ledgerHeaders); err != nil {
			return fmt.Errorf("failed to write ledger headers: %w", err)
		}
	}
	for _, tx := range table.Rows() {
		if err := w.Write(ledgerRecord(&tx)); err != nil {
			return fmt.Errorf("failed to write ledger row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

var ledgerHeaders = []string{
	"timestamp",
	"source",
	models.ColDirection,
	models.ColAmount,
	models.ColCategory,
	models.ColCounterparty,
	models.ColDescription,
	models.ColPaymentMethod,
	models.ColStatus,
	models.ColOrderID,
	models.ColRemark,
	"is_refund",
}

func ledgerRecord(tx *models.Transaction) []string {
	return []string{
		tx.Timestamp.Format("2006-01-02 15:04:05"),
		string(tx.Source),
		string(tx.Direction),
		tx.Amount.StringFixed(2),
		tx.Category,
		tx.Counterparty,
		tx.Description,
		tx.PaymentMethod,
		tx.Status,
		tx.OrderID,
		tx.Remark,
		strconv.FormatBool(tx.IsRefund),
	}
}

func writeJSON(writer io.Writer, v interface{}) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}

func (rg *ReportGenerator) csvWriter(writer io.Writer) *csv.Writer {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	return w
}

// Console output

func (rg *ReportGenerator) consoleLoadReport(report *ingest.LoadReport, writer io.Writer) error {
	s := rg.styles
	fmt.Fprintln(writer, s.title.Render("BILL LOAD REPORT"))
	fmt.Fprintf(writer, "Run:      %s\n", report.RunID)
	fmt.Fprintf(writer, "Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Duration: %v\n\n", report.Duration.Round(time.Millisecond))

	rows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		status := s.success.Render("loaded")
		if f.Skipped {
			status = s.warning.Render(fmt.Sprintf("skipped (%s)", f.ErrorCode))
		}
		rows = append(rows, []string{
			rg.cell(filepath.Base(f.File)),
			f.Platform.Label(),
			f.Encoding,
			strconv.Itoa(f.Rows),
			strconv.Itoa(f.Refunds),
			status,
		})
	}
	if err := rg.writeTable(writer, []string{"File", "Platform", "Encoding", "Rows", "Refunds", "Status"}, rows); err != nil {
		return err
	}

	fmt.Fprintf(writer, "\nTotal rows: %d (refunds: %d), skipped files: %d\n", report.TotalRows, report.Refunds, report.Skipped)
	if summary := report.SkipSummary(); summary != nil {
		fmt.Fprintln(writer, s.warning.Render(summary.Error()))
	}
	return nil
}

func (rg *ReportGenerator) consoleResult(name string, result interface{}, writer io.Writer) error {
	fmt.Fprintln(writer, rg.styles.title.Render(strings.ToUpper(name)))

	switch v := result.(type) {
	case analytics.TransactionPage:
		if err := rg.consoleTransactions(v.Transactions, writer); err != nil {
			return err
		}
		p := v.Pagination
		fmt.Fprintln(writer, rg.styles.subtle.Render(fmt.Sprintf("page %d/%d, %d records", p.CurrentPage, p.TotalPages, p.TotalRecords)))
		return nil
	case []analytics.TransactionView:
		return rg.consoleTransactions(v, writer)
	case []stats.Bucket:
		rows := make([][]string, 0, len(v))
		for _, b := range v {
			rows = append(rows, []string{rg.cell(b.Name), formatAmount(b.Value)})
		}
		return rg.writeTable(writer, []string{"Name", "Value"}, rows)
	default:
		body, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", name, err)
		}
		fmt.Fprintln(writer, rg.styles.box.Render(string(body)))
		return nil
	}
}

func (rg *ReportGenerator) consoleTransactions(views []analytics.TransactionView, writer io.Writer) error {
	if len(views) == 0 {
		fmt.Fprintln(writer, rg.styles.subtle.Render("no transactions"))
		return nil
	}

	shown := views
	if len(shown) > rg.config.MaxRows {
		shown = shown[:rg.config.MaxRows]
	}
	rows := make([][]string, 0, len(shown))
	for _, tx := range shown {
		kind := tx.Type
		if tx.IsRefund {
			kind = rg.styles.warning.Render("退款")
		}
		rows = append(rows, []string{
			tx.Time,
			tx.Source.Label(),
			kind,
			formatAmount(tx.Amount),
			rg.cell(tx.Category),
			rg.cell(tx.Counterparty),
			rg.cell(tx.Description),
		})
	}
	if err := rg.writeTable(writer, []string{"Time", "Platform", "Type", "Amount", "Category", "Counterparty", "Description"}, rows); err != nil {
		return err
	}
	if hidden := len(views) - len(shown); hidden > 0 {
		fmt.Fprintf(writer, "... and %d more\n", hidden)
	}
	return nil
}

func (rg *ReportGenerator) writeTable(writer io.Writer, headers []string, rows [][]string) error {
	w := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)

	styled := make([]string, len(headers))
	rules := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = rg.styles.header.Render(h)
		rules[i] = strings.Repeat("─", len(h))
	}
	if _, err := fmt.Fprintln(w, strings.Join(styled, "\t")); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := fmt.Fprintln(w, strings.Join(rules, "\t")); err != nil {
		return fmt.Errorf("failed to write separator: %w", err)
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return w.Flush()
}

// cell truncates long text to the configured cell width
func (rg *ReportGenerator) cell(s string) string {
	runes := []rune(s)
	if len(runes) <= rg.config.CellWidth {
		return s
	}
	return string(runes[:rg.config.CellWidth-2]) + ".."
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// CSV output

func (rg *ReportGenerator) csvLoadReport(report *ingest.LoadReport, writer io.Writer) error {
	w := rg.csvWriter(writer)
	if rg.config.CSVHeaders {
		headers := []string{"file", "platform", "encoding", "rows", "refunds", "skipped_rows", "skipped", "error_code"}
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, f := range report.Files {
		record := []string{
			f.File,
			string(f.Platform),
			f.Encoding,
			strconv.Itoa(f.Rows),
			strconv.Itoa(f.Refunds),
			strconv.Itoa(f.SkippedRows),
			strconv.FormatBool(f.Skipped),
			string(f.ErrorCode),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write file record: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (rg *ReportGenerator) csvResult(name string, result interface{}, writer io.Writer) error {
	var headers []string
	var records [][]string

	switch v := result.(type) {
	case analytics.TransactionPage:
		headers, records = transactionRecords(v.Transactions)
	case []analytics.TransactionView:
		headers, records = transactionRecords(v)
	case []stats.Bucket:
		headers = []string{"name", "value"}
		for _, b := range v {
			records = append(records, []string{b.Name, formatAmount(b.Value)})
		}
	default:
		return apperrors.New(apperrors.CategoryValidation, apperrors.CodeInvalidQuery,
			fmt.Sprintf("analytic '%s' has no CSV form", name)).
			WithSuggestion("use --format json or --format console for this analytic").
			WithContext("result_type", fmt.Sprintf("%T", result))
	}

	w := rg.csvWriter(writer)
	if rg.config.CSVHeaders {
		if err := w.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s records: %w", name, err)
	}
	return nil
}

func transactionRecords(views []analytics.TransactionView) ([]string, [][]string) {
	headers := []string{"time", "source", "type", "amount", "category", "counterparty", "description", "status", "is_refund"}
	records := make([][]string, 0, len(views))
	for _, tx := range views {
		records = append(records, []string{
			tx.Time,
			string(tx.Source),
			tx.Type,
			formatAmount(tx.Amount),
			tx.Category,
			tx.Counterparty,
			tx.Description,
			tx.Status,
			strconv.FormatBool(tx.IsRefund),
		})
	}
	return headers, records
}
