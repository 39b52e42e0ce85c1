// Package parsers turns raw Alipay and WeChat Pay bill exports into
// normalized frames of canonical transactions.
//
// The pipeline for one file is:
//   - Detector: classify the file by extension and a banner sniff
//   - Reader: decode with candidate encodings and locate the header row
//   - Normalizer: map platform columns onto the canonical schema, clean
//     amounts, parse timestamps, derive calendar fields and refund flags
//
// Column names, encodings, markers and refund rules all come from the
// versioned profile in internal/profiles, so export-format drift is handled
// by editing configuration rather than code.
//
// Example usage:
//
//	cfg := parsers.DefaultConfig()
//	source, _ := parsers.NewDetector(cfg).Detect(path)
//	normalizer, _ := parsers.ForSource(source, cfg, nil)
//	frame, stats, err := normalizer.Normalize(path)
package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// ErrNotABill is returned for files that carry no recognizable bill table.
// Loaders skip such files with a warning instead of failing.
var ErrNotABill = errors.New("file is not a bill export")

// Normalizer converts one bill file into a canonical frame
type Normalizer interface {
	Source() models.Source
	Normalize(path string) (*models.Frame, *ParseStats, error)
}

// ForSource returns the normalizer for a detected platform
func ForSource(source models.Source, cfg *Config, log logger.Logger) (Normalizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ConfigurationError("parsers", err.Error(), err)
	}
	switch source {
	case models.SourceAlipay:
		return NewAlipayParser(cfg, log), nil
	case models.SourceWeChat:
		return NewWeChatParser(cfg, log), nil
	default:
		return nil, apperrors.New(apperrors.CategoryFile, apperrors.CodeUnsupportedFormat,
			fmt.Sprintf("no normalizer for platform %q", source))
	}
}

// ParseStats contains statistics about one normalized file
type ParseStats struct {
	Encoding    string `json:"encoding,omitempty"`
	HeaderLine  int    `json:"header_line"`
	DataRows    int    `json:"data_rows"`
	Normalized  int    `json:"normalized"`
	Refunds     int    `json:"refunds"`
	SkippedRows int    `json:"skipped_rows"`
}

// String returns a string representation of ParseStats
func (ps *ParseStats) String() string {
	return fmt.Sprintf("ParseStats{DataRows: %d, Normalized: %d, Refunds: %d, Skipped: %d}",
		ps.DataRows, ps.Normalized, ps.Refunds, ps.SkippedRows)
}

// ParseContext maps a file's header onto canonical columns
type ParseContext struct {
	File       string
	HeaderLine int
	Headers    []string
	columns    map[string]int
}

// NewParseContext resolves each canonical column to the first matching
// source header named in mapping.
func NewParseContext(file string, headers []string, headerLine int, mapping map[string][]string) *ParseContext {
	cleaned := make([]string, len(headers))
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		cleaned[i] = cleanCell(h)
		if _, seen := index[cleaned[i]]; !seen {
			index[cleaned[i]] = i
		}
	}

	pc := &ParseContext{
		File:       file,
		HeaderLine: headerLine,
		Headers:    cleaned,
		columns:    make(map[string]int),
	}
	for canonical, names := range mapping {
		for _, name := range names {
			if i, ok := index[name]; ok {
				pc.columns[canonical] = i
				break
			}
		}
	}
	return pc
}

// GetColumnIndex returns the index of a source header, or -1
func (pc *ParseContext) GetColumnIndex(name string) int {
	for i, h := range pc.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// SetColumn overrides the source index used for a canonical column
func (pc *ParseContext) SetColumn(canonical string, index int) {
	pc.columns[canonical] = index
}

// HasColumn reports whether the canonical column was found in the header
func (pc *ParseContext) HasColumn(canonical string) bool {
	_, ok := pc.columns[canonical]
	return ok
}

// Columns lists the canonical columns present, sorted
func (pc *ParseContext) Columns() []string {
	cols := make([]string, 0, len(pc.columns))
	for c := range pc.columns {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Field returns the cleaned value of a canonical column in record
func (pc *ParseContext) Field(record []string, canonical string) (string, bool) {
	i, ok := pc.columns[canonical]
	if !ok || i >= len(record) {
		return "", false
	}
	return cleanCell(record[i]), true
}

// cleanCell trims whitespace, tabs and the stray BOM some exports leave in cells
func cleanCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}

// sourceRecord is one CSV or spreadsheet row with its 1-based line number
type sourceRecord struct {
	fields []string
	line   int
}

// readCSV parses the header line and every following record of doc
func readCSV(doc *Document) ([]string, []sourceRecord, error) {
	reader := csv.NewReader(strings.NewReader(doc.Body()))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, apperrors.HeaderNotFoundError(doc.Path, nil)
	}

	records := make([]sourceRecord, 0)
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := doc.HeaderIndex
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line += pe.Line
			}
			return nil, nil, apperrors.Wrap(err, apperrors.CategoryParse, apperrors.CodeFileRead,
				fmt.Sprintf("malformed CSV in %s at line %d", doc.Path, line)).
				WithContext("file", doc.Path)
		}
		line, _ := reader.FieldPos(0)
		line += doc.HeaderIndex
		records = append(records, sourceRecord{fields: fields, line: line})
	}
	return header, records, nil
}

// isFillerRecord reports blank lines and the summary footers exports append
// after the table.
func isFillerRecord(record []string, timestamp string) bool {
	nonEmpty := 0
	for _, cell := range record {
		if cleanCell(cell) != "" {
			nonEmpty++
		}
	}
	return nonEmpty < 2 || timestamp == "" || strings.HasPrefix(timestamp, "-")
}

// rowBuilder converts source records into canonical transactions
type rowBuilder struct {
	cfg      *Config
	platform *profiles.Platform
	source   models.Source
	ctx      *ParseContext
}

// build converts one record. The second return is false for filler rows.
func (b *rowBuilder) build(record []string, line int) (models.Transaction, bool, error) {
	var tx models.Transaction

	rawTime, _ := b.ctx.Field(record, models.ColTimestamp)
	if isFillerRecord(record, rawTime) {
		return tx, false, nil
	}

	ts, err := models.ParseTimeWithFormats(rawTime, b.cfg.Location)
	if err != nil {
		return tx, false, apperrors.InvalidTimestampError(b.ctx.File, line, rawTime)
	}
	tx.SetTimestamp(ts)

	rawAmount, _ := b.ctx.Field(record, models.ColAmount)
	amount, err := models.ParseDecimalFromString(rawAmount, b.platform.CurrencyGlyphs)
	if err != nil {
		return tx, false, apperrors.MalformedAmountError(b.ctx.File, line, rawAmount, err)
	}
	tx.Amount = amount

	defaults := b.cfg.Profile.Defaults
	direction, ok := b.ctx.Field(record, models.ColDirection)
	if !ok || direction == "" {
		direction = defaults.Direction
	}
	tx.Direction = models.ParseDirection(direction)

	tx.Counterparty, ok = b.ctx.Field(record, models.ColCounterparty)
	if !ok || tx.Counterparty == "" {
		tx.Counterparty = defaults.Counterparty
	}

	tx.Category, _ = b.ctx.Field(record, models.ColCategory)
	tx.Description, _ = b.ctx.Field(record, models.ColDescription)
	tx.Status, _ = b.ctx.Field(record, models.ColStatus)
	tx.OrderID, _ = b.ctx.Field(record, models.ColOrderID)
	tx.Remark, _ = b.ctx.Field(record, models.ColRemark)

	method, _ := b.ctx.Field(record, models.ColPaymentMethod)
	tx.PaymentMethod = b.cfg.Profile.PaymentMethods.CanonicalizePaymentMethod(method)

	tx.Source = b.source
	if b.platform.IsRefund(tx.Status) {
		tx.MarkRefund()
	}

	return tx, true, nil
}

// frameColumns lists the canonical columns a frame provides. Columns that
// are back-filled with defaults count as present.
func frameColumns(ctx *ParseContext) []string {
	cols := ctx.Columns()
	for _, c := range []string{models.ColDirection, models.ColCounterparty} {
		if !ctx.HasColumn(c) {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

// normalize converts every record into frame rows, updating stats
func (b *rowBuilder) normalize(records []sourceRecord, frame *models.Frame, stats *ParseStats) error {
	for _, rec := range records {
		stats.DataRows++
		tx, ok, err := b.build(rec.fields, rec.line)
		if err != nil {
			return err
		}
		if !ok {
			stats.SkippedRows++
			continue
		}
		frame.Rows = append(frame.Rows, tx)
	}
	frame.Columns = frameColumns(b.ctx)
	stats.Normalized = len(frame.Rows)
	stats.Refunds = frame.Refunds()
	return nil
}
