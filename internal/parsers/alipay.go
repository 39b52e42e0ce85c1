package parsers

import (
	"encoding/csv"
	"strings"
	"time"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/pkg/logger"
)

// AlipayParser normalizes Alipay CSV exports.
//
// Alipay exports are GBK encoded (newer ones may be UTF-8), start with a
// free-form preamble and mark refunds through an exact status value.
type AlipayParser struct {
	cfg      *Config
	platform *profiles.Platform
	reader   *Reader
	logger   logger.Logger
}

// NewAlipayParser creates a new AlipayParser
func NewAlipayParser(cfg *Config, log logger.Logger) *AlipayParser {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = logger.OrGlobal(log, "alipay_parser")
	return &AlipayParser{
		cfg:      cfg,
		platform: &cfg.Profile.Platforms.Alipay,
		reader:   NewReader(log),
		logger:   log,
	}
}

// Source returns models.SourceAlipay
func (p *AlipayParser) Source() models.Source {
	return models.SourceAlipay
}

// Normalize reads an Alipay CSV export into a frame
func (p *AlipayParser) Normalize(path string) (*models.Frame, *ParseStats, error) {
	start := time.Now()

	doc, err := p.reader.Open(path, p.platform.Encodings, p.platform.HeaderMarkers)
	if err != nil {
		return nil, nil, err
	}

	header, records, err := readCSV(doc)
	if err != nil {
		return nil, nil, err
	}

	ctx := NewParseContext(path, header, doc.HeaderIndex+1, p.platform.Columns)
	if idx, name := p.statusColumn(doc, ctx); idx >= 0 {
		ctx.SetColumn(models.ColStatus, idx)
		p.logger.WithFields(logger.Fields{
			"file":          path,
			"status_column": name,
		}).Debug("Recovered status column from status row")
	}

	builder := &rowBuilder{cfg: p.cfg, platform: p.platform, source: models.SourceAlipay, ctx: ctx}
	frame := &models.Frame{Source: models.SourceAlipay, File: path, Rows: make([]models.Transaction, 0)}
	stats := &ParseStats{Encoding: doc.Encoding, HeaderLine: doc.HeaderIndex + 1}
	if err := builder.normalize(records, frame, stats); err != nil {
		return nil, nil, err
	}

	p.logger.WithFields(logger.Fields{
		"file":     path,
		"encoding": doc.Encoding,
		"rows":     stats.Normalized,
		"refunds":  stats.Refunds,
		"skipped":  stats.SkippedRows,
		"duration": time.Since(start).String(),
	}).Info("Alipay bill normalized")

	return frame, stats, nil
}

// statusColumn looks for a status row in the preamble above the header.
// Older exports place a line there whose first cell names the column that
// carries the transaction status. Returns -1 when no such column exists in
// the header, in which case the profile's status mapping applies.
func (p *AlipayParser) statusColumn(doc *Document, ctx *ParseContext) (int, string) {
	if p.platform.StatusMarker == "" {
		return -1, ""
	}
	row := FindMarkerRow(doc.Lines, []string{p.platform.StatusMarker}, doc.HeaderIndex)
	if row < 0 {
		return -1, ""
	}
	cells := splitCSVLine(doc.Lines[row])
	if len(cells) == 0 {
		return -1, ""
	}
	name := cleanCell(cells[0])
	return ctx.GetColumnIndex(name), name
}

func splitCSVLine(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil
	}
	return record
}
