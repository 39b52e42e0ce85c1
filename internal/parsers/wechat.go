package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// WeChatParser normalizes WeChat Pay exports in both CSV and xlsx form.
// Refunds are recognised by keywords in the current-status column.
type WeChatParser struct {
	cfg      *Config
	platform *profiles.Platform
	reader   *Reader
	logger   logger.Logger
}

// NewWeChatParser creates a new WeChatParser
func NewWeChatParser(cfg *Config, log logger.Logger) *WeChatParser {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = logger.OrGlobal(log, "wechat_parser")
	return &WeChatParser{
		cfg:      cfg,
		platform: &cfg.Profile.Platforms.WeChat,
		reader:   NewReader(log),
		logger:   log,
	}
}

// Source returns models.SourceWeChat
func (p *WeChatParser) Source() models.Source {
	return models.SourceWeChat
}

// Normalize reads a WeChat export into a frame, dispatching on extension
func (p *WeChatParser) Normalize(path string) (*models.Frame, *ParseStats, error) {
	start := time.Now()

	var (
		frame *models.Frame
		stats *ParseStats
		err   error
	)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		frame, stats, err = p.normalizeSpreadsheet(path)
	} else {
		frame, stats, err = p.normalizeCSV(path)
	}
	if err != nil {
		return nil, nil, err
	}

	p.logger.WithFields(logger.Fields{
		"file":     path,
		"encoding": stats.Encoding,
		"rows":     stats.Normalized,
		"refunds":  stats.Refunds,
		"skipped":  stats.SkippedRows,
		"duration": time.Since(start).String(),
	}).Info("WeChat bill normalized")

	return frame, stats, nil
}

func (p *WeChatParser) normalizeCSV(path string) (*models.Frame, *ParseStats, error) {
	doc, err := p.reader.Open(path, p.platform.Encodings, p.platform.HeaderMarkers)
	if err != nil {
		return nil, nil, err
	}

	header, records, err := readCSV(doc)
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{Encoding: doc.Encoding, HeaderLine: doc.HeaderIndex + 1}
	return p.normalizeRecords(path, header, doc.HeaderIndex+1, records, stats)
}

// normalizeSpreadsheet reads the first sheet of an xlsx export. The table
// normally starts after a fixed preamble; if that row lacks the required
// columns, the row after the detail-list banner is tried. A sheet with
// neither is not a bill and yields ErrNotABill.
func (p *WeChatParser) normalizeSpreadsheet(path string) (*models.Frame, *ParseStats, error) {
	sheet := p.platform.Spreadsheet
	if sheet == nil {
		return nil, nil, apperrors.FileError(apperrors.CodeUnsupportedFormat, path, nil)
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, nil, apperrors.FileError(apperrors.CodeFileRead, path, err)
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.DecodingError(path, []string{"xlsx"}, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrNotABill)
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, nil, apperrors.DecodingError(path, []string{"xlsx"}, err)
	}

	headerIdx := locateSpreadsheetHeader(rows, sheet)
	if headerIdx < 0 {
		return nil, nil, fmt.Errorf("%s lacks columns %s: %w",
			path, strings.Join(sheet.RequiredColumns, ", "), ErrNotABill)
	}

	records := make([]sourceRecord, 0, len(rows)-headerIdx-1)
	for i := headerIdx + 1; i < len(rows); i++ {
		records = append(records, sourceRecord{fields: rows[i], line: i + 1})
	}

	stats := &ParseStats{Encoding: "xlsx", HeaderLine: headerIdx + 1}
	return p.normalizeRecords(path, rows[headerIdx], headerIdx+1, records, stats)
}

func (p *WeChatParser) normalizeRecords(path string, header []string, headerLine int, records []sourceRecord, stats *ParseStats) (*models.Frame, *ParseStats, error) {
	ctx := NewParseContext(path, header, headerLine, p.platform.Columns)
	builder := &rowBuilder{cfg: p.cfg, platform: p.platform, source: models.SourceWeChat, ctx: ctx}
	frame := &models.Frame{Source: models.SourceWeChat, File: path, Rows: make([]models.Transaction, 0)}
	if err := builder.normalize(records, frame, stats); err != nil {
		return nil, nil, err
	}
	return frame, stats, nil
}

func locateSpreadsheetHeader(rows [][]string, sheet *profiles.Spreadsheet) int {
	if sheet.HeaderRow < len(rows) && rowHasColumns(rows[sheet.HeaderRow], sheet.RequiredColumns) {
		return sheet.HeaderRow
	}
	if sheet.Banner == "" {
		return -1
	}
	for i, row := range rows {
		for _, cell := range row {
			if strings.Contains(cell, sheet.Banner) {
				if i+1 < len(rows) && rowHasColumns(rows[i+1], sheet.RequiredColumns) {
					return i + 1
				}
				return -1
			}
		}
	}
	return -1
}

func rowHasColumns(row []string, required []string) bool {
	present := make(map[string]bool, len(row))
	for _, cell := range row {
		present[cleanCell(cell)] = true
	}
	for _, col := range required {
		if !present[col] {
			return false
		}
	}
	return true
}
