package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/ingest"
	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

func plainConfig(format OutputFormat) *ReportConfig {
	config := DefaultReportConfig()
	config.Format = format
	config.UseColors = false
	return config
}

func newGenerator(t *testing.T, format OutputFormat) *ReportGenerator {
	t.Helper()
	generator, err := NewReportGenerator(plainConfig(format))
	require.NoError(t, err)
	return generator
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *ReportConfig)
		nilConfig   bool
		expectError bool
	}{
		{name: "default config", nilConfig: true},
		{name: "valid config", mutate: func(c *ReportConfig) {}},
		{name: "invalid format", mutate: func(c *ReportConfig) { c.Format = "xml" }, expectError: true},
		{name: "no rows", mutate: func(c *ReportConfig) { c.MaxRows = 0 }, expectError: true},
		{name: "narrow cells", mutate: func(c *ReportConfig) { c.CellWidth = 4 }, expectError: true},
		{name: "quote delimiter", mutate: func(c *ReportConfig) { c.CSVDelimiter = '"' }, expectError: true},
		{name: "semicolon delimiter", mutate: func(c *ReportConfig) { c.CSVDelimiter = ';' }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var config *ReportConfig
			if !tt.nilConfig {
				config = DefaultReportConfig()
				tt.mutate(config)
			}

			generator, err := NewReportGenerator(config)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, generator.Config())
		})
	}
}

func TestOutputFormatValidation(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{FormatConsole, true},
		{FormatJSON, true},
		{FormatCSV, true},
		{"invalid", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.format.IsValid())
		})
	}
}

func sampleLoadReport() *ingest.LoadReport {
	return &ingest.LoadReport{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Files: []ingest.FileResult{
			{File: "alipay.csv", Platform: models.SourceAlipay, Encoding: "gbk", Rows: 12, Refunds: 1},
			{File: "broken.csv", Platform: models.SourceWeChat, Skipped: true, ErrorCode: apperrors.CodeDecoding, Error: "cannot decode"},
		},
		TotalRows: 12,
		Refunds:   1,
		Skipped:   1,
	}
}

func TestGenerateLoadReport(t *testing.T) {
	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newGenerator(t, FormatConsole).GenerateLoadReport(sampleLoadReport(), &buf))

		out := buf.String()
		assert.Contains(t, out, "BILL LOAD REPORT")
		assert.Contains(t, out, "run-1")
		assert.Contains(t, out, "支付宝")
		assert.Contains(t, out, "skipped (decoding_error)")
		assert.Contains(t, out, "Total rows: 12 (refunds: 1), skipped files: 1")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newGenerator(t, FormatJSON).GenerateLoadReport(sampleLoadReport(), &buf))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded["run_id"])
		assert.Equal(t, 1.0, decoded["skipped_files"])
		assert.Len(t, decoded["files"], 2)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, newGenerator(t, FormatCSV).GenerateLoadReport(sampleLoadReport(), &buf))

		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "file", records[0][0])
		assert.Equal(t, []string{"broken.csv", "wechat", "", "0", "0", "0", "true", "decoding_error"}, records[2])
	})

	t.Run("nil report", func(t *testing.T) {
		assert.Error(t, newGenerator(t, FormatJSON).GenerateLoadReport(nil, io.Discard))
	})
}

func samplePage() analytics.TransactionPage {
	return analytics.TransactionPage{
		Transactions: []analytics.TransactionView{
			{Time: "2024-06-02 10:00:00", Date: "2024-06-02", Type: "支出", Amount: -88, Category: "购物", Counterparty: "商场", Source: models.SourceAlipay, IsRefund: true},
			{Time: "2024-06-01 09:00:00", Date: "2024-06-01", Type: "支出", Amount: 12.5, Category: "餐饮", Counterparty: "早餐店", Description: "豆浆油条", Source: models.SourceWeChat},
		},
		Pagination: analytics.Pagination{CurrentPage: 1, PerPage: 20, TotalPages: 1, TotalRecords: 2},
	}
}

func TestGenerateResultJSON(t *testing.T) {
	var buf bytes.Buffer
	buckets := []stats.Bucket{{Name: "餐饮", Value: 42.5}}
	require.NoError(t, newGenerator(t, FormatJSON).GenerateResult("category_pie", buckets, &buf))

	var decoded struct {
		Analytic string         `json:"analytic"`
		Result   []stats.Bucket `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "category_pie", decoded.Analytic)
	assert.Equal(t, buckets, decoded.Result)
}

func TestGenerateResultConsole(t *testing.T) {
	generator := newGenerator(t, FormatConsole)

	t.Run("transaction page", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, generator.GenerateResult("transactions", samplePage(), &buf))

		out := buf.String()
		assert.Contains(t, out, "TRANSACTIONS")
		assert.Contains(t, out, "退款")
		assert.Contains(t, out, "-88.00")
		assert.Contains(t, out, "微信")
		assert.Contains(t, out, "page 1/1, 2 records")
	})

	t.Run("row limit", func(t *testing.T) {
		config := plainConfig(FormatConsole)
		config.MaxRows = 1
		limited, err := NewReportGenerator(config)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, limited.GenerateResult("top", samplePage().Transactions, &buf))
		assert.Contains(t, buf.String(), "... and 1 more")
		assert.NotContains(t, buf.String(), "早餐店")
	})

	t.Run("non tabular result", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, generator.GenerateResult("engel", analytics.Engel{Ratio: 20.63, Amount: 130}, &buf))
		assert.Contains(t, buf.String(), `"ratio": 20.63`)
	})

	t.Run("long cells are truncated", func(t *testing.T) {
		var buf bytes.Buffer
		long := strings.Repeat("长", 40)
		require.NoError(t, generator.GenerateResult("category_pie", []stats.Bucket{{Name: long, Value: 1}}, &buf))
		assert.NotContains(t, buf.String(), long)
		assert.Contains(t, buf.String(), strings.Repeat("长", 22)+"..")
	})
}

func TestGenerateResultCSV(t *testing.T) {
	generator := newGenerator(t, FormatCSV)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateResult("transactions", samplePage(), &buf))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "time", records[0][0])
	assert.Equal(t, "-88.00", records[1][3])
	assert.Equal(t, "true", records[1][8])

	err = generator.GenerateResult("engel", analytics.Engel{}, io.Discard)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidQuery))
}

func TestSafeGeneratorFallsBackToConsole(t *testing.T) {
	generator, err := NewSafeReportGenerator(plainConfig(FormatCSV), logger.NewWithWriter(io.Discard, logger.ErrorLevel))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, generator.GenerateResultSafely("engel", analytics.Engel{Ratio: 10}, &buf))
	assert.Contains(t, buf.String(), "NOTE:")
	assert.Contains(t, buf.String(), "ENGEL")

	err = generator.GenerateResultSafely("engel", analytics.Engel{}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnexpectedError))
}

func TestNewSafeReportGeneratorRejectsInvalidConfig(t *testing.T) {
	_, err := NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidConfig))
}

func ledgerTable() *models.Table {
	paid := models.Transaction{
		Direction:     models.DirectionExpense,
		Amount:        decimal.RequireFromString("12.5"),
		Category:      "餐饮",
		Description:   "豆浆, 油条",
		Counterparty:  "早餐店",
		Status:        "交易成功",
		PaymentMethod: "余额宝",
		Source:        models.SourceAlipay,
	}
	paid.SetTimestamp(time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC))

	refund := models.Transaction{
		Direction:    models.DirectionExpense,
		Amount:       decimal.NewFromInt(88),
		Category:     "购物",
		Counterparty: "商场",
		Status:       "已全额退款",
		Source:       models.SourceWeChat,
	}
	refund.SetTimestamp(time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC))
	refund.MarkRefund()

	return models.NewTable([]models.Transaction{paid, refund}, models.RequiredColumns)
}

func TestExportLedger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newGenerator(t, FormatConsole).ExportLedger(ledgerTable(), &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ledgerHeaders, records[0])
	assert.Equal(t, []string{
		"2024-06-01 08:30:00", "alipay", "expense", "12.50", "餐饮", "早餐店", "豆浆, 油条", "余额宝", "交易成功", "", "", "false",
	}, records[1])
	assert.Equal(t, "-88.00", records[2][3])
	assert.Equal(t, "true", records[2][11])
}

func TestExportLedgerToFile(t *testing.T) {
	generator, err := NewSafeReportGenerator(plainConfig(FormatJSON), logger.NewWithWriter(io.Discard, logger.ErrorLevel))
	require.NoError(t, err)

	t.Run("writes requested path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.csv")
		written, err := generator.ExportLedgerToFile(ledgerTable(), path)
		require.NoError(t, err)
		assert.Equal(t, path, written)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(string(data), "\n"))
	})

	t.Run("falls back to backup path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "ledger-fallback-test.csv")
		written, err := generator.ExportLedgerToFile(ledgerTable(), path)
		require.NoError(t, err)
		t.Cleanup(func() { os.Remove(written) })

		assert.Equal(t, generateBackupPath(path), written)
		assert.FileExists(t, written)
	})

	t.Run("reports close failure", func(t *testing.T) {
		file := &failingCloser{err: errors.New("input/output error")}
		err := generator.writeLedgerFile(ledgerTable(), file, "ledger.csv")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeFileRead))
		assert.True(t, file.closed)
		assert.NotZero(t, file.Len(), "rows were written before the close")
	})
}

type failingCloser struct {
	bytes.Buffer
	err    error
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return f.err
}
