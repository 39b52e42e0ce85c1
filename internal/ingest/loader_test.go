package ingest

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/testutil"
	apperrors "bill-analytics-service/pkg/errors"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	loader, err := NewLoader(nil, nil)
	require.NoError(t, err)
	return loader
}

func roundTripRows() []testutil.BillRow {
	return []testutil.BillRow{
		{Time: "2024-03-01 10:00:00", Category: "转账红包", Counterparty: "公司", Description: "报销", Direction: "收入", Amount: "100.00", Method: "余额宝", Status: "交易成功"},
		{Time: "2024-03-02 11:00:00", Category: "日用百货", Counterparty: "盒马鲜生", Description: "退货", Direction: "不计收支", Amount: "50.00", Method: "花呗", Status: "退款成功"},
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteAlipayCSV(t, dir, "alipay.csv", roundTripRows(), testutil.AlipayOptions{})

	table, report, err := newTestLoader(t).Load([]string{path})
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.True(t, table.At(0).Amount.Equal(decimal.RequireFromString("100.00")))
	assert.False(t, table.At(0).IsRefund)
	assert.True(t, table.At(1).Amount.Equal(decimal.RequireFromString("-50.00")))
	assert.True(t, table.At(1).IsRefund)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 1, report.Refunds)
	assert.Zero(t, report.Skipped)
	assert.Nil(t, report.SkipSummary())
}

func TestLoadMergesPlatformsInTimeOrder(t *testing.T) {
	dir := t.TempDir()
	alipay := testutil.WriteAlipayCSV(t, dir, "a.csv", []testutil.BillRow{
		{Time: "2024-01-03 09:00:00", Category: "餐饮美食", Counterparty: "瑞幸咖啡", Description: "拿铁", Direction: "支出", Amount: "20.00", Status: "交易成功"},
		{Time: "2024-01-01 09:00:00", Category: "餐饮美食", Counterparty: "瑞幸咖啡", Description: "美式", Direction: "支出", Amount: "15.00", Status: "交易成功"},
	}, testutil.AlipayOptions{})
	wechat := testutil.WriteWeChatCSV(t, dir, "b.csv", []testutil.BillRow{
		{Time: "2024-01-02 09:00:00", Category: "商户消费", Counterparty: "美团", Description: "早餐", Direction: "支出", Amount: "¥8.00", Method: "零钱", Status: "支付成功"},
	})

	table, report, err := newTestLoader(t).Load([]string{alipay, wechat})
	require.NoError(t, err)

	rows := table.Rows()
	require.Len(t, rows, 3)
	assert.True(t, IsSorted(rows))
	assert.Equal(t, models.SourceAlipay, rows[0].Source)
	assert.Equal(t, models.SourceWeChat, rows[1].Source)
	assert.Equal(t, "2024-01-03", rows[2].Date)

	require.Len(t, report.Files, 2)
	assert.Equal(t, models.SourceAlipay, report.Files[0].Platform)
	assert.Equal(t, "gbk", report.Files[0].Encoding)
	assert.Equal(t, models.SourceWeChat, report.Files[1].Platform)
}

func TestLoadSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteAlipayCSV(t, dir, "good.csv", roundTripRows(), testutil.AlipayOptions{})
	broken := testutil.WriteFile(t, dir, "broken.csv", []byte{0xff, 0xff, 0x80, 0xff})
	headerless := testutil.WriteFile(t, dir, "headerless.csv", []byte("a,b\n1,2\n"))
	notes := testutil.WriteFile(t, dir, "notes.txt", []byte("hello"))

	badAmount := roundTripRows()
	badAmount[0].Amount = "N/A"
	malformed := testutil.WriteAlipayCSV(t, dir, "malformed.csv", badAmount, testutil.AlipayOptions{})

	table, report, err := newTestLoader(t).Load([]string{good, broken, headerless, notes, malformed})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	assert.Equal(t, 4, report.Skipped)
	codes := map[string]apperrors.ErrorCode{}
	for _, f := range report.Files {
		if f.Skipped {
			codes[filepath.Base(f.File)] = f.ErrorCode
		}
	}
	assert.Equal(t, apperrors.CodeDecoding, codes["broken.csv"])
	assert.Equal(t, apperrors.CodeHeaderNotFound, codes["headerless.csv"])
	assert.Equal(t, apperrors.CodeUnsupportedFormat, codes["notes.txt"])
	assert.Equal(t, apperrors.CodeMalformedAmount, codes["malformed.csv"])

	summary := report.SkipSummary()
	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.Total)
	assert.True(t, summary.HasCode(apperrors.CodeMalformedAmount))
}

func TestLoadSkipsSpreadsheetThatIsNotABill(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteWeChatXLSX(t, dir, "bill.xlsx", []testutil.BillRow{
		{Time: "2024-05-01 12:00:00", Category: "商户消费", Counterparty: "美团", Description: "午餐", Direction: "支出", Amount: "¥25.00", Method: "零钱", Status: "支付成功"},
	}, nil)
	other := testutil.WriteWeChatXLSX(t, dir, "other.xlsx", nil, []string{"月度预算表"})

	// other.xlsx still carries a header row but at the wrong depth with no banner
	table, report, err := newTestLoader(t).Load([]string{good, other})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	require.Len(t, report.Files, 2)
	assert.True(t, report.Files[1].Skipped)
	assert.Equal(t, apperrors.CodeUnsupportedFormat, report.Files[1].ErrorCode)
}

func TestLoadFailsWithNoData(t *testing.T) {
	dir := t.TempDir()
	broken := testutil.WriteFile(t, dir, "broken.csv", []byte{0xff, 0xff})

	_, report, err := newTestLoader(t).Load([]string{broken})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoData))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Skipped)

	_, _, err = newTestLoader(t).Load(nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNoData))
}

func TestLoadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	gen := &testutil.Generator{
		Count:     120,
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		MinAmount: decimal.NewFromInt(1),
		MaxAmount: decimal.NewFromInt(800),
		Seed:      7,
	}
	rows := gen.Generate()
	a := testutil.WriteAlipayCSV(t, dir, "a.csv", rows[:60], testutil.AlipayOptions{})
	b := testutil.WriteWeChatCSV(t, dir, "b.csv", rows[60:])

	loader := newTestLoader(t)
	first, _, err := loader.Load([]string{a, b})
	require.NoError(t, err)
	second, _, err := loader.Load([]string{a, b})
	require.NoError(t, err)

	assert.Equal(t, first.Rows(), second.Rows())
	assert.Equal(t, 120, first.Len())

	merged := first.Rows()
	assert.True(t, IsSorted(merged))
	for _, tx := range merged {
		if tx.IsRefund {
			assert.False(t, tx.Amount.IsPositive(), "refund %s has positive amount", tx.OrderID)
		}
	}
}

func TestLoadReportsProgress(t *testing.T) {
	dir := t.TempDir()
	a := testutil.WriteAlipayCSV(t, dir, "a.csv", roundTripRows(), testutil.AlipayOptions{})
	b := testutil.WriteFile(t, dir, "b.txt", []byte("x"))

	var calls int32
	cfg := DefaultConfig()
	cfg.OnProgress = func(done, total int, item string) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 2, total)
	}
	loader, err := NewLoader(cfg, nil)
	require.NoError(t, err)

	_, _, err = loader.Load([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewLoaderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConcurrentFiles = 0

	_, err := NewLoader(cfg, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidConfig))
}

func TestLoadFileSet(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteAlipayCSV(t, dir, "z.csv", roundTripRows(), testutil.AlipayOptions{})
	testutil.WriteFile(t, dir, "readme.md", []byte("ignored"))

	table, report, err := newTestLoader(t).LoadFileSet(NewDirFileSet(dir))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Len(t, report.Files, 1)

	_, _, err = newTestLoader(t).LoadFileSet(NewDirFileSet(filepath.Join(dir, "missing")))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFileNotFound))
}
