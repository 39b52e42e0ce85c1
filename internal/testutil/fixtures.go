// Package testutil writes synthetic Alipay and WeChat Pay bill exports for
// tests. Files are produced in the same encodings and layouts as the real
// exports so they exercise the full ingestion path.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// BillRow is one transaction as it appears in an export
type BillRow struct {
	Time         string
	Category     string
	Counterparty string
	Description  string
	Direction    string
	Amount       string
	Method       string
	Status       string
	OrderID      string
	Remark       string
}

// AlipayOptions controls the Alipay file layout
type AlipayOptions struct {
	// UTF8 writes the file as UTF-8 instead of GBK
	UTF8 bool
	// StatusRow inserts an old-style status row into the preamble
	StatusRow bool
	// Footer appends the record-count footer lines
	Footer bool
}

var alipayHeader = []string{"交易时间", "交易分类", "交易对方", "对方账号", "商品说明", "收/支", "金额", "收/付款方式", "交易状态", "交易订单号", "商家订单号", "备注"}

var wechatHeader = []string{"交易时间", "交易类型", "交易对方", "商品", "收/支", "金额(元)", "支付方式", "当前状态", "交易单号", "商户单号", "备注"}

// WeChatPreamble is the 16-line block WeChat puts above the table
var WeChatPreamble = []string{
	"微信支付账单明细",
	"微信昵称：[测试用户]",
	"起始时间：[2024-01-01 00:00:00] 终止时间：[2024-12-31 23:59:59]",
	"导出类型：[全部]",
	"导出时间：[2025-01-01 10:00:00]",
	"",
	"共N笔记录",
	"收入：N笔 0.00元",
	"支出：N笔 0.00元",
	"中性交易：0笔 0.00元",
	"注：",
	"1. 充值/提现/理财通购买/零钱通存取/信用卡还款等交易，将计入中性交易",
	"2. 本明细仅展示当前账单中的交易，不包括已删除的记录",
	"3. 本明细仅供个人对账使用",
	"",
	"----------------------微信支付账单明细列表--------------------",
}

// AlipayContent renders rows as the text of an Alipay CSV export
func AlipayContent(rows []BillRow, opts AlipayOptions) string {
	var b strings.Builder
	b.WriteString("------------------------------------------------------------------------------------\n")
	b.WriteString("导出信息：\n")
	b.WriteString("姓名：测试用户\n")
	b.WriteString("起始时间：[2024-01-01 00:00:00]    终止时间：[2024-12-31 23:59:59]\n")
	if opts.StatusRow {
		b.WriteString("交易状态,交易成功/退款成功/交易关闭\n")
	}
	b.WriteString(fmt.Sprintf("共%d笔记录\n", len(rows)))
	b.WriteString("----------------------支付宝（中国）网络技术有限公司  电子客户回单------------------------\n")
	b.WriteString(strings.Join(alipayHeader, ",") + ",\n")
	for i, r := range rows {
		order := r.OrderID
		if order == "" {
			order = fmt.Sprintf("2024%012d", i+1)
		}
		fields := []string{r.Time, r.Category, r.Counterparty, "", r.Description, r.Direction, r.Amount, r.Method, r.Status, order + "\t", "", r.Remark}
		b.WriteString(strings.Join(fields, ",") + ",\n")
	}
	if opts.Footer {
		b.WriteString("------------------------------------------------------------------------------------\n")
		b.WriteString("导出时间：[2025-01-01 10:00:00]\n")
	}
	return b.String()
}

// WriteAlipayCSV writes an Alipay export into dir and returns its path
func WriteAlipayCSV(t testing.TB, dir, name string, rows []BillRow, opts AlipayOptions) string {
	t.Helper()
	content := AlipayContent(rows, opts)
	data := []byte(content)
	if !opts.UTF8 {
		encoded, err := simplifiedchinese.GBK.NewEncoder().String(content)
		if err != nil {
			t.Fatalf("failed to encode GBK fixture: %v", err)
		}
		data = []byte(encoded)
	}
	return WriteFile(t, dir, name, data)
}

func wechatRecord(i int, r BillRow) []string {
	order := r.OrderID
	if order == "" {
		order = fmt.Sprintf("4200%014d", i+1)
	}
	return []string{r.Time, r.Category, r.Counterparty, r.Description, r.Direction, r.Amount, r.Method, r.Status, order, "", r.Remark}
}

// WeChatContent renders rows as the text of a WeChat CSV export
func WeChatContent(rows []BillRow) string {
	var b strings.Builder
	for _, line := range WeChatPreamble {
		b.WriteString(line + ",,,,,,,,\n")
	}
	b.WriteString(strings.Join(wechatHeader, ",") + "\n")
	for i, r := range rows {
		b.WriteString(strings.Join(wechatRecord(i, r), ",") + "\n")
	}
	return b.String()
}

// WriteWeChatCSV writes a UTF-8 (with BOM) WeChat export into dir
func WriteWeChatCSV(t testing.TB, dir, name string, rows []BillRow) string {
	t.Helper()
	return WriteFile(t, dir, name, append([]byte("\ufeff"), WeChatContent(rows)...))
}

// WriteWeChatXLSX writes a WeChat spreadsheet export into dir. preamble
// replaces the standard 16-line block when non-nil.
func WriteWeChatXLSX(t testing.TB, dir, name string, rows []BillRow, preamble []string) string {
	t.Helper()
	if preamble == nil {
		preamble = WeChatPreamble
	}

	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)

	rowNum := 1
	setRow := func(values []string) {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			t.Fatalf("bad cell coordinates: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &cells); err != nil {
			t.Fatalf("failed to write xlsx row %d: %v", rowNum, err)
		}
		rowNum++
	}

	for _, line := range preamble {
		if line == "" {
			rowNum++
			continue
		}
		setRow([]string{line})
	}
	setRow(wechatHeader)
	for i, r := range rows {
		setRow(wechatRecord(i, r))
	}

	path := filepath.Join(dir, name)
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("failed to save xlsx fixture: %v", err)
	}
	return path
}

// WriteFile writes raw bytes into dir and returns the path
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write fixture %s: %v", name, err)
	}
	return path
}

// Generator produces reproducible pseudo-random bill rows
type Generator struct {
	Count     int
	StartDate time.Time
	EndDate   time.Time
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	Seed      int64
}

var (
	sampleCategories     = []string{"餐饮美食", "交通出行", "日用百货", "休闲娱乐", "充值缴费", "服饰装扮"}
	sampleCounterparties = []string{"瑞幸咖啡", "美团", "滴滴出行", "盒马鲜生", "中国移动", "优衣库", "肯德基", "7-Eleven"}
	sampleMethods        = []string{"花呗", "余额宝", "招商银行信用卡(1234)", "零钱"}
)

// Generate returns Count rows spread over the date range in generation order
func (g *Generator) Generate() []BillRow {
	rng := rand.New(rand.NewSource(g.Seed))
	span := g.EndDate.Sub(g.StartDate)
	amountRange := g.MaxAmount.Sub(g.MinAmount)

	rows := make([]BillRow, g.Count)
	for i := range rows {
		ts := g.StartDate.Add(time.Duration(rng.Int63n(int64(span))))
		amount := decimal.NewFromFloat(rng.Float64()).Mul(amountRange).Add(g.MinAmount).Round(2)

		direction, status := "支出", "交易成功"
		switch p := rng.Float64(); {
		case p < 0.1:
			direction = "收入"
		case p < 0.15:
			status = "退款成功"
		case p < 0.2:
			direction = "不计收支"
		}

		rows[i] = BillRow{
			Time:         ts.Format("2006-01-02 15:04:05"),
			Category:     sampleCategories[rng.Intn(len(sampleCategories))],
			Counterparty: sampleCounterparties[rng.Intn(len(sampleCounterparties))],
			Description:  fmt.Sprintf("商品%04d", i+1),
			Direction:    direction,
			Amount:       amount.StringFixed(2),
			Method:       sampleMethods[rng.Intn(len(sampleMethods))],
			Status:       status,
		}
	}
	return rows
}
