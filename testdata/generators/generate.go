// Command generate writes sample Alipay and WeChat Pay bill exports for
// manual runs of billctl.
//
//	go run ./testdata/generators -count=500 -output-dir=./testdata/generated
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/simplifiedchinese"

	"bill-analytics-service/internal/testutil"
)

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for generated files")
		count     = flag.Int("count", 200, "Number of rows per platform")
		startDate = flag.String("start-date", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate   = flag.String("end-date", "2024-12-31", "End date (YYYY-MM-DD)")
		minAmount = flag.Float64("min-amount", 1, "Minimum transaction amount")
		maxAmount = flag.Float64("max-amount", 800, "Maximum transaction amount")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		utf8      = flag.Bool("utf8", false, "Write the Alipay export as UTF-8 instead of GBK")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}
	if !end.After(start) {
		log.Fatalf("End date %s must be after start date %s", *endDate, *startDate)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	gen := &testutil.Generator{
		Count:     *count * 2,
		StartDate: start,
		EndDate:   end,
		MinAmount: decimal.NewFromFloat(*minAmount),
		MaxAmount: decimal.NewFromFloat(*maxAmount),
		Seed:      *seed,
	}
	rows := gen.Generate()

	alipay := []byte(testutil.AlipayContent(rows[:*count], testutil.AlipayOptions{UTF8: *utf8, Footer: true}))
	if !*utf8 {
		alipay, err = simplifiedchinese.GBK.NewEncoder().Bytes(alipay)
		if err != nil {
			log.Fatalf("Failed to encode Alipay export: %v", err)
		}
	}
	writeFile(filepath.Join(*outputDir, "alipay_sample.csv"), alipay)

	wechat := append([]byte("\ufeff"), testutil.WeChatContent(wechatRows(rows[*count:]))...)
	writeFile(filepath.Join(*outputDir, "wechat_sample.csv"), wechat)

	fmt.Printf("Using seed: %d\n", *seed)
}

// wechatRows rewrites generated rows into WeChat vocabulary
func wechatRows(rows []testutil.BillRow) []testutil.BillRow {
	out := make([]testutil.BillRow, len(rows))
	for i, r := range rows {
		r.Category = "商户消费"
		r.Amount = "¥" + r.Amount
		switch r.Status {
		case "退款成功":
			r.Status = "已全额退款"
		default:
			r.Status = "支付成功"
		}
		if r.Direction == "不计收支" {
			r.Direction = "/"
		}
		out[i] = r
	}
	return out
}

func writeFile(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
	fmt.Printf("✓ Wrote %s (%d bytes)\n", path, len(data))
}
