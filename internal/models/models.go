package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the money flow of a transaction as seen by the account owner
type Direction string

const (
	// DirectionIncome marks money received
	DirectionIncome Direction = "income"
	// DirectionExpense marks money spent
	DirectionExpense Direction = "expense"
	// DirectionNotCounted marks transfers, top-ups and other neutral movements
	DirectionNotCounted Direction = "not_counted"
)

// ParseDirection maps the platforms' 收/支 column onto a Direction.
// Anything other than 收入 or 支出 (including the "/" placeholder) is not counted.
func ParseDirection(raw string) Direction {
	switch strings.TrimSpace(raw) {
	case "收入", "income":
		return DirectionIncome
	case "支出", "expense":
		return DirectionExpense
	default:
		return DirectionNotCounted
	}
}

// Label returns the label used by the bill exports
func (d Direction) Label() string {
	switch d {
	case DirectionIncome:
		return "收入"
	case DirectionExpense:
		return "支出"
	default:
		return "不计收支"
	}
}

// IsValid checks if the direction is one of the known values
func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense || d == DirectionNotCounted
}

// Source identifies the payment platform a row was exported from
type Source string

const (
	// SourceAlipay is Platform A: GBK CSV exports with a status header row
	SourceAlipay Source = "alipay"
	// SourceWeChat is Platform B: UTF-8 CSV or xlsx exports with a banner line
	SourceWeChat Source = "wechat"
	// SourceUnknown is returned by detection for files that are not bills
	SourceUnknown Source = "unknown"
)

// Label returns the display name of the platform
func (s Source) Label() string {
	switch s {
	case SourceAlipay:
		return "支付宝"
	case SourceWeChat:
		return "微信"
	default:
		return "未知"
	}
}

// Canonical column names shared by every normalized frame.
const (
	ColTimestamp     = "timestamp"
	ColDirection     = "direction"
	ColAmount        = "amount"
	ColCategory      = "category"
	ColDescription   = "description"
	ColCounterparty  = "counterparty"
	ColStatus        = "status"
	ColPaymentMethod = "payment_method"
	ColOrderID       = "order_id"
	ColRemark        = "remark"
)

// RequiredColumns must be present in the merged canonical table
var RequiredColumns = []string{ColTimestamp, ColDirection, ColAmount, ColCategory, ColDescription}

// UnknownCounterparty is used when an export carries no counterparty column
const UnknownCounterparty = "未知"

const (
	// MonthLayout formats Transaction.YearMonth
	MonthLayout = "2006-01"
	// DateLayout formats Transaction.Date
	DateLayout = "2006-01-02"
)

// Transaction is one row of the canonical ledger
type Transaction struct {
	Timestamp     time.Time       `json:"timestamp"`
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Counterparty  string          `json:"counterparty"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	OrderID       string          `json:"order_id,omitempty"`
	Remark        string          `json:"remark,omitempty"`
	IsRefund      bool            `json:"is_refund"`
	Source        Source          `json:"source"`
	YearMonth     string          `json:"year_month"`
	Date          string          `json:"date"`
}

// SetTimestamp sets the timestamp and derives the calendar fields from it
func (t *Transaction) SetTimestamp(ts time.Time) {
	t.Timestamp = ts
	t.YearMonth = ts.Format(MonthLayout)
	t.Date = ts.Format(DateLayout)
}

// MarkRefund flags the row as a refund and forces its amount negative
func (t *Transaction) MarkRefund() {
	t.IsRefund = true
	t.Amount = t.Amount.Abs().Neg()
}

// Validate checks the canonical row invariants
func (t *Transaction) Validate() error {
	if t.Timestamp.IsZero() {
		return fmt.Errorf("transaction time cannot be zero")
	}
	if !t.Direction.IsValid() {
		return fmt.Errorf("invalid direction: %q", t.Direction)
	}
	if t.IsRefund && t.Amount.IsPositive() {
		return fmt.Errorf("refund row has positive amount %s", t.Amount)
	}
	if t.YearMonth == "" || t.Date == "" {
		return fmt.Errorf("calendar fields not derived")
	}
	return nil
}

// IsCountedExpense reports an expense that is not a refund
func (t *Transaction) IsCountedExpense() bool {
	return t.Direction == DirectionExpense && !t.IsRefund
}

// IsCountedIncome reports an income that is not a refund
func (t *Transaction) IsCountedIncome() bool {
	return t.Direction == DirectionIncome && !t.IsRefund
}

// Value returns the amount as float64 for statistics
func (t *Transaction) Value() float64 {
	return t.Amount.InexactFloat64()
}

// Hour returns the hour of day, 0-23
func (t *Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6
func (t *Transaction) Weekday() int {
	return (int(t.Timestamp.Weekday()) + 6) % 7
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Time: %s, %s %s, Category: %s, Counterparty: %s, Source: %s}",
		t.Timestamp.Format("2006-01-02 15:04:05"), t.Direction, t.Amount.String(), t.Category, t.Counterparty, t.Source)
}

// MarshalJSON renders the amount as a JSON number and the time without zone noise
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Alias
		Timestamp string      `json:"timestamp"`
		Amount    json.Number `json:"amount"`
	}{
		Alias:     Alias(t),
		Timestamp: t.Timestamp.Format("2006-01-02 15:04:05"),
		Amount:    json.Number(t.Amount.StringFixed(2)),
	})
}

// Frame is the normalized content of a single bill file
type Frame struct {
	Source  Source
	File    string
	Columns []string
	Rows    []Transaction
}

// HasColumn reports whether the source file supplied the canonical column
func (f *Frame) HasColumn(name string) bool {
	for _, c := range f.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Refunds counts the refund rows of the frame
func (f *Frame) Refunds() int {
	n := 0
	for i := range f.Rows {
		if f.Rows[i].IsRefund {
			n++
		}
	}
	return n
}

// Table is the immutable canonical ledger produced by one ingestion pass.
// Rows are kept private; accessors hand out copies so analytics cannot
// mutate the shared table.
type Table struct {
	rows    []Transaction
	columns []string
}

// NewTable builds a table from rows already in timestamp order
func NewTable(rows []Transaction, columns []string) *Table {
	t := &Table{
		rows:    make([]Transaction, len(rows)),
		columns: append([]string(nil), columns...),
	}
	copy(t.rows, rows)
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// At returns a copy of row i
func (t *Table) At(i int) Transaction {
	return t.rows[i]
}

// Rows returns a private copy of all rows
func (t *Table) Rows() []Transaction {
	if t == nil {
		return []Transaction{}
	}
	out := make([]Transaction, len(t.rows))
	copy(out, t.rows)
	return out
}

// Select returns copies of the rows accepted by keep, in table order
func (t *Table) Select(keep func(*Transaction) bool) []Transaction {
	out := make([]Transaction, 0)
	if t == nil {
		return out
	}
	for i := range t.rows {
		row := t.rows[i]
		if keep == nil || keep(&row) {
			out = append(out, row)
		}
	}
	return out
}

// Columns returns the canonical columns present in the table
func (t *Table) Columns() []string {
	if t == nil {
		return []string{}
	}
	return append([]string(nil), t.columns...)
}

// ParseDecimalFromString parses an amount after removing the given glyphs,
// thousands separators and whitespace.
func ParseDecimalFromString(s string, glyphs []string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, g := range glyphs {
		s = strings.ReplaceAll(s, g, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// TimestampLayouts are the transaction time formats seen in bill exports
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/1/2",
}

// ParseTimeWithFormats parses a zone-less transaction time in loc.
// A bare number is read as an Excel serial date.
func ParseTimeWithFormats(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("time string cannot be empty")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 100000 {
		return excelSerialToTime(serial, loc), nil
	}

	return time.Time{}, fmt.Errorf("unable to parse time '%s'", s)
}

// excelSerialToTime converts a 1900-system serial date to wall-clock time in loc.
func excelSerialToTime(serial float64, loc *time.Location) time.Time {
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, loc)
	days := int(serial)
	seconds := int((serial-float64(days))*86400 + 0.5)
	return epoch.AddDate(0, 0, days).Add(time.Duration(seconds) * time.Second)
}
