package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		raw  string
		want Direction
	}{
		{"收入", DirectionIncome},
		{" 支出 ", DirectionExpense},
		{"/", DirectionNotCounted},
		{"不计收支", DirectionNotCounted},
		{"", DirectionNotCounted},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDirection(tt.raw))
		})
	}
}

func TestMarkRefundForcesNegative(t *testing.T) {
	for _, amount := range []string{"50.00", "-50.00"} {
		tx := Transaction{Amount: decimal.RequireFromString(amount)}
		tx.MarkRefund()
		assert.True(t, tx.IsRefund)
		assert.Equal(t, "-50", tx.Amount.String())
	}
}

func TestTransactionValidate(t *testing.T) {
	base := Transaction{Direction: DirectionExpense, Amount: decimal.NewFromInt(10)}
	base.SetTimestamp(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	require.NoError(t, base.Validate())
	assert.Equal(t, "2024-03", base.YearMonth)
	assert.Equal(t, "2024-03-05", base.Date)

	refund := base
	refund.IsRefund = true
	assert.Error(t, refund.Validate())

	noTime := base
	noTime.Timestamp = time.Time{}
	assert.Error(t, noTime.Validate())

	badDirection := base
	badDirection.Direction = "sideways"
	assert.Error(t, badDirection.Validate())
}

func TestWeekdayStartsMonday(t *testing.T) {
	monday := Transaction{Timestamp: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	sunday := Transaction{Timestamp: time.Date(2024, 1, 7, 8, 0, 0, 0, time.UTC)}
	assert.Equal(t, 0, monday.Weekday())
	assert.Equal(t, 6, sunday.Weekday())
	assert.Equal(t, 8, monday.Hour())
}

func TestTableIsCopyOnRead(t *testing.T) {
	rows := []Transaction{{Category: "餐饮"}, {Category: "交通"}}
	table := NewTable(rows, RequiredColumns)

	rows[0].Category = "changed"
	assert.Equal(t, "餐饮", table.At(0).Category)

	out := table.Rows()
	out[1].Category = "changed"
	assert.Equal(t, "交通", table.At(1).Category)

	selected := table.Select(func(tx *Transaction) bool {
		tx.Category = "mutated"
		return true
	})
	assert.Len(t, selected, 2)
	assert.Equal(t, "餐饮", table.At(0).Category)

	var nilTable *Table
	assert.Equal(t, 0, nilTable.Len())
	assert.NotNil(t, nilTable.Rows())
}

func TestParseDecimalFromString(t *testing.T) {
	glyphs := []string{"¥", "￥", "$"}
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"¥1,234.50", "1234.5", false},
		{" ￥ 8.00 ", "8", false},
		{"100", "100", false},
		{"", "", true},
		{"¥", "", true},
		{"12a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDecimalFromString(tt.in, glyphs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseTimeWithFormats(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, loc)},
		{"2024/1/2 3:04", time.Date(2024, 1, 2, 3, 4, 0, 0, loc)},
		{"2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, loc)},
		{"45293.5", time.Date(2024, 1, 2, 12, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeWithFormats(tt.in, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimeWithFormats("yesterday", loc)
	assert.Error(t, err)
}

func TestTransactionMarshalJSON(t *testing.T) {
	tx := Transaction{Direction: DirectionExpense, Amount: decimal.RequireFromString("-12.5"), Source: SourceWeChat}
	tx.SetTimestamp(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2024-05-01 09:30:00", decoded["timestamp"])
	assert.Equal(t, -12.5, decoded["amount"])
	assert.Equal(t, "wechat", decoded["source"])
}
