package analytics

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

var shanghai = time.FixedZone("CST", 8*3600)

type txOption func(*models.Transaction)

func refunded(t *models.Transaction) { t.MarkRefund() }

func onWeChat(t *models.Transaction) { t.Source = models.SourceWeChat }

func paidWith(method string) txOption {
	return func(t *models.Transaction) { t.PaymentMethod = method }
}

func row(ts string, dir models.Direction, amount float64, category, counterparty string, opts ...txOption) models.Transaction {
	when, err := time.ParseInLocation("2006-01-02 15:04", ts, shanghai)
	if err != nil {
		panic(err)
	}
	t := models.Transaction{
		Direction:     dir,
		Amount:        decimal.NewFromFloat(amount),
		Category:      category,
		Description:   counterparty,
		Counterparty:  counterparty,
		Status:        "交易成功",
		PaymentMethod: "余额",
		Source:        models.SourceAlipay,
	}
	t.SetTimestamp(when)
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func spend(ts string, amount float64, category, counterparty string, opts ...txOption) models.Transaction {
	return row(ts, models.DirectionExpense, amount, category, counterparty, opts...)
}

func earn(ts string, amount float64, category, counterparty string, opts ...txOption) models.Transaction {
	return row(ts, models.DirectionIncome, amount, category, counterparty, opts...)
}

func tableOf(rows ...models.Transaction) *models.Table {
	return models.NewTable(rows, models.RequiredColumns)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(nil, logger.NewWithWriter(io.Discard, logger.ErrorLevel))
	require.NoError(t, err)
	return engine.WithClock(func() time.Time {
		return time.Date(2024, 6, 30, 12, 0, 0, 0, shanghai)
	})
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	config := DefaultConfig()
	config.FlowWindow = 0

	_, err := NewEngine(config, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidConfig))
}

func TestCatalogNames(t *testing.T) {
	names := Names()
	assert.Len(t, names, 40)

	seen := make(map[string]bool)
	for _, name := range names {
		assert.False(t, seen[name], "duplicate catalog name %s", name)
		seen[name] = true
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
	for _, name := range []string{"merchants", "sankey", "rfm", "monthly", "category_detail", "transactions", "dates"} {
		assert.True(t, seen[name], name)
	}
}

func TestEveryAnalyticHandlesEmptyInput(t *testing.T) {
	engine := newTestEngine(t)
	empty := models.NewTable(nil, nil)

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			result, err := engine.Run(name, empty, Query{})
			require.NoError(t, err)
			_, err = json.Marshal(result)
			require.NoError(t, err)
			if name != "story" {
				assert.NotNil(t, result)
			}
		})
	}
}

func TestEmptyResultsAreEmptySlices(t *testing.T) {
	engine := newTestEngine(t)

	data, err := json.Marshal(engine.Funnel(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	assert.Len(t, engine.Spiral(nil), 168)
	assert.Nil(t, engine.Story(nil))
	assert.Equal(t, []string{}, engine.Tags(nil).Tags)
	assert.Equal(t, 0, engine.Transactions(nil, 1, 0).Pagination.TotalRecords)
	assert.Equal(t, 1, engine.Transactions(nil, 1, 0).Pagination.TotalPages)
}

func TestRunErrors(t *testing.T) {
	engine := newTestEngine(t)
	table := tableOf(spend("2024-06-03 12:00", 10, "餐饮", "食堂"))

	_, err := engine.Run("no_such_view", table, Query{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnknownAnalytic))

	_, err = engine.Run("merchants", table, Query{Filter: Filter{Month: 13}})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidQuery))
}

func TestRunAppliesFilter(t *testing.T) {
	engine := newTestEngine(t)
	table := tableOf(
		spend("2024-05-03 12:00", 40, "餐饮", "食堂"),
		spend("2024-06-03 12:00", 10, "餐饮", "食堂"),
		spend("2024-06-04 12:00", 20, "交通", "地铁"),
	)

	result, err := engine.Run("merchants", table, Query{Filter: Filter{Year: 2024, Month: 6}})
	require.NoError(t, err)
	analysis := result.(MerchantAnalysis)
	require.Len(t, analysis.Merchants, 2)
	assert.Equal(t, "地铁", analysis.Merchants[0].Name)
	assert.Equal(t, 10.0, analysis.Merchants[1].Total)
}

func TestFilterValidate(t *testing.T) {
	hour := 24
	lo, hi := 100.0, 50.0

	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"empty", Query{}, false},
		{"month without year", Query{Filter: Filter{Month: 3}}, false},
		{"month out of range", Query{Filter: Filter{Month: 13}}, true},
		{"bad date", Query{Filter: Filter{Date: "2024/01/01"}}, true},
		{"hour out of range", Query{Filter: Filter{Hour: &hour}}, true},
		{"min above max", Query{Filter: Filter{MinAmount: &lo, MaxAmount: &hi}}, true},
		{"bad direction", Query{Filter: Filter{Direction: "sideways"}}, true},
		{"bad size", Query{Filter: Filter{Size: "huge"}}, true},
		{"negative page", Query{Page: -1}, true},
		{"year range without year", Query{Range: RangeYear}, true},
		{"month range", Query{Filter: Filter{Year: 2024, Month: 2}, Range: RangeMonth}, false},
		{"unknown range", Query{Range: "decade"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterMatch(t *testing.T) {
	coffee := spend("2024-06-03 08:30", 30, "餐饮", "Starbucks")
	laptop := spend("2024-06-08 20:00", 1000, "数码", "京东")
	back := spend("2024-06-09 10:00", 30, "餐饮", "Starbucks", refunded)

	lo, hi := 30.0, 1000.0
	hour := 8

	tests := []struct {
		name   string
		filter Filter
		want   []bool
	}{
		{"zero filter", Filter{}, []bool{true, true, true}},
		{"min inclusive max exclusive", Filter{MinAmount: &lo, MaxAmount: &hi}, []bool{true, false, false}},
		{"search ignores case", Filter{Search: "STARBUCKS"}, []bool{true, false, true}},
		{"large includes the threshold", Filter{Size: SizeLarge}, []bool{false, true, false}},
		{"small", Filter{Size: SizeSmall}, []bool{true, false, true}},
		{"hour", Filter{Hour: &hour}, []bool{true, false, false}},
		{"date", Filter{Date: "2024-06-08"}, []bool{false, true, false}},
		{"exclude refunds", Filter{ExcludeRefunds: true}, []bool{true, true, false}},
		{"category", Filter{Category: "数码"}, []bool{false, true, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, tx := range []models.Transaction{coffee, laptop, back} {
				assert.Equal(t, tt.want[i], tt.filter.match(&tx, 1000), "row %d", i)
			}
		})
	}
}

func TestQueryDetailRange(t *testing.T) {
	assert.Equal(t, RangeAll, Query{}.detailRange())
	assert.Equal(t, RangeYear, Query{Filter: Filter{Year: 2024}}.detailRange())
	assert.Equal(t, RangeMonth, Query{Filter: Filter{Year: 2024, Month: 2}}.detailRange())
	assert.Equal(t, RangeAll, Query{Filter: Filter{Year: 2024}, Range: "ALL"}.detailRange())
}
