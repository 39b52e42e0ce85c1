package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bill-analytics-service/internal/models"
)

func TestSubscriptionsFindsRecurringCharges(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-01-05 10:00", 99.9, "娱乐", "视频会员"),
		spend("2024-01-20 15:00", 500, "购物", "商场"),
		spend("2024-02-05 10:00", 100.1, "娱乐", "视频会员"),
		spend("2024-03-05 10:00", 100.0, "娱乐", "视频会员"),
	}

	subs := engine.Subscriptions(rows)
	require.Len(t, subs, 1)
	assert.Equal(t, "视频会员", subs[0].Name)
	assert.Equal(t, 3, subs[0].Months)
	assert.InDelta(t, 100.0, subs[0].MonthlyAmount, 0.001)
	assert.InDelta(t, 1200.0, subs[0].AnnualAmount, 0.001)
	assert.InDelta(t, 0.1, subs[0].Std, 0.0001)
}

func TestSubscriptionsRejectsVaryingAmounts(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-01-05 10:00", 30, "餐饮", "食堂"),
		spend("2024-02-05 10:00", 80, "餐饮", "食堂"),
		spend("2024-03-05 10:00", 45, "餐饮", "食堂"),
	}

	assert.Empty(t, engine.Subscriptions(rows))
}

func TestMerchantsRelaxesThresholdForSmallSlices(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-06-03 09:00", 12, "餐饮", "早餐店"),
		spend("2024-06-04 09:00", 14, "餐饮", "早餐店"),
		spend("2024-06-05 19:00", 200, "购物", "商场"),
		earn("2024-06-10 10:00", 5000, "工资", "公司"),
	}

	analysis := engine.Merchants(rows)
	assert.Equal(t, 1, analysis.MinCount)
	require.Len(t, analysis.Merchants, 2)
	assert.Equal(t, "商场", analysis.Merchants[0].Name)

	breakfast := analysis.Merchants[1]
	assert.Equal(t, 2, breakfast.Count)
	assert.Equal(t, 26.0, breakfast.Total)
	assert.Equal(t, 13.0, breakfast.Mean)
	assert.Equal(t, 2, breakfast.SpanDays)
	assert.Equal(t, "2024-06-04", breakfast.LastVisit)
	assert.Len(t, analysis.Frequent, 2)
}

func TestLatteCountsSmallFrequentExpenses(t *testing.T) {
	engine := newTestEngine(t)
	var rows []models.Transaction
	for day := 3; day <= 8; day++ {
		rows = append(rows, spend(fmt.Sprintf("2024-06-%02d 08:00", day), 20, "餐饮", "咖啡店"))
	}
	rows = append(rows,
		spend("2024-06-09 08:00", 25, "餐饮", "面包店"),
		spend("2024-06-09 12:00", 300, "购物", "商场"),
	)

	latte := engine.Latte(rows)
	assert.Equal(t, 6, latte.ItemCount)
	assert.Equal(t, 120.0, latte.TotalAmount)
	assert.Equal(t, 20.0, latte.AvgPrice)
	assert.Equal(t, "咖啡店", latte.TopMerchant)

	assert.Equal(t, unknownName, engine.Latte(nil).TopMerchant)
}

func TestLatteTopMerchantMustQualify(t *testing.T) {
	engine := newTestEngine(t)
	var rows []models.Transaction
	for day := 3; day <= 7; day++ {
		rows = append(rows, spend(fmt.Sprintf("2024-06-%02d 08:00", day), 20, "餐饮", "咖啡店"))
	}

	latte := engine.Latte(rows)
	assert.Equal(t, unknownName, latte.TopMerchant, "five visits do not exceed the minimum")
	assert.Zero(t, latte.ItemCount)
	assert.Zero(t, latte.TotalAmount)
}

func TestLoyaltyAndQuadrant(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-06-03 09:00", 30, "餐饮", "食堂"),
		spend("2024-06-04 09:00", 30, "餐饮", "食堂"),
		spend("2024-06-05 09:00", 30, "外卖", "食堂"),
		spend("2024-06-06 20:00", 800, "数码", "京东"),
	}

	loyalty := engine.Loyalty(rows)
	require.NotNil(t, loyalty.TopAmount)
	assert.Equal(t, "京东", loyalty.TopAmount.Name)
	require.NotNil(t, loyalty.TopCount)
	assert.Equal(t, "食堂", loyalty.TopCount.Name)
	assert.Equal(t, 3.0, loyalty.TopCount.Value)

	points := engine.Quadrant(rows)
	require.Len(t, points, 1)
	assert.Equal(t, "食堂", points[0].Name)
	assert.Equal(t, "餐饮", points[0].Category)
	assert.Equal(t, 30.0, points[0].AvgAmount)

	assert.Nil(t, engine.Loyalty(nil).TopAmount)
}

func TestRFMUsesEngineClock(t *testing.T) {
	engine := newTestEngine(t)
	long := "一个非常非常长的商户名称"
	var rows []models.Transaction
	for _, day := range []string{"2024-06-01", "2024-06-10", "2024-06-20"} {
		rows = append(rows,
			spend(day+" 12:00", 20, "餐饮", "咖啡店"),
			spend(day+" 13:00", 500, "购物", long),
			spend(day+" 14:00", 100, "转账", "转账给朋友"),
		)
	}
	rows = append(rows, spend("2024-06-21 12:00", 5, "餐饮", "便利店"))

	entries := engine.RFM(rows)
	require.Len(t, entries, 2)

	assert.Equal(t, long, entries[0].FullName)
	assert.Equal(t, "一个非常非常长的..", entries[0].Name)
	assert.Equal(t, SegmentBigSpend, entries[0].Segment)
	assert.Equal(t, 1500.0, entries[0].Monetary)

	assert.Equal(t, "咖啡店", entries[1].Name)
	assert.Equal(t, 10, entries[1].Recency)
	assert.Equal(t, 3, entries[1].Frequency)
	assert.Equal(t, SegmentFriend, entries[1].Segment)
}

func TestRFMSegments(t *testing.T) {
	assert.Equal(t, SegmentSoulmate, rfmSegment(11, 1001))
	assert.Equal(t, SegmentDaily, rfmSegment(11, 1000))
	assert.Equal(t, SegmentBigSpend, rfmSegment(10, 1001))
	assert.Equal(t, SegmentFriend, rfmSegment(10, 1000))
}

func TestPaymentMethods(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-06-03 09:00", 30, "餐饮", "食堂", paidWith("花呗")),
		spend("2024-06-03 19:00", 70, "餐饮", "餐厅", paidWith("花呗")),
		spend("2024-06-04 09:00", 100, "交通", "地铁", paidWith("余额宝")),
	}

	methods := engine.PaymentMethods(rows)
	require.Len(t, methods, 2)
	assert.Equal(t, "余额宝", methods[0].Name)
	assert.Equal(t, 50.0, methods[0].AmountRatio)

	assert.Equal(t, "花呗", methods[1].Name)
	assert.Equal(t, 2, methods[1].TransactionCount)
	assert.Equal(t, 1, methods[1].UsageDays)
	assert.Equal(t, 50.0, methods[1].AvgAmount)
	assert.Equal(t, 66.67, methods[1].CountRatio)
}

func TestWordCloudThreshold(t *testing.T) {
	engine := newTestEngine(t)
	rows := []models.Transaction{
		spend("2024-06-03 09:00", 10, "餐饮", "小摊"),
		spend("2024-06-03 10:00", 10.5, "餐饮", "面包店"),
	}

	cloud := engine.WordCloud(rows)
	require.Len(t, cloud, 1)
	assert.Equal(t, "面包店", cloud[0].Name)
}
