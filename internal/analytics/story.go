package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/internal/stats"
)

// DayAmount is a labelled amount
type DayAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// MonthAmount is the amount of one month
type MonthAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// LatestTx is the expense with the latest clock time
type LatestTx struct {
	Time     string  `json:"time"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
}

// NamedAmount is an amount with a name
type NamedAmount struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// StorySummary covers the whole slice
type StorySummary struct {
	TotalDays   int     `json:"total_days"`
	TxCount     int     `json:"tx_count"`
	TotalAmount float64 `json:"total_amount"`
}

// CountAmount is a count with its total
type CountAmount struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// NightFeature describes night-window spend
type NightFeature struct {
	Avg   float64 `json:"avg"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// WeekendFeature compares the average ticket on weekdays and weekends
type WeekendFeature struct {
	WeekdayAvg float64 `json:"weekday_avg"`
	WeekendAvg float64 `json:"weekend_avg"`
}

// PriceTrend tracks the price paid at the most frequent merchant
type PriceTrend struct {
	Merchant   string  `json:"merchant"`
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Trend      string  `json:"trend"`
}

// FirstTx is the earliest expense
type FirstTx struct {
	Date     string  `json:"date"`
	Merchant string  `json:"merchant"`
	Amount   float64 `json:"amount"`
	Product  string  `json:"product"`
}

// StoryFeatures are the themed facts of the narrative
type StoryFeatures struct {
	Coffee    CountAmount    `json:"coffee"`
	Night     NightFeature   `json:"night"`
	Weekend   WeekendFeature `json:"weekend"`
	Inflation PriceTrend     `json:"inflation"`
	FirstTx   FirstTx        `json:"first_tx"`
	PeakHour  int            `json:"peak_hour"`
	Takeout   CountAmount    `json:"takeout"`
	TopSeason string         `json:"top_season"`
}

// Story is the annual bill narrative
type Story struct {
	MaxDay      DayAmount     `json:"max_day"`
	MaxMonth    MonthAmount   `json:"max_month"`
	LatestTx    LatestTx      `json:"latest_tx"`
	TopCategory NamedAmount   `json:"top_category"`
	Summary     StorySummary  `json:"summary"`
	Features    StoryFeatures `json:"features"`
}

var seasonShort = map[string]string{"春季": "春", "夏季": "夏", "秋季": "秋", "冬季": "冬"}

// Story builds the narrative facts. It returns nil when there are no expenses.
func (e *Engine) Story(rows []models.Transaction) *Story {
	exp := expenses(rows)
	if len(exp) == 0 {
		return nil
	}
	sort.SliceStable(exp, func(i, j int) bool { return exp[i].Timestamp.Before(exp[j].Timestamp) })

	s := &Story{}
	day, dayAmount, _ := argmax(sumBy(exp, byDate))
	s.MaxDay = DayAmount{Date: formatChineseDate(day), Amount: stats.Round2(dayAmount)}
	month, monthAmount, _ := argmax(sumBy(exp, byMonth))
	s.MaxMonth = MonthAmount{Month: month, Amount: stats.Round2(monthAmount)}
	s.LatestTx = latestByClock(exp)
	cat, catAmount, _ := argmax(sumBy(exp, byCategory))
	s.TopCategory = NamedAmount{Name: cat, Amount: stats.Round2(catAmount)}
	s.Summary = StorySummary{TotalDays: spanDays(exp), TxCount: len(exp), TotalAmount: stats.Round2(total(exp))}

	matches := func(keywords []string) []models.Transaction {
		return keep(exp, func(t *models.Transaction) bool {
			return profiles.ContainsAny(t.Description, keywords) || profiles.ContainsAny(t.Counterparty, keywords)
		})
	}
	coffee := matches(e.config.Keywords.Coffee)
	takeout := matches(e.config.Keywords.Takeout)
	night := keep(exp, func(t *models.Transaction) bool { return e.config.isNight(t.Hour()) })
	weekday := keep(exp, func(t *models.Transaction) bool { return !stats.IsWeekend(t.Weekday()) })
	weekend := keep(exp, func(t *models.Transaction) bool { return stats.IsWeekend(t.Weekday()) })

	first := exp[0]
	s.Features = StoryFeatures{
		Coffee:    CountAmount{Count: len(coffee), Amount: stats.Round2(total(coffee))},
		Night:     NightFeature{Avg: stats.Round2(stats.Mean(amounts(night))), Total: stats.Round2(total(night)), Count: len(night)},
		Weekend:   WeekendFeature{WeekdayAvg: stats.Round2(stats.Mean(amounts(weekday))), WeekendAvg: stats.Round2(stats.Mean(amounts(weekend)))},
		Inflation: priceTrend(exp),
		FirstTx: FirstTx{
			Date:     first.Timestamp.Format("2006-01-02 15:04"),
			Merchant: first.Counterparty,
			Amount:   stats.Round2(first.Value()),
			Product:  first.Description,
		},
		PeakHour:  peakHour(hourCounts(exp)),
		Takeout:   CountAmount{Count: len(takeout), Amount: stats.Round2(total(takeout))},
		TopSeason: topSeason(exp),
	}
	return s
}

func hourCounts(exp []models.Transaction) [24]int {
	var counts [24]int
	for i := range exp {
		counts[exp[i].Hour()]++
	}
	return counts
}

// peakHour is the most frequent hour, the earliest one on ties
func peakHour(counts [24]int) int {
	best := 0
	for h, c := range counts {
		if c > counts[best] {
			best = h
		}
	}
	return best
}

func formatChineseDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	return fmt.Sprintf("%s年%s月%s日", parts[0], parts[1], parts[2])
}

// latestByClock prefers the latest clock time between 00:00 and 04:59 and
// falls back to the latest clock time of the day.
func latestByClock(exp []models.Transaction) LatestTx {
	clock := func(t *models.Transaction) int {
		return t.Timestamp.Hour()*3600 + t.Timestamp.Minute()*60 + t.Timestamp.Second()
	}
	pick := func(pred func(*models.Transaction) bool) *models.Transaction {
		var best *models.Transaction
		for i := range exp {
			if pred(&exp[i]) && (best == nil || clock(&exp[i]) > clock(best)) {
				best = &exp[i]
			}
		}
		return best
	}

	best := pick(func(t *models.Transaction) bool { return t.Hour() <= 4 })
	if best == nil {
		best = pick(func(*models.Transaction) bool { return true })
	}
	return LatestTx{
		Time:     best.Timestamp.Format("15:04"),
		Merchant: best.Counterparty,
		Amount:   stats.Round2(best.Value()),
	}
}

// priceTrend compares the mean of the first and last three expenses at the
// most frequent merchant when it has more than five visits.
func priceTrend(exp []models.Transaction) PriceTrend {
	merchant, _, _ := argmaxCount(countBy(exp, byCounterparty))
	trend := PriceTrend{Merchant: merchant, Trend: TrendStable}

	visits := keep(exp, func(t *models.Transaction) bool { return t.Counterparty == merchant })
	if len(visits) <= 5 {
		return trend
	}
	start := stats.Mean(amounts(visits[:3]))
	end := stats.Mean(amounts(visits[len(visits)-3:]))
	trend.StartPrice = stats.Round2(start)
	trend.EndPrice = stats.Round2(end)
	switch {
	case end > start*1.1:
		trend.Trend = TrendUp
	case end < start*0.9:
		trend.Trend = TrendDown
	}
	return trend
}

func topSeason(exp []models.Transaction) string {
	season, _, ok := argmax(sumBy(exp, func(t *models.Transaction) string {
		return stats.Season(t.Timestamp.Month())
	}))
	if !ok {
		return "全年"
	}
	return seasonShort[season]
}

// Smart tag labels
const (
	TagNightOwl    = "夜间消费达人"
	TagEarlyBird   = "早起达人"
	TagSteady      = "消费稳健派"
	TagBalanced    = "平衡消费派"
	TagImpulsive   = "随性消费派"
	TagHighSpender = "高消费人群"
	TagMidSpender  = "中等消费人群"
	TagFrugal      = "理性消费人群"
)

// Tags are the generated persona labels with their explanations
type Tags struct {
	Tags               []string `json:"tags"`
	TimePattern        string   `json:"time_pattern"`
	SpendingPreference string   `json:"spending_preference"`
	SpendingPattern    string   `json:"spending_pattern"`
	SpendingPower      string   `json:"spending_power"`
}

// Tags derives persona labels from peak hours, dominant categories, the
// coefficient of variation of daily spend and the daily average.
func (e *Engine) Tags(rows []models.Transaction) Tags {
	exp := expenses(rows)
	result := Tags{Tags: []string{}}
	if len(exp) == 0 {
		return result
	}

	counts := hourCounts(exp)
	observed := 0
	for _, c := range counts {
		if c > 0 {
			observed++
		}
	}
	meanCount := float64(len(exp)) / float64(observed)
	peak := func(hours ...int) bool {
		for _, h := range hours {
			if float64(counts[h]) > meanCount {
				return true
			}
		}
		return false
	}
	switch {
	case peak(22, 23):
		result.Tags = append(result.Tags, TagNightOwl)
		result.TimePattern = "您偏好在夜间消费，要注意作息哦"
	case peak(6, 7):
		result.Tags = append(result.Tags, TagEarlyBird)
		result.TimePattern = "您是个早起消费的生活达人"
	default:
		result.TimePattern = "您的消费时间比较规律，集中在日间"
	}

	all := total(exp)
	var preference []string
	for _, b := range stats.BucketsFromMap(sumBy(exp, byCategory)) {
		share := b.Value / all
		if all > 0 && share > 0.15 {
			result.Tags = append(result.Tags, b.Name+"控")
			preference = append(preference, fmt.Sprintf("%s(%.1f%%)", b.Name, share*100))
		}
	}
	result.SpendingPreference = "最常消费的品类是" + strings.Join(preference, ", ")

	daily := make([]float64, 0)
	dailySums := sumBy(exp, byDate)
	for _, d := range stats.SortedKeys(dailySums) {
		daily = append(daily, dailySums[d])
	}
	dailyMean := stats.Mean(daily)
	cv := math.Inf(1)
	if dailyMean != 0 && len(daily) > 1 {
		cv = stats.SampleStd(daily) / dailyMean
	}
	switch {
	case cv < 0.5:
		result.Tags = append(result.Tags, TagSteady)
		result.SpendingPattern = "您的消费非常有规律，是个理性消费者"
	case cv < 0.8:
		result.Tags = append(result.Tags, TagBalanced)
		result.SpendingPattern = "您的消费较为均衡，适度有波动"
	default:
		result.Tags = append(result.Tags, TagImpulsive)
		result.SpendingPattern = "您的消费比较随性，可能需要更多预算管理"
	}

	switch {
	case dailyMean > 500:
		result.Tags = append(result.Tags, TagHighSpender)
		result.SpendingPower = fmt.Sprintf("日均消费%.0f元，属于高消费人群", dailyMean)
	case dailyMean > 200:
		result.Tags = append(result.Tags, TagMidSpender)
		result.SpendingPower = fmt.Sprintf("日均消费%.0f元，消费能力适中", dailyMean)
	default:
		result.Tags = append(result.Tags, TagFrugal)
		result.SpendingPower = fmt.Sprintf("日均消费%.0f元，消费比较节制", dailyMean)
	}
	return result
}
