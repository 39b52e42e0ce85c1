package analytics

import (
	"sort"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/internal/stats"
)

// Scenario dimensions
const (
	DimensionChannel = "渠道"
	DimensionBand    = "时段"
	DimensionTier    = "层级"
)

var (
	channelOrder = []string{"线上", "线下"}
	bandOrder    = []string{"清晨(6-9点)", "上午(9-12点)", "中午(12-14点)", "下午(14-17点)", "傍晚(17-20点)", "晚上(20-23点)", "深夜(23-6点)"}
	tierOrder    = []string{"大额(1000+)", "中额(300-1000)", "小额(100-300)", "零花(0-100)"}
)

func timeBand(hour int) string {
	switch {
	case hour >= 6 && hour < 9:
		return bandOrder[0]
	case hour >= 9 && hour < 12:
		return bandOrder[1]
	case hour >= 12 && hour < 14:
		return bandOrder[2]
	case hour >= 14 && hour < 17:
		return bandOrder[3]
	case hour >= 17 && hour < 20:
		return bandOrder[4]
	case hour >= 20 && hour < 23:
		return bandOrder[5]
	default:
		return bandOrder[6]
	}
}

func amountTier(v float64) string {
	switch {
	case v >= 1000:
		return tierOrder[0]
	case v >= 300:
		return tierOrder[1]
	case v >= 100:
		return tierOrder[2]
	default:
		return tierOrder[3]
	}
}

// ScenarioStat is the spend of one scenario along one dimension
type ScenarioStat struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Category string  `json:"category"`
}

// Scenarios splits expenses by channel, time-of-day band and amount tier.
// Only observed scenarios are listed, in a fixed order per dimension.
func (e *Engine) Scenarios(rows []models.Transaction) []ScenarioStat {
	exp := expenses(rows)
	channel := sumBy(exp, func(t *models.Transaction) string {
		if profiles.ContainsAny(t.Counterparty, e.config.Keywords.Online) {
			return channelOrder[0]
		}
		return channelOrder[1]
	})
	band := sumBy(exp, func(t *models.Transaction) string { return timeBand(t.Hour()) })
	tier := sumBy(exp, func(t *models.Transaction) string { return amountTier(t.Value()) })

	out := make([]ScenarioStat, 0)
	for _, dim := range []struct {
		name  string
		order []string
		sums  map[string]float64
	}{
		{DimensionChannel, channelOrder, channel},
		{DimensionBand, bandOrder, band},
		{DimensionTier, tierOrder, tier},
	} {
		for _, name := range dim.order {
			if v, ok := dim.sums[name]; ok {
				out = append(out, ScenarioStat{Name: name, Value: stats.Round2(v), Category: dim.name})
			}
		}
	}
	return out
}

// Habits are the headline spending habits
type Habits struct {
	DailyAvg        float64 `json:"daily_avg"`
	ActiveDays      int     `json:"active_days"`
	WeekendRatio    float64 `json:"weekend_ratio"`
	FixedExpenses   float64 `json:"fixed_expenses"`
	MonthStartRatio float64 `json:"month_start_ratio"`
}

// Habits computes the daily average over active days and the weekend,
// fixed-merchant and month-start shares of expense. A merchant is fixed when
// it appears in at least max(2, 0.8 × observed months) months.
func (e *Engine) Habits(rows []models.Transaction) Habits {
	exp := expenses(rows)
	all := total(exp)
	days := distinctDays(exp)

	var weekend, monthStart float64
	merchantMonths := make(map[string]map[string]bool)
	months := make(map[string]bool)
	for i := range exp {
		t := &exp[i]
		if stats.IsWeekend(t.Weekday()) {
			weekend += t.Value()
		}
		if t.Timestamp.Day() <= 5 {
			monthStart += t.Value()
		}
		months[t.YearMonth] = true
		if merchantMonths[t.Counterparty] == nil {
			merchantMonths[t.Counterparty] = make(map[string]bool)
		}
		merchantMonths[t.Counterparty][t.YearMonth] = true
	}

	need := 0.8 * float64(len(months))
	if need < 2 {
		need = 2
	}
	fixed := 0.0
	for i := range exp {
		if float64(len(merchantMonths[exp[i].Counterparty])) >= need {
			fixed += exp[i].Value()
		}
	}

	h := Habits{ActiveDays: days}
	if days > 0 {
		h.DailyAvg = stats.Round2(all / float64(days))
	}
	if all > 0 {
		h.WeekendRatio = stats.Round(weekend/all*100, 1)
		h.FixedExpenses = stats.Round(fixed/all*100, 1)
		h.MonthStartRatio = stats.Round(monthStart/all*100, 1)
	}
	return h
}

// Nighttime summarizes spend in the wraparound night window
type Nighttime struct {
	TotalAmount float64 `json:"total_amount"`
	Ratio       float64 `json:"ratio"`
	Count       int     `json:"count"`
	TopMerchant string  `json:"top_merchant"`
}

// Nighttime keeps expenses whose hour is at or after NightStartHour or at or
// before NightEndHour.
func (e *Engine) Nighttime(rows []models.Transaction) Nighttime {
	exp := expenses(rows)
	night := keep(exp, func(t *models.Transaction) bool { return e.config.isNight(t.Hour()) })

	result := Nighttime{Count: len(night), TopMerchant: noneName}
	nightTotal := total(night)
	result.TotalAmount = stats.Round2(nightTotal)
	result.Ratio = stats.Percent(nightTotal, total(exp))
	if name, _, ok := argmax(sumBy(night, byCounterparty)); ok {
		result.TopMerchant = name
	}
	return result
}

// WeekendMonday compares spend per active weekend day with per active Monday
type WeekendMonday struct {
	WeekendAvg float64 `json:"weekend_avg"`
	MondayAvg  float64 `json:"monday_avg"`
	Ratio      float64 `json:"ratio"`
}

// WeekendMonday divides each total by its distinct day count, at least 1
func (e *Engine) WeekendMonday(rows []models.Transaction) WeekendMonday {
	exp := expenses(rows)
	weekend := keep(exp, func(t *models.Transaction) bool { return stats.IsWeekend(t.Weekday()) })
	monday := keep(exp, func(t *models.Transaction) bool { return t.Weekday() == 0 })

	weekendAvg := stats.SafeDiv(total(weekend), float64(distinctDays(weekend)))
	mondayAvg := stats.SafeDiv(total(monday), float64(distinctDays(monday)))

	result := WeekendMonday{WeekendAvg: stats.Round2(weekendAvg), MondayAvg: stats.Round2(mondayAvg)}
	if mondayAvg > 0 {
		result.Ratio = stats.Round2(weekendAvg / mondayAvg)
	}
	return result
}

// HeatCell counts expenses at one hour of one weekday (Monday = 0)
type HeatCell struct {
	Hour    int `json:"hour"`
	Weekday int `json:"weekday"`
	Count   int `json:"count"`
}

// Heatmap lists the observed hour × weekday cells ordered by weekday then hour
func (e *Engine) Heatmap(rows []models.Transaction) []HeatCell {
	var grid [7][24]int
	for _, t := range expenses(rows) {
		grid[t.Weekday()][t.Hour()]++
	}
	out := make([]HeatCell, 0)
	for wd := 0; wd < 7; wd++ {
		for h := 0; h < 24; h++ {
			if grid[wd][h] > 0 {
				out = append(out, HeatCell{Hour: h, Weekday: wd, Count: grid[wd][h]})
			}
		}
	}
	return out
}

// SpiralSlot is the spend of one hour of the week, slot = weekday*24 + hour
type SpiralSlot struct {
	Slot   int     `json:"slot"`
	Amount float64 `json:"amount"`
}

// Spiral always returns all 168 weekly hour slots
func (e *Engine) Spiral(rows []models.Transaction) []SpiralSlot {
	var sums [168]float64
	for _, t := range expenses(rows) {
		sums[t.Weekday()*24+t.Hour()] += t.Value()
	}
	out := make([]SpiralSlot, len(sums))
	for i, v := range sums {
		out[i] = SpiralSlot{Slot: i, Amount: stats.Round2(v)}
	}
	return out
}

// HourlySeries holds 24 zero-filled buckets indexed by hour
type HourlySeries struct {
	Amounts []float64 `json:"amounts"`
	Counts  []int     `json:"counts"`
}

func hourly(rows []models.Transaction) HourlySeries {
	s := HourlySeries{Amounts: make([]float64, 24), Counts: make([]int, 24)}
	for i := range rows {
		h := rows[i].Hour()
		s.Amounts[h] += rows[i].Value()
		s.Counts[h]++
	}
	s.Amounts = round2All(s.Amounts)
	return s
}

// PartStat is one side of a weekday/weekend split
type PartStat struct {
	Amount     float64 `json:"amount"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// WeekSplit is a category's weekday vs weekend spend
type WeekSplit struct {
	Category string   `json:"category"`
	Weekday  PartStat `json:"weekday"`
	Weekend  PartStat `json:"weekend"`
}

// TimeAnalysis is the result of the time analytic
type TimeAnalysis struct {
	Hourly         HourlySeries `json:"hourly"`
	WeekdayWeekend []WeekSplit  `json:"weekday_weekend"`
}

// Time buckets positive expenses by hour and splits each category into
// weekday and weekend spend, largest category first.
func (e *Engine) Time(rows []models.Transaction) TimeAnalysis {
	exp := keep(expenses(rows), func(t *models.Transaction) bool { return t.Value() > 0 })

	splits := make([]WeekSplit, 0)
	for cat, group := range groupBy(exp, byCategory) {
		split := WeekSplit{Category: cat}
		var weekday, weekend float64
		for i := range group {
			if stats.IsWeekend(group[i].Weekday()) {
				weekend += group[i].Value()
				split.Weekend.Count++
			} else {
				weekday += group[i].Value()
				split.Weekday.Count++
			}
		}
		sum := weekday + weekend
		if sum == 0 {
			continue
		}
		split.Weekday.Amount = stats.Round2(weekday)
		split.Weekend.Amount = stats.Round2(weekend)
		split.Weekday.Percentage = stats.Round(weekday/sum*100, 1)
		split.Weekend.Percentage = stats.Round(weekend/sum*100, 1)
		splits = append(splits, split)
	}
	sort.Slice(splits, func(i, j int) bool {
		ti := splits[i].Weekday.Amount + splits[i].Weekend.Amount
		tj := splits[j].Weekday.Amount + splits[j].Weekend.Amount
		if ti != tj {
			return ti > tj
		}
		return splits[i].Category < splits[j].Category
	})

	return TimeAnalysis{Hourly: hourly(exp), WeekdayWeekend: splits}
}

// BurndownPoint is the remaining budget at the end of a day of the month
type BurndownPoint struct {
	Day       int     `json:"day"`
	Remaining float64 `json:"remaining"`
}

// Burndown compares ideal and actual spend-down of the latest month
type Burndown struct {
	Month       string          `json:"month"`
	Total       float64         `json:"total"`
	DaysInMonth int             `json:"days_in_month"`
	Ideal       []BurndownPoint `json:"ideal"`
	Actual      []BurndownPoint `json:"actual"`
}

// Burndown takes the month of the latest expense, uses its total expense as
// the budget and draws the linear ideal against the actual remaining amount
// up to the latest expense day.
func (e *Engine) Burndown(rows []models.Transaction) Burndown {
	exp := expenses(rows)
	result := Burndown{Ideal: []BurndownPoint{}, Actual: []BurndownPoint{}}
	if len(exp) == 0 {
		return result
	}

	latest := exp[0].Timestamp
	for i := range exp {
		if exp[i].Timestamp.After(latest) {
			latest = exp[i].Timestamp
		}
	}
	month := latest.Format(models.MonthLayout)
	dim := stats.DaysInMonth(latest.Year(), latest.Month())

	daily := make([]float64, dim+1)
	budget := 0.0
	for i := range exp {
		if exp[i].YearMonth == month {
			daily[exp[i].Timestamp.Day()] += exp[i].Value()
			budget += exp[i].Value()
		}
	}

	result.Month = month
	result.Total = stats.Round2(budget)
	result.DaysInMonth = dim
	result.Ideal = append(result.Ideal, BurndownPoint{Day: 0, Remaining: result.Total})
	for d := 1; d <= dim; d++ {
		ideal := budget * (1 - float64(d)/float64(dim))
		result.Ideal = append(result.Ideal, BurndownPoint{Day: d, Remaining: stats.Round2(nonNegative(ideal))})
	}

	remaining := budget
	result.Actual = append(result.Actual, BurndownPoint{Day: 0, Remaining: result.Total})
	for d := 1; d <= latest.Day(); d++ {
		remaining -= daily[d]
		result.Actual = append(result.Actual, BurndownPoint{Day: d, Remaining: stats.Round2(nonNegative(remaining))})
	}
	return result
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
