package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
)

// CategoryRank is one ranked category
type CategoryRank struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Score float64 `json:"score"`
}

// CategoryGroups lists the ranked categories seen on each platform. A
// category present on both platforms is only listed under Alipay.
type CategoryGroups struct {
	Alipay []string `json:"alipay"`
	WeChat []string `json:"wechat"`
}

// CategoryRanking is the result of the categories analytic
type CategoryRanking struct {
	Categories []CategoryRank `json:"categories"`
	Groups     CategoryGroups `json:"groups"`
}

// Categories ranks expense categories by 0.7 × amount rank + 0.3 × count
// rank, lower first. Ranks are 1-based and ties share their average rank.
func (e *Engine) Categories(rows []models.Transaction) CategoryRanking {
	exp := expenses(rows)
	groups := groupBy(exp, byCategory)
	result := CategoryRanking{
		Categories: make([]CategoryRank, 0, len(groups)),
		Groups:     CategoryGroups{Alipay: []string{}, WeChat: []string{}},
	}

	names := stats.SortedKeys(groups)
	totals := make([]float64, len(names))
	counts := make([]float64, len(names))
	for i, name := range names {
		totals[i] = total(groups[name])
		counts[i] = float64(len(groups[name]))
	}
	amountRank := averageRanks(totals)
	countRank := averageRanks(counts)

	for i, name := range names {
		result.Categories = append(result.Categories, CategoryRank{
			Name:  name,
			Total: stats.Round2(totals[i]),
			Count: len(groups[name]),
			Avg:   stats.Round2(totals[i] / counts[i]),
			Score: stats.Round2(0.7*amountRank[i] + 0.3*countRank[i]),
		})
	}
	sort.SliceStable(result.Categories, func(i, j int) bool {
		return result.Categories[i].Score < result.Categories[j].Score
	})

	seen := make(map[models.Source]map[string]bool)
	for i := range exp {
		if seen[exp[i].Source] == nil {
			seen[exp[i].Source] = make(map[string]bool)
		}
		seen[exp[i].Source][exp[i].Category] = true
	}
	for _, c := range result.Categories {
		switch {
		case seen[models.SourceAlipay][c.Name]:
			result.Groups.Alipay = append(result.Groups.Alipay, c.Name)
		case seen[models.SourceWeChat][c.Name]:
			result.Groups.WeChat = append(result.Groups.WeChat, c.Name)
		}
	}
	return result
}

// averageRanks ranks values descending, 1-based, giving tied values the mean
// of the ranks they span.
func averageRanks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// DetailStats are the headline figures of one category
type DetailStats struct {
	TotalExpense     float64 `json:"total_expense"`
	TransactionCount int     `json:"transaction_count"`
	AvgAmount        float64 `json:"avg_amount"`
	ExpenseRatio     float64 `json:"expense_ratio"`
	DateRange        int     `json:"date_range"`
	MaxAmount        float64 `json:"max_amount"`
	MinAmount        float64 `json:"min_amount"`
	MedianAmount     float64 `json:"median_amount"`
}

// DetailTrend is the category spend per period with its share of the
// period's total expense
type DetailTrend struct {
	Dates   []string  `json:"dates"`
	Amounts []float64 `json:"amounts"`
	Counts  []int     `json:"counts"`
	Ratios  []float64 `json:"ratios"`
}

// HourPattern is the 24-hour spending pattern of a category
type HourPattern struct {
	Hours    []int     `json:"hours"`
	Counts   []int     `json:"counts"`
	Amounts  []float64 `json:"amounts"`
	Averages []float64 `json:"averages"`
}

// AmountDistribution counts expenses per amount bin
type AmountDistribution struct {
	Ranges      []string  `json:"ranges"`
	Counts      []int     `json:"counts"`
	Percentages []float64 `json:"percentages"`
}

// CategoryDetail drills into one category over a range
type CategoryDetail struct {
	Category     string             `json:"category"`
	Range        string             `json:"range"`
	Stats        DetailStats        `json:"stats"`
	Trend        DetailTrend        `json:"trend"`
	Pattern      HourPattern        `json:"pattern"`
	Distribution AmountDistribution `json:"distribution"`
	Details      []TransactionView  `json:"details"`
}

// detailBins are left-open (Low, High] amount bins
var detailBins = []amountBand{
	{"0-50", 0, 50},
	{"50-100", 50, 100},
	{"100-200", 100, 200},
	{"200-500", 200, 500},
	{"500-1000", 500, 1000},
	{"1000+", 1000, math.Inf(1)},
}

func detailBinIndex(v float64) int {
	for i, b := range detailBins {
		if v > b.Low && v <= b.High {
			return i
		}
	}
	return -1
}

// CategoryDetail reports one category within the all, year or month range.
// The trend is grouped by year for all, by month for a year and by day for a
// month, zero-filled for the year and month ranges. A category without
// expenses in the range gives zero statistics and empty series.
func (e *Engine) CategoryDetail(rows []models.Transaction, category, rangeName string, year, month int) CategoryDetail {
	scope := expenses(rows)
	switch rangeName {
	case RangeYear:
		scope = keep(scope, func(t *models.Transaction) bool { return t.Timestamp.Year() == year })
	case RangeMonth:
		scope = keep(scope, func(t *models.Transaction) bool {
			return t.Timestamp.Year() == year && int(t.Timestamp.Month()) == month
		})
	default:
		rangeName = RangeAll
	}
	cat := keep(scope, func(t *models.Transaction) bool { return t.Category == category })

	d := CategoryDetail{
		Category:     category,
		Range:        rangeName,
		Trend:        DetailTrend{Dates: []string{}, Amounts: []float64{}, Counts: []int{}, Ratios: []float64{}},
		Pattern:      hourPattern(cat),
		Distribution: amountDistribution(cat),
		Details:      []TransactionView{},
	}
	if len(cat) == 0 {
		return d
	}

	values := amounts(cat)
	sum := stats.Sum(values)
	five := stats.Summarize(values)
	d.Stats = DetailStats{
		TotalExpense:     stats.Round2(sum),
		TransactionCount: len(cat),
		AvgAmount:        stats.Round2(stats.Mean(values)),
		ExpenseRatio:     stats.Percent(sum, total(scope)),
		MaxAmount:        stats.Round2(five.Max),
		MinAmount:        stats.Round2(five.Min),
		MedianAmount:     stats.Round2(five.Median),
	}

	var key func(*models.Transaction) string
	var periods []string
	switch rangeName {
	case RangeYear:
		d.Stats.DateRange = 365
		key = byMonth
		periods = yearMonths(year)
	case RangeMonth:
		d.Stats.DateRange = stats.DaysInMonth(year, time.Month(month))
		key = byDate
		start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		periods = stats.DaysBetween(start, start.AddDate(0, 1, -1))
	default:
		d.Stats.DateRange = spanDays(cat)
		key = func(t *models.Transaction) string { return fmt.Sprintf("%04d", t.Timestamp.Year()) }
		periods = stats.SortedKeys(countBy(cat, key))
	}

	catSums, catCounts := sumBy(cat, key), countBy(cat, key)
	allSums := sumBy(scope, key)
	for _, p := range periods {
		d.Trend.Dates = append(d.Trend.Dates, p)
		d.Trend.Amounts = append(d.Trend.Amounts, stats.Round2(catSums[p]))
		d.Trend.Counts = append(d.Trend.Counts, catCounts[p])
		ratio := 0.0
		if allSums[p] > 0 {
			ratio = stats.Round(catSums[p]/allSums[p]*100, 1)
		}
		d.Trend.Ratios = append(d.Trend.Ratios, ratio)
	}

	sorted := append([]models.Transaction(nil), cat...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value() > sorted[j].Value() })
	for i := range sorted {
		d.Details = append(d.Details, newTransactionView(&sorted[i]))
	}
	return d
}

func hourPattern(rows []models.Transaction) HourPattern {
	p := HourPattern{
		Hours:    make([]int, 24),
		Counts:   make([]int, 24),
		Amounts:  make([]float64, 24),
		Averages: make([]float64, 24),
	}
	sums := make([]float64, 24)
	for i := range rows {
		h := rows[i].Hour()
		p.Counts[h]++
		sums[h] += rows[i].Value()
	}
	for h := 0; h < 24; h++ {
		p.Hours[h] = h
		p.Amounts[h] = stats.Round2(sums[h])
		if p.Counts[h] > 0 {
			p.Averages[h] = stats.Round2(sums[h] / float64(p.Counts[h]))
		}
	}
	return p
}

// amountDistribution bins amounts into detailBins. Amounts outside every bin,
// such as zero, are not counted.
func amountDistribution(rows []models.Transaction) AmountDistribution {
	dist := AmountDistribution{
		Ranges:      make([]string, len(detailBins)),
		Counts:      make([]int, len(detailBins)),
		Percentages: make([]float64, len(detailBins)),
	}
	binned := 0
	for i := range rows {
		if b := detailBinIndex(rows[i].Value()); b >= 0 {
			dist.Counts[b]++
			binned++
		}
	}
	for i, b := range detailBins {
		dist.Ranges[i] = b.Label
		if binned > 0 {
			dist.Percentages[i] = stats.Round(float64(dist.Counts[i])/float64(binned)*100, 1)
		}
	}
	return dist
}

// CategoryTrendSummary covers the whole category
type CategoryTrendSummary struct {
	TotalAmount       float64 `json:"total_amount"`
	TotalTransactions int     `json:"total_transactions"`
	MaxMonth          string  `json:"max_month"`
	MaxAmount         float64 `json:"max_amount"`
	MinMonth          string  `json:"min_month"`
	MinAmount         float64 `json:"min_amount"`
	AvgMonthly        float64 `json:"avg_monthly"`
}

// CategoryTrend is the monthly history of one category
type CategoryTrend struct {
	Category     string               `json:"category"`
	Months       []string             `json:"months"`
	Total        []float64            `json:"total"`
	Transactions []int                `json:"transactions"`
	AvgAmount    []float64            `json:"avg_amount"`
	DailyAvg     []float64            `json:"daily_avg"`
	MoMRate      []*float64           `json:"mom_rate"`
	Percentage   []float64            `json:"percentage"`
	Summary      CategoryTrendSummary `json:"summary"`
}

// CategoryTrend reports the observed months of one category. The daily
// average divides by the days with a transaction in the month and the
// percentage is the share of that month's total expense.
func (e *Engine) CategoryTrend(rows []models.Transaction, category string) CategoryTrend {
	exp := expenses(rows)
	cat := keep(exp, func(t *models.Transaction) bool { return t.Category == category })
	tr := CategoryTrend{
		Category:     category,
		Months:       []string{},
		Total:        []float64{},
		Transactions: []int{},
		AvgAmount:    []float64{},
		DailyAvg:     []float64{},
		MoMRate:      []*float64{},
		Percentage:   []float64{},
	}
	if len(cat) == 0 {
		return tr
	}

	monthTotals := sumBy(exp, byMonth)
	monthly := groupBy(cat, byMonth)
	sums := make(map[string]float64, len(monthly))
	var prev float64
	for i, m := range stats.SortedKeys(monthly) {
		group := monthly[m]
		sum := total(group)
		sums[m] = sum

		tr.Months = append(tr.Months, m)
		tr.Total = append(tr.Total, stats.Round2(sum))
		tr.Transactions = append(tr.Transactions, len(group))
		tr.AvgAmount = append(tr.AvgAmount, stats.Round2(sum/float64(len(group))))
		tr.DailyAvg = append(tr.DailyAvg, stats.Round2(stats.SafeDiv(sum, float64(distinctDays(group)))))
		if i == 0 {
			zero := 0.0
			tr.MoMRate = append(tr.MoMRate, &zero)
		} else {
			tr.MoMRate = append(tr.MoMRate, stats.ChangeRate(sum, prev))
		}
		tr.Percentage = append(tr.Percentage, stats.Percent(sum, monthTotals[m]))
		prev = sum
	}

	maxMonth, maxAmount, _ := argmax(sums)
	minMonth, minAmount, _ := argmin(sums)
	tr.Summary = CategoryTrendSummary{
		TotalAmount:       stats.Round2(total(cat)),
		TotalTransactions: len(cat),
		MaxMonth:          maxMonth,
		MaxAmount:         stats.Round2(maxAmount),
		MinMonth:          minMonth,
		MinAmount:         stats.Round2(minAmount),
		AvgMonthly:        stats.Round2(stats.Mean(tr.Total)),
	}
	return tr
}

// Top lists expenses of at least threshold, largest first, at most limit
func (e *Engine) Top(rows []models.Transaction, limit int, threshold float64) []TransactionView {
	large := keep(expenses(rows), func(t *models.Transaction) bool { return t.Value() >= threshold })
	sort.SliceStable(large, func(i, j int) bool { return large[i].Value() > large[j].Value() })
	if limit >= 0 && len(large) > limit {
		large = large[:limit]
	}
	out := make([]TransactionView, len(large))
	for i := range large {
		out[i] = newTransactionView(&large[i])
	}
	return out
}
