package analytics

import (
	"sort"
	"time"
	"unicode/utf8"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/internal/stats"
)

// MerchantStat summarizes the expenses at one counterparty
type MerchantStat struct {
	Name      string  `json:"name"`
	Count     int     `json:"count"`
	Total     float64 `json:"total"`
	Mean      float64 `json:"mean"`
	SpanDays  int     `json:"span_days"`
	LastVisit string  `json:"last_visit"`
}

// MerchantAnalysis is the result of the merchants analytic
type MerchantAnalysis struct {
	Merchants []MerchantStat `json:"merchants"`
	Frequent  []MerchantStat `json:"frequent"`
	MinCount  int            `json:"min_count"`
}

func merchantStats(rows []models.Transaction) []MerchantStat {
	groups := groupBy(rows, byCounterparty)
	out := make([]MerchantStat, 0, len(groups))
	for name, group := range groups {
		sum := total(group)
		out = append(out, MerchantStat{
			Name:      name,
			Count:     len(group),
			Total:     stats.Round2(sum),
			Mean:      stats.Round2(sum / float64(len(group))),
			SpanDays:  spanDays(group),
			LastVisit: group[len(group)-1].Date,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Merchants groups expenses by counterparty. A merchant is frequent with at
// least FrequentMinCount visits, relaxed to one visit when the slice is
// smaller than SmallSampleRows rows, since small slices are usually already
// filtered.
func (e *Engine) Merchants(rows []models.Transaction) MerchantAnalysis {
	minCount := e.config.FrequentMinCount
	if len(rows) < e.config.SmallSampleRows {
		minCount = 1
	}

	all := merchantStats(expenses(rows))
	frequent := make([]MerchantStat, 0)
	for _, m := range all {
		if m.Count >= minCount {
			frequent = append(frequent, m)
		}
	}
	if len(frequent) > e.config.FrequentTopN {
		frequent = frequent[:e.config.FrequentTopN]
	}

	return MerchantAnalysis{Merchants: all, Frequent: frequent, MinCount: minCount}
}

// LatteFactor measures small, frequent expenses
type LatteFactor struct {
	TotalAmount float64 `json:"total_amount"`
	ItemCount   int     `json:"item_count"`
	AvgPrice    float64 `json:"avg_price"`
	TopMerchant string  `json:"top_merchant"`
}

// Latte restricts expenses to amounts under LatteThreshold at counterparties
// seen more than LatteMinCount times. TopMerchant is the most frequent small
// expense counterparty.
func (e *Engine) Latte(rows []models.Transaction) LatteFactor {
	small := keep(expenses(rows), func(t *models.Transaction) bool {
		return t.Value() < e.config.LatteThreshold
	})
	counts := countBy(small, byCounterparty)
	for name, n := range counts {
		if n <= e.config.LatteMinCount {
			delete(counts, name)
		}
	}

	result := LatteFactor{TopMerchant: unknownName}
	if name, _, ok := argmaxCount(counts); ok {
		result.TopMerchant = name
	}

	sum := 0.0
	for i := range small {
		if _, ok := counts[small[i].Counterparty]; ok {
			sum += small[i].Value()
			result.ItemCount++
		}
	}
	result.TotalAmount = stats.Round2(sum)
	if result.ItemCount > 0 {
		result.AvgPrice = stats.Round2(sum / float64(result.ItemCount))
	}
	return result
}

// Subscription is a counterparty billed a near-constant amount every month
type Subscription struct {
	Name          string  `json:"name"`
	Months        int     `json:"months"`
	MonthlyAmount float64 `json:"monthly_amount"`
	AnnualAmount  float64 `json:"annual_amount"`
	Std           float64 `json:"std"`
}

// Subscriptions flags counterparties whose monthly totals span at least
// RecurringMinMonths months with a sample standard deviation below
// RecurringMaxStd. This is a statistical proxy; bills carry no subscription flag.
func (e *Engine) Subscriptions(rows []models.Transaction) []Subscription {
	monthly := make(map[string]map[string]float64)
	for _, t := range expenses(rows) {
		if monthly[t.Counterparty] == nil {
			monthly[t.Counterparty] = make(map[string]float64)
		}
		monthly[t.Counterparty][t.YearMonth] += t.Value()
	}

	out := make([]Subscription, 0)
	for name, months := range monthly {
		if len(months) < e.config.RecurringMinMonths {
			continue
		}
		values := make([]float64, 0, len(months))
		for _, ym := range stats.SortedKeys(months) {
			values = append(values, months[ym])
		}
		std := stats.SampleStd(values)
		if std >= e.config.RecurringMaxStd {
			continue
		}
		mean := stats.Mean(values)
		out = append(out, Subscription{
			Name:          name,
			Months:        len(months),
			MonthlyAmount: stats.Round2(mean),
			AnnualAmount:  stats.Round2(mean * 12),
			Std:           stats.Round(std, 4),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AnnualAmount != out[j].AnnualAmount {
			return out[i].AnnualAmount > out[j].AnnualAmount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Champion names a counterparty and its winning value
type Champion struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Loyalty reports the top counterparty by amount and by visit count.
// Both are nil when there are no expenses.
type Loyalty struct {
	TopAmount *Champion `json:"top_amount"`
	TopCount  *Champion `json:"top_count"`
}

// Loyalty finds the favourite counterparties
func (e *Engine) Loyalty(rows []models.Transaction) Loyalty {
	exp := expenses(rows)
	var result Loyalty
	if name, value, ok := argmax(sumBy(exp, byCounterparty)); ok {
		result.TopAmount = &Champion{Name: name, Value: stats.Round2(value)}
	}
	if name, count, ok := argmaxCount(countBy(exp, byCounterparty)); ok {
		result.TopCount = &Champion{Name: name, Value: float64(count)}
	}
	return result
}

// QuadrantPoint places a merchant by visit frequency and ticket size
type QuadrantPoint struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Frequency   int     `json:"frequency"`
	AvgAmount   float64 `json:"avg_amount"`
	TotalAmount float64 `json:"total_amount"`
}

// Quadrant lists merchants with a total of at least 50 over at least two
// visits, labelled with their most common category.
func (e *Engine) Quadrant(rows []models.Transaction) []QuadrantPoint {
	out := make([]QuadrantPoint, 0)
	for name, group := range groupBy(expenses(rows), byCounterparty) {
		sum := total(group)
		if sum < 50 || len(group) < 2 {
			continue
		}
		cats := make([]string, len(group))
		for i := range group {
			cats[i] = group[i].Category
		}
		category, _ := stats.Mode(cats)
		out = append(out, QuadrantPoint{
			Name:        name,
			Category:    category,
			Frequency:   len(group),
			AvgAmount:   stats.Round2(sum / float64(len(group))),
			TotalAmount: stats.Round2(sum),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WordCloud returns merchants with a total above 10, largest first, at most 100
func (e *Engine) WordCloud(rows []models.Transaction) []stats.Bucket {
	out := make([]stats.Bucket, 0)
	for _, b := range stats.BucketsFromMap(sumBy(expenses(rows), byCounterparty)) {
		if b.Value > 10 {
			out = append(out, stats.Bucket{Name: b.Name, Value: stats.Round2(b.Value)})
		}
	}
	if len(out) > 100 {
		out = out[:100]
	}
	return out
}

// RFM segment labels
const (
	SegmentSoulmate = "灵魂伴侣"
	SegmentDaily    = "高频日常"
	SegmentBigSpend = "重金过客"
	SegmentFriend   = "普通朋友"
)

// RFMEntry is one counterparty's recency, frequency and monetary value
type RFMEntry struct {
	Name      string  `json:"name"`
	FullName  string  `json:"full_name"`
	Recency   int     `json:"r"`
	Frequency int     `json:"f"`
	Monetary  float64 `json:"m"`
	Segment   string  `json:"segment"`
}

func rfmSegment(frequency int, monetary float64) string {
	switch {
	case frequency > 10 && monetary > 1000:
		return SegmentSoulmate
	case frequency > 10:
		return SegmentDaily
	case monetary > 1000:
		return SegmentBigSpend
	default:
		return SegmentFriend
	}
}

// RFM segments counterparties. Recency is counted in whole days from the
// engine clock. Transfer-like counterparties are excluded.
func (e *Engine) RFM(rows []models.Transaction) []RFMEntry {
	now := e.now()
	out := make([]RFMEntry, 0)
	for name, group := range groupBy(expenses(rows), byCounterparty) {
		if profiles.ContainsAny(name, e.config.Keywords.TransferExclusions) {
			continue
		}
		if len(group) <= e.config.RFMMinFrequency {
			continue
		}
		monetary := total(group)
		out = append(out, RFMEntry{
			Name:      shortName(name, 8),
			FullName:  name,
			Recency:   recencyDays(now, group[len(group)-1].Timestamp),
			Frequency: len(group),
			Monetary:  stats.Round2(monetary),
			Segment:   rfmSegment(len(group), monetary),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Monetary != out[j].Monetary {
			return out[i].Monetary > out[j].Monetary
		}
		return out[i].FullName < out[j].FullName
	})
	if len(out) > e.config.RFMTopN {
		out = out[:e.config.RFMTopN]
	}
	return out
}

func recencyDays(now, last time.Time) int {
	d := now.Sub(last)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// shortName truncates names longer than n runes and marks the cut with ".."
func shortName(name string, n int) string {
	if utf8.RuneCountInString(name) <= n {
		return name
	}
	return string([]rune(name)[:n]) + ".."
}

// PaymentMethodStat summarizes expenses paid with one method
type PaymentMethodStat struct {
	Name             string  `json:"name"`
	TransactionCount int     `json:"transaction_count"`
	TotalAmount      float64 `json:"total_amount"`
	AvgAmount        float64 `json:"avg_amount"`
	UsageDays        int     `json:"usage_days"`
	AmountRatio      float64 `json:"amount_ratio"`
	CountRatio       float64 `json:"count_ratio"`
}

// PaymentMethods groups expenses by the payment method canonicalized during
// normalization.
func (e *Engine) PaymentMethods(rows []models.Transaction) []PaymentMethodStat {
	exp := expenses(rows)
	all := total(exp)
	out := make([]PaymentMethodStat, 0)
	for name, group := range groupBy(exp, func(t *models.Transaction) string { return t.PaymentMethod }) {
		sum := total(group)
		out = append(out, PaymentMethodStat{
			Name:             name,
			TransactionCount: len(group),
			TotalAmount:      stats.Round2(sum),
			AvgAmount:        stats.Round2(sum / float64(len(group))),
			UsageDays:        distinctDays(group),
			AmountRatio:      stats.Percent(sum, all),
			CountRatio:       stats.Percent(float64(len(group)), float64(len(exp))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAmount != out[j].TotalAmount {
			return out[i].TotalAmount > out[j].TotalAmount
		}
		return out[i].Name < out[j].Name
	})
	return out
}
