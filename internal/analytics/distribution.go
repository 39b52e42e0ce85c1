package analytics

import (
	"fmt"
	"math"
	"sort"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/profiles"
	"bill-analytics-service/internal/stats"
)

// amountBand is a half-open [Low, High) amount range
type amountBand struct {
	Label     string
	Low, High float64
}

var funnelBands = []amountBand{
	{"0-50元", 0, 50},
	{"50-100元", 50, 100},
	{"100-500元", 100, 500},
	{"500-1000元", 500, 1000},
	{"1000-5000元", 1000, 5000},
	{">5000元", 5000, math.Inf(1)},
}

func bandIndex(bands []amountBand, v float64) int {
	for i, b := range bands {
		if v >= b.Low && v < b.High {
			return i
		}
	}
	return -1
}

// Funnel totals expenses per amount band, largest band first. Every band is
// listed once there is at least one expense.
func (e *Engine) Funnel(rows []models.Transaction) []stats.Bucket {
	exp := expenses(rows)
	if len(exp) == 0 {
		return []stats.Bucket{}
	}
	sums := make([]float64, len(funnelBands))
	for i := range exp {
		if b := bandIndex(funnelBands, exp[i].Value()); b >= 0 {
			sums[b] += exp[i].Value()
		}
	}
	out := make([]stats.Bucket, len(funnelBands))
	for i, b := range funnelBands {
		out[i] = stats.Bucket{Name: b.Label, Value: stats.Round2(sums[i])}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// Indicator is one radar axis
type Indicator struct {
	Name string  `json:"name"`
	Max  float64 `json:"max"`
}

// Series is a named vector of values
type Series struct {
	Name  string    `json:"name"`
	Value []float64 `json:"value"`
}

// Radar compares the spend structure of calendar quarters
type Radar struct {
	Indicator []Indicator `json:"indicator"`
	Series    []Series    `json:"series"`
}

// Radar uses the top 8 categories as axes and one series per observed
// quarter of the year (Q1-Q4, merged across years). Every axis maximum is
// 1.1 times the largest value.
func (e *Engine) Radar(rows []models.Transaction) Radar {
	exp := expenses(rows)
	result := Radar{Indicator: []Indicator{}, Series: []Series{}}
	top := stats.TopKeys(sumBy(exp, byCategory), 8)
	if len(top) == 0 {
		return result
	}

	byQuarter := groupBy(exp, func(t *models.Transaction) string {
		return fmt.Sprintf("Q%d", stats.Quarter(t.Timestamp.Month()))
	})
	maxVal := 0.0
	for _, q := range stats.SortedKeys(byQuarter) {
		sums := sumBy(byQuarter[q], byCategory)
		values := make([]float64, len(top))
		for i, cat := range top {
			values[i] = stats.Round2(sums[cat])
			maxVal = math.Max(maxVal, values[i])
		}
		result.Series = append(result.Series, Series{Name: q, Value: values})
	}
	for _, cat := range top {
		result.Indicator = append(result.Indicator, Indicator{Name: cat, Max: stats.Round2(maxVal * 1.1)})
	}
	return result
}

// ThemeRiver holds [month, category, amount] triples
type ThemeRiver struct {
	Categories []string       `json:"categories"`
	Data       []ThemeRiverAt `json:"data"`
}

// ThemeRiverAt is the spend of one category in one month
type ThemeRiverAt struct {
	Month    string  `json:"month"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ThemeRiver emits every observed month × top 10 category, zero-filled
func (e *Engine) ThemeRiver(rows []models.Transaction) ThemeRiver {
	exp := expenses(rows)
	top := stats.TopKeys(sumBy(exp, byCategory), 10)
	result := ThemeRiver{Categories: top, Data: []ThemeRiverAt{}}

	monthly := groupBy(exp, byMonth)
	for _, month := range stats.SortedKeys(monthly) {
		sums := sumBy(monthly[month], byCategory)
		for _, cat := range top {
			result.Data = append(result.Data, ThemeRiverAt{Month: month, Category: cat, Amount: stats.Round2(sums[cat])})
		}
	}
	return result
}

// BoxPoint is one expense drawn over a category box
type BoxPoint struct {
	Category int     `json:"c"`
	Value    float64 `json:"v"`
	Merchant string  `json:"m"`
	Date     string  `json:"d"`
}

// Boxplot holds per-category five-number summaries and the raw points
type Boxplot struct {
	Categories []string           `json:"categories"`
	Data       []BoxPoint         `json:"data"`
	BoxData    []stats.FiveNumber `json:"box_data"`
}

// Boxplot summarizes positive expenses of the top 8 categories using linear
// interpolation quantiles.
func (e *Engine) Boxplot(rows []models.Transaction) Boxplot {
	exp := keep(expenses(rows), func(t *models.Transaction) bool { return t.Value() > 0 })
	top := stats.TopKeys(sumBy(exp, byCategory), 8)
	result := Boxplot{Categories: top, Data: []BoxPoint{}, BoxData: make([]stats.FiveNumber, 0, len(top))}

	byCat := groupBy(exp, byCategory)
	for i, cat := range top {
		group := byCat[cat]
		for j := range group {
			result.Data = append(result.Data, BoxPoint{
				Category: i,
				Value:    stats.Round2(group[j].Value()),
				Merchant: group[j].Counterparty,
				Date:     group[j].Date,
			})
		}
		result.BoxData = append(result.BoxData, stats.Summarize(amounts(group)))
	}
	return result
}

// Pareto is the cumulative category share curve
type Pareto struct {
	Categories  []string  `json:"categories"`
	Values      []float64 `json:"values"`
	Percentages []float64 `json:"percentages"`
}

// Pareto sorts categories by spend and accumulates their share of the slice
// total, truncated to the top 15.
func (e *Engine) Pareto(rows []models.Transaction) Pareto {
	result := Pareto{Categories: []string{}, Values: []float64{}, Percentages: []float64{}}
	exp := expenses(rows)
	all := total(exp)
	if all == 0 {
		return result
	}

	cum := 0.0
	for i, b := range stats.BucketsFromMap(sumBy(exp, byCategory)) {
		if i >= 15 {
			break
		}
		cum += b.Value
		result.Categories = append(result.Categories, b.Name)
		result.Values = append(result.Values, stats.Round2(b.Value))
		result.Percentages = append(result.Percentages, stats.Percent(cum, all))
	}
	return result
}

// Engel is the food share of expense
type Engel struct {
	Ratio  float64 `json:"ratio"`
	Amount float64 `json:"amount"`
}

// Engel matches the food keyword list against the category
func (e *Engine) Engel(rows []models.Transaction) Engel {
	exp := expenses(rows)
	all := total(exp)
	if all == 0 {
		return Engel{}
	}
	food := total(keep(exp, func(t *models.Transaction) bool {
		return profiles.ContainsAny(t.Category, e.config.Keywords.Food)
	}))
	return Engel{Ratio: stats.Percent(food, all), Amount: stats.Round2(food)}
}

// Trend labels
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Inflation compares the average ticket of the first and last quarter
type Inflation struct {
	Trend    string  `json:"trend"`
	Rate     float64 `json:"rate"`
	FirstAvg float64 `json:"first_avg"`
	LastAvg  float64 `json:"last_avg"`
}

// Inflation averages expenses per calendar quarter. With fewer than two
// quarters the trend is stable at 0%.
func (e *Engine) Inflation(rows []models.Transaction) Inflation {
	quarters := groupBy(expenses(rows), func(t *models.Transaction) string {
		return fmt.Sprintf("%d-Q%d", t.Timestamp.Year(), stats.Quarter(t.Timestamp.Month()))
	})
	if len(quarters) < 2 {
		return Inflation{Trend: TrendStable}
	}

	keys := stats.SortedKeys(quarters)
	first := stats.Mean(amounts(quarters[keys[0]]))
	last := stats.Mean(amounts(quarters[keys[len(keys)-1]]))
	rate := 0.0
	if first > 0 {
		rate = (last - first) / first * 100
	}

	trend := TrendStable
	switch {
	case rate > e.config.InflationBand:
		trend = TrendUp
	case rate < -e.config.InflationBand:
		trend = TrendDown
	}
	return Inflation{
		Trend:    trend,
		Rate:     stats.Round2(rate),
		FirstAvg: stats.Round2(first),
		LastAvg:  stats.Round2(last),
	}
}
