package analytics

import (
	"fmt"
	"sort"
	"time"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
)

// PeriodStats are the headline figures of a month or a year
type PeriodStats struct {
	Balance         float64 `json:"balance"`
	TotalExpense    float64 `json:"total_expense"`
	TotalIncome     float64 `json:"total_income"`
	ExpenseCount    int     `json:"expense_count"`
	IncomeCount     int     `json:"income_count"`
	TotalCount      int     `json:"total_count"`
	ActiveDays      int     `json:"active_days"`
	AvgTransaction  float64 `json:"avg_transaction"`
	AvgDailyExpense float64 `json:"avg_daily_expense"`
	// ExpenseRatio is expense over income in percent, 0 unless income is positive
	ExpenseRatio float64 `json:"expense_ratio"`
}

// periodStats computes PeriodStats over every row of a period. Active days
// count any row; the daily average divides by at least one day.
func periodStats(rows []models.Transaction) PeriodStats {
	exp, inc := expenses(rows), incomes(rows)
	expense, income := total(exp), total(inc)
	days := distinctDays(rows)

	s := PeriodStats{
		Balance:         stats.Round2(income - expense),
		TotalExpense:    stats.Round2(expense),
		TotalIncome:     stats.Round2(income),
		ExpenseCount:    len(exp),
		IncomeCount:     len(inc),
		TotalCount:      len(exp) + len(inc),
		ActiveDays:      days,
		AvgTransaction:  stats.Round2(stats.Mean(amounts(exp))),
		AvgDailyExpense: stats.Round2(stats.SafeDiv(expense, float64(days))),
	}
	if income > 0 {
		s.ExpenseRatio = stats.Percent(expense, income)
	}
	return s
}

// Comparison is the change of one figure against the previous period.
// Rate is nil when the previous value is zero and the current is not.
type Comparison struct {
	Change float64  `json:"change"`
	Rate   *float64 `json:"rate"`
}

func compare(current, previous float64) Comparison {
	return Comparison{Change: stats.Round2(current - previous), Rate: stats.ChangeRate(current, previous)}
}

// Comparisons relate a period to the one before it
type Comparisons struct {
	Balance Comparison `json:"balance"`
	Expense Comparison `json:"expense"`
	Income  Comparison `json:"income"`
	Count   Comparison `json:"count"`
}

func comparePeriods(cur, prev PeriodStats) *Comparisons {
	return &Comparisons{
		Balance: compare(cur.Balance, prev.Balance),
		Expense: compare(cur.TotalExpense, prev.TotalExpense),
		Income:  compare(cur.TotalIncome, prev.TotalIncome),
		Count:   compare(float64(cur.TotalCount), float64(prev.TotalCount)),
	}
}

// SourceCategory is the amount of one category on one platform
type SourceCategory struct {
	Source   models.Source `json:"source"`
	Category string        `json:"category"`
	Amount   float64       `json:"amount"`
}

// Breakdown splits expense and income by category and by platform
type Breakdown struct {
	Expense       []stats.Bucket   `json:"expense"`
	Income        []stats.Bucket   `json:"income"`
	ExpenseSource []SourceCategory `json:"expense_source"`
	IncomeSource  []SourceCategory `json:"income_source"`
}

func breakdown(rows []models.Transaction) Breakdown {
	exp, inc := expenses(rows), incomes(rows)
	return Breakdown{
		Expense:       roundBuckets(stats.BucketsFromMap(sumBy(exp, byCategory))),
		Income:        roundBuckets(stats.BucketsFromMap(sumBy(inc, byCategory))),
		ExpenseSource: sourceCategories(exp),
		IncomeSource:  sourceCategories(inc),
	}
}

func roundBuckets(buckets []stats.Bucket) []stats.Bucket {
	for i := range buckets {
		buckets[i].Value = stats.Round2(buckets[i].Value)
	}
	return buckets
}

func sourceCategories(rows []models.Transaction) []SourceCategory {
	type key struct {
		source   models.Source
		category string
	}
	sums := make(map[key]float64)
	for i := range rows {
		sums[key{rows[i].Source, rows[i].Category}] += rows[i].Value()
	}
	out := make([]SourceCategory, 0, len(sums))
	for k, v := range sums {
		out = append(out, SourceCategory{Source: k.source, Category: k.category, Amount: stats.Round2(v)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// latestPeriod returns the timestamp of the newest row
func latestPeriod(rows []models.Transaction) (time.Time, bool) {
	if len(rows) == 0 {
		return time.Time{}, false
	}
	latest := rows[0].Timestamp
	for i := range rows {
		if rows[i].Timestamp.After(latest) {
			latest = rows[i].Timestamp
		}
	}
	return latest, true
}

// MonthlyReport compares one month with the month before
type MonthlyReport struct {
	Month       string       `json:"month"`
	Stats       PeriodStats  `json:"stats"`
	Comparisons *Comparisons `json:"comparisons"`
	Daily       DailySeries  `json:"daily"`
	Categories  Breakdown    `json:"categories"`
}

// DailySeries is a zero-filled per-day expense and income series
type DailySeries struct {
	Dates   []string  `json:"dates"`
	Expense []float64 `json:"expense"`
	Income  []float64 `json:"income"`
}

// Monthly reports year/month against the previous calendar month. A zero
// year or month selects the month of the newest row. Comparisons are nil
// when the previous month has no rows.
func (e *Engine) Monthly(rows []models.Transaction, year, month int) MonthlyReport {
	report := MonthlyReport{
		Daily:      DailySeries{Dates: []string{}, Expense: []float64{}, Income: []float64{}},
		Categories: breakdown(nil),
	}
	if year == 0 || month == 0 {
		latest, ok := latestPeriod(rows)
		if !ok {
			return report
		}
		year, month = latest.Year(), int(latest.Month())
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	ym := start.Format(models.MonthLayout)
	prevYM := start.AddDate(0, -1, 0).Format(models.MonthLayout)

	current := keep(rows, func(t *models.Transaction) bool { return t.YearMonth == ym })
	previous := keep(rows, func(t *models.Transaction) bool { return t.YearMonth == prevYM })

	report.Month = ym
	report.Stats = periodStats(current)
	if len(previous) > 0 {
		report.Comparisons = comparePeriods(report.Stats, periodStats(previous))
	}
	report.Categories = breakdown(current)

	dim := stats.DaysInMonth(year, time.Month(month))
	expByDay := sumBy(expenses(current), byDate)
	incByDay := sumBy(incomes(current), byDate)
	for d := 1; d <= dim; d++ {
		date := start.AddDate(0, 0, d-1).Format(models.DateLayout)
		report.Daily.Dates = append(report.Daily.Dates, date)
		report.Daily.Expense = append(report.Daily.Expense, stats.Round2(expByDay[date]))
		report.Daily.Income = append(report.Daily.Income, stats.Round2(incByDay[date]))
	}
	return report
}

// YearlyReport compares one year with the year before
type YearlyReport struct {
	Year             int          `json:"year"`
	Stats            PeriodStats  `json:"stats"`
	AvgMonthlyIncome float64      `json:"avg_monthly_income"`
	Comparisons      *Comparisons `json:"comparisons"`
	Months           []string     `json:"months"`
	Expenses         []float64    `json:"expenses"`
	Incomes          []float64    `json:"incomes"`
	Categories       Breakdown    `json:"categories"`
	AvailableYears   []int        `json:"available_years"`
}

// Yearly reports a year with 12 zero-filled months. Comparisons are nil when
// the previous year has no rows. A zero year selects the newest year.
func (e *Engine) Yearly(rows []models.Transaction, year int) YearlyReport {
	report := YearlyReport{
		Months:         []string{},
		Expenses:       []float64{},
		Incomes:        []float64{},
		Categories:     breakdown(nil),
		AvailableYears: availableYears(rows),
	}
	if year == 0 {
		if len(report.AvailableYears) == 0 {
			return report
		}
		year = report.AvailableYears[0]
	}

	current := keep(rows, func(t *models.Transaction) bool { return t.Timestamp.Year() == year })
	previous := keep(rows, func(t *models.Transaction) bool { return t.Timestamp.Year() == year-1 })

	report.Year = year
	report.Stats = periodStats(current)
	report.AvgMonthlyIncome = stats.Round2(report.Stats.TotalIncome / 12)
	if len(previous) > 0 {
		report.Comparisons = comparePeriods(report.Stats, periodStats(previous))
	}
	report.Categories = breakdown(current)

	expByMonth := sumBy(expenses(current), byMonth)
	incByMonth := sumBy(incomes(current), byMonth)
	for _, ym := range yearMonths(year) {
		report.Months = append(report.Months, ym)
		report.Expenses = append(report.Expenses, stats.Round2(expByMonth[ym]))
		report.Incomes = append(report.Incomes, stats.Round2(incByMonth[ym]))
	}
	return report
}

func yearMonths(year int) []string {
	return stats.MonthsBetween(fmt.Sprintf("%04d-01", year), fmt.Sprintf("%04d-12", year))
}

func availableYears(rows []models.Transaction) []int {
	seen := make(map[int]bool)
	for i := range rows {
		seen[rows[i].Timestamp.Year()] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// Overview is the yearly dashboard
type Overview struct {
	Year             int            `json:"year"`
	AvailableYears   []int          `json:"available_years"`
	Stats            PeriodStats    `json:"stats"`
	AvgMonthlyIncome float64        `json:"avg_monthly_income"`
	Months           []string       `json:"months"`
	Amounts          []float64      `json:"amounts"`
	Categories       []stats.Bucket `json:"categories"`
}

// Overview reports a year with a zero-filled monthly expense series. Its
// daily expense average spreads the year's expense over 365 days.
func (e *Engine) Overview(rows []models.Transaction, year int) Overview {
	o := Overview{
		AvailableYears: availableYears(rows),
		Months:         []string{},
		Amounts:        []float64{},
		Categories:     []stats.Bucket{},
	}
	if year == 0 {
		if len(o.AvailableYears) == 0 {
			return o
		}
		year = o.AvailableYears[0]
	}
	current := keep(rows, func(t *models.Transaction) bool { return t.Timestamp.Year() == year })

	o.Year = year
	o.Stats = periodStats(current)
	o.Stats.AvgDailyExpense = stats.Round2(o.Stats.TotalExpense / 365)
	o.AvgMonthlyIncome = stats.Round2(o.Stats.TotalIncome / 12)

	exp := expenses(current)
	byM := sumBy(exp, byMonth)
	for _, ym := range yearMonths(year) {
		o.Months = append(o.Months, ym)
		o.Amounts = append(o.Amounts, stats.Round2(byM[ym]))
	}
	o.Categories = roundBuckets(stats.BucketsFromMap(sumBy(exp, byCategory)))
	return o
}

// Summary is the landing page headline
type Summary struct {
	TotalExpense        float64 `json:"total_expense"`
	TotalIncome         float64 `json:"total_income"`
	Balance             float64 `json:"balance"`
	MonthlyAvg          float64 `json:"monthly_avg"`
	CurrentMonthExpense float64 `json:"current_month_expense"`
	PrevMonthExpense    float64 `json:"prev_month_expense"`
	MonthCount          int     `json:"month_count"`
	TransactionCount    int     `json:"transaction_count"`
	CurrentMonth        string  `json:"current_month"`
	HasCurrentMonthData bool    `json:"has_current_month_data"`
}

// Summary shows the calendar month of the engine clock when it has expenses,
// otherwise the newest month with expenses. The previous figure is the
// expense of the second newest month, or the displayed month when there is
// only one.
func (e *Engine) Summary(rows []models.Transaction) Summary {
	exp, inc := expenses(rows), incomes(rows)
	expense, income := total(exp), total(inc)
	s := Summary{
		TotalExpense:     stats.Round2(expense),
		TotalIncome:      stats.Round2(income),
		Balance:          stats.Round2(income - expense),
		TransactionCount: len(exp),
	}

	monthly := sumBy(exp, byMonth)
	months := stats.SortedKeys(monthly)
	s.MonthCount = len(months)
	if len(months) == 0 {
		return s
	}

	values := make([]float64, len(months))
	for i, m := range months {
		values[i] = monthly[m]
	}
	s.MonthlyAvg = stats.Round2(stats.Mean(values))

	display := months[len(months)-1]
	if current := e.now().Format(models.MonthLayout); monthly[current] != 0 {
		display = current
		s.HasCurrentMonthData = true
	}
	s.CurrentMonth = display
	s.CurrentMonthExpense = stats.Round2(monthly[display])
	s.PrevMonthExpense = s.CurrentMonthExpense
	if len(months) > 1 {
		s.PrevMonthExpense = stats.Round2(values[len(values)-2])
	}
	return s
}

// DatedValue is a value on a date
type DatedValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DailyReport feeds the calendar heatmap
type DailyReport struct {
	Expense          []DatedValue `json:"expense"`
	Income           []DatedValue `json:"income"`
	Transactions     []DatedValue `json:"transactions"`
	ExpenseQuantiles []float64    `json:"expense_quantiles"`
	IncomeQuantiles  []float64    `json:"income_quantiles"`
}

var dailyQuantiles = []float64{0.2, 0.4, 0.6, 0.8}

// Daily totals counted rows per day and reports the 0.2/0.4/0.6/0.8
// quantiles of the daily totals for colour scaling.
func (e *Engine) Daily(rows []models.Transaction) DailyReport {
	counted := keep(rows, func(t *models.Transaction) bool { return t.IsCountedExpense() || t.IsCountedIncome() })
	expByDay := sumBy(expenses(counted), byDate)
	incByDay := sumBy(incomes(counted), byDate)
	countByDay := countBy(counted, byDate)

	r := DailyReport{
		Expense:          []DatedValue{},
		Income:           []DatedValue{},
		Transactions:     []DatedValue{},
		ExpenseQuantiles: []float64{},
		IncomeQuantiles:  []float64{},
	}
	for _, d := range stats.SortedKeys(countByDay) {
		if v, ok := expByDay[d]; ok {
			r.Expense = append(r.Expense, DatedValue{Date: d, Value: stats.Round2(v)})
		}
		if v, ok := incByDay[d]; ok {
			r.Income = append(r.Income, DatedValue{Date: d, Value: stats.Round2(v)})
		}
		r.Transactions = append(r.Transactions, DatedValue{Date: d, Value: float64(countByDay[d])})
	}
	r.ExpenseQuantiles = quantilesOf(r.Expense)
	r.IncomeQuantiles = quantilesOf(r.Income)
	return r
}

func quantilesOf(points []DatedValue) []float64 {
	if len(points) == 0 {
		return []float64{}
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	out := make([]float64, len(dailyQuantiles))
	for i, q := range dailyQuantiles {
		out[i] = stats.Round2(stats.Quantile(values, q))
	}
	return out
}

// FilteredMonthly is the monthly expense trend of a filtered slice
type FilteredMonthly struct {
	Months            []string    `json:"months"`
	TotalExpenses     []float64   `json:"total_expenses"`
	TransactionCounts []int       `json:"transaction_counts"`
	DailyAverages     []float64   `json:"daily_averages"`
	MoMRates          []float64   `json:"mom_rates"`
	MovingAverages    []float64   `json:"moving_averages"`
	Categories        []string    `json:"categories"`
	CategoryExpenses  [][]float64 `json:"category_expenses"`
}

// FilteredMonthly groups positive expenses by observed month with a
// trailing three-month moving average. Undefined change rates are 0.
func (e *Engine) FilteredMonthly(rows []models.Transaction) FilteredMonthly {
	exp := keep(expenses(rows), func(t *models.Transaction) bool { return t.Value() > 0 })
	monthly := groupBy(exp, byMonth)
	cats := sortedCategories(exp)

	fm := FilteredMonthly{
		Months:            []string{},
		TotalExpenses:     []float64{},
		TransactionCounts: []int{},
		DailyAverages:     []float64{},
		MoMRates:          []float64{},
		MovingAverages:    []float64{},
		Categories:        cats,
		CategoryExpenses:  [][]float64{},
	}
	var totals []float64
	for i, m := range stats.SortedKeys(monthly) {
		group := monthly[m]
		sum := total(group)
		totals = append(totals, sum)

		fm.Months = append(fm.Months, m)
		fm.TotalExpenses = append(fm.TotalExpenses, stats.Round2(sum))
		fm.TransactionCounts = append(fm.TransactionCounts, len(group))
		fm.DailyAverages = append(fm.DailyAverages, stats.Round2(stats.SafeDiv(sum, float64(distinctDays(group)))))
		rate := 0.0
		if i > 0 {
			rate = stats.RateOrZero(stats.ChangeRate(sum, totals[i-1]))
		}
		fm.MoMRates = append(fm.MoMRates, rate)

		lo := i - 2
		if lo < 0 {
			lo = 0
		}
		fm.MovingAverages = append(fm.MovingAverages, stats.Round2(stats.Mean(totals[lo:i+1])))

		byCat := sumBy(group, byCategory)
		row := make([]float64, len(cats))
		for j, c := range cats {
			row[j] = stats.Round2(byCat[c])
		}
		fm.CategoryExpenses = append(fm.CategoryExpenses, row)
	}
	return fm
}

// Dates lists what periods the table covers, newest first
type Dates struct {
	Years        []int         `json:"years"`
	Months       []string      `json:"months"`
	Dates        []string      `json:"dates"`
	MonthsByYear map[int][]int `json:"months_by_year"`
}

// Dates enumerates the available years, months and dates
func (e *Engine) Dates(rows []models.Transaction) Dates {
	d := Dates{
		Years:        availableYears(rows),
		Months:       reversed(stats.SortedKeys(countBy(rows, byMonth))),
		Dates:        reversed(stats.SortedKeys(countBy(rows, byDate))),
		MonthsByYear: make(map[int][]int),
	}
	seen := make(map[int]map[int]bool)
	for i := range rows {
		y, m := rows[i].Timestamp.Year(), int(rows[i].Timestamp.Month())
		if seen[y] == nil {
			seen[y] = make(map[int]bool)
		}
		if !seen[y][m] {
			seen[y][m] = true
			d.MonthsByYear[y] = append(d.MonthsByYear[y], m)
		}
	}
	for y := range d.MonthsByYear {
		sort.Ints(d.MonthsByYear[y])
	}
	return d
}

func reversed(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[len(values)-1-i] = v
	}
	return out
}
