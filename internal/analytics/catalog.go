package analytics

import (
	"bill-analytics-service/internal/models"
)

type runFunc func(e *Engine, table *models.Table, q Query) interface{}

// Entry is one named view of the catalog
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	run runFunc
}

// filtered runs f over the rows matching the whole filter
func filtered[T any](f func(*Engine, []models.Transaction) T) runFunc {
	return func(e *Engine, table *models.Table, q Query) interface{} {
		return f(e, e.Select(table, q.Filter))
	}
}

// periodic runs f over the rows matching the filter without its calendar
// predicates; f scopes its own period from the query
func periodic[T any](f func(*Engine, []models.Transaction, Query) T) runFunc {
	return func(e *Engine, table *models.Table, q Query) interface{} {
		return f(e, e.Select(table, q.withoutPeriod()), q)
	}
}

var catalog = []Entry{
	{Name: "merchants", Description: "counterparty counts, totals and frequent merchants", run: filtered((*Engine).Merchants)},
	{Name: "scenarios", Description: "online vs offline, time bands and amount tiers", run: filtered((*Engine).Scenarios)},
	{Name: "habits", Description: "daily average, weekend, fixed and month-start ratios", run: filtered((*Engine).Habits)},
	{Name: "latte", Description: "small frequent expenses", run: filtered((*Engine).Latte)},
	{Name: "nighttime", Description: "spend between 22:00 and 04:59", run: filtered((*Engine).Nighttime)},
	{Name: "subscriptions", Description: "recurring monthly charges", run: filtered((*Engine).Subscriptions)},
	{Name: "inflation", Description: "average ticket of the first vs last quarter", run: filtered((*Engine).Inflation)},
	{Name: "loyalty", Description: "top counterparty by amount and by count", run: filtered((*Engine).Loyalty)},
	{Name: "sankey", Description: "total to categories to merchants flow", run: filtered((*Engine).Sankey)},
	{Name: "engel", Description: "food share of expense", run: filtered((*Engine).Engel)},
	{Name: "weekend_monday", Description: "weekend vs Monday daily spend", run: filtered((*Engine).WeekendMonday)},
	{Name: "story", Description: "annual bill narrative", run: filtered((*Engine).Story)},
	{Name: "tags", Description: "persona tags", run: filtered((*Engine).Tags)},
	{Name: "payment_methods", Description: "payment method usage", run: filtered((*Engine).PaymentMethods)},
	{Name: "chord", Description: "weekday to category links", run: filtered((*Engine).Chord)},
	{Name: "funnel", Description: "expense per amount band", run: filtered((*Engine).Funnel)},
	{Name: "quadrant", Description: "merchant frequency vs spend", run: filtered((*Engine).Quadrant)},
	{Name: "radar", Description: "category structure per quarter", run: filtered((*Engine).Radar)},
	{Name: "wordcloud", Description: "merchant weights", run: filtered((*Engine).WordCloud)},
	{Name: "themeriver", Description: "monthly spend of the top categories", run: filtered((*Engine).ThemeRiver)},
	{Name: "boxplot", Description: "amount distribution per category", run: filtered((*Engine).Boxplot)},
	{Name: "heatmap", Description: "transaction counts per hour and weekday", run: filtered((*Engine).Heatmap)},
	{Name: "pareto", Description: "cumulative category share", run: filtered((*Engine).Pareto)},
	{Name: "rfm", Description: "recency, frequency and monetary segments", run: filtered((*Engine).RFM)},
	{Name: "spiral", Description: "spend per weekday-hour slot", run: filtered((*Engine).Spiral)},
	{Name: "burndown", Description: "latest month budget burndown", run: filtered((*Engine).Burndown)},
	{Name: "category_flow", Description: "transitions between consecutive categories", run: filtered((*Engine).CategoryFlow)},
	{Name: "monthly", Description: "month vs previous month", run: periodic(func(e *Engine, rows []models.Transaction, q Query) MonthlyReport {
		return e.Monthly(rows, q.Year, q.Month)
	})},
	{Name: "yearly", Description: "year vs previous year", run: periodic(func(e *Engine, rows []models.Transaction, q Query) YearlyReport {
		return e.Yearly(rows, q.Year)
	})},
	{Name: "overview", Description: "yearly dashboard", run: periodic(func(e *Engine, rows []models.Transaction, q Query) Overview {
		return e.Overview(rows, q.Year)
	})},
	{Name: "summary", Description: "headline totals and the current month", run: periodic(func(e *Engine, rows []models.Transaction, _ Query) Summary {
		return e.Summary(rows)
	})},
	{Name: "daily", Description: "per-day totals with quantiles", run: filtered((*Engine).Daily)},
	{Name: "categories", Description: "ranked categories per platform", run: filtered((*Engine).Categories)},
	{Name: "category_detail", Description: "one category over a range", run: categoryScoped(func(e *Engine, rows []models.Transaction, q Query) CategoryDetail {
		return e.CategoryDetail(rows, q.Category, q.detailRange(), q.Year, q.Month)
	})},
	{Name: "category_trend", Description: "monthly history of one category", run: categoryScoped(func(e *Engine, rows []models.Transaction, q Query) CategoryTrend {
		return e.CategoryTrend(rows, q.Category)
	})},
	{Name: "time", Description: "hourly series and weekday/weekend split", run: filtered((*Engine).Time)},
	{Name: "filtered_monthly", Description: "monthly trend of the filtered rows", run: filtered((*Engine).FilteredMonthly)},
	{Name: "top", Description: "largest expenses", run: func(e *Engine, table *models.Table, q Query) interface{} {
		limit, threshold := q.Limit, q.Threshold
		if limit == 0 {
			limit = e.config.TopLimit
		}
		if threshold == 0 {
			threshold = e.config.TopMinAmount
		}
		return e.Top(e.Select(table, q.Filter), limit, threshold)
	}},
	{Name: "transactions", Description: "paginated ledger listing", run: func(e *Engine, table *models.Table, q Query) interface{} {
		return e.Transactions(e.Select(table, q.Filter), q.Page, q.PerPage)
	}},
	{Name: "dates", Description: "available years, months and dates", run: periodic(func(e *Engine, rows []models.Transaction, _ Query) Dates {
		return e.Dates(rows)
	})},
}

// categoryScoped drops the period and category predicates so shares are
// computed against every category; f scopes both itself. Without a category
// f sees no rows.
func categoryScoped[T any](f func(*Engine, []models.Transaction, Query) T) runFunc {
	return func(e *Engine, table *models.Table, q Query) interface{} {
		if q.Category == "" {
			return f(e, nil, q)
		}
		filter := q.withoutPeriod()
		filter.Category = ""
		return f(e, e.Select(table, filter), q)
	}
}

var catalogIndex = func() map[string]Entry {
	index := make(map[string]Entry, len(catalog))
	for _, entry := range catalog {
		index[entry.Name] = entry
	}
	return index
}()

// Catalog returns every entry in display order
func Catalog() []Entry {
	return append([]Entry(nil), catalog...)
}

// Names returns the catalog names in display order
func Names() []string {
	names := make([]string, len(catalog))
	for i, entry := range catalog {
		names[i] = entry.Name
	}
	return names
}

// Lookup finds a catalog entry by name
func Lookup(name string) (Entry, bool) {
	entry, ok := catalogIndex[name]
	return entry, ok
}
