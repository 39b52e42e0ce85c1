package cmd

import (
	"strings"

	"github.com/spf13/pflag"

	"bill-analytics-service/internal/analytics"
	"bill-analytics-service/internal/models"
)

// queryFlags are the filter and parameter flags shared by analyze and
// transactions
type queryFlags struct {
	year, month    int
	date           string
	hour           int
	category       string
	minAmount      float64
	maxAmount      float64
	direction      string
	search         string
	size           string
	excludeRefunds bool

	page, perPage int
	limit         int
	threshold     float64
	detailRange   string
}

func (f *queryFlags) bindFilter(fs *pflag.FlagSet) {
	fs.IntVar(&f.year, "year", 0, "keep rows of this year")
	fs.IntVar(&f.month, "month", 0, "keep rows of this month (1-12)")
	fs.StringVar(&f.date, "date", "", "keep rows of this day (YYYY-MM-DD)")
	fs.IntVar(&f.hour, "hour", 0, "keep rows of this hour (0-23)")
	fs.StringVar(&f.category, "category", "", "keep rows of this category")
	fs.Float64Var(&f.minAmount, "min", 0, "minimum signed amount, inclusive")
	fs.Float64Var(&f.maxAmount, "max", 0, "maximum signed amount, exclusive")
	fs.StringVar(&f.direction, "direction", "", "keep rows of this direction: income, expense, not_counted")
	fs.StringVar(&f.search, "search", "", "case-insensitive match on description, counterparty and category")
	fs.StringVar(&f.size, "size", "", "large or small transactions")
	fs.BoolVar(&f.excludeRefunds, "exclude-refunds", false, "drop refund rows")
}

func (f *queryFlags) bindPaging(fs *pflag.FlagSet) {
	fs.IntVar(&f.page, "page", 1, "transactions page")
	fs.IntVar(&f.perPage, "per-page", 0, "transactions per page (default from the engine)")
}

func (f *queryFlags) bindParams(fs *pflag.FlagSet) {
	f.bindPaging(fs)
	fs.IntVar(&f.limit, "limit", 0, "number of rows returned by top")
	fs.Float64Var(&f.threshold, "threshold", 0, "minimum amount considered by top")
	fs.StringVar(&f.detailRange, "range", "", "category_detail range: all, year or month")
}

// query assembles the flags into a query. Optional predicates are set only
// when their flag was given.
func (f *queryFlags) query(fs *pflag.FlagSet) analytics.Query {
	q := analytics.Query{
		Filter: analytics.Filter{
			Year:           f.year,
			Month:          f.month,
			Date:           f.date,
			Category:       f.category,
			Direction:      models.Direction(strings.ToLower(f.direction)),
			Search:         f.search,
			Size:           analytics.Size(strings.ToLower(f.size)),
			ExcludeRefunds: f.excludeRefunds,
		},
		Page:      f.page,
		PerPage:   f.perPage,
		Limit:     f.limit,
		Threshold: f.threshold,
		Range:     f.detailRange,
	}
	if fs.Changed("hour") {
		hour := f.hour
		q.Hour = &hour
	}
	if fs.Changed("min") {
		lo := f.minAmount
		q.MinAmount = &lo
	}
	if fs.Changed("max") {
		hi := f.maxAmount
		q.MaxAmount = &hi
	}
	return q
}
