package analytics

import (
	"fmt"
	"strings"
	"time"

	"bill-analytics-service/internal/models"
)

// Size selects large or small transactions relative to Config.LargeAmount
type Size string

const (
	SizeAll   Size = ""
	SizeLarge Size = "large"
	SizeSmall Size = "small"
)

// Filter narrows the canonical table before an analytic runs. Every set
// field is one predicate of a conjunction; zero values match everything.
type Filter struct {
	Year     int    `json:"year,omitempty"`
	Month    int    `json:"month,omitempty"`
	Date     string `json:"date,omitempty"`
	Hour     *int   `json:"hour,omitempty"`
	Category string `json:"category,omitempty"`

	// MinAmount is inclusive and MaxAmount exclusive, compared with the
	// signed amount, so refunds fall below any positive minimum.
	MinAmount *float64 `json:"min_amount,omitempty"`
	MaxAmount *float64 `json:"max_amount,omitempty"`

	Direction models.Direction `json:"direction,omitempty"`

	// Search matches description, counterparty and category ignoring case
	Search string `json:"search,omitempty"`

	Size           Size `json:"size,omitempty"`
	ExcludeRefunds bool `json:"exclude_refunds,omitempty"`
}

// Validate checks the filter values
func (f Filter) Validate() error {
	if f.Month < 0 || f.Month > 12 {
		return fmt.Errorf("month must be within 1-12, got %d", f.Month)
	}
	if f.Date != "" {
		if _, err := time.Parse(models.DateLayout, f.Date); err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", f.Date)
		}
	}
	if f.Hour != nil && (*f.Hour < 0 || *f.Hour > 23) {
		return fmt.Errorf("hour must be within 0-23, got %d", *f.Hour)
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		return fmt.Errorf("min amount %v exceeds max amount %v", *f.MinAmount, *f.MaxAmount)
	}
	if f.Direction != "" && !f.Direction.IsValid() {
		return fmt.Errorf("invalid direction %q", f.Direction)
	}
	switch f.Size {
	case SizeAll, SizeLarge, SizeSmall:
	default:
		return fmt.Errorf("invalid size %q, expected large or small", f.Size)
	}
	return nil
}

// withoutPeriod drops the calendar predicates for analytics that scope
// their own periods
func (f Filter) withoutPeriod() Filter {
	f.Year, f.Month, f.Date = 0, 0, ""
	return f
}

func (f Filter) match(t *models.Transaction, largeAmount float64) bool {
	if f.Year != 0 && t.Timestamp.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(t.Timestamp.Month()) != f.Month {
		return false
	}
	if f.Date != "" && t.Date != f.Date {
		return false
	}
	if f.Hour != nil && t.Hour() != *f.Hour {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	v := t.Value()
	if f.MinAmount != nil && v < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && v >= *f.MaxAmount {
		return false
	}
	if f.Direction != "" && t.Direction != f.Direction {
		return false
	}
	if f.Search != "" && !containsFold(t.Description, f.Search) &&
		!containsFold(t.Counterparty, f.Search) && !containsFold(t.Category, f.Search) {
		return false
	}
	switch f.Size {
	case SizeLarge:
		if v < largeAmount {
			return false
		}
	case SizeSmall:
		if v >= largeAmount {
			return false
		}
	}
	if f.ExcludeRefunds && t.IsRefund {
		return false
	}
	return true
}

// Detail ranges of category_detail
const (
	RangeAll   = "all"
	RangeYear  = "year"
	RangeMonth = "month"
)

// Query carries the filter and the per-analytic parameters
type Query struct {
	Filter

	// Page and PerPage page the transactions listing
	Page    int `json:"page,omitempty"`
	PerPage int `json:"per_page,omitempty"`

	// Limit and Threshold parameterize the top analytic
	Limit     int     `json:"limit,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`

	// Range scopes category_detail; empty infers it from Year and Month
	Range string `json:"range,omitempty"`
}

// Validate checks the filter and the parameters
func (q Query) Validate() error {
	if err := q.Filter.Validate(); err != nil {
		return err
	}
	if q.Page < 0 || q.PerPage < 0 || q.Limit < 0 {
		return fmt.Errorf("page, per-page and limit cannot be negative")
	}
	switch strings.ToLower(q.Range) {
	case "", RangeAll:
	case RangeYear:
		if q.Year == 0 {
			return fmt.Errorf("year range requires a year")
		}
	case RangeMonth:
		if q.Year == 0 || q.Month == 0 {
			return fmt.Errorf("month range requires a year and a month")
		}
	default:
		return fmt.Errorf("invalid range %q, expected all, year or month", q.Range)
	}
	return nil
}

// detailRange resolves the effective category_detail range
func (q Query) detailRange() string {
	if r := strings.ToLower(q.Range); r != "" {
		return r
	}
	switch {
	case q.Year != 0 && q.Month != 0:
		return RangeMonth
	case q.Year != 0:
		return RangeYear
	default:
		return RangeAll
	}
}
