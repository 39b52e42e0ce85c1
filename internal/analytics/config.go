package analytics

import (
	"fmt"
	"time"

	"bill-analytics-service/internal/profiles"
)

// Config holds the thresholds used by the analytic functions.
// Keyword lists come from the versioned profile so export or merchant
// vocabulary drift can be handled without changing code.
//
// Use DefaultConfig for the values the dashboards were built against.
type Config struct {
	// Keywords are the online, food, coffee, takeout and transfer lists
	Keywords profiles.Keywords `json:"keywords"`

	// LargeAmount separates the large and small size filters
	LargeAmount float64 `json:"large_amount"`

	// FrequentMinCount is the visit count a merchant needs to be frequent.
	// Slices below SmallSampleRows rows relax it to 1.
	FrequentMinCount int `json:"frequent_min_count"`
	SmallSampleRows  int `json:"small_sample_rows"`
	FrequentTopN     int `json:"frequent_top_n"`

	// LatteThreshold is the exclusive upper bound of a small expense
	LatteThreshold float64 `json:"latte_threshold"`
	// LatteMinCount is the exclusive lower bound of visits for a latte merchant
	LatteMinCount int `json:"latte_min_count"`

	// NightStartHour and NightEndHour bound the wraparound night window, inclusive
	NightStartHour int `json:"night_start_hour"`
	NightEndHour   int `json:"night_end_hour"`

	// RecurringMinMonths and RecurringMaxStd define a subscription
	RecurringMinMonths int     `json:"recurring_min_months"`
	RecurringMaxStd    float64 `json:"recurring_max_std"`

	// InflationBand is the percentage change that counts as a trend
	InflationBand float64 `json:"inflation_band"`

	// RFMMinFrequency is the exclusive lower bound of transactions per counterparty
	RFMMinFrequency int `json:"rfm_min_frequency"`
	RFMTopN         int `json:"rfm_top_n"`

	// FlowWindow is the longest gap between two expenses linked by category_flow
	FlowWindow time.Duration `json:"flow_window"`

	// PageSize is the default transactions page size
	PageSize int `json:"page_size"`

	// TopLimit and TopMinAmount are the defaults of the top analytic
	TopLimit     int     `json:"top_limit"`
	TopMinAmount float64 `json:"top_min_amount"`
}

// DefaultConfig returns a configuration with the dashboard defaults
func DefaultConfig() *Config {
	return &Config{
		Keywords:           profiles.Default().Keywords,
		LargeAmount:        1000,
		FrequentMinCount:   2,
		SmallSampleRows:    50,
		FrequentTopN:       20,
		LatteThreshold:     30,
		LatteMinCount:      5,
		NightStartHour:     22,
		NightEndHour:       4,
		RecurringMinMonths: 3,
		RecurringMaxStd:    5,
		InflationBand:      5,
		RFMMinFrequency:    2,
		RFMTopN:            50,
		FlowWindow:         2 * time.Hour,
		PageSize:           20,
		TopLimit:           10,
		TopMinAmount:       1000,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.LargeAmount <= 0 {
		return fmt.Errorf("large amount must be positive: %v", c.LargeAmount)
	}
	if c.FrequentMinCount < 1 {
		return fmt.Errorf("frequent min count must be at least 1: %d", c.FrequentMinCount)
	}
	if c.FrequentTopN <= 0 || c.RFMTopN <= 0 {
		return fmt.Errorf("top-N limits must be positive")
	}
	if c.LatteThreshold <= 0 {
		return fmt.Errorf("latte threshold must be positive: %v", c.LatteThreshold)
	}
	if c.NightStartHour < 0 || c.NightStartHour > 23 || c.NightEndHour < 0 || c.NightEndHour > 23 {
		return fmt.Errorf("night window hours must be within 0-23: %d-%d", c.NightStartHour, c.NightEndHour)
	}
	if c.RecurringMinMonths < 2 {
		return fmt.Errorf("recurring detection needs at least 2 months: %d", c.RecurringMinMonths)
	}
	if c.RecurringMaxStd < 0 {
		return fmt.Errorf("recurring std threshold cannot be negative: %v", c.RecurringMaxStd)
	}
	if c.FlowWindow <= 0 {
		return fmt.Errorf("flow window must be positive: %v", c.FlowWindow)
	}
	if c.PageSize <= 0 || c.TopLimit <= 0 {
		return fmt.Errorf("page size and top limit must be positive")
	}
	return nil
}

// isNight reports whether hour falls in the wraparound night window
func (c *Config) isNight(hour int) bool {
	if c.NightStartHour <= c.NightEndHour {
		return hour >= c.NightStartHour && hour <= c.NightEndHour
	}
	return hour >= c.NightStartHour || hour <= c.NightEndHour
}
