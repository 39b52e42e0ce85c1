// Package analytics derives the dashboard views from the canonical table.
//
// Every view is a named entry of the catalog. An entry selects the rows
// matching the query's filter and aggregates them into a plain result value
// that serializes to JSON. On an empty selection every entry returns an
// empty but valid result: zero figures, empty slices, never an error.
//
// Unless stated otherwise aggregates only use counted rows: expenses and
// incomes that are not refunds.
//
// Example usage:
//
//	engine, err := analytics.NewEngine(analytics.DefaultConfig(), nil)
//	result, err := engine.Run("monthly", table, analytics.Query{
//		Filter: analytics.Filter{Year: 2024, Month: 3},
//	})
package analytics

import (
	"fmt"
	"time"

	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
	"bill-analytics-service/pkg/logger"
)

// Engine runs the catalog over canonical tables. It holds no table state
// and is safe for concurrent use.
type Engine struct {
	config *Config
	clock  func() time.Time
	logger logger.Logger
}

// NewEngine creates a new Engine, using DefaultConfig for a nil config
func NewEngine(config *Config, log logger.Logger) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError("analytics", config.LargeAmount, err).
			WithSuggestion("check the analytics thresholds")
	}
	return &Engine{
		config: config,
		clock:  time.Now,
		logger: logger.OrGlobal(log, "analytics"),
	}, nil
}

// WithClock replaces the clock used by recency and current-month views
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.clock = now
	return e
}

func (e *Engine) now() time.Time {
	return e.clock()
}

// Config returns the engine thresholds
func (e *Engine) Config() *Config {
	return e.config
}

// Select returns the rows of table matching the filter, in table order
func (e *Engine) Select(table *models.Table, filter Filter) []models.Transaction {
	return table.Select(func(t *models.Transaction) bool {
		return filter.match(t, e.config.LargeAmount)
	})
}

// Run computes the named view over table.
//
// It fails with an unknown_analytic error for a name outside the catalog and
// with invalid_query when the query does not validate.
func (e *Engine) Run(name string, table *models.Table, q Query) (interface{}, error) {
	entry, ok := Lookup(name)
	if !ok {
		return nil, apperrors.New(apperrors.CategoryValidation, apperrors.CodeUnknownAnalytic,
			fmt.Sprintf("unknown analytic '%s'", name)).
			WithSuggestion("run 'billctl catalog' to list the available analytics").
			WithContext("name", name)
	}
	if err := q.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryValidation, apperrors.CodeInvalidQuery,
			fmt.Sprintf("invalid query for '%s'", name)).
			WithContext("name", name)
	}

	start := time.Now()
	result := entry.run(e, table, q)
	e.logger.WithFields(logger.Fields{
		"analytic":    name,
		"rows":        table.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("analytic computed")
	return result, nil
}
