package ingest

import (
	"fmt"
	"sort"

	"bill-analytics-service/internal/models"
	apperrors "bill-analytics-service/pkg/errors"
)

// Merge concatenates normalized frames into one canonical table ordered by
// transaction time. Rows are never deduplicated across files, and rows with
// equal timestamps keep their frame order.
//
// Merge fails with NoDataError when the frames hold no rows, and with
// SchemaValidationError when a frame lacks a required canonical column or a
// row breaks the canonical invariants.
func Merge(frames []*models.Frame) (*models.Table, error) {
	total := 0
	for _, f := range frames {
		if f != nil {
			total += len(f.Rows)
		}
	}
	if total == 0 {
		return nil, apperrors.NoDataError(len(frames))
	}

	if missing := missingColumns(frames); len(missing) > 0 {
		return nil, apperrors.SchemaValidationError(missing, "")
	}

	rows := make([]models.Transaction, 0, total)
	for _, f := range frames {
		if f == nil {
			continue
		}
		for i := range f.Rows {
			if err := f.Rows[i].Validate(); err != nil {
				return nil, apperrors.SchemaValidationError(nil,
					fmt.Sprintf("%s row %d: %v", f.File, i+1, err)).
					WithContext("file", f.File)
			}
		}
		rows = append(rows, f.Rows...)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})

	return models.NewTable(rows, unionColumns(frames)), nil
}

// missingColumns lists required columns absent from any non-empty frame
func missingColumns(frames []*models.Frame) []string {
	seen := make(map[string]bool)
	var missing []string
	for _, f := range frames {
		if f == nil || len(f.Rows) == 0 {
			continue
		}
		for _, col := range models.RequiredColumns {
			if !f.HasColumn(col) && !seen[col] {
				seen[col] = true
				missing = append(missing, col)
			}
		}
	}
	sort.Strings(missing)
	return missing
}

func unionColumns(frames []*models.Frame) []string {
	set := make(map[string]bool)
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.Columns {
			set[c] = true
		}
	}
	cols := make([]string, 0, len(set))
	for c := range set {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// IsSorted reports whether rows are in non-decreasing timestamp order
func IsSorted(rows []models.Transaction) bool {
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.Before(rows[i-1].Timestamp) {
			return false
		}
	}
	return true
}
