package analytics

import (
	"strings"

	"bill-analytics-service/internal/models"
	"bill-analytics-service/internal/stats"
)

// Sentinels used when a slice has no qualifying rows
const (
	unknownName = "未知"
	noneName    = "无"
)

func expenses(rows []models.Transaction) []models.Transaction {
	return keep(rows, (*models.Transaction).IsCountedExpense)
}

func incomes(rows []models.Transaction) []models.Transaction {
	return keep(rows, (*models.Transaction).IsCountedIncome)
}

func keep(rows []models.Transaction, pred func(*models.Transaction) bool) []models.Transaction {
	out := make([]models.Transaction, 0, len(rows))
	for i := range rows {
		if pred(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	return out
}

func total(rows []models.Transaction) float64 {
	sum := 0.0
	for i := range rows {
		sum += rows[i].Value()
	}
	return sum
}

func amounts(rows []models.Transaction) []float64 {
	out := make([]float64, len(rows))
	for i := range rows {
		out[i] = rows[i].Value()
	}
	return out
}

// groupBy partitions rows by key, keeping table order inside each group
func groupBy(rows []models.Transaction, key func(*models.Transaction) string) map[string][]models.Transaction {
	groups := make(map[string][]models.Transaction)
	for i := range rows {
		k := key(&rows[i])
		groups[k] = append(groups[k], rows[i])
	}
	return groups
}

func byCounterparty(t *models.Transaction) string { return t.Counterparty }
func byCategory(t *models.Transaction) string     { return t.Category }
func byMonth(t *models.Transaction) string        { return t.YearMonth }
func byDate(t *models.Transaction) string         { return t.Date }

// sumBy totals the amounts of each group
func sumBy(rows []models.Transaction, key func(*models.Transaction) string) map[string]float64 {
	sums := make(map[string]float64)
	for i := range rows {
		sums[key(&rows[i])] += rows[i].Value()
	}
	return sums
}

// countBy counts the rows of each group
func countBy(rows []models.Transaction, key func(*models.Transaction) string) map[string]int {
	counts := make(map[string]int)
	for i := range rows {
		counts[key(&rows[i])]++
	}
	return counts
}

// argmax returns the key with the largest value; ties go to the smallest key
func argmax(m map[string]float64) (string, float64, bool) {
	best, bestVal, found := "", 0.0, false
	for k, v := range m {
		if !found || v > bestVal || (v == bestVal && k < best) {
			best, bestVal, found = k, v, true
		}
	}
	return best, bestVal, found
}

func argmaxCount(m map[string]int) (string, int, bool) {
	best, bestVal, found := "", 0, false
	for k, v := range m {
		if !found || v > bestVal || (v == bestVal && k < best) {
			best, bestVal, found = k, v, true
		}
	}
	return best, bestVal, found
}

// argmin mirrors argmax for the smallest value
func argmin(m map[string]float64) (string, float64, bool) {
	best, bestVal, found := "", 0.0, false
	for k, v := range m {
		if !found || v < bestVal || (v == bestVal && k < best) {
			best, bestVal, found = k, v, true
		}
	}
	return best, bestVal, found
}

func distinctDays(rows []models.Transaction) int {
	return len(countBy(rows, byDate))
}

// spanDays is the inclusive calendar-day distance between the first and last row
func spanDays(rows []models.Transaction) int {
	if len(rows) == 0 {
		return 0
	}
	first, last := rows[0].Timestamp, rows[0].Timestamp
	for i := range rows {
		if rows[i].Timestamp.Before(first) {
			first = rows[i].Timestamp
		}
		if rows[i].Timestamp.After(last) {
			last = rows[i].Timestamp
		}
	}
	return int(last.Sub(first).Hours()/24) + 1
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func sortedCategories(rows []models.Transaction) []string {
	return stats.SortedKeys(countBy(rows, byCategory))
}

func round2All(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = stats.Round2(v)
	}
	return out
}
