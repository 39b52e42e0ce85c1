// Package stats holds the numeric and calendar helpers shared by the
// analytics engine.
package stats

import (
	"math"
	"sort"
	"time"
)

// Round rounds v to the given number of decimal places, half away from zero
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Round2 rounds to two decimal places
func Round2(v float64) float64 {
	return Round(v, 2)
}

// Sum adds up values
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean returns the arithmetic mean, or 0 for no values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// SampleStd returns the sample standard deviation (n-1 denominator).
// Fewer than two values yield 0.
func SampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// Quantile returns the q-quantile of values with linear interpolation
// between closest ranks. values need not be sorted; 0 for no values.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q)
}

func quantileSorted(sorted []float64, q float64) float64 {
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Median returns the 0.5 quantile
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// FiveNumber is the boxplot summary of a sample
type FiveNumber struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Summarize returns the five-number summary, all zero for no values
func Summarize(values []float64) FiveNumber {
	if len(values) == 0 {
		return FiveNumber{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return FiveNumber{
		Min:    sorted[0],
		Q1:     quantileSorted(sorted, 0.25),
		Median: quantileSorted(sorted, 0.5),
		Q3:     quantileSorted(sorted, 0.75),
		Max:    sorted[len(sorted)-1],
	}
}

// Mode returns the most frequent string; ties go to the lexically smallest.
// The second result is false for no values.
func Mode(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := "", 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best, true
}

// SafeDiv divides by max(den, 1) when den is zero, so per-day style averages
// never divide by zero.
func SafeDiv(num, den float64) float64 {
	if den == 0 {
		den = 1
	}
	return num / den
}

// Percent returns part/whole*100 rounded to two places, or 0 when whole is 0
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return Round2(part / whole * 100)
}

// ChangeRate returns (current-previous)/|previous|*100 rounded to two places.
//
// Both zero gives 0. A zero previous with a non-zero current is undefined
// and returns nil. A zero current with a non-zero previous is exactly -100.
func ChangeRate(current, previous float64) *float64 {
	var rate float64
	switch {
	case previous == 0 && current == 0:
		rate = 0
	case previous == 0:
		return nil
	case current == 0:
		rate = -100
	default:
		rate = Round2((current - previous) / math.Abs(previous) * 100)
	}
	return &rate
}

// RateOrZero dereferences a change rate, mapping undefined to 0
func RateOrZero(rate *float64) float64 {
	if rate == nil {
		return 0
	}
	return *rate
}

// Bucket is one group of a top-N series
type Bucket struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Bucketize keeps the n largest buckets and folds the rest into one named
// otherLabel, so the total is conserved. Ties are ordered by name. The other
// bucket is only added when something was folded into it.
func Bucketize(series []Bucket, n int, otherLabel string) []Bucket {
	sorted := append([]Bucket(nil), series...)
	SortBuckets(sorted)

	if n < 0 {
		n = 0
	}
	if len(sorted) <= n {
		if sorted == nil {
			return []Bucket{}
		}
		return sorted
	}

	out := make([]Bucket, 0, n+1)
	out = append(out, sorted[:n]...)
	other := 0.0
	for _, b := range sorted[n:] {
		other += b.Value
	}
	return append(out, Bucket{Name: otherLabel, Value: other})
}

// SortBuckets orders buckets by value descending, then name ascending
func SortBuckets(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].Value != buckets[j].Value {
			return buckets[i].Value > buckets[j].Value
		}
		return buckets[i].Name < buckets[j].Name
	})
}

// BucketsFromMap converts a map into an ordered bucket slice
func BucketsFromMap(m map[string]float64) []Bucket {
	out := make([]Bucket, 0, len(m))
	for k, v := range m {
		out = append(out, Bucket{Name: k, Value: v})
	}
	SortBuckets(out)
	return out
}

// TopKeys returns the names of the n largest entries of m
func TopKeys(m map[string]float64, n int) []string {
	buckets := BucketsFromMap(m)
	if n >= 0 && len(buckets) > n {
		buckets = buckets[:n]
	}
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = b.Name
	}
	return keys
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DaysInMonth returns the number of days of the month
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Quarter returns 1-4 for the month
func Quarter(month time.Month) int {
	return (int(month)-1)/3 + 1
}

// Season names the northern-hemisphere season of a month
func Season(month time.Month) string {
	switch month {
	case time.March, time.April, time.May:
		return "春季"
	case time.June, time.July, time.August:
		return "夏季"
	case time.September, time.October, time.November:
		return "秋季"
	default:
		return "冬季"
	}
}

// PreviousMonth returns the YYYY-MM label of the month before ym
func PreviousMonth(ym string) (string, error) {
	t, err := time.Parse("2006-01", ym)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), nil
}

// MonthsBetween lists YYYY-MM labels from first to last inclusive
func MonthsBetween(first, last string) []string {
	start, err1 := time.Parse("2006-01", first)
	end, err2 := time.Parse("2006-01", last)
	if err1 != nil || err2 != nil || end.Before(start) {
		return []string{}
	}
	var out []string
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		out = append(out, m.Format("2006-01"))
	}
	return out
}

// DaysBetween lists YYYY-MM-DD labels from first to last inclusive
func DaysBetween(first, last time.Time) []string {
	start := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	out := []string{}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}

// WeekdayNames are the Chinese weekday labels, Monday first
var WeekdayNames = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

// IsWeekend reports a Monday-based weekday index of Saturday or Sunday
func IsWeekend(weekday int) bool {
	return weekday >= 5
}
