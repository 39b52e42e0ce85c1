package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeRate(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		previous float64
		want     *float64
	}{
		{"both zero", 0, 0, ptr(0)},
		{"drop to zero", 0, 100, ptr(-100)},
		{"from zero", 50, 0, nil},
		{"growth", 150, 100, ptr(50)},
		{"negative previous", -50, -100, ptr(50)},
		{"rounded", 1, 3, ptr(-66.67)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangeRate(tt.current, tt.previous)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}

	assert.Equal(t, 0.0, RateOrZero(nil))
}

func ptr(v float64) *float64 { return &v }

func TestMeanAndSampleStd(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, SampleStd([]float64{42}))
	assert.InDelta(t, 100.0, Mean([]float64{99.9, 100.1, 100.0}), 1e-9)
	assert.InDelta(t, 0.1, SampleStd([]float64{99.9, 100.1, 100.0}), 1e-9)
}

func TestQuantileLinear(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	assert.Equal(t, 1.0, Quantile(values, 0))
	assert.Equal(t, 4.0, Quantile(values, 1))
	assert.InDelta(t, 2.5, Median(values), 1e-9)
	assert.InDelta(t, 1.75, Quantile(values, 0.25), 1e-9)
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "input is not reordered")

	five := Summarize(values)
	assert.Equal(t, FiveNumber{Min: 1, Q1: 1.75, Median: 2.5, Q3: 3.25, Max: 4}, five)
	assert.Equal(t, FiveNumber{}, Summarize(nil))
}

func TestMode(t *testing.T) {
	_, ok := Mode(nil)
	assert.False(t, ok)

	m, ok := Mode([]string{"b", "a", "b", "a", "c"})
	assert.True(t, ok)
	assert.Equal(t, "a", m)
}

func TestSafeDivAndPercent(t *testing.T) {
	assert.Equal(t, 10.0, SafeDiv(10, 0))
	assert.Equal(t, 5.0, SafeDiv(10, 2))
	assert.Equal(t, 0.0, Percent(5, 0))
	assert.Equal(t, 33.33, Percent(1, 3))
}

func TestBucketizeConservesTotal(t *testing.T) {
	series := []Bucket{{"a", 5}, {"b", 10}, {"c", 1}, {"d", 10}, {"e", 2}}

	out := Bucketize(series, 2, "其他")
	require.Len(t, out, 3)
	assert.Equal(t, Bucket{"b", 10}, out[0])
	assert.Equal(t, Bucket{"d", 10}, out[1])
	assert.Equal(t, Bucket{"其他", 8}, out[2])

	total := 0.0
	for _, b := range out {
		total += b.Value
	}
	assert.Equal(t, 28.0, total)

	assert.Len(t, Bucketize(series, 10, "其他"), 5, "no other bucket when nothing is folded")
	assert.Equal(t, []Bucket{}, Bucketize(nil, 3, "其他"))
}

func TestTopKeysAndSortedKeys(t *testing.T) {
	m := map[string]float64{"x": 1, "y": 3, "z": 2}
	assert.Equal(t, []string{"y", "z"}, TopKeys(m, 2))
	assert.Equal(t, []string{"x", "y", "z"}, SortedKeys(m))
}

func TestCalendarHelpers(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(2024, time.February))
	assert.Equal(t, 28, DaysInMonth(2023, time.February))
	assert.Equal(t, 31, DaysInMonth(2024, time.December))

	assert.Equal(t, 1, Quarter(time.March))
	assert.Equal(t, 4, Quarter(time.October))
	assert.Equal(t, "冬季", Season(time.January))
	assert.Equal(t, "夏季", Season(time.July))

	prev, err := PreviousMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", prev)

	assert.Equal(t, []string{"2023-11", "2023-12", "2024-01"}, MonthsBetween("2023-11", "2024-01"))
	assert.Equal(t, []string{}, MonthsBetween("2024-02", "2024-01"))

	days := DaysBetween(time.Date(2024, 2, 28, 13, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"2024-02-28", "2024-02-29", "2024-03-01"}, days)
}
