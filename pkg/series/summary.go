package series

import (
	"sort"
	"time"

	"github.com/iammatthias/office-space/pkg/types"
)

// DailySummaries computes average and median per calendar day. Days are
// evaluated in loc; the median of an even-sized day is the mean of the two
// middle values.
func DailySummaries(samples []types.Sample, loc *time.Location) []types.DaySummary {
	if loc == nil {
		loc = time.UTC
	}

	byDay := make(map[string][]float64)
	for _, s := range samples {
		day := s.Timestamp.In(loc).Format("2006-01-02")
		byDay[day] = append(byDay[day], s.Value)
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	out := make([]types.DaySummary, 0, len(days))
	for _, day := range days {
		values := byDay[day]
		out = append(out, types.DaySummary{
			Date:    day,
			Average: mean(values),
			Median:  median(values),
			Count:   len(values),
		})
	}

	return out
}

// AllTimeSummary computes the aggregates across an entire series.
func AllTimeSummary(samples []types.Sample) types.Summary {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}

	return types.Summary{
		Average: mean(values),
		Median:  median(values),
		Count:   len(values),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median sorts a copy; even-sized inputs average the two middle values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
