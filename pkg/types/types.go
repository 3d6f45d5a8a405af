package types

import "time"

// Sample is a single timestamped sensor reading. Immutable once created.
type Sample struct {
	Timestamp time.Time `json:"time"`
	Value     float64   `json:"value"`
}

// DensePoint is one slot of a densified series. Interpolated marks values
// synthesized to fill a gap rather than read from the store.
type DensePoint struct {
	Timestamp    time.Time `json:"time"`
	Value        float64   `json:"value"`
	Interpolated bool      `json:"interpolated"`
}

// SeriesView is the read-only snapshot handed to consumers. Data is a copy;
// mutating it has no effect on the controller's state.
type SeriesView struct {
	SeriesID string
	Data     []Sample
	Loading  bool
	Err      error
}

// DaySummary holds precomputed aggregates for one calendar day.
type DaySummary struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Count   int     `json:"count"`
}

// Summary holds all-time aggregates for a series.
type Summary struct {
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Count   int     `json:"count"`
}
