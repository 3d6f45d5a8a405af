package series

import (
	"sort"
	"time"

	"github.com/iammatthias/office-space/pkg/types"
)

// Merge combines an existing series with newly fetched samples. Samples are
// keyed by timestamp; an incoming sample replaces an existing one at the
// same instant (incoming is assumed fresher). The result is sorted ascending
// with no duplicate timestamps, so merging the same page twice yields the
// same series as merging it once.
func Merge(existing, incoming []types.Sample) []types.Sample {
	merged := make(map[int64]types.Sample, len(existing)+len(incoming))
	for _, s := range existing {
		merged[s.Timestamp.UnixNano()] = s
	}
	for _, s := range incoming {
		merged[s.Timestamp.UnixNano()] = s
	}

	out := make([]types.Sample, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}

// Range returns the earliest and latest timestamps of a series. It is
// recomputed from the samples on every call rather than tracked
// incrementally, so it can never go stale after a merge.
func Range(samples []types.Sample) (earliest, latest time.Time, ok bool) {
	if len(samples) == 0 {
		return time.Time{}, time.Time{}, false
	}

	earliest = samples[0].Timestamp
	latest = samples[0].Timestamp
	for _, s := range samples[1:] {
		if s.Timestamp.Before(earliest) {
			earliest = s.Timestamp
		}
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}

	return earliest, latest, true
}
