package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iammatthias/office-space/pkg/types"
)

// ErrEmptySeries is returned when there is nothing to anchor gap filling on.
var ErrEmptySeries = errors.New("cannot densify an empty series")

// Densify produces exactly one point per slot in [spanStart, spanEnd],
// inclusive on both ends. Samples are bucketed onto the slot grid anchored
// at spanStart: a sample anywhere inside a slot claims that slot, is
// reported at the slot's own timestamp, and keeps the real flag (the last
// sample in a slot wins). The flag therefore marks slots backed by a stored
// reading, not exact-instant alignment. An empty slot is filled from the
// nearest samples within
// the same calendar day: linear interpolation when a neighbor exists on
// both sides, a carried value when only one side has data, and the midpoint
// of the global min/max observed across the whole series when the day holds
// no data at all. Missing values are treated as absent, never as zero.
//
// Interpolation weight is computed purely from elapsed time, so equidistant
// neighbors produce a deterministic result. Calendar days are evaluated in
// spanStart's location.
func Densify(samples []types.Sample, slot time.Duration, spanStart, spanEnd time.Time) ([]types.DensePoint, error) {
	if slot <= 0 {
		return nil, fmt.Errorf("slot resolution must be positive, got %v", slot)
	}
	if spanEnd.Before(spanStart) {
		return nil, fmt.Errorf("span end %v precedes span start %v", spanEnd, spanStart)
	}
	if len(samples) == 0 {
		return nil, ErrEmptySeries
	}

	loc := spanStart.Location()

	sorted := make([]types.Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	minV, maxV := sorted[0].Value, sorted[0].Value
	for _, s := range sorted[1:] {
		if s.Value < minV {
			minV = s.Value
		}
		if s.Value > maxV {
			maxV = s.Value
		}
	}
	fallback := (minV + maxV) / 2

	// Map each sample onto the slot grid anchored at spanStart. The last
	// sample landing in a slot wins, matching merge semantics where the
	// freshest value at an instant prevails.
	slotCount := int(spanEnd.Sub(spanStart)/slot) + 1
	real := make(map[int]float64, len(sorted))
	for _, s := range sorted {
		d := s.Timestamp.Sub(spanStart)
		if d < 0 {
			continue
		}
		i := int(d / slot)
		if i < slotCount {
			real[i] = s.Value
		}
	}

	out := make([]types.DensePoint, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		t := spanStart.Add(time.Duration(i) * slot)

		if v, ok := real[i]; ok {
			out = append(out, types.DensePoint{Timestamp: t, Value: v})
			continue
		}

		out = append(out, types.DensePoint{
			Timestamp:    t,
			Value:        fillValue(sorted, t, loc, fallback),
			Interpolated: true,
		})
	}

	return out, nil
}

// fillValue synthesizes a value for an empty slot at time t.
func fillValue(sorted []types.Sample, t time.Time, loc *time.Location, fallback float64) float64 {
	// First sample strictly after t; the one before it (if any) is the
	// nearest sample at or before t.
	idx := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Timestamp.After(t)
	})

	var prev, next *types.Sample
	if idx > 0 && sameDay(sorted[idx-1].Timestamp, t, loc) {
		prev = &sorted[idx-1]
	}
	if idx < len(sorted) && sameDay(sorted[idx].Timestamp, t, loc) {
		next = &sorted[idx]
	}

	switch {
	case prev != nil && next != nil:
		span := next.Timestamp.Sub(prev.Timestamp)
		if span <= 0 {
			return prev.Value
		}
		w := float64(t.Sub(prev.Timestamp)) / float64(span)
		return prev.Value + (next.Value-prev.Value)*w
	case prev != nil:
		return prev.Value
	case next != nil:
		return next.Value
	default:
		return fallback
	}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
