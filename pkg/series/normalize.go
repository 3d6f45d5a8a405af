package series

import (
	"math"

	"github.com/iammatthias/office-space/pkg/sensors"
)

// logEpsilon floors values and range bounds before log10 so a zero reading
// cannot produce -Inf.
const logEpsilon = 1e-10

// Normalize maps a raw sensor value onto the [0,100] display range using the
// descriptor's physical range and scale policy. Non-finite input yields 0;
// the function never panics, since rendering must always receive a number.
func Normalize(value float64, d sensors.Descriptor) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	lo, hi := d.Min, d.Max
	if hi <= lo {
		return 0
	}

	v := clamp(value, lo, hi)

	if d.Scale == sensors.ScaleLog {
		v = math.Log10(math.Max(v, logEpsilon))
		lo = math.Log10(math.Max(lo, logEpsilon))
		hi = math.Log10(math.Max(hi, logEpsilon))
		if hi <= lo {
			return 0
		}
	}

	// Final clamp absorbs floating-point overshoot at the range edges.
	return clamp((v-lo)/(hi-lo)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
