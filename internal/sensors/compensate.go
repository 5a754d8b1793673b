package sensors

import "math"

// CompensateTemperature corrects a raw ambient reading for heat bleed
// from the host CPU and applies the user offset:
//
//	compensated = raw - factor*(cpuSmoothed - raw) + offset
//
// cpuSmoothed should be an exponentially smoothed CPU temperature (see
// Smoother). A factor approaching zero degenerates to raw + offset; the
// calibration store rejects factor values at or below zero, so no
// branch here can divide by zero. The result is rounded to 2 decimals
// for publication.
func CompensateTemperature(rawC, cpuSmoothedC, offsetC, factor float64) float64 {
	return Round2(rawC - factor*(cpuSmoothedC-rawC) + offsetC)
}

// CalibrateHumidity applies the humidity offset and clamps the result
// to the physical [0, 100] range. Out-of-range readings never
// propagate.
func CalibrateHumidity(rawPct, offsetPct float64) float64 {
	calibrated := rawPct + offsetPct
	return Round2(math.Max(0.0, math.Min(100.0, calibrated)))
}

// GasOhmToKOhm converts a gas channel resistance from Ω to kΩ.
// No clamping: gas readings legitimately span a wide dynamic range.
func GasOhmToKOhm(rawOhm float64) float64 {
	return Round2(rawOhm / 1000.0)
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Smoother maintains an exponentially weighted moving average of the
// CPU temperature across ticks, so a transient CPU spike doesn't whip
// the compensated ambient value around.
type Smoother struct {
	weight float64
	value  float64
	seeded bool
}

// NewSmoother creates a Smoother. weight is the fraction of each new
// sample blended in per tick; it must be in (0, 1].
func NewSmoother(weight float64) *Smoother {
	if weight <= 0 || weight > 1 {
		weight = 0.2
	}
	return &Smoother{weight: weight}
}

// Add blends in a new sample and returns the smoothed value. The first
// sample seeds the average directly.
func (s *Smoother) Add(sample float64) float64 {
	if !s.seeded {
		s.value = sample
		s.seeded = true
		return s.value
	}
	s.value += s.weight * (sample - s.value)
	return s.value
}

// Value returns the current smoothed value, or 0 before any sample.
func (s *Smoother) Value() float64 {
	return s.value
}
