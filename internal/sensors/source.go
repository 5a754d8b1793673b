// Package sensors provides the sensor-read boundary and the pure
// compensation functions applied to raw readings.
package sensors

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the hardware cannot be read at all.
var ErrUnavailable = errors.New("sensor hardware unavailable")

// Reading is one immutable raw sample, produced once per poll tick.
// Values are raw hardware units; calibration and unit conversion
// happen downstream.
type Reading struct {
	TemperatureC    float64
	HumidityPct     float64
	PressureHPa     float64
	Lux             float64
	GasOxidisingOhm float64
	GasReducingOhm  float64
	GasNH3Ohm       float64
	Timestamp       time.Time
}

// Source abstracts the physical sensors. Implementations must return
// an error instead of NaN/Inf values; a failed read leaves the
// previously published values retained on the bus.
type Source interface {
	// Read samples all channels once.
	Read() (Reading, error)
}
