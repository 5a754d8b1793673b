package sensors

import (
	"math"
	"testing"
)

func TestCompensateTemperature(t *testing.T) {
	tests := []struct {
		name     string
		rawC     float64
		cpuC     float64
		offsetC  float64
		factor   float64
		expected float64
	}{
		{
			name:     "hot CPU pulls reading down",
			rawC:     25.0,
			cpuC:     45.0,
			offsetC:  0.0,
			factor:   0.5,
			expected: 15.0,
		},
		{
			name:     "offset applied after compensation",
			rawC:     25.0,
			cpuC:     45.0,
			offsetC:  1.5,
			factor:   0.5,
			expected: 16.5,
		},
		{
			name:     "CPU at ambient changes nothing",
			rawC:     22.0,
			cpuC:     22.0,
			offsetC:  0.0,
			factor:   0.5,
			expected: 22.0,
		},
		{
			name:     "CPU cooler than ambient pushes up",
			rawC:     20.0,
			cpuC:     10.0,
			offsetC:  0.0,
			factor:   0.5,
			expected: 25.0,
		},
		{
			name:     "rounded to two decimals",
			rawC:     21.333,
			cpuC:     41.333,
			offsetC:  0.0,
			factor:   0.1,
			expected: 19.33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompensateTemperature(tt.rawC, tt.cpuC, tt.offsetC, tt.factor)
			if got != tt.expected {
				t.Errorf("CompensateTemperature(%v, %v, %v, %v) = %v, want %v",
					tt.rawC, tt.cpuC, tt.offsetC, tt.factor, got, tt.expected)
			}
		})
	}
}

// A vanishing factor must degenerate to raw + offset regardless of how
// hot the CPU runs; the formula contains no division that could blow
// up on the way there.
func TestCompensateTemperatureSmallFactor(t *testing.T) {
	for _, cpuC := range []float64{0, 45, 90, 500} {
		got := CompensateTemperature(25.0, cpuC, 1.0, 1e-9)
		if math.Abs(got-26.0) > 0.01 {
			t.Errorf("factor→0 with cpu=%v: got %v, want ≈26.0", cpuC, got)
		}
	}
}

func TestCalibrateHumidity(t *testing.T) {
	tests := []struct {
		name     string
		rawPct   float64
		offset   float64
		expected float64
	}{
		{name: "plain offset", rawPct: 45.0, offset: -3.0, expected: 42.0},
		{name: "clamped low", rawPct: 2.0, offset: -10.0, expected: 0.0},
		{name: "clamped high", rawPct: 98.0, offset: 10.0, expected: 100.0},
		{name: "raw already out of range high", rawPct: 130.0, offset: 0.0, expected: 100.0},
		{name: "raw already out of range low", rawPct: -5.0, offset: 0.0, expected: 0.0},
		{name: "rounded", rawPct: 44.444, offset: 0.0, expected: 44.44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalibrateHumidity(tt.rawPct, tt.offset)
			if got != tt.expected {
				t.Errorf("CalibrateHumidity(%v, %v) = %v, want %v", tt.rawPct, tt.offset, got, tt.expected)
			}
		})
	}
}

// Output stays within [0, 100] no matter how far the inputs push it.
func TestCalibrateHumidityAlwaysInRange(t *testing.T) {
	for _, raw := range []float64{-1000, -50, 0, 50, 100, 1000} {
		for _, offset := range []float64{-500, -20, 0, 20, 500} {
			got := CalibrateHumidity(raw, offset)
			if got < 0 || got > 100 {
				t.Fatalf("CalibrateHumidity(%v, %v) = %v, out of [0, 100]", raw, offset, got)
			}
		}
	}
}

func TestGasOhmToKOhm(t *testing.T) {
	tests := []struct {
		rawOhm   float64
		expected float64
	}{
		{rawOhm: 0, expected: 0},
		{rawOhm: 1000, expected: 1.0},
		{rawOhm: 18500, expected: 18.5},
		{rawOhm: 456789, expected: 456.79},
		{rawOhm: 1234, expected: 1.23},
	}

	for _, tt := range tests {
		got := GasOhmToKOhm(tt.rawOhm)
		if got != tt.expected {
			t.Errorf("GasOhmToKOhm(%v) = %v, want %v", tt.rawOhm, got, tt.expected)
		}
	}

	// Monotonic over a wide range
	prev := GasOhmToKOhm(0)
	for ohm := 1000.0; ohm < 1e7; ohm *= 2 {
		cur := GasOhmToKOhm(ohm)
		if cur < prev {
			t.Fatalf("GasOhmToKOhm not monotonic at %v: %v < %v", ohm, cur, prev)
		}
		prev = cur
	}
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(0.5)

	// First sample seeds directly
	if got := s.Add(40.0); got != 40.0 {
		t.Errorf("first sample = %v, want 40.0", got)
	}

	// Then blends halfway toward each new sample
	if got := s.Add(50.0); got != 45.0 {
		t.Errorf("second sample = %v, want 45.0", got)
	}
	if got := s.Add(45.0); got != 45.0 {
		t.Errorf("third sample = %v, want 45.0", got)
	}

	if s.Value() != 45.0 {
		t.Errorf("Value() = %v, want 45.0", s.Value())
	}
}

func TestSmootherInvalidWeight(t *testing.T) {
	// Out-of-range weights fall back to the default rather than
	// freezing or overshooting
	for _, w := range []float64{-1, 0, 1.5} {
		s := NewSmoother(w)
		s.Add(10)
		got := s.Add(20)
		if got <= 10 || got > 20 {
			t.Errorf("weight %v: blended value %v outside (10, 20]", w, got)
		}
	}
}
