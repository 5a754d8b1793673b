package sensors

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// SimulatedSource produces plausible drifting readings for development
// hosts without the HAT attached.
type SimulatedSource struct {
	mu    sync.Mutex
	rng   *rand.Rand
	phase float64
}

// NewSimulatedSource creates a SimulatedSource.
func NewSimulatedSource() *SimulatedSource {
	return &SimulatedSource{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Read returns a synthetic sample: a slow sine drift plus small noise
// around indoor baselines.
func (s *SimulatedSource) Read() (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phase += 0.05
	drift := math.Sin(s.phase)

	return Reading{
		TemperatureC:    21.5 + 2.0*drift + s.noise(0.1),
		HumidityPct:     45.0 + 5.0*drift + s.noise(0.5),
		PressureHPa:     1013.25 + 3.0*drift + s.noise(0.2),
		Lux:             120.0 + 80.0*math.Abs(drift) + s.noise(2.0),
		GasOxidisingOhm: 18000 + 2500*drift + s.noise(100),
		GasReducingOhm:  450000 + 30000*drift + s.noise(1000),
		GasNH3Ohm:       160000 + 12000*drift + s.noise(500),
		Timestamp:       time.Now().UTC(),
	}, nil
}

func (s *SimulatedSource) noise(scale float64) float64 {
	return (s.rng.Float64()*2 - 1) * scale
}
