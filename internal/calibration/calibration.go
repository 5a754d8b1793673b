// Package calibration holds the agent's mutable calibration state.
//
// The store is the only shared mutable state in the agent: the poll
// loop snapshots it every tick while the MQTT message callback may be
// updating it concurrently. Updates replace the whole parameter record
// under a lock, so a snapshot never observes a half-applied update.
package calibration

import (
	"fmt"
	"log"
	"math"
	"sync"
)

// Field keys accepted by Update. They double as the <root>/set/<key>
// topic tails.
const (
	FieldTempOffset    = "temp_offset"
	FieldHumOffset     = "hum_offset"
	FieldCPUTempFactor = "cpu_temp_factor"
)

// Accepted value ranges. These match the bounds advertised on the
// Home Assistant number entities.
const (
	MinTempOffset    = -10.0
	MaxTempOffset    = 10.0
	MinHumOffset     = -20.0
	MaxHumOffset     = 20.0
	MinCPUTempFactor = 0.1
	MaxCPUTempFactor = 10.0
)

// Params is an immutable snapshot of the calibration parameters.
type Params struct {
	TempOffsetC   float64 `json:"temp_offset"`
	HumOffsetPct  float64 `json:"hum_offset"`
	CPUTempFactor float64 `json:"cpu_temp_factor"`
}

// ValidationError reports a rejected calibration update.
type ValidationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %v: %s", e.Field, e.Value, e.Reason)
}

// Saver persists a full parameter set durably. Implemented by the
// config package, which rewrites the backing env file atomically.
type Saver interface {
	SetCalibration(tempOffset, humOffset, cpuTempFactor float64) error
}

// Store owns the calibration parameters.
type Store struct {
	mu     sync.RWMutex
	params Params
	saver  Saver
	logger *log.Logger
}

// NewStore creates a Store seeded with initial parameters. Fields that
// fail validation are replaced with safe defaults rather than refusing
// to start; the substitution is logged.
func NewStore(initial Params, saver Saver, logger *log.Logger) *Store {
	s := &Store{
		saver:  saver,
		logger: logger,
	}

	if err := Validate(FieldTempOffset, initial.TempOffsetC); err != nil {
		s.logf("[calibration] %v, using 0.0", err)
		initial.TempOffsetC = 0.0
	}
	if err := Validate(FieldHumOffset, initial.HumOffsetPct); err != nil {
		s.logf("[calibration] %v, using 0.0", err)
		initial.HumOffsetPct = 0.0
	}
	if err := Validate(FieldCPUTempFactor, initial.CPUTempFactor); err != nil {
		s.logf("[calibration] %v, using 0.55", err)
		initial.CPUTempFactor = 0.55
	}

	s.params = initial
	return s
}

// Snapshot returns an immutable copy of the current parameters.
// Never blocks on I/O.
func (s *Store) Snapshot() Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// Update validates value against field's domain and, on success,
// atomically replaces the in-memory parameters and persists the full
// set. On validation failure prior state is untouched.
//
// A persistence failure does not roll back the in-memory update: the
// user-visible value still changes for this process lifetime and the
// failure is logged as a warning.
func (s *Store) Update(field string, value float64) (Params, error) {
	if err := Validate(field, value); err != nil {
		return Params{}, err
	}

	s.mu.Lock()
	next := s.params
	switch field {
	case FieldTempOffset:
		next.TempOffsetC = value
	case FieldHumOffset:
		next.HumOffsetPct = value
	case FieldCPUTempFactor:
		next.CPUTempFactor = value
	}
	s.params = next
	s.mu.Unlock()

	if s.saver != nil {
		if err := s.saver.SetCalibration(next.TempOffsetC, next.HumOffsetPct, next.CPUTempFactor); err != nil {
			s.logf("[calibration] failed to persist %s=%v: %v", field, value, err)
		}
	}

	s.logf("[calibration] updated %s to %v", field, value)
	return next, nil
}

// Validate checks a single field value against its domain.
func Validate(field string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{Field: field, Value: value, Reason: "not a finite number"}
	}

	switch field {
	case FieldTempOffset:
		if value < MinTempOffset || value > MaxTempOffset {
			return &ValidationError{
				Field: field, Value: value,
				Reason: fmt.Sprintf("outside [%g, %g]", MinTempOffset, MaxTempOffset),
			}
		}
	case FieldHumOffset:
		if value < MinHumOffset || value > MaxHumOffset {
			return &ValidationError{
				Field: field, Value: value,
				Reason: fmt.Sprintf("outside [%g, %g]", MinHumOffset, MaxHumOffset),
			}
		}
	case FieldCPUTempFactor:
		if value < MinCPUTempFactor || value > MaxCPUTempFactor {
			return &ValidationError{
				Field: field, Value: value,
				Reason: fmt.Sprintf("outside [%g, %g]", MinCPUTempFactor, MaxCPUTempFactor),
			}
		}
	default:
		return &ValidationError{Field: field, Value: value, Reason: "unknown field"}
	}

	return nil
}

// IsField reports whether key names a calibration field.
func IsField(key string) bool {
	switch key {
	case FieldTempOffset, FieldHumOffset, FieldCPUTempFactor:
		return true
	}
	return false
}

func (s *Store) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
