package sensors

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// EnviroSource reads the Enviro+ HAT through the kernel IIO subsystem:
// the BME280 and LTR559 are bound to their upstream drivers and exposed
// under /sys/bus/iio/devices, and the analog gas channels come from the
// ADS1015 ADC the board routes the MICS6814 through.
type EnviroSource struct {
	iioPath string
	logger  *log.Logger

	bme280 string // device dir for temperature/humidity/pressure
	ltr559 string // device dir for illuminance
	adc    string // device dir for gas ADC voltages
}

// Gas load-resistor network on the Enviro+: channel resistance is
// recovered from the ADC voltage as R = V*56000 / (3.3 - V).
const (
	gasSupplyVolts   = 3.3
	gasPullupOhms    = 56000.0
	defaultIIOPath   = "/sys/bus/iio/devices"
	adcOxidisingChan = "in_voltage0_raw"
	adcReducingChan  = "in_voltage1_raw"
	adcNH3Chan       = "in_voltage2_raw"
)

// NewEnviroSource locates the sensor devices under iioPath (pass ""
// for the system default). It fails if none of the expected devices
// are bound, so a misconfigured host is caught at startup rather than
// producing a stream of zeros.
func NewEnviroSource(iioPath string, logger *log.Logger) (*EnviroSource, error) {
	if iioPath == "" {
		iioPath = defaultIIOPath
	}

	s := &EnviroSource{
		iioPath: iioPath,
		logger:  logger,
	}

	entries, err := os.ReadDir(iioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan IIO devices: %w", err)
	}

	for _, entry := range entries {
		devicePath := filepath.Join(iioPath, entry.Name())

		nameBytes, err := os.ReadFile(filepath.Join(devicePath, "name"))
		if err != nil {
			continue
		}

		switch strings.TrimSpace(string(nameBytes)) {
		case "bme280":
			s.bme280 = devicePath
		case "ltr559", "ltr-559":
			s.ltr559 = devicePath
		case "ads1015":
			s.adc = devicePath
		}
	}

	if s.bme280 == "" && s.ltr559 == "" && s.adc == "" {
		return nil, fmt.Errorf("%w: no Enviro+ devices under %s", ErrUnavailable, iioPath)
	}

	if logger != nil {
		logger.Printf("[sensors] IIO devices: bme280=%v ltr559=%v adc=%v",
			s.bme280 != "", s.ltr559 != "", s.adc != "")
	}

	return s, nil
}

// Read samples all channels once. Individual missing devices fail the
// whole read; the poll loop keeps the previously retained values.
func (s *EnviroSource) Read() (Reading, error) {
	r := Reading{Timestamp: time.Now().UTC()}

	if s.bme280 == "" {
		return Reading{}, fmt.Errorf("%w: bme280 not bound", ErrUnavailable)
	}

	// BME280 exposes milli°C, pressure in kPa scaled, humidity in m%.
	tempMilli, err := s.readFloat(s.bme280, "in_temp_input")
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read temperature: %w", err)
	}
	r.TemperatureC = tempMilli / 1000.0

	humMilli, err := s.readFloat(s.bme280, "in_humidityrelative_input")
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read humidity: %w", err)
	}
	r.HumidityPct = humMilli / 1000.0

	pressKPa, err := s.readFloat(s.bme280, "in_pressure_input")
	if err != nil {
		return Reading{}, fmt.Errorf("failed to read pressure: %w", err)
	}
	r.PressureHPa = pressKPa * 10.0

	if s.ltr559 != "" {
		lux, err := s.readFloat(s.ltr559, "in_illuminance_input")
		if err != nil {
			return Reading{}, fmt.Errorf("failed to read lux: %w", err)
		}
		r.Lux = lux
	}

	if s.adc != "" {
		ox, err := s.readGasChannel(adcOxidisingChan)
		if err != nil {
			return Reading{}, fmt.Errorf("failed to read oxidising channel: %w", err)
		}
		red, err := s.readGasChannel(adcReducingChan)
		if err != nil {
			return Reading{}, fmt.Errorf("failed to read reducing channel: %w", err)
		}
		nh3, err := s.readGasChannel(adcNH3Chan)
		if err != nil {
			return Reading{}, fmt.Errorf("failed to read NH3 channel: %w", err)
		}
		r.GasOxidisingOhm = ox
		r.GasReducingOhm = red
		r.GasNH3Ohm = nh3
	}

	if err := checkFinite(r); err != nil {
		return Reading{}, err
	}

	return r, nil
}

// readGasChannel converts an ADC channel voltage to a gas resistance.
func (s *EnviroSource) readGasChannel(channel string) (float64, error) {
	raw, err := s.readFloat(s.adc, channel)
	if err != nil {
		return 0, err
	}

	scale, err := s.readFloat(s.adc, strings.Replace(channel, "_raw", "_scale", 1))
	if err != nil {
		// Common single-scale layout
		scale, err = s.readFloat(s.adc, "in_voltage_scale")
		if err != nil {
			return 0, err
		}
	}

	volts := raw * scale / 1000.0
	if volts >= gasSupplyVolts {
		// Rail-clipped sample, resistance is effectively open circuit
		return math.MaxFloat32, nil
	}
	if volts <= 0 {
		return 0, nil
	}

	return volts * gasPullupOhms / (gasSupplyVolts - volts), nil
}

func (s *EnviroSource) readFloat(devicePath, file string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(devicePath, file))
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return v, nil
}

func checkFinite(r Reading) error {
	for _, v := range []float64{
		r.TemperatureC, r.HumidityPct, r.PressureHPa, r.Lux,
		r.GasOxidisingOhm, r.GasReducingOhm, r.GasNH3Ohm,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in reading", ErrUnavailable)
		}
	}
	return nil
}
