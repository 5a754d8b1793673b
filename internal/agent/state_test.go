package agent

import (
	"testing"
	"time"

	"enviroagent/internal/calibration"
	"enviroagent/internal/mqtt"
	"enviroagent/internal/sensors"
)

func testReading() sensors.Reading {
	return sensors.Reading{
		TemperatureC:    25.0,
		HumidityPct:     48.0,
		PressureHPa:     1013.25,
		Lux:             120.5,
		GasOxidisingOhm: 18500,
		GasReducingOhm:  456789,
		GasNH3Ohm:       1234,
		Timestamp:       time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func testHost() hostSnapshot {
	return hostSnapshot{
		cpuTempC:    45.0,
		cpuTempOK:   true,
		cpuUsagePct: 12.5,
		memUsagePct: 40.0,
		memSizeGB:   0.512,
		uptimeSec:   3600,
		hostname:    "livingroom",
		network:     "192.168.1.50",
		osRelease:   "Raspbian GNU/Linux 12 (bookworm)",
	}
}

func TestBuildDerivedState(t *testing.T) {
	params := calibration.Params{TempOffsetC: 0, HumOffsetPct: -3, CPUTempFactor: 0.5}
	now := time.Date(2026, 8, 30, 12, 0, 2, 0, time.UTC)

	state := buildDerivedState(testReading(), true, params, 45.0, testHost(), now)

	// raw 25, cpu 45, factor 0.5: pulled down by 10
	if state.TemperatureC != 15.0 {
		t.Errorf("temperature = %v, want 15.0", state.TemperatureC)
	}
	if state.HumidityPct != 45.0 {
		t.Errorf("humidity = %v, want 45.0", state.HumidityPct)
	}
	if state.PressureHPa != 1013.25 {
		t.Errorf("pressure = %v, want 1013.25", state.PressureHPa)
	}
	if state.GasOxidisingKOhm != 18.5 {
		t.Errorf("gas oxidising = %v, want 18.5", state.GasOxidisingKOhm)
	}
	if state.LastUpdate != "2026-08-30T12:00:02Z" {
		t.Errorf("last update = %s", state.LastUpdate)
	}
	if !state.SensorsHealthy || !state.CPUTempHealthy {
		t.Error("health flags not set")
	}
	if state.Hostname != "livingroom" || state.Network != "192.168.1.50" {
		t.Errorf("host fields = %s / %s", state.Hostname, state.Network)
	}
}

func TestBuildDerivedStateSensorFailure(t *testing.T) {
	params := calibration.Params{CPUTempFactor: 0.55}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	state := buildDerivedState(sensors.Reading{}, false, params, 45.0, testHost(), now)

	if state.SensorsHealthy {
		t.Error("sensors reported healthy after a failed read")
	}
	// Host metrics still present
	if state.UptimeSec != 3600 || state.Hostname != "livingroom" {
		t.Error("host metrics missing on sensor failure")
	}
	if state.CPUTempC != 45.0 {
		t.Errorf("cpu temp = %v, want 45.0", state.CPUTempC)
	}
}

// Sensor-derived metrics are held back when the read failed so the
// previously retained values survive; host metrics always publish.
func TestMetricValuesPublishFlags(t *testing.T) {
	params := calibration.Params{CPUTempFactor: 0.55}
	now := time.Now()

	state := buildDerivedState(sensors.Reading{}, false, params, 0, hostSnapshot{}, now)

	sensorKeys := map[string]bool{
		"bme280/temperature": true, "bme280/humidity": true, "bme280/pressure": true,
		"ltr559/lux": true, "gas/oxidising": true, "gas/reducing": true, "gas/nh3": true,
	}

	for _, mv := range state.MetricValues() {
		switch {
		case sensorKeys[mv.Key]:
			if mv.Publish {
				t.Errorf("%s publishes despite failed read", mv.Key)
			}
		case mv.Key == "host/cpu_temp":
			if mv.Publish {
				t.Errorf("%s publishes despite failed CPU temp read", mv.Key)
			}
		default:
			if !mv.Publish {
				t.Errorf("%s held back but host metrics always publish", mv.Key)
			}
		}
	}
}

// Every published metric key must have a matching discovery entry, and
// vice versa, or HA shows entities that never update.
func TestMetricValuesMatchDiscoveryTable(t *testing.T) {
	state := buildDerivedState(testReading(), true, calibration.Params{CPUTempFactor: 0.55}, 45.0, testHost(), time.Now())

	published := make(map[string]bool)
	for _, mv := range state.MetricValues() {
		if published[mv.Key] {
			t.Errorf("duplicate metric key %s", mv.Key)
		}
		published[mv.Key] = true
	}

	for _, m := range mqtt.Metrics {
		if !published[m.Key] {
			t.Errorf("discovery metric %s has no published value", m.Key)
		}
	}
	if len(published) != len(mqtt.Metrics) {
		t.Errorf("%d published keys vs %d discovery metrics", len(published), len(mqtt.Metrics))
	}
}
