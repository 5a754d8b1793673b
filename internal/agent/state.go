package agent

import (
	"time"

	"enviroagent/internal/calibration"
	"enviroagent/internal/hostinfo"
	"enviroagent/internal/mqtt"
	"enviroagent/internal/sensors"
)

// DerivedState is the compensated, publication-ready view of one poll
// tick: calibrated sensor values plus host metadata.
type DerivedState struct {
	TemperatureC     float64 `json:"temperature"`
	HumidityPct      float64 `json:"humidity"`
	PressureHPa      float64 `json:"pressure"`
	Lux              float64 `json:"lux"`
	GasOxidisingKOhm float64 `json:"gas_oxidising"`
	GasReducingKOhm  float64 `json:"gas_reducing"`
	GasNH3KOhm       float64 `json:"gas_nh3"`
	CPUTempC         float64 `json:"cpu_temp"`
	CPUUsagePct      float64 `json:"cpu_usage"`
	MemUsagePct      float64 `json:"mem_usage"`
	MemSizeGB        float64 `json:"mem_size"`
	UptimeSec        int64   `json:"uptime"`
	Hostname         string  `json:"hostname"`
	Network          string  `json:"network"`
	OSRelease        string  `json:"os_release"`
	LastUpdate       string  `json:"last_update"`
	SensorsHealthy   bool    `json:"sensors_healthy"`
	CPUTempHealthy   bool    `json:"cpu_temp_healthy"`
}

// MetricValue is one publishable (metric key, rendered value) pair.
// Publish reports whether the value should be published this tick; a
// failed hardware read keeps the previously retained value instead of
// overwriting it with garbage.
type MetricValue struct {
	Key     string
	Value   string
	Publish bool
}

// hostSnapshot carries the per-tick host metrics into the pure state
// builder.
type hostSnapshot struct {
	cpuTempC    float64
	cpuTempOK   bool
	cpuUsagePct float64
	memUsagePct float64
	memSizeGB   float64
	uptimeSec   int64
	hostname    string
	network     string
	osRelease   string
}

// buildDerivedState computes the publication values for one tick.
// Pure: all inputs are explicit, including the smoothed CPU
// temperature used for compensation.
func buildDerivedState(r sensors.Reading, sensorsOK bool, params calibration.Params, cpuSmoothedC float64, host hostSnapshot, now time.Time) DerivedState {
	state := DerivedState{
		CPUTempC:       sensors.Round2(host.cpuTempC),
		CPUUsagePct:    host.cpuUsagePct,
		MemUsagePct:    host.memUsagePct,
		MemSizeGB:      host.memSizeGB,
		UptimeSec:      host.uptimeSec,
		Hostname:       host.hostname,
		Network:        host.network,
		OSRelease:      host.osRelease,
		LastUpdate:     now.UTC().Format(time.RFC3339),
		SensorsHealthy: sensorsOK,
		CPUTempHealthy: host.cpuTempOK,
	}

	if sensorsOK {
		state.TemperatureC = sensors.CompensateTemperature(
			r.TemperatureC, cpuSmoothedC, params.TempOffsetC, params.CPUTempFactor)
		state.HumidityPct = sensors.CalibrateHumidity(r.HumidityPct, params.HumOffsetPct)
		state.PressureHPa = sensors.Round2(r.PressureHPa)
		state.Lux = sensors.Round2(r.Lux)
		state.GasOxidisingKOhm = sensors.GasOhmToKOhm(r.GasOxidisingOhm)
		state.GasReducingKOhm = sensors.GasOhmToKOhm(r.GasReducingOhm)
		state.GasNH3KOhm = sensors.GasOhmToKOhm(r.GasNH3Ohm)
	}

	return state
}

// MetricValues renders the state as ordered (topic tail, value) pairs
// matching the discovery metric table.
func (d DerivedState) MetricValues() []MetricValue {
	return []MetricValue{
		{Key: "bme280/temperature", Value: mqtt.FormatValue(d.TemperatureC), Publish: d.SensorsHealthy},
		{Key: "bme280/humidity", Value: mqtt.FormatValue(d.HumidityPct), Publish: d.SensorsHealthy},
		{Key: "bme280/pressure", Value: mqtt.FormatValue(d.PressureHPa), Publish: d.SensorsHealthy},
		{Key: "ltr559/lux", Value: mqtt.FormatValue(d.Lux), Publish: d.SensorsHealthy},
		{Key: "gas/oxidising", Value: mqtt.FormatValue(d.GasOxidisingKOhm), Publish: d.SensorsHealthy},
		{Key: "gas/reducing", Value: mqtt.FormatValue(d.GasReducingKOhm), Publish: d.SensorsHealthy},
		{Key: "gas/nh3", Value: mqtt.FormatValue(d.GasNH3KOhm), Publish: d.SensorsHealthy},
		{Key: "host/cpu_temp", Value: mqtt.FormatValue(d.CPUTempC), Publish: d.CPUTempHealthy},
		{Key: "host/cpu_usage", Value: mqtt.FormatValue(d.CPUUsagePct), Publish: true},
		{Key: "host/mem_usage", Value: mqtt.FormatValue(d.MemUsagePct), Publish: true},
		{Key: "host/mem_size", Value: mqtt.FormatValue(d.MemSizeGB), Publish: true},
		{Key: "host/uptime", Value: mqtt.FormatValue(d.UptimeSec), Publish: true},
		{Key: "host/hostname", Value: d.Hostname, Publish: true},
		{Key: "host/network", Value: d.Network, Publish: true},
		{Key: "host/os_release", Value: d.OSRelease, Publish: true},
		{Key: "meta/last_update", Value: d.LastUpdate, Publish: true},
	}
}

// gatherHostSnapshot collects the per-tick host metrics.
func gatherHostSnapshot(sampler *hostinfo.CPUSampler) hostSnapshot {
	snap := hostSnapshot{
		hostname:  hostinfo.Hostname(),
		network:   hostinfo.IPv4Address(),
		osRelease: hostinfo.OSRelease(),
		uptimeSec: hostinfo.UptimeSeconds(),
	}

	if sampler != nil {
		snap.cpuUsagePct = sampler.UsagePercent()
	}
	snap.memUsagePct, snap.memSizeGB = hostinfo.MemoryStats()

	if temp, err := sensors.ReadCPUTemp(); err == nil {
		snap.cpuTempC = temp
		snap.cpuTempOK = true
	}

	return snap
}
