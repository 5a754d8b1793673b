package sensors

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

const thermalZonePath = "/sys/class/thermal/thermal_zone0/temp"

// ReadCPUTemp returns the CPU die temperature in °C. It prefers
// vcgencmd (the firmware-reported value on Raspberry Pi) and falls
// back to the thermal zone sysfs file.
func ReadCPUTemp() (float64, error) {
	if temp, err := readVcgencmdTemp(); err == nil {
		return temp, nil
	}

	data, err := os.ReadFile(thermalZonePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read CPU temperature: %w", err)
	}

	milliC, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse thermal zone value: %w", err)
	}

	return milliC / 1000.0, nil
}

// readVcgencmdTemp parses `vcgencmd measure_temp` output: temp=42.0'C
func readVcgencmdTemp() (float64, error) {
	out, err := exec.Command("vcgencmd", "measure_temp").Output()
	if err != nil {
		return 0, err
	}
	return ParseVcgencmdTemp(string(out))
}

// ParseVcgencmdTemp extracts the temperature from vcgencmd output.
func ParseVcgencmdTemp(out string) (float64, error) {
	out = strings.TrimSpace(out)

	_, rest, found := strings.Cut(out, "=")
	if !found {
		return 0, fmt.Errorf("unexpected vcgencmd output: %q", out)
	}
	value, _, found := strings.Cut(rest, "'")
	if !found {
		return 0, fmt.Errorf("unexpected vcgencmd output: %q", out)
	}

	temp, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse vcgencmd temperature %q: %w", value, err)
	}
	return temp, nil
}
