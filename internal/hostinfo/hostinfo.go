// Package hostinfo collects host metadata for publication: identity,
// network address, uptime, OS release and hardware strings. Everything
// here is best-effort with a documented fallback value.
package hostinfo

import (
	"net"
	"os"
	"strconv"
	"strings"
)

// Unknown is the fallback value for lookups that fail.
const Unknown = "unknown"

// DeviceID derives the stable per-device identifier from the hostname:
// "enviro_" plus the hostname with non-alphanumeric characters
// stripped and lowercased. Identical across restarts on the same host.
func DeviceID() string {
	return DeviceIDFor(Hostname())
}

// DeviceIDFor derives the device identifier for a given hostname.
func DeviceIDFor(hostname string) string {
	var sb strings.Builder
	sb.WriteString("enviro_")
	for _, r := range strings.ToLower(hostname) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Hostname returns the host's name, or "unknown" on failure.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return Unknown
	}
	return name
}

// IPv4Address returns the host's primary IPv4 address, preferring
// wlan0 (the usual uplink on a Pi Zero), else the first non-loopback
// IPv4. Returns "unknown" when nothing qualifies.
func IPv4Address() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return Unknown
	}

	if addr := ifaceIPv4(interfaces, "wlan0"); addr != "" {
		return addr
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if addr := ipv4Of(iface); addr != "" {
			return addr
		}
	}

	return Unknown
}

func ifaceIPv4(interfaces []net.Interface, name string) string {
	for _, iface := range interfaces {
		if iface.Name == name {
			return ipv4Of(iface)
		}
	}
	return ""
}

func ipv4Of(iface net.Interface) string {
	addrs, err := iface.Addrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.To4() == nil {
			continue
		}
		return ip.String()
	}
	return ""
}

// UptimeSeconds returns the host uptime from /proc/uptime, or 0.
func UptimeSeconds() int64 {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0
	}
	return ParseUptime(string(data))
}

// ParseUptime parses the first field of /proc/uptime content.
func ParseUptime(content string) int64 {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return 0
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return int64(secs)
}

// OSRelease returns the PRETTY_NAME from /etc/os-release, or "unknown".
func OSRelease() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return Unknown
	}
	return ParseOSRelease(string(data))
}

// ParseOSRelease extracts PRETTY_NAME from os-release content.
func ParseOSRelease(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if value, found := strings.CutPrefix(line, "PRETTY_NAME="); found {
			return strings.Trim(strings.TrimSpace(value), `"`)
		}
	}
	return Unknown
}

// Model returns the board model from the device tree, falling back to
// "Raspberry Pi".
func Model() string {
	data, err := os.ReadFile("/proc/device-tree/model")
	if err != nil {
		return "Raspberry Pi"
	}
	model := strings.Trim(string(data), "\x00")
	model = strings.TrimSpace(model)
	if model == "" {
		return "Raspberry Pi"
	}
	return model
}

// Serial returns the board serial from /proc/cpuinfo, or "unknown".
func Serial() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return Unknown
	}
	return ParseSerial(string(data))
}

// ParseSerial extracts the Serial field from cpuinfo content.
func ParseSerial(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "Serial") {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if serial := strings.TrimSpace(value); serial != "" {
			return serial
		}
	}
	return Unknown
}
