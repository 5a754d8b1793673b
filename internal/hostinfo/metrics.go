package hostinfo

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// CPUSampler computes CPU usage percentage from successive /proc/stat
// samples. The first call returns 0 because there is no prior sample
// to diff against.
type CPUSampler struct {
	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
	seeded    bool
}

// NewCPUSampler creates a CPUSampler.
func NewCPUSampler() *CPUSampler {
	return &CPUSampler{}
}

// UsagePercent returns CPU usage since the previous call, rounded to
// one decimal. Returns 0 on any read or parse failure.
func (s *CPUSampler) UsagePercent() float64 {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0
	}

	idle, total, ok := parseCPULine(string(data))
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		s.prevIdle, s.prevTotal = idle, total
		s.seeded = true
		return 0
	}

	dIdle := float64(idle - s.prevIdle)
	dTotal := float64(total - s.prevTotal)
	s.prevIdle, s.prevTotal = idle, total

	if dTotal <= 0 {
		return 0
	}

	usage := 100.0 * (dTotal - dIdle) / dTotal
	return float64(int(usage*10+0.5)) / 10
}

// parseCPULine parses the aggregate "cpu" line of /proc/stat and
// returns (idle+iowait, total).
func parseCPULine(content string) (idle, total uint64, ok bool) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)[1:]
		if len(fields) < 5 {
			return 0, 0, false
		}

		for i, f := range fields {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return 0, 0, false
			}
			total += v
			// fields 3 and 4 are idle and iowait
			if i == 3 || i == 4 {
				idle += v
			}
		}
		return idle, total, true
	}
	return 0, 0, false
}

// MemoryStats reports memory usage percentage and total size in GB,
// both best-effort from /proc/meminfo.
func MemoryStats() (usagePct, sizeGB float64) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	return ParseMeminfo(string(data))
}

// ParseMeminfo computes usage % and total GB from meminfo content.
func ParseMeminfo(content string) (usagePct, sizeGB float64) {
	var totalKB, availKB float64

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = meminfoValue(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = meminfoValue(line)
		}
	}

	if totalKB <= 0 {
		return 0, 0
	}

	usagePct = 100.0 * (totalKB - availKB) / totalKB
	usagePct = float64(int(usagePct*10+0.5)) / 10
	sizeGB = float64(int(totalKB/1024/1024*1000+0.5)) / 1000
	return usagePct, sizeGB
}

func meminfoValue(line string) float64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0
	}
	return v
}
