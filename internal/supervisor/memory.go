package supervisor

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// MemoryBand is the three-band result of a memory poll (spec.md §4.1
// check_memory).
type MemoryBand string

const (
	MemoryOK       MemoryBand = "ok"
	MemoryLow      MemoryBand = "low"
	MemoryCritical MemoryBand = "critical"
)

// MemoryStatus is one check_memory() sample.
type MemoryStatus struct {
	Band      MemoryBand
	Available uint64
	Total     uint64
}

// MemoryReader supplies available/total host memory in bytes.
// availableMemoryLinux (reading /proc/meminfo) is the production
// implementation; tests inject a fake reader instead of depending on
// the host's actual memory pressure.
type MemoryReader func() (available, total uint64, err error)

// MemoryMonitor polls host memory and classifies it against configured
// thresholds, mirroring MemoryMonitor in
// original_source/crates/autopilot/src/daemon/memory.rs.
type MemoryMonitor struct {
	LowThresholdBytes      uint64
	CriticalThresholdBytes uint64
	Read                   MemoryReader
}

// NewMemoryMonitor returns a MemoryMonitor reading /proc/meminfo.
func NewMemoryMonitor(lowThreshold, criticalThreshold uint64) *MemoryMonitor {
	return &MemoryMonitor{
		LowThresholdBytes:      lowThreshold,
		CriticalThresholdBytes: criticalThreshold,
		Read:                   availableMemoryLinux,
	}
}

// Check polls memory and classifies it into a MemoryBand.
func (m *MemoryMonitor) Check() (MemoryStatus, error) {
	available, total, err := m.Read()
	if err != nil {
		return MemoryStatus{}, err
	}

	status := MemoryStatus{Available: available, Total: total}
	switch {
	case available < m.CriticalThresholdBytes:
		status.Band = MemoryCritical
	case available < m.LowThresholdBytes:
		status.Band = MemoryLow
	default:
		status.Band = MemoryOK
	}
	return status, nil
}

// availableMemoryLinux reads MemAvailable/MemTotal from /proc/meminfo,
// the same source the host kernel reports to `free`.
func availableMemoryLinux() (available, total uint64, err error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value, parseErr := strconv.ParseUint(fields[1], 10, 64)
		if parseErr != nil {
			continue
		}
		switch fields[0] {
		case "MemAvailable:":
			available = value * 1024
		case "MemTotal:":
			total = value * 1024
		}
	}
	return available, total, scanner.Err()
}

// FormatBytes renders bytes as a human-readable GB/MB/KB string, used
// only in log lines (not part of the metrics JSON contract).
func FormatBytes(bytes uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return strconv.FormatFloat(float64(bytes)/gb, 'f', 1, 64) + " GB"
	case bytes >= mb:
		return strconv.FormatFloat(float64(bytes)/mb, 'f', 1, 64) + " MB"
	default:
		return strconv.FormatFloat(float64(bytes)/kb, 'f', 1, 64) + " KB"
	}
}
