package system

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is a snapshot of host resources taken before an export.
type Stats struct {
	LogicalCPUs  int
	TotalMemory  uint64
	AvailMemory  uint64
	MemoryUsedPc float64
}

// HostStats samples CPU and memory information.
func HostStats() (Stats, error) {
	var s Stats
	n, err := cpu.Counts(true)
	if err != nil {
		return s, fmt.Errorf("cpu counts: %w", err)
	}
	s.LogicalCPUs = n

	vm, err := mem.VirtualMemory()
	if err != nil {
		return s, fmt.Errorf("virtual memory: %w", err)
	}
	s.TotalMemory = vm.Total
	s.AvailMemory = vm.Available
	s.MemoryUsedPc = vm.UsedPercent
	return s, nil
}

// frameBudget is the memory one in-flight frame is allowed to use, with the
// encoder copy and PNG buffers included.
const frameBudget = 4

// DefaultWorkers chooses how many frames to encode concurrently for frames
// of width x height: one per logical CPU, capped by available memory.
func DefaultWorkers(width, height int) int {
	stats, err := HostStats()
	if err != nil || stats.LogicalCPUs <= 0 {
		return runtime.NumCPU()
	}
	return workersFor(stats, width, height)
}

func workersFor(stats Stats, width, height int) int {
	workers := stats.LogicalCPUs
	perFrame := uint64(width) * uint64(height) * 4 * frameBudget
	if perFrame > 0 && stats.AvailMemory > 0 {
		if byMem := int(stats.AvailMemory / perFrame); byMem < workers {
			workers = byMem
		}
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
