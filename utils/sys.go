package utils

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MemoryStats is the memory section of INFO
type MemoryStats struct {
	// resident set size of this process
	UsedMemoryRSS uint64
	// physical memory of the host
	TotalSystemMemory uint64
}

// ReadMemoryStats samples process and host memory
func ReadMemoryStats() (*MemoryStats, error) {
	stats := &MemoryStats{}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	stats.TotalSystemMemory = vm.Total

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return nil, err
	}
	stats.UsedMemoryRSS = info.RSS
	return stats, nil
}
