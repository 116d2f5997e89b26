// Package system sizes worker pools from the host's CPU and memory.
package system

import (
	"log"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryPerWorker is the rough peak RSS of one 1080p ffmpeg scene render.
const MemoryPerWorker = 512 << 20

// MaxWorkers caps automatic sizing.
const MaxWorkers = 8

// PoolSize returns requested when positive. Otherwise it returns the logical CPU
// count, reduced so every worker has MemoryPerWorker of available memory, and never
// less than one.
func PoolSize(requested int) int {
	if requested > 0 {
		return requested
	}
	return poolSize(cpuCount(), availableMemory())
}

func poolSize(cpus int, available uint64) int {
	n := cpus
	if n <= 0 {
		n = 1
	}
	if available > 0 {
		if byMem := int(available / MemoryPerWorker); byMem < n {
			n = byMem
		}
	}
	return min(max(n, 1), MaxWorkers)
}

func cpuCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func availableMemory() uint64 {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("[System] Warning: could not read memory stats: %v", err)
		return 0
	}
	return vm.Available
}
