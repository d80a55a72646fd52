package utils

import (
	"runtime"
	"time"
)

// RuntimeStats holds a snapshot of process runtime statistics.
type RuntimeStats struct {
	NumCPU          int
	NumGoroutine    int
	MemAlloc        uint64
	MemTotalAlloc   uint64
	MemSys          uint64
	MemHeapSys      uint64
	MemHeapIdle     uint64
	MemHeapReleased uint64
	MemNumGC        uint32
	AverageGCPause  float64
}

// GetRuntimeStats retrieves the current runtime statistics.
func GetRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := RuntimeStats{
		NumCPU:          runtime.NumCPU(),
		NumGoroutine:    runtime.NumGoroutine(),
		MemAlloc:        ByteToMb(memStats.Alloc),
		MemTotalAlloc:   ByteToMb(memStats.TotalAlloc),
		MemSys:          ByteToMb(memStats.Sys),
		MemHeapSys:      ByteToMb(memStats.HeapSys),
		MemHeapIdle:     ByteToMb(memStats.HeapIdle),
		MemHeapReleased: ByteToMb(memStats.HeapReleased),
		MemNumGC:        memStats.NumGC,
	}
	if memStats.NumGC > 0 {
		avgPause := memStats.PauseTotalNs / uint64(memStats.NumGC)
		stats.AverageGCPause = float64(avgPause) / float64(time.Millisecond)
	}

	return stats
}

// ByteToMb converts bytes to megabytes.
func ByteToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
