package performance

import (
	"runtime"
)

// Health is one system health sample.
type Health struct {
	HeapAllocMB   uint64 `json:"heapAllocMB"`
	Goroutines    int    `json:"goroutines"`
	Opportunities int    `json:"opportunities"`
	Tasks         int    `json:"tasks"`
	PortAvailable bool   `json:"portAvailable"`
	HighMemory    bool   `json:"highMemory"`
}

// HeapReader returns the current heap allocation in bytes.
type HeapReader func() uint64

func RuntimeHeap() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// CheckHealth samples the heap and flags it when above warnMB.
func CheckHealth(readHeap HeapReader, warnMB int) Health {
	if readHeap == nil {
		readHeap = RuntimeHeap
	}
	heapMB := readHeap() / (1 << 20)
	return Health{
		HeapAllocMB: heapMB,
		Goroutines:  runtime.NumGoroutine(),
		HighMemory:  warnMB > 0 && heapMB > uint64(warnMB),
	}
}
