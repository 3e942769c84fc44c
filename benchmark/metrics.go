// Package benchmark - Throughput measurement for the postprocessing
// pipeline (decode plus suppression).
package benchmark

import (
	"encoding/json"
	"os"
	"runtime"
	"time"
)

// Metrics captures the outcome of one scenario run.
type Metrics struct {
	Scenario            Scenario      `json:"scenario"`
	Timestamp           time.Time     `json:"timestamp"`
	TotalDuration       time.Duration `json:"total_duration"`
	DecodeDuration      time.Duration `json:"decode_duration"`
	SuppressionDuration time.Duration `json:"suppression_duration"`
	ImagesPerSecond     float64       `json:"images_per_second"`
	DetectionCount      int           `json:"detection_count"`
	MemoryStats         MemoryMetrics `json:"memory_stats"`
}

// MemoryMetrics captures memory usage statistics at the end of a run.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// captureMemory snapshots the runtime's allocator counters.
func captureMemory() MemoryMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryMetrics{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		HeapAllocBytes:  m.HeapAlloc,
	}
}

// WriteResults saves a set of run metrics as indented JSON.
func WriteResults(path string, results []Metrics) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
