package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Count converts the CPU allowance into a pool size. perCPU scales
// GOMAXPROCS, which tracks the cgroup CPU limit; limit caps the result,
// with 0 meaning uncapped. A positive SCAN_WORKERS value overrides the
// computed count and is still subject to limit.
func Count(perCPU float64, limit int) int {
	n := int(float64(runtime.GOMAXPROCS(0)) * perCPU)

	if override := os.Getenv("SCAN_WORKERS"); override != "" {
		if v, err := strconv.Atoi(override); err == nil && v > 0 {
			n = v
		}
	}

	if n < 1 {
		n = 1
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}

// ForExtraction sizes the archive extraction pool. Extraction alternates
// decompression with disk reads, so it runs 1.5 goroutines per CPU.
func ForExtraction(limit int) int {
	return Count(1.5, limit)
}
