package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"folio/internal/logging"
)

// DefaultMemoryRatio is the share of the container memory limit given to
// the Go heap. The remainder covers poppler subprocesses, image decode
// buffers, and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult reports what ConfigureFromEnv decided.
type ConfigResult struct {
	// Configured is true when GOMEMLIMIT ended up set.
	Configured bool

	// Source names the winning input: "GOMEMLIMIT", "MEMORY_LIMIT", or
	// "none".
	Source string

	// ContainerLimit is the container memory limit in bytes, when known.
	ContainerLimit int64

	// GoMemLimit is the effective GOMEMLIMIT in bytes, when set.
	GoMemLimit int64

	// Ratio is the heap share applied to ContainerLimit.
	Ratio float64
}

// ConfigureFromEnv derives GOMEMLIMIT from the container memory limit.
// Runs first in main, before anything allocates.
//
// An explicit GOMEMLIMIT wins. Otherwise MEMORY_LIMIT (bytes, typically
// injected from the container runtime) is scaled by MEMORY_RATIO and
// applied. With neither set, the runtime keeps its default of no limit.
func ConfigureFromEnv() ConfigResult {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := ConfigResult{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return result
	}

	env := os.Getenv("MEMORY_LIMIT")
	if env == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(env, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", env, err)
		return ConfigResult{Source: "none"}
	}

	ratio := heapRatio()
	goMemLimit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// heapRatio reads MEMORY_RATIO, falling back to the default for absent,
// unparsable, or out-of-range values.
func heapRatio() float64 {
	env := os.Getenv("MEMORY_RATIO")
	if env == "" {
		return DefaultMemoryRatio
	}

	ratio, err := strconv.ParseFloat(env, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", env, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if ratio <= 0 || ratio > 1.0 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", env, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	v, exp := float64(b)/unit, 0
	for ; v >= unit; v /= unit {
		exp++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
