package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that pins the worker count.
const EnvOverride = "IMPORT_WORKERS"

// Count returns the number of workers for a task type, derived from
// GOMAXPROCS so container CPU limits are respected.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks (thumbnail resampling)
//   - 2.0 for I/O-bound tasks (chunk scanning over network shares)
//   - 1.5 for mixed tasks
//
// limit caps the result; 0 means no cap. IMPORT_WORKERS overrides the
// computed value but is still capped by limit.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

// Resolve returns requested when it is positive, otherwise fallback().
// Callers use it to let an explicit --workers flag win over the defaults.
func Resolve(requested int, fallback func() int) int {
	if requested > 0 {
		return requested
	}
	return fallback()
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
