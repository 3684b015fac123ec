package health

import (
	"context"
	"runtime"
)

// RuntimeCheckerConfig sets the thresholds above which the process
// reports itself degraded.
type RuntimeCheckerConfig struct {
	// MaxHeapBytes limits the live heap. Zero disables the limit.
	MaxHeapBytes uint64

	// MaxGoroutines limits the goroutine count. A growing count usually
	// means leaked event subscriptions. Default: 10000
	MaxGoroutines int
}

// RuntimeChecker reports heap and goroutine usage.
type RuntimeChecker struct {
	config RuntimeCheckerConfig
}

func NewRuntimeChecker(config RuntimeCheckerConfig) *RuntimeChecker {
	if config.MaxGoroutines <= 0 {
		config.MaxGoroutines = 10000
	}
	return &RuntimeChecker{config: config}
}

func (m *RuntimeChecker) Name() string { return "runtime" }

// Check reads runtime statistics. It degrades at worst: a busy process
// can still serve requests.
func (m *RuntimeChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		r := verdict(StatusUnhealthy, nil, "check abandoned")
		r.Err = err
		return r
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	goroutines := runtime.NumGoroutine()

	details := map[string]any{
		"heap_alloc": stats.HeapAlloc,
		"heap_sys":   stats.HeapSys,
		"num_gc":     stats.NumGC,
		"goroutines": goroutines,
	}

	if limit := m.config.MaxHeapBytes; limit > 0 && stats.HeapAlloc > limit {
		return verdict(StatusDegraded, details, "heap %d bytes exceeds %d", stats.HeapAlloc, limit)
	}
	if goroutines > m.config.MaxGoroutines {
		return verdict(StatusDegraded, details, "%d goroutines exceeds %d", goroutines, m.config.MaxGoroutines)
	}
	return verdict(StatusHealthy, details, "runtime normal")
}
