package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"folio/internal/logging"
	"folio/internal/metrics"
)

// Config controls the extraction backpressure monitor.
type Config struct {
	// Limit is the heap budget in bytes. Zero adopts GOMEMLIMIT when
	// one is in effect; without either, the monitor stays inert.
	Limit int64

	// PauseAbove is the fraction of Limit at which extraction pauses.
	PauseAbove float64

	// ResumeBelow is the fraction of Limit at which a paused monitor
	// resumes. Kept below PauseAbove so the state cannot flap.
	ResumeBelow float64

	// Interval between heap samples.
	Interval time.Duration
}

// DefaultConfig returns the thresholds the server runs with.
func DefaultConfig() Config {
	return Config{
		PauseAbove:  0.85,
		ResumeBelow: 0.7,
		Interval:    5 * time.Second,
	}
}

// Monitor samples heap usage and holds extraction workers while the
// process runs close to its memory limit. Archive extraction is the only
// part of the system that allocates page-sized buffers in bulk, so the
// scanner checks in with WaitIfPaused before each book.
type Monitor struct {
	cfg   Config
	limit int64
	done  chan struct{}

	mu     sync.RWMutex
	heap   uint64
	paused bool
	resume chan struct{}
}

// NewMonitor builds a monitor against cfg.Limit, falling back to the
// process GOMEMLIMIT when no explicit limit is given.
func NewMonitor(cfg Config) *Monitor {
	limit := cfg.Limit
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < 1<<62 {
			limit = l
			logging.Info("Memory monitor using GOMEMLIMIT: %d bytes (%.1f MB)", limit, float64(limit)/(1024*1024))
		}
	}
	if limit == 0 {
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	}

	return &Monitor{
		cfg:    cfg,
		limit:  limit,
		done:   make(chan struct{}),
		resume: make(chan struct{}),
	}
}

// Start launches the sampling loop. With no limit there is nothing to
// sample and the monitor never pauses anyone.
func (m *Monitor) Start() {
	if m.limit == 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.done:
				return
			}
		}
	}()
}

// Stop ends sampling and releases any workers blocked in WaitIfPaused.
func (m *Monitor) Stop() {
	close(m.done)
}

func (m *Monitor) sample() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.heap = ms.Alloc
	ratio := float64(ms.Alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(ratio)

	switch {
	case !m.paused && ratio >= m.cfg.PauseAbove:
		logging.Warn("Memory critical (%.1f%% of limit), pausing extraction", ratio*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		go runtime.GC()

	case m.paused && ratio < m.cfg.ResumeBelow:
		logging.Info("Memory recovered (%.1f%% of limit), resuming extraction", ratio*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// WaitIfPaused blocks while extraction is held. It reports false when the
// monitor stopped before the pause lifted, telling the caller to abandon
// its work rather than allocate into a full heap.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return true
	}
	resume := m.resume
	m.mu.RUnlock()

	select {
	case <-resume:
		return true
	case <-m.done:
		return false
	}
}

// Paused reports whether extraction is currently held.
func (m *Monitor) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Snapshot returns the last sampled heap size, the limit, and their
// ratio. Zero values before the first sample.
func (m *Monitor) Snapshot() (heap, limit int64, ratio float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	heap = int64(math.MaxInt64)
	if m.heap <= math.MaxInt64 {
		heap = int64(m.heap)
	}
	if m.limit > 0 {
		ratio = float64(m.heap) / float64(m.limit)
	}
	return heap, m.limit, ratio
}
