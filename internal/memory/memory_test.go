package memory

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Limit != 0 {
		t.Errorf("Limit = %d, want 0", cfg.Limit)
	}
	if cfg.PauseAbove != 0.85 {
		t.Errorf("PauseAbove = %v, want 0.85", cfg.PauseAbove)
	}
	if cfg.ResumeBelow != 0.7 {
		t.Errorf("ResumeBelow = %v, want 0.7", cfg.ResumeBelow)
	}
	if cfg.ResumeBelow >= cfg.PauseAbove {
		t.Error("ResumeBelow must stay under PauseAbove for hysteresis")
	}
	if cfg.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Interval)
	}
}

func TestNewMonitorWithExplicitLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 512 * 1024 * 1024

	m := NewMonitor(cfg)
	if m == nil {
		t.Fatal("NewMonitor returned nil")
	}
	if m.limit != cfg.Limit {
		t.Errorf("limit = %d, want %d", m.limit, cfg.Limit)
	}
	if m.Paused() {
		t.Error("new monitor should not start paused")
	}
}

func TestWaitIfPausedWhenNotPaused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 1 << 30

	m := NewMonitor(cfg)

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitIfPaused()
	}()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused() = false, want true when not paused")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused blocked while not paused")
	}
}

func TestWaitIfPausedResumesOnUnpause(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 1 << 30

	m := NewMonitor(cfg)

	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitIfPaused()
	}()

	select {
	case <-done:
		t.Fatal("WaitIfPaused returned while still paused")
	case <-time.After(20 * time.Millisecond):
	}

	m.mu.Lock()
	m.paused = false
	close(m.resume)
	m.resume = make(chan struct{})
	m.mu.Unlock()

	select {
	case ok := <-done:
		if !ok {
			t.Error("WaitIfPaused() = false after resume, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after resume")
	}
}

func TestWaitIfPausedReturnsFalseOnStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 1 << 30

	m := NewMonitor(cfg)

	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()

	done := make(chan bool, 1)
	go func() {
		done <- m.WaitIfPaused()
	}()

	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("WaitIfPaused() = true after Stop, want false")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after Stop")
	}
}

func TestSnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 1 << 30

	m := NewMonitor(cfg)
	m.sample()

	heap, limit, ratio := m.Snapshot()
	if heap <= 0 {
		t.Errorf("heap = %d, want > 0 after sample", heap)
	}
	if limit != 1<<30 {
		t.Errorf("limit = %d, want %d", limit, int64(1<<30))
	}
	if ratio <= 0 {
		t.Errorf("ratio = %v, want > 0", ratio)
	}
}

func TestMonitorStartStop(_ *testing.T) {
	cfg := DefaultConfig()
	cfg.Limit = 1 << 30
	cfg.Interval = 10 * time.Millisecond

	m := NewMonitor(cfg)
	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
}
