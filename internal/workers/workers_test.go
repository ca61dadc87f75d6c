package workers

import (
	"os"
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	original := os.Getenv("SCAN_WORKERS")
	defer func() {
		if original != "" {
			os.Setenv("SCAN_WORKERS", original)
		} else {
			os.Unsetenv("SCAN_WORKERS")
		}
	}()
	os.Unsetenv("SCAN_WORKERS")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name      string
		perCPU    float64
		limit     int
		maxExpect int
	}{
		{
			name:      "one per CPU",
			perCPU:    1.0,
			limit:     0,
			maxExpect: availableCPU,
		},
		{
			name:      "two per CPU",
			perCPU:    2.0,
			limit:     0,
			maxExpect: availableCPU * 2,
		},
		{
			name:      "limit below computed count",
			perCPU:    2.0,
			limit:     2,
			maxExpect: 2,
		},
		{
			name:      "tiny ratio still yields one worker",
			perCPU:    0.1,
			limit:     0,
			maxExpect: availableCPU,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.perCPU, tt.limit)

			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, should never return less than 1", tt.perCPU, tt.limit, got)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.perCPU, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountWithEnvOverride(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		limit    int
		expected int
		fallback bool
	}{
		{name: "valid override", envValue: "8", limit: 0, expected: 8},
		{name: "override capped by limit", envValue: "20", limit: 10, expected: 10},
		{name: "override below limit", envValue: "5", limit: 10, expected: 5},
		{name: "non-numeric falls back", envValue: "invalid", limit: 0, fallback: true},
		{name: "zero falls back", envValue: "0", limit: 0, fallback: true},
		{name: "negative falls back", envValue: "-5", limit: 0, fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCAN_WORKERS", tt.envValue)

			got := Count(1.0, tt.limit)

			if tt.fallback {
				if got < 1 {
					t.Errorf("Count with invalid override should return at least 1, got %d", got)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("Count(1.0, %d) with SCAN_WORKERS=%s = %d, want %d", tt.limit, tt.envValue, got, tt.expected)
			}
		})
	}
}

func TestForExtraction(t *testing.T) {
	os.Unsetenv("SCAN_WORKERS")

	for _, limit := range []int{0, 4, 8} {
		got := ForExtraction(limit)
		if got < 1 {
			t.Errorf("ForExtraction(%d) = %d, want >= 1", limit, got)
		}
		if limit > 0 && got > limit {
			t.Errorf("ForExtraction(%d) = %d, should not exceed limit", limit, got)
		}
	}
}

func TestCountBoundaries(t *testing.T) {
	os.Unsetenv("SCAN_WORKERS")

	tests := []struct {
		name   string
		perCPU float64
		limit  int
	}{
		{"zero ratio", 0.0, 0},
		{"negative ratio", -1.0, 0},
		{"very high ratio", 100.0, 0},
		{"very high limit", 1.0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.perCPU, tt.limit)
			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, should never be less than 1", tt.perCPU, tt.limit, got)
			}
			if tt.limit > 0 && got > tt.limit {
				t.Errorf("Count(%v, %d) = %d, should not exceed limit", tt.perCPU, tt.limit, got)
			}
		})
	}
}

func TestCountConsistency(t *testing.T) {
	os.Unsetenv("SCAN_WORKERS")

	first := Count(1.5, 10)
	for i := 0; i < 5; i++ {
		if got := Count(1.5, 10); got != first {
			t.Errorf("Count(1.5, 10) returned different results: first=%d, iteration %d=%d", first, i, got)
		}
	}
}
