package metrics

import (
	"time"

	"folio/internal/logging"
)

// StatsProvider supplies catalog statistics for the gauge collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds a point-in-time view of the catalog.
type Stats struct {
	TotalBooks     int
	TotalLibraries int
	TotalSizeBytes int64
	FormatCounts   map[string]int
}

// Collector periodically collects and updates catalog gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	// Reset so formats that vanished from the catalog drop to zero.
	CatalogBooks.Reset()
	for format, count := range stats.FormatCounts {
		CatalogBooks.WithLabelValues(format).Set(float64(count))
	}
	CatalogLibraries.Set(float64(stats.TotalLibraries))
	CatalogSizeBytes.Set(float64(stats.TotalSizeBytes))

	logging.Debug("Metrics collected: books=%d, libraries=%d, size=%d",
		stats.TotalBooks, stats.TotalLibraries, stats.TotalSizeBytes)
}
