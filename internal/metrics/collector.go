package metrics

import (
	"time"

	"aigen-library/internal/logging"
)

// StatsProvider reports catalog totals for the collector.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current catalog totals.
type Stats struct {
	TotalImages int
	ByStatus    map[string]int
	ByEcosystem map[string]int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
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

	for status, n := range stats.ByStatus {
		LibraryImagesTotal.WithLabelValues(status).Set(float64(n))
	}
	for eco, n := range stats.ByEcosystem {
		LibraryImagesByEcosystem.WithLabelValues(eco).Set(float64(n))
	}

	logging.Debug("Metrics collected: images=%d, statuses=%d, ecosystems=%d",
		stats.TotalImages, len(stats.ByStatus), len(stats.ByEcosystem))
}
