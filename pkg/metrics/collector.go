package metrics

import "time"

// SpaceStats is the snapshot a Collector polls from the space registry
// on each tick. It is a plain struct (not an import of pkg/space) so
// this package stays a leaf dependency.
type SpaceStats struct {
	DnaHash    string
	OpsByStage map[string]int
	Rejected   int
	Integrated int
}

// StatsSource is implemented by the space registry; Collector depends
// only on this narrow interface to avoid a storage/gossip/network
// import chain reaching into metrics.
type StatsSource interface {
	SpaceCount() int
	SpaceStats() []SpaceStats
}

// Collector periodically polls a StatsSource and republishes its
// counts as gauges, the way the teacher's collector polled the
// manager for node/service counts.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over the given source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics on a 15s tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SpacesTotal.Set(float64(c.source.SpaceCount()))

	for _, s := range c.source.SpaceStats() {
		for stage, count := range s.OpsByStage {
			OpsByStage.WithLabelValues(s.DnaHash, stage).Set(float64(count))
		}
	}
}
