package metrics

import (
	"time"

	"github.com/fedmesh/fedmesh/pkg/registry"
)

// BacklogSizer reports how many contexts are currently tracked for
// cleanup; pkg/cleaner.Cleaner implements it. Declared here instead of
// imported to avoid metrics depending on cleaner's full package.
type BacklogSizer interface {
	BacklogSize() int
}

// Collector periodically samples the registry and cleaner for gauges that
// aren't naturally updated on their own event path (RegistryNodeCount is
// also set directly by a scan; this keeps it accurate even if a scan
// cycle is skipped for some reason).
type Collector struct {
	aggregator *registry.Aggregator
	backlog    BacklogSizer
	stopCh     chan struct{}
}

// NewCollector creates a metrics collector over the landscape aggregator
// and, optionally, a cleanup-backlog source.
func NewCollector(aggregator *registry.Aggregator, backlog BacklogSizer) *Collector {
	return &Collector{
		aggregator: aggregator,
		backlog:    backlog,
		stopCh:     make(chan struct{}),
	}
}

// Start begins collecting metrics
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.aggregator.Snapshot()
	RegistryNodeCount.Set(float64(len(snap.Nodes)))
	RegistryDataModelCount.Set(float64(len(snap.DataModels)))

	if c.backlog != nil {
		CleanupBacklogSize.Set(float64(c.backlog.BacklogSize()))
	}
}
