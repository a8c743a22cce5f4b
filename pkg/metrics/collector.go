package metrics

import (
	"time"

	"github.com/slipway-sh/slipway/pkg/storage"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Collector refreshes stored object gauges from the store
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a collector reading from the given store
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
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
	c.collectRunMetrics()
	c.collectTopologyMetrics()
	c.collectWorkloadMetrics()
}

func (c *Collector) collectRunMetrics() {
	runs, err := c.store.ListRuns()
	if err != nil {
		return
	}

	counts := make(map[types.RunState]int)
	for _, run := range runs {
		counts[run.State]++
	}

	// Set every state explicitly so finished states drop back to zero
	states := []types.RunState{
		types.RunStatePending,
		types.RunStateRunning,
		types.RunStateSucceeded,
		types.RunStateFailed,
	}
	for _, state := range states {
		RunsStored.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectTopologyMetrics() {
	topologies, err := c.store.ListTopologies()
	if err != nil {
		return
	}

	TopologiesTotal.Set(float64(len(topologies)))
}

func (c *Collector) collectWorkloadMetrics() {
	workloads, err := c.store.ListWorkloads()
	if err != nil {
		return
	}

	WorkloadsTotal.Set(float64(len(workloads)))
}
