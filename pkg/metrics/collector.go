package metrics

import (
	"time"

	"github.com/vulnscan/scanengine/pkg/storage"
)

// Collector periodically samples queue depth from the store, since those
// gauges reflect state a request handler can't cheaply update on every
// mutation.
type Collector struct {
	store  storage.QueueStore
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over store.
func NewCollector(store storage.QueueStore) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
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
	length, err := c.store.Length()
	if err != nil {
		return
	}
	QueueDepth.Set(float64(length))
}
