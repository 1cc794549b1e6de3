package hoststats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
)

// Collector accumulates per-host counts in memory and flushes them to
// Redis periodically. Safe for concurrent use.
type Collector struct {
	client        *Client
	flushInterval time.Duration
	logger        *slog.Logger

	mu      sync.Mutex
	batches map[string]*Batch

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCollector(client *Client, flushInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if flushInterval <= 0 {
		flushInterval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		client:        client,
		flushInterval: flushInterval,
		logger:        logger,
		batches:       make(map[string]*Batch),
		cancel:        cancel,
	}
	c.wg.Add(1)
	go c.flushLoop(ctx)
	return c
}

// Record counts one accepted event from hostname.
func (c *Collector) Record(hostname, remoteIP string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[hostname]
	if !ok {
		b = &Batch{Hostname: hostname}
		c.batches[hostname] = b
	}
	b.EventCount++
	if remoteIP != "" {
		b.LastIP = remoteIP
	}
}

func (c *Collector) flushLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			return
		case <-ticker.C:
			c.flush()
		}
	}
}

func (c *Collector) flush() {
	c.mu.Lock()
	batches := c.batches
	c.batches = make(map[string]*Batch)
	c.mu.Unlock()

	if len(batches) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, b := range batches {
		if err := c.client.FlushBatch(ctx, b); err != nil {
			c.logger.Warn("failed to flush host stats",
				logging.Hostname(b.Hostname),
				slog.Int64("event_count", b.EventCount),
				logging.Error(err))
			c.requeue(b)
		}
	}
}

// requeue merges a failed batch back for the next flush.
func (c *Collector) requeue(b *Batch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.batches[b.Hostname]; ok {
		existing.EventCount += b.EventCount
		if existing.LastIP == "" {
			existing.LastIP = b.LastIP
		}
		return
	}
	c.batches[b.Hostname] = b
}

// FlushNow writes pending counts immediately.
func (c *Collector) FlushNow() {
	c.flush()
}

// Pending returns unflushed event counts per host.
func (c *Collector) Pending() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.batches))
	for host, b := range c.batches {
		out[host] = b.EventCount
	}
	return out
}

// Stop ends the flush loop after a final flush.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}
