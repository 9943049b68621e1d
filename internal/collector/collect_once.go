package collector

import (
	"context"
	"time"
)

// CollectOnce runs the sampling tool in the foreground for the given duration
// and returns the aggregated traffic. Used by the CLI for ad-hoc sampling;
// nothing is persisted.
func (c *Collector) CollectOnce(ctx context.Context, duration time.Duration) (map[string]*Entry, error) {
	c.RefreshExcludedIPs()

	if err := c.Start(); err != nil {
		return nil, err
	}
	defer c.Stop()

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	c.mu.Lock()
	lines := c.lines
	c.mu.Unlock()

	c.runReader(runCtx, lines)
	return c.buf.Flush(), nil
}
