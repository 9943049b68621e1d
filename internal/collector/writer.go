package collector

import (
	"context"
	"time"
)

// StartWriter launches the writer task. The returned done channel closes when
// the task exits.
func (c *Collector) StartWriter(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	c.mu.Lock()
	c.writerDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.runWriter(ctx)
	}()
	return done
}

// WriterAlive reports whether the writer task is running.
func (c *Collector) WriterAlive() bool {
	c.mu.Lock()
	done := c.writerDone
	c.mu.Unlock()
	return alive(done)
}

// runWriter flushes the buffer to the store on the write interval and runs
// retention cleanup once per calendar day. On shutdown it performs one final
// flush so buffered samples are not dropped.
func (c *Collector) runWriter(ctx context.Context) {
	c.log.Info().Dur("interval", c.cfg.DBWriteInterval).Msg("writer started")
	defer c.log.Info().Msg("writer stopped")

	ticker := time.NewTicker(c.cfg.DBWriteInterval)
	defer ticker.Stop()

	lastCleanupDay := c.now().Format("2006-01-02")

	for {
		select {
		case <-ctx.Done():
			c.persist()
			return

		case <-ticker.C:
			c.persist()

			if day := c.now().Format("2006-01-02"); day != lastCleanupDay {
				c.cleanup()
				lastCleanupDay = day
			}
		}
	}
}

// persist flushes the buffer and writes every non-empty entry. A store
// failure loses at most this one flush; the buffer has already been swapped.
func (c *Collector) persist() {
	data := c.buf.Flush()
	if len(data) == 0 {
		return
	}

	if err := c.store.SaveTraffic(data, c.now()); err != nil {
		c.log.Error().Err(err).Int("apps", len(data)).Msg("persist failed")
		return
	}
	c.log.Info().Int("apps", len(data)).Msg("traffic persisted")
}

func (c *Collector) cleanup() {
	cutoff := c.now().AddDate(0, 0, -c.cfg.DataRetentionDays)
	deleted, err := c.store.CleanupOldData(cutoff)
	if err != nil {
		c.log.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	if deleted > 0 {
		c.log.Info().Int64("rows", deleted).Int("retention_days", c.cfg.DataRetentionDays).
			Msg("retention cleanup")
	}
}
